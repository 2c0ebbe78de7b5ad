package main

import (
	"context"
	"encoding/json"
	"io"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/congress-cli/internal/match"
	"github.com/sells-group/congress-cli/internal/model"
	"github.com/sells-group/congress-cli/internal/normalize"
)

var (
	matchChamber string
	matchState   string
)

var matchCmd = &cobra.Command{
	Use:   "match",
	Short: "Show how a declared name resolves against the database",
}

var matchMemberCmd = &cobra.Command{
	Use:   "member <name>",
	Short: "Match a declared person string to a member",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		snap, err := st.Snapshot(ctx)
		if err != nil {
			return eris.Wrap(err, "match member")
		}
		mcfg := match.MemberConfig{StrictState: cfg.Reconcile.StrictState, Budget: cfg.Reconcile.MatchBudget()}
		return matchMember(ctx, cmd.OutOrStdout(), snap, mcfg, strings.Join(args, " "), matchChamber, matchState)
	},
}

var matchCommitteeCmd = &cobra.Command{
	Use:   "committee <name>",
	Short: "Match a declared committee name to a committee",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		snap, err := st.Snapshot(ctx)
		if err != nil {
			return eris.Wrap(err, "match committee")
		}
		return matchCommittee(ctx, cmd.OutOrStdout(), snap, cfg.Reconcile.MatchBudget(), strings.Join(args, " "), matchChamber)
	},
}

type memberMatchOutput struct {
	Person normalize.Person  `json:"person"`
	Match  model.MatchResult `json:"match"`
}

type committeeMatchOutput struct {
	Committee normalize.Committee `json:"committee"`
	Match     model.MatchResult   `json:"match"`
}

func parseChamber(raw string) (model.Chamber, error) {
	if raw == "" {
		return "", nil
	}
	c := normalize.Chamber(raw)
	if c == "" {
		return "", eris.Errorf("unknown chamber %q", raw)
	}
	return c, nil
}

func matchMember(ctx context.Context, out io.Writer, snap *model.Snapshot, mcfg match.MemberConfig, name, chamber, state string) error {
	person, err := normalize.PersonName(name)
	if err != nil {
		return err
	}
	c, err := parseChamber(chamber)
	if err != nil {
		return err
	}
	q := match.MemberQuery{Person: person, Chamber: c, State: person.State, Party: person.Party}
	if state != "" {
		st, err := normalize.State(state)
		if err != nil {
			return err
		}
		q.State = st
	}
	res := match.NewMemberMatcher(snap.Members, mcfg).Match(ctx, q)
	return writeIndented(out, memberMatchOutput{Person: person, Match: res})
}

func matchCommittee(ctx context.Context, out io.Writer, snap *model.Snapshot, budget time.Duration, name, chamber string) error {
	c, err := parseChamber(chamber)
	if err != nil {
		return err
	}
	nc := normalize.CommitteeName(name, c)
	res := match.NewCommitteeMatcher(snap.Committees, budget).Match(ctx, nc)
	return writeIndented(out, committeeMatchOutput{Committee: nc, Match: res})
}

func writeIndented(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	matchCmd.PersistentFlags().StringVar(&matchChamber, "chamber", "", "declared chamber (House, Senate, Joint)")
	matchMemberCmd.Flags().StringVar(&matchState, "state", "", "declared state code or name")

	matchCmd.AddCommand(matchMemberCmd)
	matchCmd.AddCommand(matchCommitteeCmd)
	rootCmd.AddCommand(matchCmd)
}
