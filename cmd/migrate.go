package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/congress-cli/internal/model"
)

var migrateSeed string

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the database schema",
	Long:  "Creates the members, committees, memberships, audit and run tables. With --seed, upserts reference data from a YAML or JSON file.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		zap.L().Info("schema applied")

		if migrateSeed == "" {
			return nil
		}
		ref, err := loadReference(migrateSeed)
		if err != nil {
			return err
		}
		if err := st.Seed(ctx, ref); err != nil {
			return eris.Wrap(err, "seed reference data")
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d members, %d committees, %d memberships.\n",
			len(ref.Members), len(ref.Committees), len(ref.Memberships))
		return nil
	},
}

// loadReference reads a seed file, choosing the decoder by extension.
func loadReference(path string) (*model.Reference, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "read seed %s", path)
	}
	var ref model.Reference
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &ref)
	case ".json":
		err = json.Unmarshal(data, &ref)
	default:
		return nil, eris.Errorf("seed %s: unsupported file type", path)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "decode seed %s", path)
	}
	return &ref, nil
}

func init() {
	migrateCmd.Flags().StringVar(&migrateSeed, "seed", "", "reference data file (YAML or JSON) to upsert")
	rootCmd.AddCommand(migrateCmd)
}
