package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/congress-cli/internal/model"
)

func TestState(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"CA", "CA"},
		{"ca", "CA"},
		{"California", "CA"},
		{"  new york ", "NY"},
		{"District of Columbia", "DC"},
		{"Puerto Rico", "PR"},
		{"U.S. Virgin Islands", "VI"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := State(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestState_Unknown(t *testing.T) {
	for _, input := range []string{"Narnia", "ZZ", "", "Ontario"} {
		_, err := State(input)
		require.Error(t, err, input)
		assert.Equal(t, model.KindStateUnknown, model.KindOf(err))
	}
}

func TestIsSenateState(t *testing.T) {
	assert.True(t, IsSenateState("IA"))
	assert.False(t, IsSenateState("DC"))
	assert.False(t, IsSenateState("PR"))
	assert.False(t, IsSenateState("XX"))
}

func TestPartyAndChamber(t *testing.T) {
	assert.Equal(t, model.PartyDemocratic, Party("D"))
	assert.Equal(t, model.PartyDemocratic, Party("Democratic Party"))
	assert.Equal(t, model.PartyRepublican, Party("Rep."))
	assert.Equal(t, model.PartyIndependent, Party("I"))
	assert.Equal(t, model.Party(""), Party("Whig"))

	assert.Equal(t, model.ChamberHouse, Chamber("House of Representatives"))
	assert.Equal(t, model.ChamberSenate, Chamber("senate"))
	assert.Equal(t, model.ChamberJoint, Chamber("Joint"))
	assert.Equal(t, model.Chamber(""), Chamber("Parliament"))
}

func TestRole(t *testing.T) {
	tests := []struct {
		input string
		want  model.Role
	}{
		{"Chairman", model.RoleChair},
		{"ranking_member", model.RoleRanking},
		{"Ranking Member", model.RoleRanking},
		{"vice_chair", model.RoleMember},
		{"", model.RoleMember},
	}
	for _, tt := range tests {
		got, ok := Role(tt.input)
		assert.True(t, ok, tt.input)
		assert.Equal(t, tt.want, got, tt.input)
	}
	_, ok := Role("janitor")
	assert.False(t, ok)
}
