package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/congress-cli/internal/model"
)

func TestPersonName_HonorificAndParenthetical(t *testing.T) {
	p, err := PersonName("Sen. Charles E. Grassley (R-IA)")
	require.NoError(t, err)
	assert.Equal(t, "Charles", p.First)
	assert.Equal(t, "E.", p.Middle)
	assert.Equal(t, "Grassley", p.Last)
	assert.Equal(t, model.PartyRepublican, p.Party)
	assert.Equal(t, "IA", p.State)
	assert.Equal(t, "grassley", p.LastKey())
	assert.Equal(t, "c", p.FirstInitial())
	assert.Contains(t, p.Rules, "honorific")
	assert.Contains(t, p.Rules, "party_state_parenthetical")
}

func TestPersonName_HouseDistrict(t *testing.T) {
	p, err := PersonName("Rep. Jared Golden (D-ME-02)")
	require.NoError(t, err)
	assert.Equal(t, "Golden", p.Last)
	assert.Equal(t, "ME", p.State)
	assert.Equal(t, "2", p.District)
	assert.Equal(t, model.PartyDemocratic, p.Party)
}

func TestPersonName_Independent(t *testing.T) {
	p, err := PersonName("Hon. Bernard Sanders (I-VT)")
	require.NoError(t, err)
	assert.Equal(t, model.PartyIndependent, p.Party)
	assert.Equal(t, "Bernard", p.First)
	assert.Equal(t, "Sanders", p.Last)
}

func TestPersonName_CompoundSurnames(t *testing.T) {
	tests := []struct {
		raw   string
		first string
		last  string
	}{
		{"Lisa Blunt Rochester (D-DE)", "Lisa", "Blunt Rochester"},
		{"Catherine Cortez Masto", "Catherine", "Cortez Masto"},
		{"Chris Van Hollen", "Chris", "Van Hollen"},
		{"Cindy Hyde-Smith", "Cindy", "Hyde-Smith"},
		{"Debbie Wasserman Schultz", "Debbie", "Wasserman Schultz"},
		{"Ben Ray Luján", "Ben", "Lujan"},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			p, err := PersonName(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.first, p.First)
			assert.Equal(t, tt.last, p.Last)
		})
	}
}

func TestPersonName_FoldsAccentsInKeys(t *testing.T) {
	p, err := PersonName("Ben Ray Luján")
	require.NoError(t, err)
	assert.Equal(t, "Ray", p.Middle)
	assert.Equal(t, "Lujan", p.Last)
	assert.Equal(t, "lujan", p.LastKey())
	assert.Equal(t, "Ben Ray Lujan", p.Display())
}

func TestPersonName_HyphenatedKey(t *testing.T) {
	p, err := PersonName("Cindy Hyde-Smith")
	require.NoError(t, err)
	assert.Equal(t, "hyde smith", p.LastKey())
}

func TestPersonName_LastFirstOrder(t *testing.T) {
	p, err := PersonName("Grassley, Chuck")
	require.NoError(t, err)
	assert.Equal(t, "Chuck", p.First)
	assert.Equal(t, "Grassley", p.Last)
	assert.Contains(t, p.Rules, "last_first_order")
}

func TestPersonName_Suffix(t *testing.T) {
	p, err := PersonName("• Rep. John Smith Jr.")
	require.NoError(t, err)
	assert.Equal(t, "John", p.First)
	assert.Equal(t, "Smith", p.Last)
	assert.Equal(t, "Jr.", p.Suffix)

	p, err = PersonName("Smith, John, III")
	require.NoError(t, err)
	assert.Equal(t, "John", p.First)
	assert.Equal(t, "Smith", p.Last)
	assert.Equal(t, "III", p.Suffix)
}

func TestPersonName_Nicknames(t *testing.T) {
	p, err := PersonName(`Charles "Chuck" Grassley`)
	require.NoError(t, err)
	assert.Equal(t, "Charles", p.First)
	assert.Equal(t, "Chuck", p.Nickname)
	assert.Equal(t, "Grassley", p.Last)
	assert.Equal(t, "chuck grassley", p.NicknameKey())

	p, err = PersonName("Charles (Chuck) Grassley (R-IA)")
	require.NoError(t, err)
	assert.Equal(t, "Chuck", p.Nickname)
	assert.Equal(t, "IA", p.State)
}

func TestPersonName_LastNameOnly(t *testing.T) {
	p, err := PersonName("Smith")
	require.NoError(t, err)
	assert.Equal(t, "Smith", p.Last)
	assert.Empty(t, p.First)
	assert.Empty(t, p.FirstInitial())
}

func TestPersonName_UnknownState(t *testing.T) {
	_, err := PersonName("Jane Doe (D-ZZ)")
	require.Error(t, err)
	assert.Equal(t, model.KindStateUnknown, model.KindOf(err))
}

func TestPersonName_Empty(t *testing.T) {
	_, err := PersonName("  •  ")
	require.Error(t, err)
	assert.Equal(t, model.KindSourceMalformed, model.KindOf(err))
}
