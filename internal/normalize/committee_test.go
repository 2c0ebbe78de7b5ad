package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/congress-cli/internal/model"
)

func TestCommitteeName_Prefixes(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"Committee on the Judiciary", "judiciary"},
		{"Judiciary Committee", "judiciary"},
		{"The Judiciary Committee", "judiciary"},
		{"Senate Committee on Finance", "finance"},
		{"Permanent Select Committee on Intelligence", "intelligence"},
		{"Special Committee on Aging", "aging"},
		{"Joint Committee on Taxation", "taxation"},
		{"Committee on Ways and Means", "ways and means"},
		{"Energy & Commerce", "energy and commerce"},
		{"Committee on Health, Education, Labor, and Pensions", "health, education, labor, and pensions"},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got := CommitteeName(tt.raw, model.ChamberSenate)
			assert.Equal(t, tt.want, got.Phrase)
			assert.False(t, got.SubcommitteeHint)
		})
	}
}

func TestCommitteeName_SubcommitteeHint(t *testing.T) {
	got := CommitteeName("Subcommittee on Crime and Federal Government Surveillance", model.ChamberHouse)
	assert.True(t, got.SubcommitteeHint)
	assert.Equal(t, "crime and federal government surveillance", got.Phrase)
	assert.Equal(t, model.ChamberHouse, got.Chamber)

	got = CommitteeName("Border Security and Enforcement Subcommittee", model.ChamberHouse)
	assert.True(t, got.SubcommitteeHint)
	assert.Equal(t, "border security and enforcement", got.Phrase)
}

func TestSynonymKey(t *testing.T) {
	pairs := [][2]string{
		{"health, education, labor, and pensions", "health, education, labor and pensions"},
		{"science, space and technology", "science, space, and technology"},
		{"house administration", "administration"},
		{"oversight and government reform", "oversight and accountability"},
		{"aging", "aging (special)"},
		{"homeland security and government affairs", "homeland security and governmental affairs"},
	}
	for _, p := range pairs {
		assert.Equal(t, SynonymKey(p[0]), SynonymKey(p[1]), p[0])
	}
	assert.Equal(t, "judiciary", SynonymKey("judiciary"))
}

func TestSynonymKey_CurlyApostrophe(t *testing.T) {
	a := CommitteeName("Committee on Veterans’ Affairs", model.ChamberHouse)
	b := CommitteeName("Committee on Veterans Affairs", model.ChamberHouse)
	assert.NotEqual(t, a.Phrase, b.Phrase)
	assert.Equal(t, SynonymKey(a.Phrase), SynonymKey(b.Phrase))
}

func TestTokens(t *testing.T) {
	assert.Equal(t, []string{"ways", "means"}, Tokens("ways and means"))
	assert.Equal(t, []string{"health", "education", "labor", "pensions"}, Tokens("health, education, labor, and pensions"))
}

func TestKeyAndFold(t *testing.T) {
	assert.Equal(t, "diaz balart", Key("Díaz-Balart"))
	assert.Equal(t, "ocasio cortez", Key("Ocasio-Cortez"))
	assert.Equal(t, "Sanchez", Fold("Sánchez"))
}
