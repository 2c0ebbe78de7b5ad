package normalize

import (
	"strings"

	"github.com/sells-group/congress-cli/internal/model"
)

// Party maps declared party strings ("D", "Dem.", "Republican", "I") to a
// Party. Unrecognised input returns "".
func Party(raw string) model.Party {
	switch strings.TrimSuffix(Key(raw), " party") {
	case "d", "dem", "democrat", "democratic", "democratic farmer labor", "dfl":
		return model.PartyDemocratic
	case "r", "rep", "gop", "republican":
		return model.PartyRepublican
	case "i", "ind", "independent", "id":
		return model.PartyIndependent
	}
	return ""
}

// Chamber maps declared chamber strings to a Chamber. Unrecognised input returns "".
func Chamber(raw string) model.Chamber {
	switch Key(raw) {
	case "house", "house of representatives", "h", "us house", "u s house":
		return model.ChamberHouse
	case "senate", "s", "us senate", "u s senate":
		return model.ChamberSenate
	case "joint", "j", "joint committee":
		return model.ChamberJoint
	}
	return ""
}

// Role maps declared titles to a Role. Vice chairs and vice ranking members
// are ordinary members for leadership purposes.
func Role(raw string) (model.Role, bool) {
	switch Key(raw) {
	case "", "member", "members", "majority", "minority":
		return model.RoleMember, true
	case "chair", "chairman", "chairwoman", "chairperson", "co chair":
		return model.RoleChair, true
	case "ranking member", "ranking_member", "ranking", "ranking minority member", "rankingmember":
		return model.RoleRanking, true
	case "vice chair", "vice chairman", "vice ranking member", "ex officio":
		return model.RoleMember, true
	}
	return "", false
}
