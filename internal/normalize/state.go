package normalize

import (
	"strings"

	"github.com/sells-group/congress-cli/internal/model"
)

// stateNames maps two-letter codes to full names for the 50 states, DC, and
// the inhabited territories that seat House delegates.
var stateNames = map[string]string{
	"AL": "Alabama", "AK": "Alaska", "AZ": "Arizona", "AR": "Arkansas", "CA": "California",
	"CO": "Colorado", "CT": "Connecticut", "DE": "Delaware", "FL": "Florida", "GA": "Georgia",
	"HI": "Hawaii", "ID": "Idaho", "IL": "Illinois", "IN": "Indiana", "IA": "Iowa",
	"KS": "Kansas", "KY": "Kentucky", "LA": "Louisiana", "ME": "Maine", "MD": "Maryland",
	"MA": "Massachusetts", "MI": "Michigan", "MN": "Minnesota", "MS": "Mississippi", "MO": "Missouri",
	"MT": "Montana", "NE": "Nebraska", "NV": "Nevada", "NH": "New Hampshire", "NJ": "New Jersey",
	"NM": "New Mexico", "NY": "New York", "NC": "North Carolina", "ND": "North Dakota", "OH": "Ohio",
	"OK": "Oklahoma", "OR": "Oregon", "PA": "Pennsylvania", "RI": "Rhode Island", "SC": "South Carolina",
	"SD": "South Dakota", "TN": "Tennessee", "TX": "Texas", "UT": "Utah", "VT": "Vermont",
	"VA": "Virginia", "WA": "Washington", "WV": "West Virginia", "WI": "Wisconsin", "WY": "Wyoming",
	"DC": "District of Columbia",
	"AS": "American Samoa", "GU": "Guam", "MP": "Northern Mariana Islands",
	"PR": "Puerto Rico", "VI": "Virgin Islands",
}

var stateByName map[string]string

func init() {
	stateByName = make(map[string]string, len(stateNames)+4)
	for code, name := range stateNames {
		stateByName[Key(name)] = code
	}
	stateByName["us virgin islands"] = "VI"
	stateByName["u s virgin islands"] = "VI"
	stateByName["washington dc"] = "DC"
	stateByName["commonwealth of the northern mariana islands"] = "MP"
}

// State returns the two-letter code for a state code or full state name.
// Strings outside the registry yield a NORMALIZE_STATE_UNKNOWN error.
func State(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if len(s) == 2 {
		code := strings.ToUpper(s)
		if _, ok := stateNames[code]; ok {
			return code, nil
		}
	}
	if code, ok := stateByName[Key(s)]; ok {
		return code, nil
	}
	return "", model.NewKindError(model.KindStateUnknown, "normalize: unknown state %q", raw)
}

// StateName returns the full name for a code, or "" when unknown.
func StateName(code string) string {
	return stateNames[strings.ToUpper(code)]
}

// IsSenateState reports whether the jurisdiction elects senators.
func IsSenateState(code string) bool {
	switch strings.ToUpper(code) {
	case "DC", "AS", "GU", "MP", "PR", "VI":
		return false
	}
	_, ok := stateNames[strings.ToUpper(code)]
	return ok
}
