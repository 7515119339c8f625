package tax

import "strings"

const homeCountry = "IN"

var indiaAliases = map[string]struct{}{
	"in":     {},
	"ind":    {},
	"india":  {},
	"bharat": {},
}

// ISO 3166-1 alpha-2 codes.
var isoCountryCodes = strings.Fields(`
AD AE AF AG AI AL AM AO AQ AR AS AT AU AW AX AZ BA BB BD BE BF BG BH BI BJ BL
BM BN BO BQ BR BS BT BV BW BY BZ CA CC CD CF CG CH CI CK CL CM CN CO CR CU CV
CW CX CY CZ DE DJ DK DM DO DZ EC EE EG EH ER ES ET FI FJ FK FM FO FR GA GB GD
GE GF GG GH GI GL GM GN GP GQ GR GS GT GU GW GY HK HM HN HR HT HU ID IE IL IM
IN IO IQ IR IS IT JE JM JO JP KE KG KH KI KM KN KP KR KW KY KZ LA LB LC LI LK
LR LS LT LU LV LY MA MC MD ME MF MG MH MK ML MM MN MO MP MQ MR MS MT MU MV MW
MX MY MZ NA NC NE NF NG NI NL NO NP NR NU NZ OM PA PE PF PG PH PK PL PM PN PR
PS PT PW PY QA RE RO RS RU RW SA SB SC SD SE SG SH SI SJ SK SL SM SN SO SR SS
ST SV SX SY SZ TC TD TF TG TH TJ TK TL TM TN TO TR TT TV TW TZ UA UG UM US UY
UZ VA VC VE VG VI VN VU WF WS YE YT ZA ZM ZW`)

var countryNames = map[string]string{
	"united states":            "US",
	"united states of america": "US",
	"usa":                      "US",
	"united kingdom":           "GB",
	"uk":                       "GB",
	"great britain":            "GB",
	"canada":                   "CA",
	"australia":                "AU",
	"new zealand":              "NZ",
	"singapore":                "SG",
	"malaysia":                 "MY",
	"indonesia":                "ID",
	"thailand":                 "TH",
	"philippines":              "PH",
	"vietnam":                  "VN",
	"japan":                    "JP",
	"china":                    "CN",
	"hong kong":                "HK",
	"south korea":              "KR",
	"united arab emirates":     "AE",
	"uae":                      "AE",
	"saudi arabia":             "SA",
	"qatar":                    "QA",
	"oman":                     "OM",
	"kuwait":                   "KW",
	"bahrain":                  "BH",
	"nepal":                    "NP",
	"bangladesh":               "BD",
	"sri lanka":                "LK",
	"pakistan":                 "PK",
	"bhutan":                   "BT",
	"maldives":                 "MV",
	"germany":                  "DE",
	"france":                   "FR",
	"netherlands":              "NL",
	"ireland":                  "IE",
	"spain":                    "ES",
	"italy":                    "IT",
	"switzerland":              "CH",
	"sweden":                   "SE",
	"norway":                   "NO",
	"denmark":                  "DK",
	"south africa":             "ZA",
	"kenya":                    "KE",
	"nigeria":                  "NG",
	"brazil":                   "BR",
	"mexico":                   "MX",
}

var knownCodes = func() map[string]struct{} {
	out := make(map[string]struct{}, len(isoCountryCodes))
	for _, code := range isoCountryCodes {
		out[code] = struct{}{}
	}
	return out
}()

// normalizeCountry returns the ISO alpha-2 code for country, or "" when it is
// not recognized.
func normalizeCountry(country string) string {
	key := strings.ToLower(strings.Join(strings.Fields(country), " "))
	if key == "" {
		return ""
	}
	if _, ok := indiaAliases[key]; ok {
		return homeCountry
	}
	if code, ok := countryNames[key]; ok {
		return code
	}
	upper := strings.ToUpper(key)
	if _, ok := knownCodes[upper]; ok {
		return upper
	}
	return ""
}

func normalizeState(state string) string {
	return strings.ToLower(strings.Join(strings.Fields(state), " "))
}
