package pricing

import "strings"

// pppMultipliers holds purchasing-power adjustment factors per ISO 3166-1
// alpha-2 region. Unknown regions pay the list price.
var pppMultipliers = map[string]float64{
	"AR": 0.40,
	"BR": 0.45,
	"CO": 0.45,
	"EG": 0.35,
	"ID": 0.40,
	"IN": 0.35,
	"MX": 0.55,
	"NG": 0.35,
	"PH": 0.40,
	"PK": 0.35,
	"TR": 0.40,
	"UA": 0.40,
	"VN": 0.40,
	"ZA": 0.55,
}

// RegionMultiplier returns the PPP factor for a region code, 1.0 when the
// region is unknown or empty.
func RegionMultiplier(region string) float64 {
	if m, ok := pppMultipliers[strings.ToUpper(strings.TrimSpace(region))]; ok {
		return m
	}
	return 1.0
}
