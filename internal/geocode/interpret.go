package geocode

// Location-kind labels derived from Places API types. Stable values: they end
// up in the final dataset.
const (
	KindIntersection  = "intersection"
	KindStreetAddress = "street_address_or_premise"
	KindRoute         = "route"
	KindSpecificPlace = "specific_place"
	KindGeneralArea   = "general_area_or_other"
	KindUnknown       = "unknown"
)

var specificPlaceTypes = map[string]struct{}{
	"establishment":     {},
	"point_of_interest": {},
	"store":             {},
	"restaurant":        {},
	"park":              {},
	"school":            {},
	"hospital":          {},
	"church":            {},
	"library":           {},
	"museum":            {},
	"airport":           {},
	"shopping_mall":     {},
	"university":        {},
	"transit_station":   {},
	"gas_station":       {},
	"lodging":           {},
}

// InterpretPlaceTypes maps the Places API type list to one coarse kind.
func InterpretPlaceTypes(placeTypes []string) string {
	if len(placeTypes) == 0 {
		return KindUnknown
	}

	set := make(map[string]struct{}, len(placeTypes))
	for _, t := range placeTypes {
		set[t] = struct{}{}
	}

	if _, ok := set["intersection"]; ok {
		return KindIntersection
	}
	if _, ok := set["street_address"]; ok {
		return KindStreetAddress
	}
	if _, ok := set["premise"]; ok {
		return KindStreetAddress
	}
	if _, ok := set["route"]; ok {
		return KindRoute
	}
	for t := range specificPlaceTypes {
		if _, ok := set[t]; ok {
			return KindSpecificPlace
		}
	}
	return KindGeneralArea
}
