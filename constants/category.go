package constants

import (
	"strings"
)

type Category string

const (
	Theft          Category = "Theft"
	Burglary       Category = "Burglary"
	VehicleCrime   Category = "Vehicle Crime"
	Traffic        Category = "Traffic Incidents"
	PropertyCrime  Category = "Property Crime"
	ViolentCrime   Category = "Violent/Person Crime"
	Fraud          Category = "Fraud/Financial Crime"
	PublicOrder    Category = "Public Order/Disturbance"
	Warrant        Category = "Warrant/Arrest"
	Administrative Category = "Administrative/Other"
)

var allCategories = []Category{
	Theft,
	Burglary,
	VehicleCrime,
	Traffic,
	PropertyCrime,
	ViolentCrime,
	Fraud,
	PublicOrder,
	Warrant,
	Administrative,
}

func AsStringSlice() []string {
	result := make([]string, len(allCategories))
	for i, cat := range allCategories {
		result[i] = string(cat)
	}
	return result
}

// Canonicalize maps a raw classifier label onto the closed vocabulary.
// Unknown labels fall back to Administrative/Other with ok=false.
func Canonicalize(input string) (Category, bool) {
	if input == "" {
		return Administrative, false
	}

	normalized := strings.ToLower(strings.TrimSpace(input))

	// synonyms map
	synonyms := map[string]Category{
		"larceny":            Theft,
		"shoplifting":        Theft,
		"petty theft":        Theft,
		"grand theft":        Theft,
		"auto theft":         VehicleCrime,
		"vehicle theft":      VehicleCrime,
		"stolen vehicle":     VehicleCrime,
		"auto burglary":      VehicleCrime,
		"dui":                Traffic,
		"traffic":            Traffic,
		"collision":          Traffic,
		"hit and run":        Traffic,
		"vandalism":          PropertyCrime,
		"arson":              PropertyCrime,
		"assault":            ViolentCrime,
		"battery":            ViolentCrime,
		"robbery":            ViolentCrime,
		"fraud":              Fraud,
		"identity theft":     Fraud,
		"forgery":            Fraud,
		"disturbance":        PublicOrder,
		"disorderly conduct": PublicOrder,
		"warrant":            Warrant,
		"arrest":             Warrant,
		"other":              Administrative,
	}

	if cat, ok := synonyms[normalized]; ok {
		return cat, true
	}

	// check if it matches any category string
	for _, cat := range allCategories {
		if normalized == strings.ToLower(string(cat)) {
			return cat, true
		}
	}

	return Administrative, false
}
