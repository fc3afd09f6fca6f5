package entity

import (
	"time"

	"github.com/joseph-ayodele/patrol-log/constants"
)

// Incident represents one extracted police-report record for data transfer
// between pipeline stages. It is created by the record extractor, enriched in
// place by the geocoder and categorizer, and frozen by the consolidator.
type Incident struct {
	CaseNumber  string    `json:"case_number"`
	Date        time.Time `json:"date"`
	Time        string    `json:"time,omitempty"` // "HHMM" 24h; empty = unknown
	OffenseType string    `json:"offense_type"`
	Location    string    `json:"location"`
	ArrestInfo  string    `json:"arrest_info,omitempty"`
	ReportDate  time.Time `json:"report_date"`

	// Set during enrichment; nil/empty until then.
	Latitude         *float64           `json:"latitude,omitempty"`
	Longitude        *float64           `json:"longitude,omitempty"`
	FormattedAddress string             `json:"formatted_address,omitempty"`
	LocationKind     string             `json:"location_kind,omitempty"`
	Category         constants.Category `json:"offense_category,omitempty"`
}

// Geocoded reports whether the incident carries resolved coordinates.
func (i *Incident) Geocoded() bool {
	return i.Latitude != nil && i.Longitude != nil
}

// TimeMinutes converts the "HHMM" time to minutes past midnight.
// Unknown or malformed times return nil — never 0, which is a valid
// midnight timestamp.
func (i *Incident) TimeMinutes() *int {
	if len(i.Time) != 4 {
		return nil
	}
	for _, r := range i.Time {
		if r < '0' || r > '9' {
			return nil
		}
	}
	hours := int(i.Time[0]-'0')*10 + int(i.Time[1]-'0')
	minutes := int(i.Time[2]-'0')*10 + int(i.Time[3]-'0')
	if hours > 23 || minutes > 59 {
		return nil
	}
	v := hours*60 + minutes
	return &v
}

// FinalRecord is the stage-5 output schema consumed by the visualization
// front end. Field names and types are a stable contract: case_number is
// always a string, time is minutes past midnight or null when unknown.
type FinalRecord struct {
	CaseNumber       string  `json:"case_number"`
	Date             string  `json:"date"` // YYYY-MM-DD
	Time             *int    `json:"time"` // minutes past midnight; null = unknown
	OffenseType      string  `json:"offense_type"`
	OffenseCategory  string  `json:"offense_category"`
	Location         string  `json:"location"`
	Latitude         float64 `json:"latitude"`
	Longitude        float64 `json:"longitude"`
	FormattedAddress string  `json:"formatted_address"`
	LocationKind     string  `json:"location_kind,omitempty"`
	ReportDate       string  `json:"report_date"` // YYYY-MM-DD
}
