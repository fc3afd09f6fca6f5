package llm

import "context"

// RawRow is one incident row as returned by the table extractor, before any
// typing or validation beyond the JSON schema.
type RawRow struct {
	CaseNumber  string `json:"case_number"`
	Date        string `json:"date"`                  // MM/DD/YYYY or YYYY-MM-DD
	Time        string `json:"time,omitempty"`        // HHMM, 24-hour
	OffenseType string `json:"offense_type"`
	Location    string `json:"location"`
	ArrestInfo  string `json:"arrest_info,omitempty"`
}

// TableExtractor is the interface the extract stage depends on: it turns one
// converted report-log text into structured incident rows.
type TableExtractor interface {
	ExtractTable(ctx context.Context, text string) ([]RawRow, []byte /*rawJSON*/, error)
}

// Classifier assigns a raw offense description one label from the allowed
// set. Callers must treat out-of-set responses as Administrative/Other.
type Classifier interface {
	Classify(ctx context.Context, offense string, allowed []string) (string, error)
}
