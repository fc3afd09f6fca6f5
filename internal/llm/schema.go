package llm

// BuildIncidentTableSchema returns a JSON-Schema (draft 2020-12 subset) as a
// generic map. The extractor's JSON output must validate against it before
// any row is accepted; a document that fails validation fails the whole file.
func BuildIncidentTableSchema() map[string]any {
	row := map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"case_number":  map[string]any{"type": "string", "minLength": 1},
			"date":         map[string]any{"type": "string", "pattern": `^(\d{1,2}/\d{1,2}/\d{4}|\d{4}-\d{2}-\d{2})$`},
			"time":         map[string]any{"type": "string", "pattern": `^(\d{3,4})?$`}, // 3 digits: dropped leading zero
			"offense_type": map[string]any{"type": "string", "minLength": 1},
			"location":     map[string]any{"type": "string"},
			"arrest_info":  map[string]any{"type": "string"},
		},
		"required": []string{"case_number", "date", "offense_type", "location"},
	}

	return map[string]any{
		"type":  "array",
		"items": row,
	}
}
