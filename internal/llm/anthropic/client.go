package anthropic

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joseph-ayodele/patrol-log/internal/llm"
)

const apiVersion = "2023-06-01"

var jsonArrayRe = regexp.MustCompile(`(?s)\[.*\]`)

// ExtractTable implements llm.TableExtractor against the Claude messages API.
// The model is asked for a JSON array matching the incident-table schema; the
// response is validated locally before any row is accepted.
func (c *Client) ExtractTable(ctx context.Context, text string) ([]llm.RawRow, []byte, error) {
	rid := uuid.New().String()
	start := time.Now()

	c.logger.Info("llm.extract_table.start",
		"req_id", rid,
		"model", c.cfg.Model,
		"text_len", len(text),
	)

	raw, err := c.message(ctx, buildTablePrompt(text))
	if err != nil {
		c.logger.Error("llm.extract_table.call_error",
			"req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return nil, nil, err
	}

	// Tolerate markdown fences or prose around the array.
	content := jsonArrayRe.FindString(raw)
	if content == "" {
		c.logger.Error("llm.extract_table.no_json", "req_id", rid, "content_len", len(raw))
		return nil, []byte(raw), fmt.Errorf("no JSON array in model response")
	}
	rawContent := []byte(content)

	if err := llm.ValidateJSONAgainstSchema(llm.BuildIncidentTableSchema(), rawContent); err != nil {
		c.logger.Error("llm.extract_table.schema_validation_failed",
			"req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return nil, rawContent, fmt.Errorf("validate table output: %w", err)
	}

	var rows []llm.RawRow
	if err := json.Unmarshal(rawContent, &rows); err != nil {
		return nil, rawContent, fmt.Errorf("decode table output: %w", err)
	}

	c.logger.Info("llm.extract_table.ok",
		"req_id", rid,
		"rows", len(rows),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return rows, rawContent, nil
}

// Classify implements llm.Classifier. The allowed label set is embedded in
// the prompt as a hard constraint; callers still coerce anything off-list.
func (c *Client) Classify(ctx context.Context, offense string, allowed []string) (string, error) {
	rid := uuid.New().String()
	start := time.Now()

	raw, err := c.message(ctx, buildClassifyPrompt(offense, allowed))
	if err != nil {
		c.logger.Error("llm.classify.call_error", "req_id", rid, "error", err)
		return "", err
	}

	label := strings.TrimSpace(raw)
	// Models occasionally quote the label or add a trailing period.
	label = strings.Trim(label, `"'.`)

	c.logger.Info("llm.classify.ok",
		"req_id", rid,
		"label", label,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return label, nil
}

// message sends one user prompt and returns the concatenated text content.
func (c *Client) message(ctx context.Context, prompt string) (string, error) {
	body := map[string]any{
		"model":       c.cfg.Model,
		"max_tokens":  c.cfg.MaxTokens,
		"temperature": c.cfg.Temperature,
		"messages": []map[string]any{
			{"role": "user", "content": prompt},
		},
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/v1/messages"
	headers := map[string]string{
		"x-api-key":         c.cfg.APIKey,
		"anthropic-version": apiVersion,
	}

	raw, _, err := llm.SendJSON(ctx, c.http, endpoint, body, headers, c.logger)
	if err != nil {
		return "", err
	}

	var msg struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	}
	if err := json.Unmarshal(raw, &msg); err != nil {
		return "", fmt.Errorf("decode anthropic response: %w", err)
	}
	if len(msg.Content) == 0 {
		return "", fmt.Errorf("empty content in anthropic response")
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	return sb.String(), nil
}

func buildTablePrompt(text string) string {
	return fmt.Sprintf(`You are an expert data extractor for police reports. Extract structured incident data from the Palo Alto Police Department report log text below. The text was converted from PDF and columns may be misaligned: case numbers may be listed first, then all dates, then all times, and so on. Match each case number with its corresponding date, time, offense, and location by position.

Fields per incident:
1. case_number (format: NN-NNNNN)
2. date (format: MM/DD/YYYY)
3. time (format: HHMM, 24-hour; omit if absent)
4. offense_type
5. location
6. arrest_info (omit if absent)

Text to process:
%s

Respond with ONLY a JSON array of objects using exactly the field names above. No commentary, no markdown, no explanation.`, text)
}

func buildClassifyPrompt(offense string, allowed []string) string {
	return fmt.Sprintf(`You are an expert police report analyst. Categorize the following raw offense type into exactly one of the predefined categories.

Predefined categories:
- %s

Offense type: %q

Respond with ONLY the chosen category name, exactly as written above, with no additional text.`, strings.Join(allowed, "\n- "), offense)
}
