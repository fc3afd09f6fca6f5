package pipeline

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// markerFile is written atomically into a stage's output directory after all
// units finish. Its presence plus date coverage is the stage's "done"
// predicate: directory existence alone can't distinguish a completed stage
// from a partially-written one.
const markerFile = ".stage.json"

type marker struct {
	Stage      int       `json:"stage"`
	Name       string    `json:"name"`
	Dates      []string  `json:"dates"` // YYYY-MM-DD keys covered, including no-report days
	FinishedAt time.Time `json:"finished_at"`
	Processed  int       `json:"processed"`
	Succeeded  int       `json:"succeeded"`
	Failed     int       `json:"failed"`
}

func loadMarker(dir string) (*marker, error) {
	data, err := os.ReadFile(filepath.Join(dir, markerFile))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read stage marker: %w", err)
	}
	var m marker
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode stage marker: %w", err)
	}
	return &m, nil
}

// writeMarker persists the marker, merging date coverage with any existing
// marker so re-runs over new ranges never shrink what is recorded as done.
func writeMarker(dir string, m marker) error {
	if prev, err := loadMarker(dir); err == nil && prev != nil {
		m.Dates = mergeDates(prev.Dates, m.Dates)
	}
	sort.Strings(m.Dates)

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encode stage marker: %w", err)
	}
	path := filepath.Join(dir, markerFile)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write stage marker: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename stage marker: %w", err)
	}
	return nil
}

// covers reports whether the marker records every requested date as done.
func (m *marker) covers(dateKeys []string) bool {
	if m == nil {
		return false
	}
	done := make(map[string]struct{}, len(m.Dates))
	for _, d := range m.Dates {
		done[d] = struct{}{}
	}
	for _, k := range dateKeys {
		if _, ok := done[k]; !ok {
			return false
		}
	}
	return true
}

// coveredDates returns the requested date keys the stage fully completed.
// A stage that reports failures without naming their dates covers nothing:
// the runner cannot tell which days are safe to skip.
func coveredDates(keys []string, sum Summary) []string {
	if sum.Failed > 0 && len(sum.FailedDates) == 0 {
		return nil
	}
	failed := make(map[string]struct{}, len(sum.FailedDates))
	for _, d := range sum.FailedDates {
		failed[d] = struct{}{}
	}
	covered := make([]string, 0, len(keys))
	for _, k := range keys {
		if _, ok := failed[k]; !ok {
			covered = append(covered, k)
		}
	}
	return covered
}

func mergeDates(a, b []string) []string {
	set := make(map[string]struct{}, len(a)+len(b))
	for _, d := range a {
		set[d] = struct{}{}
	}
	for _, d := range b {
		set[d] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for d := range set {
		out = append(out, d)
	}
	return out
}

func dateKey(t time.Time) string {
	return t.Format("2006-01-02")
}

func dateKeys(dates []time.Time) []string {
	keys := make([]string, len(dates))
	for i, d := range dates {
		keys[i] = dateKey(d)
	}
	return keys
}
