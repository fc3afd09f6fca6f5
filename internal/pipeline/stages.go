package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joseph-ayodele/patrol-log/constants"
	"github.com/joseph-ayodele/patrol-log/internal/batch"
	"github.com/joseph-ayodele/patrol-log/internal/common"
)

func failureFor(unit string, err error) batch.Failure {
	return batch.Failure{Unit: unit, Reason: err.Error()}
}

// datedInput is one unit a stage consumes: the date key plus the input file
// produced for it by the previous stage.
type datedInput struct {
	Date time.Time
	Key  string
	Path string
}

// datedInputs lists, in date order, the requested dates whose input file
// exists in dir. Dates without a file are normal (no report published that
// day); a completely empty result is the caller's stage precondition failure.
func datedInputs(dir, ext string, dates []time.Time) []datedInput {
	var inputs []datedInput
	for _, date := range dates {
		key := dateKey(date)
		path := filepath.Join(dir, key+ext)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		inputs = append(inputs, datedInput{Date: date, Key: key, Path: path})
	}
	return inputs
}

func noInputsError(stage constants.Stage, dir string, dates []time.Time) error {
	return common.NewStageError(int(stage), stage.String(), dir,
		fmt.Errorf("no inputs found for %s..%s", dateKey(dates[0]), dateKey(dates[len(dates)-1])))
}

// writeFileAtomic writes via temp+rename so a crashed unit never leaves a
// half-written output that a later resume would trust.
func writeFileAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create dir: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename %s: %w", tmp, err)
	}
	return nil
}
