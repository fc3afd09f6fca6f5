package categorize

import (
	"context"
	"errors"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/patrol-log/constants"
	"github.com/joseph-ayodele/patrol-log/internal/cache"
)

type stubClassifier struct {
	calls atomic.Int32
	label string
	err   error
}

func (s *stubClassifier) Classify(_ context.Context, _ string, _ []string) (string, error) {
	s.calls.Add(1)
	return s.label, s.err
}

func newTestCategorizer(t *testing.T, classifier *stubClassifier) *Categorizer {
	t.Helper()
	store := cache.NewStore(filepath.Join(t.TempDir(), "categories.json"), "categories", nil)
	return NewCategorizer(store, classifier, nil)
}

func TestCategorizeMemoizes(t *testing.T) {
	classifier := &stubClassifier{label: "Theft"}
	c := newTestCategorizer(t, classifier)

	for i := 0; i < 3; i++ {
		cat, err := c.Categorize(context.Background(), "PETTY THEFT FROM VEHICLE")
		require.NoError(t, err)
		assert.Equal(t, constants.Theft, cat)
	}
	assert.Equal(t, int32(1), classifier.calls.Load())

	// Case/whitespace variants of the offense share one slot.
	_, err := c.Categorize(context.Background(), "petty  theft from vehicle")
	require.NoError(t, err)
	assert.Equal(t, int32(1), classifier.calls.Load())
}

func TestCategorizeCoercesOffVocabulary(t *testing.T) {
	classifier := &stubClassifier{label: "Made Up Category"}
	c := newTestCategorizer(t, classifier)

	cat, err := c.Categorize(context.Background(), "UNUSUAL OFFENSE")
	require.NoError(t, err)
	assert.Equal(t, constants.Administrative, cat)

	// The coerced value is what got cached: no second call, same answer.
	cat, err = c.Categorize(context.Background(), "UNUSUAL OFFENSE")
	require.NoError(t, err)
	assert.Equal(t, constants.Administrative, cat)
	assert.Equal(t, int32(1), classifier.calls.Load())
}

func TestCategorizeSynonyms(t *testing.T) {
	tests := []struct {
		name     string
		label    string
		expected constants.Category
	}{
		{name: "exact", label: "Vehicle Crime", expected: constants.VehicleCrime},
		{name: "case insensitive", label: "vehicle crime", expected: constants.VehicleCrime},
		{name: "synonym", label: "Auto Theft", expected: constants.VehicleCrime},
		{name: "traffic shorthand", label: "Traffic", expected: constants.Traffic},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestCategorizer(t, &stubClassifier{label: tt.label})
			cat, err := c.Categorize(context.Background(), "offense "+tt.name)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, cat)
		})
	}
}

func TestCategorizeDoesNotCacheErrors(t *testing.T) {
	classifier := &stubClassifier{err: errors.New("llm unavailable")}
	c := newTestCategorizer(t, classifier)

	_, err := c.Categorize(context.Background(), "VANDALISM")
	require.Error(t, err)

	classifier.err = nil
	classifier.label = "Property Crime"
	cat, err := c.Categorize(context.Background(), "VANDALISM")
	require.NoError(t, err)
	assert.Equal(t, constants.PropertyCrime, cat)
	assert.Equal(t, int32(2), classifier.calls.Load())
}

func TestCategorizeBlankInput(t *testing.T) {
	classifier := &stubClassifier{label: "Theft"}
	c := newTestCategorizer(t, classifier)

	cat, err := c.Categorize(context.Background(), "   ")
	require.NoError(t, err)
	assert.Equal(t, constants.Administrative, cat)
	assert.Equal(t, int32(0), classifier.calls.Load())
}
