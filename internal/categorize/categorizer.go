// Package categorize maps free-text offense descriptions onto the closed
// category vocabulary, memoizing every classification so identical offense
// text yields the same label within a run and across resumed runs.
package categorize

import (
	"context"
	"log/slog"
	"strings"

	"github.com/joseph-ayodele/patrol-log/constants"
	"github.com/joseph-ayodele/patrol-log/internal/cache"
	"github.com/joseph-ayodele/patrol-log/internal/llm"
)

type Categorizer struct {
	store      *cache.Store
	classifier llm.Classifier
	logger     *slog.Logger
}

func NewCategorizer(store *cache.Store, classifier llm.Classifier, logger *slog.Logger) *Categorizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Categorizer{
		store:      store,
		classifier: classifier,
		logger:     logger,
	}
}

// Categorize returns the category for a raw offense description. The result
// is always a member of the closed vocabulary: off-list classifier responses
// are coerced to Administrative/Other before caching, so the coercion itself
// is stable. Blank input maps to Administrative/Other without a call.
func (c *Categorizer) Categorize(ctx context.Context, rawOffense string) (constants.Category, error) {
	if strings.TrimSpace(rawOffense) == "" {
		return constants.Administrative, nil
	}

	label, err := cache.GetOrComputeAs(ctx, c.store, rawOffense, func(ctx context.Context) (string, error) {
		resp, err := c.classifier.Classify(ctx, rawOffense, constants.AsStringSlice())
		if err != nil {
			return "", err
		}
		canon, ok := constants.Canonicalize(resp)
		if !ok {
			c.logger.Warn("categorize.off_vocabulary", "offense", rawOffense, "label", resp)
		}
		return string(canon), nil
	})
	if err != nil {
		return "", err
	}

	// Entries written by older cache files may predate a vocabulary change.
	canon, _ := constants.Canonicalize(label)
	return canon, nil
}
