// Package convert turns a downloaded report PDF into markdown text via the
// external markitdown binary. Conversion is a stateless transform; the
// stage's idempotency comes from the output file on disk.
package convert

import (
	"context"
	"fmt"
	"log/slog"
	"os"
)

// Converter is the stage-2 collaborator boundary.
type Converter interface {
	ToText(ctx context.Context, pdfPath, outPath string) error
}

type MarkitdownConverter struct {
	bin    string
	runner Runner
	logger *slog.Logger
}

func NewMarkitdownConverter(bin string, logger *slog.Logger) *MarkitdownConverter {
	if bin == "" {
		bin = "markitdown"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &MarkitdownConverter{bin: bin, runner: execRunner{}, logger: logger}
}

// NewMarkitdownConverterWithRunner injects a stub runner for tests.
func NewMarkitdownConverterWithRunner(bin string, runner Runner, logger *slog.Logger) *MarkitdownConverter {
	c := NewMarkitdownConverter(bin, logger)
	c.runner = runner
	return c
}

// ToText converts pdfPath to markdown at outPath. markitdown writes the
// output file itself; an empty output is treated as a conversion failure so
// a truncated PDF cannot satisfy the stage's done predicate.
func (c *MarkitdownConverter) ToText(ctx context.Context, pdfPath, outPath string) error {
	_, stderr, err := c.runner.Run(ctx, c.bin, pdfPath, "-o", outPath)
	if err != nil {
		return fmt.Errorf("markitdown %s: %w (stderr: %s)", pdfPath, err, truncate(string(stderr), 512))
	}

	info, err := os.Stat(outPath)
	if err != nil {
		return fmt.Errorf("markitdown produced no output for %s: %w", pdfPath, err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("markitdown produced empty output for %s", pdfPath)
	}

	c.logger.Info("convert.ok", "pdf", pdfPath, "out", outPath, "bytes", info.Size())
	return nil
}
