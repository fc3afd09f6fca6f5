// Package download fetches the daily police-report-log PDF for a date. The
// city publishes one file per day under a predictable URL; days without a
// published report are a normal outcome, not an error.
package download

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"
)

// Status is the per-date fetch outcome.
type Status int

const (
	StatusDownloaded Status = iota
	StatusNotFound
)

// ReportFetcher is the stage-1 collaborator boundary; stubbed in tests.
type ReportFetcher interface {
	Fetch(ctx context.Context, date time.Time, dest string) (Status, error)
}

type Downloader struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

func NewDownloader(baseURL string, timeout time.Duration, logger *slog.Logger) *Downloader {
	if baseURL == "" {
		baseURL = "https://www.paloalto.gov"
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Downloader{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// ReportURL builds the published URL for a date, e.g.
// .../police-report-log/april-18-2025-police-report-log.pdf
func (d *Downloader) ReportURL(date time.Time) string {
	month := strings.ToLower(date.Month().String())
	return fmt.Sprintf(
		"%s/files/assets/public/v/2/police-department/public-information-portal/police-report-log/%s-%02d-%d-police-report-log.pdf",
		d.baseURL, month, date.Day(), date.Year(),
	)
}

// Fetch downloads the report for a date to dest. A URL that does not resolve
// (no report published for that day) returns StatusNotFound with no error.
// The file is written via temp+rename so a partial download never looks like
// a completed unit.
func (d *Downloader) Fetch(ctx context.Context, date time.Time, dest string) (Status, error) {
	url := d.ReportURL(date)

	head, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return StatusNotFound, fmt.Errorf("build head request: %w", err)
	}
	headResp, err := d.http.Do(head)
	if err != nil {
		return StatusNotFound, fmt.Errorf("head %s: %w", url, err)
	}
	if err := headResp.Body.Close(); err != nil {
		d.logger.Warn("download.head_body_close_error", "error", err)
	}
	if headResp.StatusCode != http.StatusOK {
		d.logger.Info("download.not_found", "date", date.Format("2006-01-02"), "url", url, "status", headResp.StatusCode)
		return StatusNotFound, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return StatusNotFound, fmt.Errorf("build get request: %w", err)
	}
	resp, err := d.http.Do(req)
	if err != nil {
		return StatusNotFound, fmt.Errorf("get %s: %w", url, err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			d.logger.Warn("download.body_close_error", "error", err)
		}
	}()
	if resp.StatusCode != http.StatusOK {
		return StatusNotFound, fmt.Errorf("get %s: status %d", url, resp.StatusCode)
	}

	tmp := dest + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return StatusNotFound, fmt.Errorf("create %s: %w", tmp, err)
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return StatusNotFound, fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return StatusNotFound, fmt.Errorf("close %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, dest); err != nil {
		return StatusNotFound, fmt.Errorf("rename %s: %w", tmp, err)
	}

	d.logger.Info("download.ok", "date", date.Format("2006-01-02"), "dest", dest)
	return StatusDownloaded, nil
}
