package download

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReportURL(t *testing.T) {
	d := NewDownloader("https://www.paloalto.gov", 0, nil)

	tests := []struct {
		name     string
		date     time.Time
		expected string
	}{
		{
			name:     "single digit day keeps zero pad",
			date:     time.Date(2025, time.April, 8, 0, 0, 0, 0, time.UTC),
			expected: "https://www.paloalto.gov/files/assets/public/v/2/police-department/public-information-portal/police-report-log/april-08-2025-police-report-log.pdf",
		},
		{
			name:     "two digit day",
			date:     time.Date(2025, time.December, 31, 0, 0, 0, 0, time.UTC),
			expected: "https://www.paloalto.gov/files/assets/public/v/2/police-department/public-information-portal/police-report-log/december-31-2025-police-report-log.pdf",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, d.ReportURL(tt.date))
		})
	}
}

func TestFetchDownloadsToDest(t *testing.T) {
	const body = "%PDF-1.7 report"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()

	d := NewDownloader(srv.URL, time.Second, nil)
	dest := filepath.Join(t.TempDir(), "2025-04-18.pdf")

	status, err := d.Fetch(context.Background(), time.Date(2025, 4, 18, 0, 0, 0, 0, time.UTC), dest)
	require.NoError(t, err)
	assert.Equal(t, StatusDownloaded, status)

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, body, string(data))

	// No temp file left behind.
	_, err = os.Stat(dest + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestFetchMissingReportIsNotAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	d := NewDownloader(srv.URL, time.Second, nil)
	dest := filepath.Join(t.TempDir(), "2025-04-18.pdf")

	status, err := d.Fetch(context.Background(), time.Date(2025, 4, 18, 0, 0, 0, 0, time.UTC), dest)
	require.NoError(t, err)
	assert.Equal(t, StatusNotFound, status)

	_, err = os.Stat(dest)
	assert.True(t, os.IsNotExist(err), "no file written for a missing report")
}
