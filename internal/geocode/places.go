package geocode

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

const textSearchURL = "https://places.googleapis.com/v1/places:searchText"

const fieldMask = "places.displayName,places.formattedAddress,places.location,places.googleMapsUri,places.types"

// Place is the subset of a Places text-search hit the pipeline keeps.
type Place struct {
	Latitude         float64
	Longitude        float64
	FormattedAddress string
	MapsURI          string
	Types            []string
}

// PlaceSearcher is the external-lookup boundary; stubbed in tests.
// A (nil, nil) return means the query produced no match, which is a valid,
// stable answer, not an error.
type PlaceSearcher interface {
	SearchText(ctx context.Context, query string) (*Place, error)
}

// PlacesConfig holds the Google Places client settings.
type PlacesConfig struct {
	APIKey      string
	BiasLat     float64
	BiasLon     float64
	BiasRadiusM float64
	Timeout     time.Duration
}

// PlacesClient implements PlaceSearcher against the Places Text Search API.
type PlacesClient struct {
	cfg    PlacesConfig
	http   *http.Client
	logger *slog.Logger
}

func NewPlacesClient(cfg PlacesConfig, logger *slog.Logger) *PlacesClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PlacesClient{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

func (c *PlacesClient) SearchText(ctx context.Context, query string) (*Place, error) {
	start := time.Now()

	body := map[string]any{
		"textQuery": query,
	}
	if c.cfg.BiasRadiusM > 0 {
		body["locationBias"] = map[string]any{
			"circle": map[string]any{
				"center": map[string]any{
					"latitude":  c.cfg.BiasLat,
					"longitude": c.cfg.BiasLon,
				},
				"radius": c.cfg.BiasRadiusM,
			},
		}
	}

	bs, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode places request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, textSearchURL, bytes.NewReader(bs))
	if err != nil {
		return nil, fmt.Errorf("build places request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Goog-Api-Key", c.cfg.APIKey)
	req.Header.Set("X-Goog-FieldMask", fieldMask)

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Error("geocode.places.send_error", "query", query, "error", err)
		return nil, err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.logger.Warn("geocode.places.body_close_error", "error", err)
		}
	}()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode/100 != 2 {
		c.logger.Error("geocode.places.http_error",
			"query", query,
			"status", resp.StatusCode,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return nil, fmt.Errorf("places search: non-2xx status %d", resp.StatusCode)
	}

	var out struct {
		Places []struct {
			FormattedAddress string   `json:"formattedAddress"`
			GoogleMapsURI    string   `json:"googleMapsUri"`
			Types            []string `json:"types"`
			Location         struct {
				Latitude  float64 `json:"latitude"`
				Longitude float64 `json:"longitude"`
			} `json:"location"`
		} `json:"places"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode places response: %w", err)
	}

	if len(out.Places) == 0 {
		c.logger.Info("geocode.places.no_match",
			"query", query,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return nil, nil
	}

	first := out.Places[0]
	c.logger.Debug("geocode.places.ok",
		"query", query,
		"address", first.FormattedAddress,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return &Place{
		Latitude:         first.Location.Latitude,
		Longitude:        first.Location.Longitude,
		FormattedAddress: first.FormattedAddress,
		MapsURI:          first.GoogleMapsURI,
		Types:            first.Types,
	}, nil
}
