// Package geocode resolves free-text incident locations to coordinates
// behind the persistent keyed cache: at most one Places call per distinct
// normalized location across the lifetime of the dataset.
package geocode

import (
	"context"
	"log/slog"
	"regexp"
	"strings"

	"github.com/joseph-ayodele/patrol-log/internal/cache"
)

// Result is what the enrichment stage stores per location. An unresolved
// result is cached too: "no match" is a stable answer and must not be retried
// on every run, unlike a transport error, which is never cached.
type Result struct {
	Resolved         bool     `json:"resolved"`
	Latitude         float64  `json:"latitude,omitempty"`
	Longitude        float64  `json:"longitude,omitempty"`
	FormattedAddress string   `json:"formatted_address,omitempty"`
	MapsURI          string   `json:"maps_uri,omitempty"`
	PlaceTypes       []string `json:"place_types,omitempty"`
	Kind             string   `json:"kind,omitempty"`
}

type Geocoder struct {
	store      *cache.Store
	searcher   PlaceSearcher
	citySuffix string
	logger     *slog.Logger
}

func NewGeocoder(store *cache.Store, searcher PlaceSearcher, citySuffix string, logger *slog.Logger) *Geocoder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Geocoder{
		store:      store,
		searcher:   searcher,
		citySuffix: citySuffix,
		logger:     logger,
	}
}

// Report logs use a handful of separator styles between cross streets.
var separatorRe = regexp.MustCompile(`\s*[/&@]\s*`)

// Key normalizes a raw location into its cache key: separators folded,
// whitespace collapsed, case-folded. Discriminating substrings (street
// names, block numbers) are preserved.
func Key(rawLocation string) string {
	folded := separatorRe.ReplaceAllString(rawLocation, "/")
	return cache.NormalizeKey(folded)
}

// Resolve returns the geocoding result for a raw location string. Blank input
// resolves to an unresolved result without a cache lookup or external call.
// Never returns an error for malformed input; errors are transport failures
// only.
func (g *Geocoder) Resolve(ctx context.Context, rawLocation string) (Result, error) {
	if strings.TrimSpace(rawLocation) == "" {
		return Result{Resolved: false, Kind: KindUnknown}, nil
	}

	key := Key(rawLocation)
	return cache.GetOrComputeAs(ctx, g.store, key, func(ctx context.Context) (Result, error) {
		query := strings.TrimSpace(rawLocation) + g.citySuffix
		place, err := g.searcher.SearchText(ctx, query)
		if err != nil {
			return Result{}, err
		}
		if place == nil {
			g.logger.Info("geocode.unresolved", "location", rawLocation)
			return Result{Resolved: false, Kind: KindUnknown}, nil
		}
		return Result{
			Resolved:         true,
			Latitude:         place.Latitude,
			Longitude:        place.Longitude,
			FormattedAddress: place.FormattedAddress,
			MapsURI:          place.MapsURI,
			PlaceTypes:       place.Types,
			Kind:             InterpretPlaceTypes(place.Types),
		}, nil
	})
}
