package prayer

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// DefaultGeocodeURL is the OpenStreetMap Nominatim search endpoint.
const DefaultGeocodeURL = "https://nominatim.openstreetmap.org/search"

// geocodeUserAgent identifies the bot to Nominatim, which rejects
// anonymous clients.
const geocodeUserAgent = "valet-bot/1.0"

// Geocoder resolves "city, country" to coordinates via Nominatim.
type Geocoder struct {
	baseURL string
	http    *http.Client
}

// NewGeocoder creates a Geocoder. baseURL defaults to DefaultGeocodeURL.
func NewGeocoder(baseURL string, hc *http.Client) *Geocoder {
	if baseURL == "" {
		baseURL = DefaultGeocodeURL
	}
	if hc == nil {
		hc = &http.Client{Timeout: 10 * time.Second}
	}
	return &Geocoder{baseURL: baseURL, http: hc}
}

// Lookup returns the coordinates of the best match for city, country.
func (g *Geocoder) Lookup(ctx context.Context, city, country string) (lat, lon float64, err error) {
	q := url.Values{}
	q.Set("q", city+", "+country)
	q.Set("format", "json")
	q.Set("limit", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return 0, 0, fmt.Errorf("prayer: build geocode request: %w", err)
	}
	req.Header.Set("User-Agent", geocodeUserAgent)

	resp, err := g.http.Do(req)
	if err != nil {
		return 0, 0, fmt.Errorf("prayer: geocode: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, 0, fmt.Errorf("prayer: geocode API returned %d", resp.StatusCode)
	}

	var results []struct {
		Lat string `json:"lat"`
		Lon string `json:"lon"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return 0, 0, fmt.Errorf("prayer: decode geocode response: %w", err)
	}
	if len(results) == 0 {
		return 0, 0, fmt.Errorf("prayer: location %q, %q not found", city, country)
	}

	lat, err = strconv.ParseFloat(results[0].Lat, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("prayer: bad latitude %q: %w", results[0].Lat, err)
	}
	lon, err = strconv.ParseFloat(results[0].Lon, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("prayer: bad longitude %q: %w", results[0].Lon, err)
	}
	return lat, lon, nil
}
