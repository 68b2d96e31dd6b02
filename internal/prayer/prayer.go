// Package prayer provides prayer times (Aladhan API), Qibla direction,
// and per-conversation location settings.
package prayer

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"time"
)

// DefaultBaseURL is the Aladhan timings API endpoint.
const DefaultBaseURL = "https://api.aladhan.com/v1"

// Methods maps calculation method IDs to their names, as accepted by the
// Aladhan API.
var Methods = map[int]string{
	1:  "Egyptian General Authority of Survey",
	2:  "University of Islamic Sciences, Karachi",
	3:  "Islamic Society of North America",
	4:  "Muslim World League",
	5:  "Umm Al-Qura University, Makkah",
	7:  "Institute of Geophysics, University of Tehran",
	8:  "Gulf Region",
	9:  "Kuwait",
	10: "Qatar",
	11: "Majlis Ugama Islam Singapura, Singapore",
	12: "Union Organization islamic de France",
	13: "Diyanet İşleri Başkanlığı, Turkey",
	14: "Spiritual Administration of Muslims of Russia",
	15: "Moonsighting Committee Worldwide",
}

// MethodIDs returns the known method IDs in ascending order.
func MethodIDs() []int {
	ids := make([]int, 0, len(Methods))
	for id := range Methods {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// prayerOrder is the display and next-prayer scan order.
var prayerOrder = []string{"Fajr", "Sunrise", "Dhuhr", "Asr", "Maghrib", "Isha"}

// Times holds one day's prayer times as "HH:MM" strings.
type Times struct {
	Fajr    string
	Sunrise string
	Dhuhr   string
	Asr     string
	Maghrib string
	Isha    string
}

// Get returns the named time, or "" for an unknown prayer.
func (t Times) Get(name string) string {
	switch name {
	case "Fajr":
		return t.Fajr
	case "Sunrise":
		return t.Sunrise
	case "Dhuhr":
		return t.Dhuhr
	case "Asr":
		return t.Asr
	case "Maghrib":
		return t.Maghrib
	case "Isha":
		return t.Isha
	}
	return ""
}

// Client calls the Aladhan timings API.
type Client struct {
	baseURL string
	http    *http.Client
}

// ClientOpts holds parameters for creating a Client.
type ClientOpts struct {
	BaseURL string       // defaults to DefaultBaseURL
	HTTP    *http.Client // defaults to a client with a 10s timeout
}

// NewClient creates an Aladhan API client.
func NewClient(opts ClientOpts) *Client {
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	hc := opts.HTTP
	if hc == nil {
		hc = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{baseURL: baseURL, http: hc}
}

// timingsResponse mirrors the part of the Aladhan response we read.
type timingsResponse struct {
	Data struct {
		Timings map[string]string `json:"timings"`
	} `json:"data"`
}

// Timings fetches prayer times for the coordinates on the given date.
func (c *Client) Timings(ctx context.Context, lat, lon float64, method int, date time.Time) (Times, error) {
	q := url.Values{}
	q.Set("latitude", fmt.Sprintf("%f", lat))
	q.Set("longitude", fmt.Sprintf("%f", lon))
	q.Set("method", fmt.Sprintf("%d", method))
	q.Set("date", date.Format("02-01-2006"))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/timings?"+q.Encode(), nil)
	if err != nil {
		return Times{}, fmt.Errorf("prayer: build request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return Times{}, fmt.Errorf("prayer: fetch timings: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Times{}, fmt.Errorf("prayer: timings API returned %d", resp.StatusCode)
	}

	var body timingsResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Times{}, fmt.Errorf("prayer: decode timings: %w", err)
	}

	t := Times{
		Fajr:    body.Data.Timings["Fajr"],
		Sunrise: body.Data.Timings["Sunrise"],
		Dhuhr:   body.Data.Timings["Dhuhr"],
		Asr:     body.Data.Timings["Asr"],
		Maghrib: body.Data.Timings["Maghrib"],
		Isha:    body.Data.Timings["Isha"],
	}
	if t.Fajr == "" {
		return Times{}, fmt.Errorf("prayer: timings response missing Fajr")
	}
	return t, nil
}

// Next returns the first prayer strictly after now ("HH:MM" wall clock).
// Sunrise is skipped; after Isha it wraps to tomorrow's Fajr.
func Next(t Times, now time.Time) (name, at string) {
	current := now.Format("15:04")
	for _, p := range prayerOrder {
		if p == "Sunrise" {
			continue
		}
		if t.Get(p) > current {
			return p, t.Get(p)
		}
	}
	return "Fajr", t.Fajr
}

// Format12h converts "HH:MM" to "03:04 PM" for display. Malformed input
// is returned unchanged.
func Format12h(hhmm string) string {
	parsed, err := time.Parse("15:04", hhmm)
	if err != nil {
		return hhmm
	}
	return parsed.Format("03:04 PM")
}
