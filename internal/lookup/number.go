package lookup

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"time"
)

// DefaultNumVerifyURL is the NumVerify validation endpoint.
const DefaultNumVerifyURL = "https://apilayer.net/api/validate"

// PhoneInfo is the /number command result.
type PhoneInfo struct {
	Valid         bool   `json:"valid"`
	International string `json:"international_format"`
	Country       string `json:"country_name"`
	Location      string `json:"location"`
	Carrier       string `json:"carrier"`
	LineType      string `json:"line_type"`
}

// phoneCleanRe strips everything but digits and a leading plus.
var phoneCleanRe = regexp.MustCompile(`[^\d+]`)

// Numbers validates phone numbers against NumVerify.
type Numbers struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// NewNumbers creates a NumVerify client. baseURL defaults to
// DefaultNumVerifyURL.
func NewNumbers(apiKey, baseURL string, hc *http.Client) (*Numbers, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("lookup: numverify api key is required")
	}
	if baseURL == "" {
		baseURL = DefaultNumVerifyURL
	}
	if hc == nil {
		hc = &http.Client{Timeout: 10 * time.Second}
	}
	return &Numbers{baseURL: baseURL, apiKey: apiKey, http: hc}, nil
}

// Validate looks up carrier and location details for a phone number.
func (n *Numbers) Validate(ctx context.Context, number string) (PhoneInfo, error) {
	number = phoneCleanRe.ReplaceAllString(number, "")
	if number == "" {
		return PhoneInfo{}, fmt.Errorf("lookup: phone number is required")
	}

	q := url.Values{}
	q.Set("access_key", n.apiKey)
	q.Set("number", number)
	q.Set("format", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, n.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return PhoneInfo{}, fmt.Errorf("lookup: build request: %w", err)
	}
	resp, err := n.http.Do(req)
	if err != nil {
		return PhoneInfo{}, fmt.Errorf("lookup: numverify: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return PhoneInfo{}, fmt.Errorf("lookup: numverify returned %d", resp.StatusCode)
	}

	var info PhoneInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return PhoneInfo{}, fmt.Errorf("lookup: decode numverify response: %w", err)
	}
	return info, nil
}
