// Package expense logs shared expenses to an Airtable base and reads
// them back for the /expenses summary.
package expense

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/nibras/valet/internal/config"
)

// DefaultBaseURL is the Airtable REST endpoint.
const DefaultBaseURL = "https://api.airtable.com/v0"

// Expense is one row of the expenses table.
type Expense struct {
	Date         string
	Description  string
	Amount       float64
	Payer        string   // participant name, resolved from record ID
	Participants []string // participant names
	SplitType    string
}

// Entry is a parsed /addexpense command.
type Entry struct {
	Amount       float64
	Description  string
	Payer        string
	Participants []string
	SplitType    string
}

// ParseEntry parses the /addexpense argument string:
//
//	12.50 lunch | Nibras | Yousuf,Furqan | Even
//
// Only the first field (amount + description) is required; the split type
// defaults to "Even".
func ParseEntry(raw string) (Entry, error) {
	parts := strings.Split(raw, "|")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}

	fields := strings.Fields(parts[0])
	if len(fields) < 2 {
		return Entry{}, fmt.Errorf("expense: amount and description are required")
	}
	amount, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return Entry{}, fmt.Errorf("expense: bad amount %q: %w", fields[0], err)
	}

	e := Entry{
		Amount:      amount,
		Description: strings.Join(fields[1:], " "),
		SplitType:   "Even",
	}
	if len(parts) > 1 {
		e.Payer = parts[1]
	}
	if len(parts) > 2 && parts[2] != "" {
		for _, name := range strings.Split(parts[2], ",") {
			if name = strings.TrimSpace(name); name != "" {
				e.Participants = append(e.Participants, name)
			}
		}
	}
	if len(parts) > 3 && parts[3] != "" {
		e.SplitType = parts[3]
	}
	return e, nil
}

// Client talks to one Airtable base. The bearer token rides on every
// request via an oauth2 static token source.
type Client struct {
	baseURL      string
	baseID       string
	table        string
	participants string
	http         *http.Client
}

// ClientOpts holds parameters for creating a Client.
type ClientOpts struct {
	Config  config.AirtableConfig
	BaseURL string       // defaults to DefaultBaseURL
	HTTP    *http.Client // defaults to an oauth2 client built from the token
}

// NewClient creates an Airtable client.
func NewClient(opts ClientOpts) (*Client, error) {
	if opts.Config.BaseID == "" {
		return nil, fmt.Errorf("expense: airtable base_id is required")
	}
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	hc := opts.HTTP
	if hc == nil {
		if opts.Config.Token == "" {
			return nil, fmt.Errorf("expense: airtable token is required")
		}
		src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: opts.Config.Token})
		hc = oauth2.NewClient(context.Background(), src)
		hc.Timeout = 15 * time.Second
	}
	return &Client{
		baseURL:      baseURL,
		baseID:       opts.Config.BaseID,
		table:        opts.Config.Table,
		participants: opts.Config.Participants,
		http:         hc,
	}, nil
}

// record is the Airtable wire shape for one row.
type record struct {
	ID     string                 `json:"id,omitempty"`
	Fields map[string]interface{} `json:"fields"`
}

type recordList struct {
	Records []record `json:"records"`
}

// AddResult reports what was written and which names could not be matched
// against the participants table.
type AddResult struct {
	Entry        Entry
	MissingNames []string
}

// Add writes one expense row. Payer and participant names are resolved to
// record IDs via the participants table; names with no matching record are
// reported in AddResult.MissingNames and skipped rather than failing the
// whole write, mirroring how a half-known participant list should still
// log the spend.
func (c *Client) Add(ctx context.Context, e Entry) (AddResult, error) {
	res := AddResult{Entry: e}

	fields := map[string]interface{}{
		"Date":        time.Now().Format("2006-01-02"),
		"Description": e.Description,
		"Amount":      e.Amount,
		"Split Type":  e.SplitType,
	}

	if e.Payer != "" || len(e.Participants) > 0 {
		nameToID, err := c.participantIDs(ctx)
		if err != nil {
			return res, fmt.Errorf("expense: resolve participants: %w", err)
		}
		if e.Payer != "" {
			if id, ok := nameToID[e.Payer]; ok {
				fields["Payer"] = id
			} else {
				res.MissingNames = append(res.MissingNames, e.Payer)
			}
		}
		var ids []string
		for _, name := range e.Participants {
			if id, ok := nameToID[name]; ok {
				ids = append(ids, id)
			} else {
				res.MissingNames = append(res.MissingNames, name)
			}
		}
		if len(ids) > 0 {
			fields["Participants"] = ids
		}
	}

	body, err := json.Marshal(map[string]interface{}{"fields": fields})
	if err != nil {
		return res, fmt.Errorf("expense: marshal record: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		fmt.Sprintf("%s/%s/%s", c.baseURL, c.baseID, c.table), strings.NewReader(string(body)))
	if err != nil {
		return res, fmt.Errorf("expense: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return res, fmt.Errorf("expense: post expense: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return res, fmt.Errorf("expense: airtable returned %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}
	return res, nil
}

// Summary is the /expenses view: the running total plus the most recent rows.
type Summary struct {
	Total  float64
	Recent []Expense
}

// Recent fetches all expenses, resolves participant IDs to names, and
// returns the total plus the newest `limit` rows by date.
func (c *Client) Recent(ctx context.Context, limit int) (Summary, error) {
	if limit <= 0 {
		limit = 5
	}

	idToName := map[string]string{}
	nameByID, err := c.participantIDs(ctx)
	if err == nil {
		for name, id := range nameByID {
			idToName[id] = name
		}
	}

	list, err := c.list(ctx, c.table)
	if err != nil {
		return Summary{}, fmt.Errorf("expense: fetch expenses: %w", err)
	}

	var s Summary
	for _, r := range list.Records {
		e := Expense{
			Date:        str(r.Fields["Date"]),
			Description: str(r.Fields["Description"]),
			SplitType:   str(r.Fields["Split Type"]),
		}
		if amt, ok := r.Fields["Amount"].(float64); ok {
			e.Amount = amt
		}
		if payerID := str(r.Fields["Payer"]); payerID != "" {
			e.Payer = nameOr(idToName, payerID)
		}
		if ids, ok := r.Fields["Participants"].([]interface{}); ok {
			for _, id := range ids {
				e.Participants = append(e.Participants, nameOr(idToName, str(id)))
			}
		}
		s.Total += e.Amount
		s.Recent = append(s.Recent, e)
	}

	sort.Slice(s.Recent, func(i, j int) bool { return s.Recent[i].Date > s.Recent[j].Date })
	if len(s.Recent) > limit {
		s.Recent = s.Recent[:limit]
	}
	return s, nil
}

// participantIDs returns the name → record ID map from the participants table.
func (c *Client) participantIDs(ctx context.Context) (map[string]string, error) {
	list, err := c.list(ctx, c.participants)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(list.Records))
	for _, r := range list.Records {
		if name := str(r.Fields["Name"]); name != "" {
			out[name] = r.ID
		}
	}
	return out, nil
}

// list fetches all records of one table.
func (c *Client) list(ctx context.Context, table string) (recordList, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/%s/%s", c.baseURL, c.baseID, table), nil)
	if err != nil {
		return recordList{}, fmt.Errorf("build request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return recordList{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return recordList{}, fmt.Errorf("airtable returned %d for %s", resp.StatusCode, table)
	}
	var list recordList
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return recordList{}, fmt.Errorf("decode %s: %w", table, err)
	}
	return list, nil
}

func str(v interface{}) string {
	s, _ := v.(string)
	return s
}

func nameOr(idToName map[string]string, id string) string {
	if name, ok := idToName[id]; ok {
		return name
	}
	return id
}
