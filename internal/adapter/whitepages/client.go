// Package whitepages is the live property data provider: a reverse address
// lookup client and the rate-limited domain.Enricher built on it.
package whitepages

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/couchcryptid/storm-leads/internal/domain"
)

// ErrUnauthorized is returned when the provider rejects the API key.
var ErrUnauthorized = errors.New("whitepages: unauthorized")

// Client calls the Whitepages Pro reverse address API.
type Client struct {
	apiKey     string
	httpClient *http.Client
	baseURL    string
	logger     *slog.Logger
}

// NewClient creates a reverse address client.
func NewClient(apiKey, baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		apiKey: apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: strings.TrimSuffix(baseURL, "/"),
		logger:  logger,
	}
}

// Lookup is the location to search for property records.
type Lookup struct {
	City  string
	State string
}

// Address renders the lookup as a single-line address.
func (l Lookup) Address() string {
	switch {
	case l.City == "":
		return l.State
	case l.State == "":
		return l.City
	default:
		return l.City + ", " + l.State
	}
}

// Match is the normalized first result of a reverse address lookup.
type Match struct {
	OwnerName     string
	OwnerPhone    string
	OwnerEmail    string
	Address       string
	PropertyType  string
	PropertyValue *float64
	Confidence    float64
}

// ReverseAddress looks up property and owner records for a location. It
// returns nil and no error when the provider has no match.
func (c *Client) ReverseAddress(ctx context.Context, lookup Lookup) (*Match, error) {
	params := url.Values{
		"address": {lookup.Address()},
		"city":    {lookup.City},
		"state":   {lookup.State},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/reverse_address?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("reverse address request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, ErrUnauthorized
	case resp.StatusCode == http.StatusNotFound:
		return nil, nil
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("whitepages API error: status %d: %s", resp.StatusCode, body)
	}

	var r response
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return r.match(), nil
}

// Whitepages API response types.

type response struct {
	Results []result `json:"results"`
}

type result struct {
	Property         property `json:"property"`
	AssociatedPeople []person `json:"associated_people"`
	Confidence       float64  `json:"confidence"`
	MatchType        string   `json:"match_type"`
}

type property struct {
	Type  string     `json:"type"`
	Value FlexNumber `json:"value"`
}

type person struct {
	Name      string    `json:"name"`
	Phones    []phone   `json:"phones"`
	Emails    []email   `json:"emails"`
	Addresses []address `json:"addresses"`
}

type phone struct {
	Number string `json:"number"`
}

type email struct {
	Address string `json:"address"`
}

type address struct {
	FormattedAddress string `json:"formatted_address"`
}

func (r response) match() *Match {
	if len(r.Results) == 0 {
		return nil
	}
	res := r.Results[0]
	m := &Match{
		PropertyType: res.Property.Type,
		Confidence:   res.Confidence,
	}
	if res.Property.Value.Valid {
		v := res.Property.Value.Value
		m.PropertyValue = &v
	}
	if len(res.AssociatedPeople) > 0 {
		p := res.AssociatedPeople[0]
		m.OwnerName = p.Name
		if len(p.Phones) > 0 {
			m.OwnerPhone = NormalizeE164(p.Phones[0].Number)
		}
		if len(p.Emails) > 0 {
			m.OwnerEmail = p.Emails[0].Address
		}
		if len(p.Addresses) > 0 {
			m.Address = p.Addresses[0].FormattedAddress
		}
	}
	return m
}

// FlexNumber handles JSON values that can be a number, a numeric string or a
// currency string such as "$350,000". Valid is false for null, empty,
// negative or unparseable values and for any other JSON shape, so a bad
// value never fails the whole response.
type FlexNumber struct {
	Value float64
	Valid bool
}

func (f *FlexNumber) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*f = FlexNumber{}
		return nil
	}
	*f = FlexNumber{}
	var num float64
	if err := json.Unmarshal(data, &num); err == nil {
		if num >= 0 {
			*f = FlexNumber{Value: num, Valid: true}
		}
		return nil
	}
	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		if v, ok := domain.ParseMoney(str); ok {
			*f = FlexNumber{Value: v, Valid: true}
		}
	}
	return nil
}
