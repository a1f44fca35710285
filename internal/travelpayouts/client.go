package travelpayouts

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/Ukt21/avia/internal/app"
	"github.com/Ukt21/avia/internal/domain"
)

const defaultBaseURL = "https://api.travelpayouts.com/aviasales/v3/prices_for_dates"

const fetchLimit = 20

// Client fetches one-way offers from the Travelpayouts prices_for_dates API
// and maps them into domain offers with affiliate deep links.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	marker     string
}

type Option func(*Client)

// WithBaseURL overrides the API endpoint (used by tests).
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func New(token, marker string, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: 20 * time.Second},
		baseURL:    defaultBaseURL,
		token:      token,
		marker:     marker,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type pricesResponse struct {
	Data []priceItem `json:"data"`
}

type priceItem struct {
	Price        int64  `json:"price"`
	Airline      string `json:"airline"`
	FlightNumber string `json:"flight_number"`
	DepartureAt  string `json:"departure_at"`
	Duration     int    `json:"duration"`
	Transfers    int    `json:"transfers"`
	Link         string `json:"link"`
}

// FetchOffers implements app.OfferSource.
func (c *Client) FetchOffers(ctx context.Context, params app.SearchParams) ([]domain.Offer, error) {
	q := url.Values{}
	q.Set("origin", params.Origin)
	q.Set("destination", params.Destination)
	q.Set("departure_at", params.DepartDate)
	q.Set("currency", params.Currency)
	q.Set("sorting", "price")
	q.Set("one_way", "true")
	q.Set("limit", strconv.Itoa(fetchLimit))
	q.Set("token", c.token)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch prices: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch prices: unexpected status %d", resp.StatusCode)
	}

	var payload pricesResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode prices: %w", err)
	}

	offers := make([]domain.Offer, 0, len(payload.Data))
	for _, item := range payload.Data {
		departAt, err := parseDeparture(item.DepartureAt)
		if err != nil {
			continue
		}
		offers = append(offers, domain.Offer{
			ID:           domain.OfferID(params.Origin, params.Destination, item.Airline, item.FlightNumber, departAt),
			Price:        item.Price,
			Currency:     params.Currency,
			Origin:       params.Origin,
			Destination:  params.Destination,
			Carrier:      item.Airline,
			FlightNumber: item.FlightNumber,
			DepartAt:     departAt,
			Duration:     time.Duration(item.Duration) * time.Minute,
			Transfers:    item.Transfers,
			Link:         c.deeplink(params),
		})
	}
	return offers, nil
}

// deeplink builds the affiliate search link carrying the partner marker.
func (c *Client) deeplink(params app.SearchParams) string {
	q := url.Values{}
	q.Set("marker", c.marker)
	q.Set("origin", params.Origin)
	q.Set("destination", params.Destination)
	q.Set("depart_date", params.DepartDate)
	return "https://tp.media/r?" + q.Encode()
}

func parseDeparture(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02T15:04:05-07:00", raw)
}
