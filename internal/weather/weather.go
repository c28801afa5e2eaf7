// Package weather fetches the short-range forecast shown on the home page.
package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	defaultBaseURL = "https://api.openweathermap.org/data/2.5/forecast"
	scanEntries    = 8
	maxSlots       = 3
)

// Slot is one forecast entry.
type Slot struct {
	Label string `json:"label"`
	Temp  int    `json:"temp"`
	Icon  string `json:"icon"`
}

// Forecast is the widget model. OK is false when the forecast is unavailable;
// Error then says why.
type Forecast struct {
	OK      bool   `json:"ok"`
	City    string `json:"city"`
	Country string `json:"country"`
	Slots   []Slot `json:"slots"`
	Error   string `json:"error,omitempty"`
}

// Client talks to the OpenWeather forecast API.
type Client struct {
	apiKey  string
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	cache   Cache
	ttl     time.Duration
	loc     *time.Location
	log     *zap.Logger
}

// Option customises a Client.
type Option func(*Client)

// WithBaseURL points the client at another endpoint.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// WithRateLimit bounds outbound API calls to r per second with the given burst.
func WithRateLimit(r rate.Limit, burst int) Option {
	return func(c *Client) { c.limiter = rate.NewLimiter(r, burst) }
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// New returns a Client. Labels are rendered in loc.
func New(apiKey string, cache Cache, ttl time.Duration, loc *time.Location, log *zap.Logger, opts ...Option) *Client {
	c := &Client{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http:    &http.Client{Timeout: 10 * time.Second},
		limiter: rate.NewLimiter(rate.Every(time.Second), 5),
		cache:   cache,
		ttl:     ttl,
		loc:     loc,
		log:     log.Named("weather"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type apiResponse struct {
	City struct {
		Name    string `json:"name"`
		Country string `json:"country"`
	} `json:"city"`
	List []struct {
		Dt   int64 `json:"dt"`
		Main struct {
			Temp float64 `json:"temp"`
		} `json:"main"`
		Weather []struct {
			Main string `json:"main"`
		} `json:"weather"`
		Clouds *struct {
			All int `json:"all"`
		} `json:"clouds"`
	} `json:"list"`
}

// Forecast returns up to three upcoming slots for city.
func (c *Client) Forecast(ctx context.Context, city string) (Forecast, error) {
	if c.apiKey == "" {
		return Forecast{City: city, Slots: []Slot{}, Error: "OPENWEATHER_API_KEY not set."}, nil
	}

	key := strings.ToLower(strings.TrimSpace(city))
	if f, ok, err := c.cache.Get(ctx, key); err != nil {
		c.log.Warn("weather cache read failed", zap.Error(err))
	} else if ok {
		return f, nil
	}

	f, err := c.fetch(ctx, city)
	if err != nil {
		return Forecast{City: city, Slots: []Slot{}, Error: err.Error()}, err
	}

	if err := c.cache.Set(ctx, key, f, c.ttl); err != nil {
		c.log.Warn("weather cache write failed", zap.Error(err))
	}
	return f, nil
}

func (c *Client) fetch(ctx context.Context, city string) (Forecast, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return Forecast{}, fmt.Errorf("fetch forecast: %w", err)
	}

	q := url.Values{}
	q.Set("q", city)
	q.Set("appid", c.apiKey)
	q.Set("units", "metric")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return Forecast{}, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return Forecast{}, fmt.Errorf("fetch forecast: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Forecast{}, fmt.Errorf("fetch forecast: status %d", resp.StatusCode)
	}

	var data apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return Forecast{}, fmt.Errorf("decode forecast: %w", err)
	}

	f := Forecast{OK: true, City: data.City.Name, Country: data.City.Country, Slots: []Slot{}}
	if f.City == "" {
		f.City = city
	}

	entries := data.List
	if len(entries) > scanEntries {
		entries = entries[:scanEntries]
	}
	for _, item := range entries {
		var condition string
		if len(item.Weather) > 0 {
			condition = item.Weather[0].Main
		}
		var clouds *int
		if item.Clouds != nil {
			clouds = &item.Clouds.All
		}
		f.Slots = append(f.Slots, Slot{
			Label: time.Unix(item.Dt, 0).In(c.loc).Format("Mon 3 PM"),
			Temp:  int(math.Round(item.Main.Temp)),
			Icon:  IconFor(condition, clouds),
		})
		if len(f.Slots) == maxSlots {
			break
		}
	}
	return f, nil
}

// IconFor maps an OpenWeather condition to one of the bundled weather icons.
func IconFor(condition string, clouds *int) string {
	main := strings.ToLower(condition)
	switch {
	case strings.Contains(main, "rain"), strings.Contains(main, "drizzle"), strings.Contains(main, "thunder"):
		return "assets/images/weather/rainy.svg"
	case strings.Contains(main, "cloud"):
		if clouds != nil && *clouds < 40 {
			return "assets/images/weather/cloudy_sun.svg"
		}
		return "assets/images/weather/cloudy.svg"
	default:
		return "assets/images/weather/sun.svg"
	}
}
