// Package weather proxies OpenWeather lookups for report locations behind a
// circuit breaker.
package weather

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"

	"hydro360/internal/logging"
	"hydro360/internal/metrics"
)

const (
	breakerName        = "openweather"
	defaultTimeout     = 10 * time.Second
	tripAfterFailures  = 5
	breakerOpenTimeout = 30 * time.Second
)

var (
	// ErrNotConfigured is returned when no API key is set.
	ErrNotConfigured = errors.New("weather service not configured")
	// ErrUnavailable is returned while the circuit breaker rejects calls.
	ErrUnavailable = errors.New("weather service temporarily unavailable")
)

// Config configures the upstream API.
type Config struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// Conditions are the current conditions at a point.
type Conditions struct {
	Place       string  `json:"place"`
	Summary     string  `json:"summary"`
	Description string  `json:"description"`
	Icon        string  `json:"icon"`
	TempC       float64 `json:"temp"`
	FeelsLikeC  float64 `json:"feelsLike"`
	Humidity    int     `json:"humidity"`
	Pressure    int     `json:"pressure"`
	WindSpeed   float64 `json:"windSpeed"`
	Rain1hMm    float64 `json:"rain1h"`
}

// RainfallPoint is the rain expected in one 3-hour forecast slot.
type RainfallPoint struct {
	Time string  `json:"time"`
	Rain float64 `json:"rain"`
}

// Report is what the API returns for a location.
type Report struct {
	Current  Conditions      `json:"current"`
	Rainfall []RainfallPoint `json:"rainfall"`
}

type currentResponse struct {
	Name    string `json:"name"`
	Weather []struct {
		Main        string `json:"main"`
		Description string `json:"description"`
		Icon        string `json:"icon"`
	} `json:"weather"`
	Main struct {
		Temp      float64 `json:"temp"`
		FeelsLike float64 `json:"feels_like"`
		Humidity  int     `json:"humidity"`
		Pressure  int     `json:"pressure"`
	} `json:"main"`
	Wind struct {
		Speed float64 `json:"speed"`
	} `json:"wind"`
	Rain struct {
		OneHour float64 `json:"1h"`
	} `json:"rain"`
}

type forecastResponse struct {
	List []struct {
		DtTxt string `json:"dt_txt"`
		Rain  struct {
			ThreeHours float64 `json:"3h"`
		} `json:"rain"`
	} `json:"list"`
}

// Client calls OpenWeather. The zero-key client reports ErrNotConfigured.
type Client struct {
	http    *http.Client
	baseURL string
	apiKey  string
	cb      *gobreaker.CircuitBreaker[*Report]
}

// NewClient builds a client with its own circuit breaker.
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	metrics.WeatherBreakerState.Set(0)
	cb := gobreaker.NewCircuitBreaker[*Report](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     breakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= tripAfterFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Info().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state change")
			metrics.WeatherBreakerState.Set(stateToFloat(to))
		},
		IsExcluded: func(err error) bool {
			return errors.Is(err, context.Canceled)
		},
	})
	return &Client{
		http:    &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		cb:      cb,
	}
}

// Enabled reports whether an API key is configured.
func (c *Client) Enabled() bool { return c != nil && c.apiKey != "" }

// Lookup fetches current conditions and the rainfall forecast for a point.
func (c *Client) Lookup(ctx context.Context, lat, lng float64) (*Report, error) {
	if !c.Enabled() {
		return nil, ErrNotConfigured
	}
	rep, err := c.cb.Execute(func() (*Report, error) {
		return c.fetch(ctx, lat, lng)
	})
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.WeatherRequests.WithLabelValues("rejected").Inc()
		return nil, ErrUnavailable
	case err != nil:
		metrics.WeatherRequests.WithLabelValues("failure").Inc()
		return nil, err
	}
	metrics.WeatherRequests.WithLabelValues("success").Inc()
	return rep, nil
}

func (c *Client) fetch(ctx context.Context, lat, lng float64) (*Report, error) {
	var cur currentResponse
	if err := c.get(ctx, "/weather", lat, lng, &cur); err != nil {
		return nil, err
	}
	var fc forecastResponse
	if err := c.get(ctx, "/forecast", lat, lng, &fc); err != nil {
		return nil, err
	}

	rep := &Report{
		Current: Conditions{
			Place:      cur.Name,
			TempC:      cur.Main.Temp,
			FeelsLikeC: cur.Main.FeelsLike,
			Humidity:   cur.Main.Humidity,
			Pressure:   cur.Main.Pressure,
			WindSpeed:  cur.Wind.Speed,
			Rain1hMm:   cur.Rain.OneHour,
		},
		Rainfall: make([]RainfallPoint, 0, len(fc.List)),
	}
	if len(cur.Weather) > 0 {
		rep.Current.Summary = cur.Weather[0].Main
		rep.Current.Description = cur.Weather[0].Description
		rep.Current.Icon = cur.Weather[0].Icon
	}
	for _, item := range fc.List {
		rep.Rainfall = append(rep.Rainfall, RainfallPoint{Time: item.DtTxt, Rain: item.Rain.ThreeHours})
	}
	return rep, nil
}

func (c *Client) get(ctx context.Context, path string, lat, lng float64, out any) error {
	q := url.Values{}
	q.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("lon", strconv.FormatFloat(lng, 'f', -1, 64))
	q.Set("appid", c.apiKey)
	q.Set("units", "metric")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return fmt.Errorf("build weather request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("weather request %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("weather %s returned %d: %s", path, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode weather %s: %w", path, err)
	}
	return nil
}

func stateToFloat(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}
