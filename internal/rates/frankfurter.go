package rates

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"github.com/tidwall/gjson"
)

const DefaultBaseURL = "https://api.frankfurter.app"

const maxBodyBytes = 64 << 10

var ErrMalformedPayload = errors.New("malformed rate payload")

// Frankfurter reads the USD to EUR rate from the frankfurter.app API.
type Frankfurter struct {
	baseURL string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
}

func NewFrankfurter(baseURL string, timeout time.Duration, log *slog.Logger) *Frankfurter {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 2 * time.Second
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "frankfurter",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("Rate source circuit changed state",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
		},
	})

	return &Frankfurter{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		breaker: breaker,
	}
}

func (f *Frankfurter) Fetch(ctx context.Context) (float64, error) {
	res, err := f.breaker.Execute(func() (interface{}, error) {
		return f.fetch(ctx)
	})
	if err != nil {
		return 0, err
	}

	return res.(float64), nil
}

func (f *Frankfurter) fetch(ctx context.Context) (float64, error) {
	const op = "rates.Frankfurter.fetch"

	query := url.Values{"from": {"USD"}, "to": {"EUR"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.baseURL+"/latest?"+query.Encode(), nil)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("%s: unexpected status %d", op, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	if !gjson.ValidBytes(body) {
		return 0, fmt.Errorf("%s: %w", op, ErrMalformedPayload)
	}

	eur := gjson.GetBytes(body, "rates.EUR")
	if eur.Type != gjson.Number || eur.Float() <= 0 {
		return 0, fmt.Errorf("%s: %w: rates.EUR = %q", op, ErrMalformedPayload, eur.Raw)
	}

	return eur.Float(), nil
}
