package priceoracle

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// HTTPClient fetches the reward-unit quote from a JSON endpoint of the shape
// {"price": 0.0213}. Transient failures are retried with jittered exponential
// backoff bounded by the caller's context.
type HTTPClient struct {
	url    string
	client *http.Client
}

func NewHTTPClient(url string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &HTTPClient{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

type quoteResponse struct {
	Price float64 `json:"price"`
}

func (c *HTTPClient) CurrentPrice(ctx context.Context) (float64, error) {
	if c.url == "" {
		return 0, ErrPriceUnavailable
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 100 * time.Millisecond
	b.MaxInterval = time.Second
	b.MaxElapsedTime = 3 * time.Second
	b.RandomizationFactor = 0.5

	var price float64
	operation := func() error {
		p, err := c.fetch(ctx)
		if err != nil {
			return err
		}
		price = p
		return nil
	}

	if err := backoff.Retry(operation, backoff.WithContext(b, ctx)); err != nil {
		return 0, err
	}
	return price, nil
}

func (c *HTTPClient) fetch(ctx context.Context) (float64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return 0, backoff.Permanent(err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("oracle returned status %d", resp.StatusCode)
	}

	var quote quoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&quote); err != nil {
		return 0, err
	}
	if quote.Price <= 0 {
		return 0, backoff.Permanent(ErrInvalidPrice)
	}
	return quote.Price, nil
}
