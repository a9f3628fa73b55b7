package sentiment

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/bitly/go-simplejson"
	"github.com/jpillora/backoff"
)

// DefaultURL адрес индекса страха и жадности
const DefaultURL = "https://api.alternative.me/fng/?limit=1"

// ErrEmptyResponse ответ не содержит значений индекса
var ErrEmptyResponse = errors.New("пустой ответ индекса страха и жадности")

// Index последнее значение индекса
type Index struct {
	Value          float64
	Classification string
}

// Client клиент индекса страха и жадности
type Client struct {
	url        string
	httpClient *http.Client
	maxRetries int
	backoff    backoff.Backoff
}

// NewClient создает клиент; timeout ограничивает каждый запрос
func NewClient(url string, timeout time.Duration, maxRetries int) *Client {
	if url == "" {
		url = DefaultURL
	}
	if maxRetries < 1 {
		maxRetries = 1
	}
	return &Client{
		url:        url,
		httpClient: &http.Client{Timeout: timeout},
		maxRetries: maxRetries,
		backoff: backoff.Backoff{
			Min:    200 * time.Millisecond,
			Max:    2 * time.Second,
			Factor: 2,
			Jitter: true,
		},
	}
}

// Latest возвращает текущее значение индекса
func (c *Client) Latest(ctx context.Context) (Index, error) {
	b := c.backoff
	var lastErr error

	for attempt := 0; attempt < c.maxRetries; attempt++ {
		idx, err := c.fetch(ctx)
		if err == nil {
			return idx, nil
		}
		lastErr = err
		if errors.Is(err, ErrEmptyResponse) || attempt == c.maxRetries-1 {
			break
		}

		select {
		case <-ctx.Done():
			return Index{}, ctx.Err()
		case <-time.After(b.Duration()):
		}
	}

	return Index{}, lastErr
}

func (c *Client) fetch(ctx context.Context) (Index, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return Index{}, fmt.Errorf("ошибка создания запроса: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Index{}, fmt.Errorf("ошибка запроса индекса: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Index{}, fmt.Errorf("ошибка чтения ответа: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return Index{}, fmt.Errorf("индекс вернул статус %d", resp.StatusCode)
	}

	return Parse(body)
}

// Parse разбирает ответ вида {"data":[{"value":"45","value_classification":"Fear"}]}
func Parse(body []byte) (Index, error) {
	js, err := simplejson.NewJson(body)
	if err != nil {
		return Index{}, fmt.Errorf("ошибка разбора ответа: %w", err)
	}

	data, err := js.Get("data").Array()
	if err != nil || len(data) == 0 {
		return Index{}, ErrEmptyResponse
	}

	entry := js.Get("data").GetIndex(0)
	raw, err := entry.Get("value").String()
	if err != nil {
		// значение может прийти числом
		num, numErr := entry.Get("value").Float64()
		if numErr != nil {
			return Index{}, fmt.Errorf("некорректное значение индекса: %w", err)
		}
		raw = strconv.FormatFloat(num, 'f', -1, 64)
	}

	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return Index{}, fmt.Errorf("некорректное значение индекса %q: %w", raw, err)
	}

	return Index{
		Value:          value,
		Classification: entry.Get("value_classification").MustString(),
	}, nil
}
