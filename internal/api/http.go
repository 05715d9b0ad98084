package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/sethvargo/go-retry"

	"github.com/tinkersphere/bombardier/internal/model"
)

// RemoteError is a non-2xx response from the target service.
type RemoteError struct {
	Status int
	Body   string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote error: status %d: %s", e.Status, e.Body)
}

// HTTPClient implements ServiceClient over JSON/HTTP against one service
// descriptor. Transport failures and 5xx responses are retried with
// fibonacci backoff before surfacing to the caller.
type HTTPClient struct {
	descriptor Descriptor
	http       *http.Client
	maxRetries uint64
}

var _ ServiceClient = (*HTTPClient)(nil)

// NewHTTPClient creates a client for the given descriptor.
func NewHTTPClient(d Descriptor) *HTTPClient {
	return &HTTPClient{
		descriptor: d,
		http:       &http.Client{Timeout: 10 * time.Second},
		maxRetries: 2,
	}
}

// do runs one JSON request with retries. out may be nil for calls whose
// response body is irrelevant.
func (c *HTTPClient) do(ctx context.Context, method, path string, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
	}
	url := strings.TrimRight(c.descriptor.BaseURL, "/") + path

	backoff := retry.WithMaxRetries(c.maxRetries, retry.NewFibonacci(100*time.Millisecond))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, url, reader)
		if err != nil {
			return fmt.Errorf("build request: %w", err)
		}
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if c.descriptor.Token != "" {
			req.Header.Set("Authorization", "Bearer "+c.descriptor.Token)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Debug().Err(err).Str("service", c.descriptor.Name).Str("path", path).Msg("transport error, retrying")
			return retry.RetryableError(err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			if out == nil {
				return nil
			}
			if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
				return fmt.Errorf("decode response: %w", err)
			}
			return nil
		}

		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		remoteErr := &RemoteError{Status: resp.StatusCode, Body: string(raw)}
		if resp.StatusCode >= 500 {
			log.Debug().Int("status", resp.StatusCode).Str("service", c.descriptor.Name).Str("path", path).Msg("server error, retrying")
			return retry.RetryableError(remoteErr)
		}
		return remoteErr
	})
}

func (c *HTTPClient) CreateUser(ctx context.Context, name string, accountAmount int) (*model.User, error) {
	req := map[string]any{"name": name, "account_amount": accountAmount}
	var user model.User
	if err := c.do(ctx, http.MethodPost, "/users", req, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *HTTPClient) GetUser(ctx context.Context, id uuid.UUID) (*model.User, error) {
	var user model.User
	if err := c.do(ctx, http.MethodGet, "/users/"+id.String(), nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *HTTPClient) GetFinancialHistory(ctx context.Context, userID, orderID uuid.UUID) ([]model.FinancialLogRecord, error) {
	var records []model.FinancialLogRecord
	path := fmt.Sprintf("/users/%s/finlog?order_id=%s", userID, orderID)
	if err := c.do(ctx, http.MethodGet, path, nil, &records); err != nil {
		return nil, err
	}
	return records, nil
}

func (c *HTTPClient) CreateOrder(ctx context.Context, userID uuid.UUID) (*model.Order, error) {
	var order model.Order
	path := fmt.Sprintf("/users/%s/orders", userID)
	if err := c.do(ctx, http.MethodPost, path, nil, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

func (c *HTTPClient) GetOrder(ctx context.Context, userID, orderID uuid.UUID) (*model.Order, error) {
	var order model.Order
	path := fmt.Sprintf("/users/%s/orders/%s", userID, orderID)
	if err := c.do(ctx, http.MethodGet, path, nil, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

func (c *HTTPClient) GetAvailableItems(ctx context.Context, userID uuid.UUID) ([]model.Item, error) {
	var items []model.Item
	path := fmt.Sprintf("/users/%s/items", userID)
	if err := c.do(ctx, http.MethodGet, path, nil, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func (c *HTTPClient) PutItemToOrder(ctx context.Context, userID, orderID, itemID uuid.UUID, amount int) (bool, error) {
	var result struct {
		Accepted bool `json:"accepted"`
	}
	path := fmt.Sprintf("/users/%s/orders/%s/items/%s?amount=%d", userID, orderID, itemID, amount)
	if err := c.do(ctx, http.MethodPut, path, nil, &result); err != nil {
		return false, err
	}
	return result.Accepted, nil
}

func (c *HTTPClient) FinalizeOrder(ctx context.Context, orderID uuid.UUID) (*model.BookingDto, error) {
	var booking model.BookingDto
	path := fmt.Sprintf("/orders/%s/bookings", orderID)
	if err := c.do(ctx, http.MethodPost, path, nil, &booking); err != nil {
		return nil, err
	}
	return &booking, nil
}

func (c *HTTPClient) GetBookingHistory(ctx context.Context, bookingID uuid.UUID) ([]model.BookingLogRecord, error) {
	var records []model.BookingLogRecord
	path := fmt.Sprintf("/bookings/%s/history", bookingID)
	if err := c.do(ctx, http.MethodGet, path, nil, &records); err != nil {
		return nil, err
	}
	return records, nil
}

func (c *HTTPClient) GetDeliverySlots(ctx context.Context, orderID uuid.UUID) ([]int, error) {
	var slots []int
	path := fmt.Sprintf("/orders/%s/delivery/slots", orderID)
	if err := c.do(ctx, http.MethodGet, path, nil, &slots); err != nil {
		return nil, err
	}
	return slots, nil
}

func (c *HTTPClient) SetDeliveryTime(ctx context.Context, orderID uuid.UUID, slotSeconds int64) error {
	path := fmt.Sprintf("/orders/%s/delivery/slots?slot_in_sec=%d", orderID, slotSeconds)
	return c.do(ctx, http.MethodPost, path, nil, nil)
}

func (c *HTTPClient) PayOrder(ctx context.Context, userID, orderID uuid.UUID) (*model.Order, error) {
	var order model.Order
	path := fmt.Sprintf("/users/%s/orders/%s/payment", userID, orderID)
	if err := c.do(ctx, http.MethodPost, path, nil, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

func (c *HTTPClient) SimulateDelivery(ctx context.Context, orderID uuid.UUID) error {
	path := fmt.Sprintf("/orders/%s/delivery", orderID)
	return c.do(ctx, http.MethodPost, path, nil, nil)
}

func (c *HTTPClient) DeliveryLog(ctx context.Context, orderID uuid.UUID) (*model.DeliveryLogRecord, error) {
	var record model.DeliveryLogRecord
	path := fmt.Sprintf("/orders/%s/delivery/log", orderID)
	if err := c.do(ctx, http.MethodGet, path, nil, &record); err != nil {
		return nil, err
	}
	return &record, nil
}

func (c *HTTPClient) AbandonedCartHistory(ctx context.Context, orderID uuid.UUID) ([]model.BucketLogRecord, error) {
	var records []model.BucketLogRecord
	path := fmt.Sprintf("/orders/%s/bucket/log", orderID)
	if err := c.do(ctx, http.MethodGet, path, nil, &records); err != nil {
		return nil, err
	}
	return records, nil
}
