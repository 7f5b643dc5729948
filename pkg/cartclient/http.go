package cartclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

const (
	defaultRequestsPerSecond = rate.Limit(10)
	defaultBurst             = 20
)

// APIError is a failed response decoded from the API error envelope.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("cart api returned %d", e.Status)
}

// HTTPOptions configures an HTTPServerCart.
type HTTPOptions struct {
	BaseURL string
	// Token returns the current bearer access token.
	Token      func() string
	HTTPClient *http.Client
	Limit      rate.Limit
	Burst      int
}

// HTTPServerCart talks to the /api/v1/cart routes.
type HTTPServerCart struct {
	baseURL string
	token   func() string
	client  *http.Client
	limiter *rate.Limiter
}

func NewHTTPServerCart(opts HTTPOptions) (*HTTPServerCart, error) {
	base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if base == "" {
		return nil, errors.New("base url required")
	}
	if opts.Token == nil {
		return nil, errors.New("token source required")
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	limit := opts.Limit
	if limit == 0 {
		limit = defaultRequestsPerSecond
	}
	burst := opts.Burst
	if burst <= 0 {
		burst = defaultBurst
	}
	return &HTTPServerCart{
		baseURL: base,
		token:   opts.Token,
		client:  client,
		limiter: rate.NewLimiter(limit, burst),
	}, nil
}

type cartPayload struct {
	Items []RemoteLine `json:"items"`
}

type lineRequest struct {
	ProductID int `json:"productId"`
	Quantity  int `json:"quantity"`
}

func (c *HTTPServerCart) GetCart(ctx context.Context) ([]RemoteLine, error) {
	var out cartPayload
	if err := c.do(ctx, http.MethodGet, "/api/v1/cart", nil, &out, nil); err != nil {
		return nil, err
	}
	return out.Items, nil
}

func (c *HTTPServerCart) AddItem(ctx context.Context, productID, quantity int) error {
	body := lineRequest{ProductID: productID, Quantity: quantity}
	return c.do(ctx, http.MethodPost, "/api/v1/cart/items", body, nil, nil)
}

func (c *HTTPServerCart) RemoveItem(ctx context.Context, productID int) error {
	return c.do(ctx, http.MethodDelete, "/api/v1/cart/items/"+strconv.Itoa(productID), nil, nil, nil)
}

func (c *HTTPServerCart) UpdateItemQuantity(ctx context.Context, productID, quantity int) error {
	body := map[string]int{"quantity": quantity}
	return c.do(ctx, http.MethodPatch, "/api/v1/cart/items/"+strconv.Itoa(productID), body, nil, nil)
}

func (c *HTTPServerCart) Clear(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, "/api/v1/cart", nil, nil, nil)
}

// ReplaceItems sends one idempotent PUT carrying the whole cart.
func (c *HTTPServerCart) ReplaceItems(ctx context.Context, lines []RemoteLine) error {
	items := make([]lineRequest, 0, len(lines))
	for _, l := range lines {
		items = append(items, lineRequest{ProductID: l.ProductID, Quantity: l.Quantity})
	}
	headers := map[string]string{"Idempotency-Key": uuid.NewString()}
	return c.do(ctx, http.MethodPut, "/api/v1/cart", map[string]any{"items": items}, nil, headers)
}

func (c *HTTPServerCart) do(ctx context.Context, method, path string, body, dest any, headers map[string]string) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return decodeAPIError(resp.StatusCode, raw)
	}
	if dest == nil || len(raw) == 0 {
		return nil
	}
	envelope := struct {
		Data json.RawMessage `json:"data"`
	}{}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if len(envelope.Data) == 0 {
		return nil
	}
	return json.Unmarshal(envelope.Data, dest)
}

func decodeAPIError(status int, raw []byte) error {
	envelope := struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}{}
	apiErr := &APIError{Status: status}
	if err := json.Unmarshal(raw, &envelope); err == nil {
		apiErr.Code = envelope.Error.Code
		apiErr.Message = envelope.Error.Message
	}
	return apiErr
}
