package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"chowline/internal/domain"
)

// Transport submits placement and status-change requests to the order
// service and runs the plain cache-populating reads. Faked in tests.
type Transport interface {
	PlaceOrder(ctx context.Context, req domain.PlacementRequest) (domain.Order, error)
	UpdateStatus(ctx context.Context, orderID string, status domain.Status) (domain.Order, error)
	FetchOwnOrders(ctx context.Context) ([]domain.Order, error)
	FetchAllOrders(ctx context.Context) ([]domain.Order, error)
}

// HTTPTransport talks to the order service over its REST surface with a
// bearer credential. No request is retried automatically: the caller
// decides whether to resubmit (channel reconnection is the only automatic
// retry in this system).
type HTTPTransport struct {
	baseURL    string
	credential string
	client     *http.Client
}

func NewHTTPTransport(baseURL, credential string) *HTTPTransport {
	return &HTTPTransport{
		baseURL:    baseURL,
		credential: credential,
		client:     &http.Client{Timeout: 15 * time.Second},
	}
}

func (t *HTTPTransport) PlaceOrder(ctx context.Context, req domain.PlacementRequest) (domain.Order, error) {
	var order domain.Order
	if err := t.do(ctx, http.MethodPost, "/orders", req, &order); err != nil {
		return domain.Order{}, err
	}
	return order, nil
}

func (t *HTTPTransport) UpdateStatus(ctx context.Context, orderID string, status domain.Status) (domain.Order, error) {
	var order domain.Order
	err := t.do(ctx, http.MethodPut, "/orders/"+orderID+"/status", domain.StatusChangeRequest{Status: status}, &order)
	if err != nil {
		return domain.Order{}, err
	}
	return order, nil
}

func (t *HTTPTransport) FetchOwnOrders(ctx context.Context) ([]domain.Order, error) {
	var resp struct {
		Orders []domain.Order `json:"orders"`
	}
	if err := t.do(ctx, http.MethodGet, "/orders", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Orders, nil
}

func (t *HTTPTransport) FetchAllOrders(ctx context.Context) ([]domain.Order, error) {
	var resp struct {
		Orders []domain.Order `json:"orders"`
	}
	if err := t.do(ctx, http.MethodGet, "/admin/orders", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Orders, nil
}

func (t *HTTPTransport) do(ctx context.Context, method, path string, body, out any) error {
	op := method + " " + path

	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return &domain.SubmissionError{Op: op, Err: fmt.Errorf("encode request: %w", err)}
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, t.baseURL+path, rd)
	if err != nil {
		return &domain.SubmissionError{Op: op, Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+t.credential)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return &domain.SubmissionError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		if out == nil {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return &domain.SubmissionError{Op: op, Err: fmt.Errorf("decode response: %w", err)}
		}
		return nil
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusNotImplemented:
		return &domain.SubmissionError{Op: op, NotFound: true, Err: fmt.Errorf("status %d", resp.StatusCode)}
	default:
		return &domain.SubmissionError{Op: op, Err: fmt.Errorf("status %d: %s", resp.StatusCode, readProblem(resp.Body))}
	}
}

func readProblem(r io.Reader) string {
	var p struct {
		Detail string `json:"detail"`
	}
	if err := json.NewDecoder(r).Decode(&p); err != nil || p.Detail == "" {
		return "request failed"
	}
	return p.Detail
}
