package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/stellarsave/stellarsave/internal/model"
)

// DefaultRPCTimeout bounds a single invocation when the caller's context
// carries no deadline.
const DefaultRPCTimeout = 30 * time.Second

// RPC invokes contracts through a JSON relay that simulates, signs and
// submits Soroban transactions. Requests are POST {base}/invoke with a Call
// body; responses are a Result, or {"error": {...}} with a non-2xx status.
type RPC struct {
	baseURL    string
	httpClient *http.Client
	headers    map[string]string
}

// RPCOption configures an RPC adapter.
type RPCOption func(*RPC)

// WithHTTPClient replaces the default client.
func WithHTTPClient(c *http.Client) RPCOption {
	return func(r *RPC) { r.httpClient = c }
}

// WithHeader adds a header to every request (e.g. an API key).
func WithHeader(key, value string) RPCOption {
	return func(r *RPC) { r.headers[key] = value }
}

// NewRPC creates an adapter for the relay at baseURL.
func NewRPC(baseURL string, opts ...RPCOption) *RPC {
	r := &RPC{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: DefaultRPCTimeout},
		headers:    make(map[string]string),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type rpcError struct {
	Error *model.Error `json:"error"`
}

// Invoke implements Gateway.
func (r *RPC) Invoke(ctx context.Context, call Call) (Result, error) {
	body, err := json.Marshal(call)
	if err != nil {
		return Result{}, model.WrapError(model.KindValidationError, "encode call", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/invoke", bytes.NewReader(body))
	if err != nil {
		return Result{}, model.WrapError(model.KindNetworkError, "build request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for k, v := range r.headers {
		req.Header.Set(k, v)
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return Result{}, model.WrapError(model.KindNetworkError, fmt.Sprintf("invoke %s", call.Method), err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, model.WrapError(model.KindNetworkError, "read response", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var env rpcError
		if json.Unmarshal(raw, &env) == nil && env.Error != nil && env.Error.Kind != "" {
			return Result{}, env.Error
		}
		kind := model.KindContractError
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			kind = model.KindNetworkError
		}
		return Result{}, model.Errorf(kind, "relay returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw))).
			WithDetail("status", resp.StatusCode)
	}

	var res Result
	if err := json.Unmarshal(raw, &res); err != nil {
		return Result{}, model.WrapError(model.KindContractError, "decode relay response", err)
	}
	return res, nil
}
