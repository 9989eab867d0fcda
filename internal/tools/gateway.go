// Package tools invokes external action capabilities and normalizes
// their results for the conversation.
//
// Every capability sits behind a bridge service speaking one JSON
// contract: POST /invoke with a tool name and an input object, and either
// a result object or {"error": "..."} comes back. The dispatcher is the
// only caller of the capability wrappers; it turns every result, errors
// included, into an Outcome the composer can phrase for the user.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// Invoker is the uniform surface of one external action domain.
type Invoker interface {
	Invoke(ctx context.Context, tool string, input map[string]any) (map[string]any, error)
}

// InvokerFunc adapts a function to the Invoker interface.
type InvokerFunc func(ctx context.Context, tool string, input map[string]any) (map[string]any, error)

// Invoke calls f.
func (f InvokerFunc) Invoke(ctx context.Context, tool string, input map[string]any) (map[string]any, error) {
	return f(ctx, tool, input)
}

// GatewayOptions configure an HTTP tool bridge.
type GatewayOptions struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// HTTPGateway invokes tools over a JSON bridge service.
type HTTPGateway struct {
	client *resty.Client
	log    *zap.Logger
}

// NewHTTPGateway builds a gateway for the bridge at opts.BaseURL.
func NewHTTPGateway(opts GatewayOptions, log *zap.Logger) *HTTPGateway {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 20 * time.Second
	}

	c := resty.New().
		SetBaseURL(opts.BaseURL).
		SetHeader("Content-Type", "application/json").
		SetTimeout(opts.Timeout)
	if opts.APIKey != "" {
		c.SetAuthToken(opts.APIKey)
	}
	return &HTTPGateway{client: c, log: log}
}

type invokeRequest struct {
	Tool  string         `json:"tool"`
	Input map[string]any `json:"input"`
}

// Invoke posts one tool call and decodes the result object. A result
// carrying an "error" key counts as a failed call.
func (g *HTTPGateway) Invoke(ctx context.Context, tool string, input map[string]any) (map[string]any, error) {
	if input == nil {
		input = map[string]any{}
	}

	req := invokeRequest{Tool: tool, Input: input}
	resp, err := g.client.R().
		SetContext(ctx).
		SetBody(&req).
		Post("/invoke")
	if err != nil {
		return nil, fmt.Errorf("tool bridge request: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("tool bridge status %d: %s", resp.StatusCode(), resp.String())
	}

	var result map[string]any
	if err := json.Unmarshal(resp.Body(), &result); err != nil {
		return nil, fmt.Errorf("decode tool result: %w", err)
	}
	if msg, ok := result["error"].(string); ok && msg != "" {
		return nil, fmt.Errorf("%s: %s", tool, msg)
	}

	g.log.Debug("tool invoked", zap.String("tool", tool))
	return result, nil
}
