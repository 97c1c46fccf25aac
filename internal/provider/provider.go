package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
)

const (
	DefaultTenant = "T0001"
	DefaultModel  = "small"

	// MaxBodyBytes bounds an /infer request body on both services.
	MaxBodyBytes = 1 << 20
)

// Forwarding metadata headers, set by the gateway on the backend hop.
const (
	HeaderRequestID = "x-request-id"
	HeaderCostEst   = "x-cost-est"
	HeaderOutEst    = "x-out-est"
)

var ErrInvalidBody = errors.New("invalid json")

// Request is the boundary view of a generation request. Model keeps whatever
// the caller sent, as raw JSON text when it is not a string, so only the
// known names ever match a prior. Each consumer applies its own unknown-model
// default.
type Request struct {
	Tenant       string
	Model        string
	PromptTokens *int // nil when absent or not a count

	fields map[string]json.RawMessage
}

// Prompt returns the prompt size with absence mapped to zero.
func (r *Request) Prompt() int {
	if r.PromptTokens == nil {
		return 0
	}
	return *r.PromptTokens
}

// Result is the backend's answer for a single request. The request fields
// are echoed exactly as received.
type Result struct {
	Tenant       json.RawMessage `json:"tenant"`
	Model        json.RawMessage `json:"model"`
	PromptTokens json.RawMessage `json:"prompt_tokens"`
	TokensOut    int             `json:"tokens_out"`
}

func NewResult(req *Request, tokensOut int) *Result {
	return &Result{
		Tenant:       req.echo("tenant", DefaultTenant),
		Model:        req.echo("model", DefaultModel),
		PromptTokens: req.echo("prompt_tokens", nil),
		TokensOut:    tokensOut,
	}
}

func (r *Request) echo(name string, fallback any) json.RawMessage {
	if v, ok := r.fields[name]; ok && len(v) > 0 {
		return v
	}
	b, _ := json.Marshal(fallback)
	return b
}

type CostEstimate struct {
	OutputTokens int
	TotalCost    int
}

func NewCostEstimate(promptTokens, outputTokens int) CostEstimate {
	return CostEstimate{
		OutputTokens: outputTokens,
		TotalCost:    saturatingAdd(promptTokens, outputTokens),
	}
}

func saturatingAdd(a, b int) int {
	switch {
	case b > 0 && a > math.MaxInt-b:
		return math.MaxInt
	case b < 0 && a < math.MinInt-b:
		return math.MinInt
	}
	return a + b
}

// Metadata travels next to the forwarded body, never inside it.
type Metadata struct {
	RequestID string
	Estimate  CostEstimate
}

func (m Metadata) Apply(h http.Header) {
	h.Set(HeaderRequestID, m.RequestID)
	h.Set(HeaderCostEst, strconv.Itoa(m.Estimate.TotalCost))
	h.Set(HeaderOutEst, strconv.Itoa(m.Estimate.OutputTokens))
}

// MetadataFromHeader reads forwarding metadata. ok is false when the request
// did not come through the gateway.
func MetadataFromHeader(h http.Header) (Metadata, bool) {
	id := h.Get(HeaderRequestID)
	if id == "" {
		return Metadata{}, false
	}
	cost, _ := strconv.Atoi(h.Get(HeaderCostEst))
	out, _ := strconv.Atoi(h.Get(HeaderOutEst))
	return Metadata{
		RequestID: id,
		Estimate:  CostEstimate{OutputTokens: out, TotalCost: cost},
	}, true
}

// Response is the raw backend reply, passed through to the gateway caller.
type Response struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

type Provider interface {
	// Forward sends body unchanged with meta attached. A non-nil error means
	// no HTTP response was obtained; backend error statuses are not errors.
	Forward(ctx context.Context, body []byte, meta Metadata) (*Response, error)
	Name() string
}

// ParseRequest validates a JSON object body once and applies the default
// rules. A tenant or model of another JSON type is kept as its JSON text.
func ParseRequest(body []byte) (*Request, error) {
	dec := json.NewDecoder(bytes.NewReader(body))

	var fields map[string]json.RawMessage
	if err := dec.Decode(&fields); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBody, err)
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return nil, fmt.Errorf("%w: trailing data after object", ErrInvalidBody)
	}
	if fields == nil {
		return nil, fmt.Errorf("%w: body must be an object", ErrInvalidBody)
	}

	req := &Request{
		Tenant: DefaultTenant,
		Model:  DefaultModel,
		fields: fields,
	}
	if raw, ok := fields["tenant"]; ok {
		req.Tenant = label(raw)
	}
	if raw, ok := fields["model"]; ok {
		req.Model = label(raw)
	}
	if raw, ok := fields["prompt_tokens"]; ok {
		req.PromptTokens = tokenCount(value(raw))
	}

	return req, nil
}

func value(raw json.RawMessage) any {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil
	}
	return v
}

// label returns a string field's value, or the JSON text of anything else.
func label(raw json.RawMessage) string {
	if s, ok := value(raw).(string); ok {
		return s
	}
	if len(raw) == 0 {
		return "null"
	}
	return string(raw)
}

// tokenCount truncates numbers and parses integer strings, saturating at the
// int range. Anything else counts as absent.
func tokenCount(v any) *int {
	var n int
	switch t := v.(type) {
	case json.Number:
		if i, err := strconv.Atoi(t.String()); err == nil {
			n = i
			break
		}
		f, err := t.Float64()
		if err != nil && !errors.Is(err, strconv.ErrRange) {
			return nil
		}
		n = saturatingInt(f)
	case string:
		i, err := strconv.Atoi(t)
		if err != nil && !errors.Is(err, strconv.ErrRange) {
			return nil
		}
		n = i
	default:
		return nil
	}
	return &n
}

func saturatingInt(f float64) int {
	switch {
	case math.IsNaN(f):
		return 0
	case f >= math.MaxInt:
		return math.MaxInt
	case f <= math.MinInt:
		return math.MinInt
	}
	return int(f)
}
