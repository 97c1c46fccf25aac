package backend

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/vnmchuo/ratelimit-ai/internal/provider"
)

// ErrTransport marks failures where no HTTP response came back.
var ErrTransport = errors.New("backend transport error")

type BackendProvider struct {
	baseURL string
	client  *http.Client
}

// New builds the single pooled client shared by every in-flight request.
// Call Close on shutdown.
func New(baseURL string, timeout time.Duration) *BackendProvider {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.MaxIdleConnsPerHost = 64

	return &BackendProvider{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Transport: transport,
			Timeout:   timeout,
		},
	}
}

func (p *BackendProvider) Name() string { return "backend" }

func (p *BackendProvider) Forward(ctx context.Context, body []byte, meta provider.Metadata) (*provider.Response, error) {
	url := fmt.Sprintf("%s/infer", p.baseURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	meta.Apply(httpReq.Header)
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(httpReq.Header))

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %v", ErrTransport, err)
	}

	return &provider.Response{
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        respBody,
	}, nil
}

// Close releases pooled connections.
func (p *BackendProvider) Close() {
	p.client.CloseIdleConnections()
}
