package functions

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/hollis/dealflow/internal/metrics"
)

// HTTPInvoker invokes functions over the runtime's HTTP endpoint.
type HTTPInvoker struct {
	base      *url.URL
	projectID string
	publicKey string
	timeout   time.Duration
	hc        *http.Client
}

// NewHTTPInvoker creates an invoker for the given function runtime base URL.
func NewHTTPInvoker(baseURL, projectID, publicKey string, timeout time.Duration) (*HTTPInvoker, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("functions: parse base url: %w", err)
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPInvoker{
		base:      u,
		projectID: projectID,
		publicKey: publicKey,
		timeout:   timeout,
		hc:        &http.Client{},
	}, nil
}

// Invoke posts the JSON-encoded body to the named function and decodes its
// result. A non-JSON or transport-level failure is returned as an error;
// a decoded {success:false} result is not an error.
func (c *HTTPInvoker) Invoke(ctx context.Context, ref string, body any) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	raw, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("functions: encode body: %w", err)
	}

	endpoint := c.base.JoinPath("functions", ref, "invoke")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("functions: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Project-Id", c.projectID)
	req.Header.Set("X-Public-Key", c.publicKey)

	resp, err := c.hc.Do(req)
	if err != nil {
		metrics.ObserveFunctionInvocation(ref, metrics.OutcomeTransport)
		return nil, fmt.Errorf("functions: invoke %s: %w", ref, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.ObserveFunctionInvocation(ref, metrics.OutcomeTransport)
		return nil, fmt.Errorf("functions: read %s response: %w", ref, err)
	}

	var res Result
	if err := json.Unmarshal(payload, &res); err != nil {
		metrics.ObserveFunctionInvocation(ref, metrics.OutcomeTransport)
		return nil, fmt.Errorf("functions: decode %s response: %w", ref, err)
	}
	res.Raw = payload

	outcome := metrics.OutcomeOK
	if !res.Success {
		outcome = metrics.OutcomeEnvelope
	}
	metrics.ObserveFunctionInvocation(ref, outcome)
	return &res, nil
}
