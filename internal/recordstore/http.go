package recordstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/hollis/dealflow/internal/metrics"
)

// HTTPClient talks to the record store over its JSON REST protocol.
// Every call carries the project id and public key headers and is bounded
// by the configured timeout on top of the caller's context.
type HTTPClient struct {
	base      *url.URL
	projectID string
	publicKey string
	timeout   time.Duration
	hc        *http.Client
}

// NewHTTPClient creates a store client for the given base URL.
func NewHTTPClient(baseURL, projectID, publicKey string, timeout time.Duration) (*HTTPClient, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("recordstore: parse base url: %w", err)
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &HTTPClient{
		base:      u,
		projectID: projectID,
		publicKey: publicKey,
		timeout:   timeout,
		hc:        &http.Client{},
	}, nil
}

type fetchBody struct {
	Fields []Field `json:"fields"`
}

type getBody struct {
	ID     int64   `json:"Id"`
	Fields []Field `json:"fields"`
}

type deleteBody struct {
	RecordIDs []int64 `json:"RecordIds"`
}

// FetchRecords retrieves all records of a collection projected to the
// declared fields.
func (c *HTTPClient) FetchRecords(ctx context.Context, collection string, opts FetchOptions) (*Envelope, error) {
	return c.post(ctx, collection, "fetch", fetchBody{Fields: opts.Fields})
}

// GetRecordByID retrieves a single record by its integer identity.
func (c *HTTPClient) GetRecordByID(ctx context.Context, collection string, id int64, opts FetchOptions) (*Envelope, error) {
	return c.post(ctx, collection, "get", getBody{ID: id, Fields: opts.Fields})
}

// CreateRecord submits a batch create.
func (c *HTTPClient) CreateRecord(ctx context.Context, collection string, payload RecordPayload) (*Envelope, error) {
	return c.post(ctx, collection, "create", payload)
}

// UpdateRecord submits a batch update. Each record must carry its "Id".
func (c *HTTPClient) UpdateRecord(ctx context.Context, collection string, payload RecordPayload) (*Envelope, error) {
	return c.post(ctx, collection, "update", payload)
}

// DeleteRecord submits a batch delete by record ids.
func (c *HTTPClient) DeleteRecord(ctx context.Context, collection string, ids []int64) (*Envelope, error) {
	return c.post(ctx, collection, "delete", deleteBody{RecordIDs: ids})
}

func (c *HTTPClient) post(ctx context.Context, collection, operation string, body any) (*Envelope, error) {
	start := time.Now()
	env, err := c.doPost(ctx, collection, operation, body)
	outcome := metrics.OutcomeOK
	switch {
	case err != nil:
		outcome = metrics.OutcomeTransport
	case !env.Success:
		outcome = metrics.OutcomeEnvelope
	}
	metrics.ObserveStoreRequest(collection, operation, outcome, time.Since(start))
	return env, err
}

func (c *HTTPClient) doPost(ctx context.Context, collection, operation string, body any) (*Envelope, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	raw, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("recordstore: encode %s body: %w", operation, err)
	}

	endpoint := c.base.JoinPath("collections", collection, operation)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("recordstore: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Project-Id", c.projectID)
	req.Header.Set("X-Public-Key", c.publicKey)

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("recordstore: %s %s: %w", operation, collection, err)
	}
	defer resp.Body.Close()

	var env Envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("recordstore: decode %s response: %w", operation, err)
	}
	return &env, nil
}
