// Package analytics posts fire-and-forget measurement events. Failures are
// swallowed; this sink must never slow down or break the proving pipeline
package analytics

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"nexusprover/internal/platform/logger"
)

const (
	defaultEndpoint = "https://www.google-analytics.com/mp/collect"
	requestTimeout  = 5 * time.Second

	// at most this many posts may be in flight; extras are dropped
	maxInflight = 8
)

type envelope struct {
	ClientID string  `json:"client_id"`
	Events   []event `json:"events"`
}

type event struct {
	Name   string         `json:"name"`
	Params map[string]any `json:"params"`
}

// Client is the fire-and-forget sink. A nil *Client is a no-op, so callers
// never need to guard tracking calls
type Client struct {
	clientID string
	endpoint string
	http     *http.Client
	sem      chan struct{}
	log      logger.Logger
}

// New builds a sink identified by the stable client id
func New(clientID string) *Client {
	return &Client{
		clientID: clientID,
		endpoint: defaultEndpoint,
		http:     &http.Client{Timeout: requestTimeout},
		sem:      make(chan struct{}, maxInflight),
		log:      *logger.Named("analytics"),
	}
}

// Track posts one named event in the background and returns immediately
func (c *Client) Track(name string, params map[string]any) {
	if c == nil {
		return
	}
	select {
	case c.sem <- struct{}{}:
	default:
		return // too many in flight, drop
	}
	go func() {
		defer func() { <-c.sem }()
		c.post(name, params)
	}()
}

func (c *Client) post(name string, params map[string]any) {
	body, err := json.Marshal(envelope{
		ClientID: c.clientID,
		Events:   []event{{Name: name, Params: params}},
	})
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Trace().Err(err).Str("event", name).Msg("analytics post dropped")
		return
	}
	_ = resp.Body.Close()
}
