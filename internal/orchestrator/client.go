// Package orchestrator provides the typed HTTP client for the Nexus
// orchestrator's /v3 endpoints. Bodies are length-prefixed binary per the
// protocol package; every request carries the client User-Agent and build
// timestamp headers
package orchestrator

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	perr "nexusprover/internal/platform/errors"
	"nexusprover/internal/protocol"
)

const (
	defaultConnectTimeout = 10 * time.Second
	defaultReadTimeout    = 10 * time.Second

	// responses larger than this are junk, not protocol
	maxBodyBytes = 64 << 20
)

// Client is the capability surface the rest of the pipeline depends on.
// Tests substitute the in-memory Mock
type Client interface {
	GetUser(ctx context.Context, walletAddress string) (string, error)
	RegisterUser(ctx context.Context, uuid, walletAddress string) error
	RegisterNode(ctx context.Context, userID string) (string, error)
	GetNode(ctx context.Context, nodeID string) (string, error)
	GetTasks(ctx context.Context, nodeID string) ([]protocol.Task, error)
	GetProofTask(ctx context.Context, req *protocol.ProofTaskRequest) (*protocol.Task, error)
	SubmitProof(ctx context.Context, sub *protocol.ProofSubmission) error
}

// HTTPError is the typed protocol failure carrying everything the retry
// layer needs to classify and back off
type HTTPError struct {
	Status  int
	Message string
	Headers http.Header
}

// Error implements the error interface
func (e *HTTPError) Error() string {
	return fmt.Sprintf("orchestrator returned %d: %s", e.Status, e.Message)
}

// Options configures the HTTP client
type Options struct {
	BaseURL        string
	UserAgent      string
	BuildTimestamp string
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
}

// HTTPClient talks to a real orchestrator
type HTTPClient struct {
	base *url.URL
	http *http.Client
	opts Options
}

// New constructs an HTTPClient with sane defaults
func New(o Options) (*HTTPClient, error) {
	u, err := url.Parse(o.BaseURL)
	if err != nil || !u.IsAbs() {
		return nil, perr.InvalidArgf("invalid orchestrator URL %q", o.BaseURL)
	}
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = defaultConnectTimeout
	}
	if o.ReadTimeout <= 0 {
		o.ReadTimeout = defaultReadTimeout
	}
	dialer := &net.Dialer{Timeout: o.ConnectTimeout}
	return &HTTPClient{
		base: u,
		opts: o,
		http: &http.Client{
			Timeout: o.ConnectTimeout + o.ReadTimeout,
			Transport: &http.Transport{
				DialContext:           dialer.DialContext,
				TLSHandshakeTimeout:   o.ConnectTimeout,
				ResponseHeaderTimeout: o.ReadTimeout,
			},
		},
	}, nil
}

// do issues one request and returns the response body.
// Non-2xx statuses surface as *HTTPError wrapped in a project error whose
// code matches the status class
func (c *HTTPClient) do(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	u := c.base.JoinPath(path)
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), rd)
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeUnknown, "orchestrator new request failed")
	}
	req.Header.Set("User-Agent", c.opts.UserAgent)
	req.Header.Set("X-Build-Timestamp", c.opts.BuildTimestamp)
	if body != nil {
		req.Header.Set("Content-Type", "application/octet-stream")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeTransport, "orchestrator %s %s failed", method, path)
	}
	defer func() { _ = resp.Body.Close() }()

	b, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeTransport, "orchestrator read body failed")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		he := &HTTPError{
			Status:  resp.StatusCode,
			Message: strings.TrimSpace(string(b)),
			Headers: resp.Header.Clone(),
		}
		return nil, perr.Wrapf(he, statusCode(resp.StatusCode), "orchestrator %s %s", method, path)
	}
	return b, nil
}

// statusCode maps an HTTP status to the project error code
func statusCode(status int) perr.ErrorCode {
	switch {
	case status == http.StatusTooManyRequests:
		return perr.ErrorCodeRateLimited
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return perr.ErrorCodeUnauthorized
	default:
		return perr.ErrorCodeUnknown
	}
}

// GetUser performs GET /v3/users/{wallet}
func (c *HTTPClient) GetUser(ctx context.Context, walletAddress string) (string, error) {
	b, err := c.do(ctx, http.MethodGet, "/v3/users/"+url.PathEscape(walletAddress), nil)
	if err != nil {
		return "", err
	}
	m, err := protocol.DecodeGetUserResponse(b)
	if err != nil {
		return "", err
	}
	return m.UserID, nil
}

// RegisterUser performs POST /v3/users
func (c *HTTPClient) RegisterUser(ctx context.Context, uuid, walletAddress string) error {
	req := &protocol.RegisterUserRequest{UUID: uuid, WalletAddress: walletAddress}
	_, err := c.do(ctx, http.MethodPost, "/v3/users", req.Marshal())
	return err
}

// RegisterNode performs POST /v3/nodes
func (c *HTTPClient) RegisterNode(ctx context.Context, userID string) (string, error) {
	req := &protocol.RegisterNodeRequest{NodeType: protocol.NodeTypeCLIProver, UserID: userID}
	b, err := c.do(ctx, http.MethodPost, "/v3/nodes", req.Marshal())
	if err != nil {
		return "", err
	}
	m, err := protocol.DecodeRegisterNodeResponse(b)
	if err != nil {
		return "", err
	}
	return m.NodeID, nil
}

// GetNode performs GET /v3/nodes/{node_id}
func (c *HTTPClient) GetNode(ctx context.Context, nodeID string) (string, error) {
	b, err := c.do(ctx, http.MethodGet, "/v3/nodes/"+url.PathEscape(nodeID), nil)
	if err != nil {
		return "", err
	}
	m, err := protocol.DecodeGetNodeResponse(b)
	if err != nil {
		return "", err
	}
	return m.WalletAddress, nil
}

// GetTasks performs GET /v3/tasks/{node_id} and returns already-assigned tasks
func (c *HTTPClient) GetTasks(ctx context.Context, nodeID string) ([]protocol.Task, error) {
	b, err := c.do(ctx, http.MethodGet, "/v3/tasks/"+url.PathEscape(nodeID), nil)
	if err != nil {
		return nil, err
	}
	m, err := protocol.DecodeTaskListResponse(b)
	if err != nil {
		return nil, err
	}
	return m.Tasks, nil
}

// GetProofTask performs POST /v3/tasks and returns one new task
func (c *HTTPClient) GetProofTask(ctx context.Context, req *protocol.ProofTaskRequest) (*protocol.Task, error) {
	b, err := c.do(ctx, http.MethodPost, "/v3/tasks", req.Marshal())
	if err != nil {
		return nil, err
	}
	return protocol.DecodeTask(b)
}

// SubmitProof performs POST /v3/tasks/submit
func (c *HTTPClient) SubmitProof(ctx context.Context, sub *protocol.ProofSubmission) error {
	_, err := c.do(ctx, http.MethodPost, "/v3/tasks/submit", sub.Marshal())
	return err
}
