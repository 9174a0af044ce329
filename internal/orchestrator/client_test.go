package orchestrator

import (
	"context"
	stderrs "errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	perr "nexusprover/internal/platform/errors"
	"nexusprover/internal/protocol"
)

func newTestClient(t *testing.T, h http.Handler) *HTTPClient {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := New(Options{
		BaseURL:        srv.URL,
		UserAgent:      "nexus-cli/0.0.0-test",
		BuildTimestamp: "2026-01-01T00:00:00Z",
	})
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestNewRejectsBadURL(t *testing.T) {
	for _, u := range []string{"", "not a url", "/relative"} {
		if _, err := New(Options{BaseURL: u}); err == nil {
			t.Errorf("New(%q) should fail", u)
		}
	}
}

func TestGetUserWireFormat(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/v3/users/0xabc" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if ua := r.Header.Get("User-Agent"); ua != "nexus-cli/0.0.0-test" {
			t.Errorf("User-Agent = %q", ua)
		}
		if ts := r.Header.Get("X-Build-Timestamp"); ts == "" {
			t.Error("X-Build-Timestamp missing")
		}
		resp := protocol.GetUserResponse{UserID: "user-9"}
		_, _ = w.Write(resp.Marshal())
	}))

	id, err := c.GetUser(context.Background(), "0xabc")
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if id != "user-9" {
		t.Fatalf("user id = %q", id)
	}
}

func TestGetProofTaskPostsBinaryBody(t *testing.T) {
	task := protocol.Task{
		TaskID:       "task-7",
		ProgramID:    "fib_input_initial",
		PublicInputs: [][]byte{{9, 0, 0, 0, 1, 0, 0, 0, 1, 0, 0, 0}},
		Type:         protocol.TaskTypeProofHash,
		Difficulty:   protocol.DifficultyMedium,
	}
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v3/tasks" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/octet-stream" {
			t.Errorf("Content-Type = %q", ct)
		}
		body, _ := io.ReadAll(r.Body)
		req, err := protocol.DecodeProofTaskRequest(body)
		if err != nil {
			t.Errorf("request body does not decode: %v", err)
		} else if req.NodeID != "node-3" || req.MaxDifficulty != protocol.DifficultySmall {
			t.Errorf("decoded request = %+v", req)
		}
		_, _ = w.Write(protocol.MarshalTask(&task))
	}))

	got, err := c.GetProofTask(context.Background(), &protocol.ProofTaskRequest{
		NodeID:           "node-3",
		NodeType:         protocol.NodeTypeCLIProver,
		Ed25519PublicKey: make([]byte, 32),
		MaxDifficulty:    protocol.DifficultySmall,
		Location:         "US",
	})
	if err != nil {
		t.Fatalf("GetProofTask: %v", err)
	}
	if got.TaskID != task.TaskID || got.Difficulty != task.Difficulty {
		t.Fatalf("task = %+v", got)
	}
}

func TestRateLimitSurfacesHeaders(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "30")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte("slow down"))
	}))

	_, err := c.GetTasks(context.Background(), "node-1")
	if err == nil {
		t.Fatal("429 should surface as an error")
	}
	if !perr.IsCode(err, perr.ErrorCodeRateLimited) {
		t.Fatalf("code = %v, want rate limited", perr.CodeOf(err))
	}
	var he *HTTPError
	if !stderrs.As(err, &he) {
		t.Fatal("HTTPError should be reachable through the wrap chain")
	}
	if he.Headers.Get("Retry-After") != "30" {
		t.Fatal("Retry-After header lost")
	}
	if he.Message != "slow down" {
		t.Fatalf("message = %q", he.Message)
	}
}

func TestUnauthorizedCode(t *testing.T) {
	for _, status := range []int{http.StatusUnauthorized, http.StatusForbidden} {
		c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		}))
		_, err := c.GetUser(context.Background(), "0xabc")
		if !perr.IsCode(err, perr.ErrorCodeUnauthorized) {
			t.Errorf("status %d: code = %v, want unauthorized", status, perr.CodeOf(err))
		}
	}
}

func TestTransportErrorCode(t *testing.T) {
	c, err := New(Options{BaseURL: "http://127.0.0.1:1", UserAgent: "t"})
	if err != nil {
		t.Fatal(err)
	}
	_, err = c.GetUser(context.Background(), "0xabc")
	if !perr.IsCode(err, perr.ErrorCodeTransport) {
		t.Fatalf("code = %v, want transport", perr.CodeOf(err))
	}
}

func TestGarbageBodyIsDecodeError(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte{0xFF})
	}))
	_, err := c.GetUser(context.Background(), "0xabc")
	if !perr.IsCode(err, perr.ErrorCodeDecode) {
		t.Fatalf("code = %v, want decode", perr.CodeOf(err))
	}
}

func TestSubmitProofRoundTrip(t *testing.T) {
	var got *protocol.ProofSubmission
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v3/tasks/submit" {
			t.Errorf("path = %s", r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		var err error
		got, err = protocol.DecodeProofSubmission(body)
		if err != nil {
			t.Errorf("submission does not decode: %v", err)
		}
	}))

	sub := &protocol.ProofSubmission{
		TaskID:           "task-1",
		CombinedHash:     "cafe",
		Type:             protocol.TaskTypeProofHash,
		Proof:            []byte{1},
		Proofs:           [][]byte{{1}},
		Ed25519PublicKey: make([]byte, 32),
		Signature:        make([]byte, 64),
	}
	if err := c.SubmitProof(context.Background(), sub); err != nil {
		t.Fatalf("SubmitProof: %v", err)
	}
	if got == nil || got.TaskID != "task-1" || got.CombinedHash != "cafe" {
		t.Fatalf("server saw %+v", got)
	}
}
