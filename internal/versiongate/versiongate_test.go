package versiongate

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func int64p(v int64) *int64 { return &v }

func TestEvaluateOFACBlocksFirst(t *testing.T) {
	m := &Manifest{
		OFACCountries: map[string]*string{"KP": nil, "IR": nil},
	}
	d := Evaluate(m, "1.0.0", "kp", time.Now())
	if !d.Block {
		t.Fatal("restricted country must block")
	}
	if d.Message != ofacDenial {
		t.Fatalf("message = %q", d.Message)
	}

	if d := Evaluate(m, "1.0.0", "US", time.Now()); d.Block {
		t.Fatal("unrestricted country must pass")
	}
}

func TestEvaluateBlockingConstraint(t *testing.T) {
	m := &Manifest{VersionConstraints: []Constraint{{
		Kind:    KindBlocking,
		Message: "versions below {version} are no longer accepted",
		Version: "2.0.0",
	}}}

	d := Evaluate(m, "1.5.0", "US", time.Now())
	if !d.Block {
		t.Fatal("older version must be blocked")
	}
	if !strings.Contains(d.Message, "2.0.0") {
		t.Fatalf("message should substitute {version}: %q", d.Message)
	}

	if d := Evaluate(m, "2.0.0", "US", time.Now()); d.Block || d.Message != "" {
		t.Fatalf("equal version must pass, got %+v", d)
	}
	if d := Evaluate(m, "2.1.0", "US", time.Now()); d.Block {
		t.Fatal("newer version must pass")
	}
}

func TestEvaluateMostSevereWins(t *testing.T) {
	m := &Manifest{VersionConstraints: []Constraint{
		{Kind: KindNotice, Message: "notice", Version: "3.0.0"},
		{Kind: KindBlocking, Message: "blocked", Version: "2.0.0"},
		{Kind: KindWarning, Message: "warning", Version: "2.5.0"},
	}}
	d := Evaluate(m, "1.0.0", "US", time.Now())
	if !d.Block || d.Message != "blocked" {
		t.Fatalf("blocking should win: %+v", d)
	}
}

func TestEvaluateWarningDoesNotBlock(t *testing.T) {
	m := &Manifest{VersionConstraints: []Constraint{
		{Kind: KindWarning, Message: "please upgrade", Version: "2.0.0"},
	}}
	d := Evaluate(m, "1.0.0", "US", time.Now())
	if d.Block {
		t.Fatal("warnings never block")
	}
	if d.Message != "please upgrade" {
		t.Fatalf("message = %q", d.Message)
	}
}

func TestEvaluateStartDate(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	m := &Manifest{VersionConstraints: []Constraint{{
		Kind:      KindBlocking,
		StartDate: int64p(now.Add(time.Hour).Unix()),
		Message:   "blocked",
		Version:   "2.0.0",
	}}}
	if d := Evaluate(m, "1.0.0", "US", now); d.Block {
		t.Fatal("a future constraint is not active yet")
	}
	if d := Evaluate(m, "1.0.0", "US", now.Add(2*time.Hour)); !d.Block {
		t.Fatal("the constraint activates once its start date passes")
	}
}

func TestEvaluateVersionsWithoutPrefix(t *testing.T) {
	// manifest and build versions appear with and without the v prefix
	m := &Manifest{VersionConstraints: []Constraint{{
		Kind: KindBlocking, Message: "blocked", Version: "v2.0.0",
	}}}
	if d := Evaluate(m, "1.9.9", "US", time.Now()); !d.Block {
		t.Fatal("bare current version should still compare")
	}
	if d := Evaluate(m, "v2.0.1", "US", time.Now()); d.Block {
		t.Fatal("prefixed current version should still compare")
	}
}

func TestFetchParsesManifest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{
			"version_constraints": [
				{"kind": "warning", "message": "upgrade to {version}", "version": "1.2.3"}
			],
			"ofac_countries": {"KP": null}
		}`))
	}))
	defer srv.Close()

	m, err := Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(m.VersionConstraints) != 1 || m.VersionConstraints[0].Version != "1.2.3" {
		t.Fatalf("manifest = %+v", m)
	}
	if _, ok := m.OFACCountries["KP"]; !ok {
		t.Fatal("ofac countries lost in parsing")
	}
}

func TestFetchRetriesThenSucceeds(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	if _, err := Fetch(context.Background(), srv.URL); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if calls < 3 {
		t.Fatalf("calls = %d, want the 503s retried", calls)
	}
}

func TestFetchBadJSONIsPermanent(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		_, _ = w.Write([]byte("<html>"))
	}))
	defer srv.Close()

	if _, err := Fetch(context.Background(), srv.URL); err == nil {
		t.Fatal("bad JSON should fail")
	}
	if calls != 1 {
		t.Fatalf("calls = %d, malformed payloads must not be retried", calls)
	}
}

func TestCheckPassesWhenManifestUnreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	d := Check(ctx, "http://127.0.0.1:1/version.json", "1.0.0", "US")
	if d.Block {
		t.Fatal("an unreachable manifest must not strand the client")
	}
}
