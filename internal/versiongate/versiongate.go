// Package versiongate enforces remote version constraints and the OFAC
// country block at startup
package versiongate

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/mod/semver"

	perr "nexusprover/internal/platform/errors"
	"nexusprover/internal/platform/logger"
)

// DefaultManifestURL is where the constraint manifest lives
const DefaultManifestURL = "https://cli.nexus.xyz/version.json"

const fetchTimeout = 10 * time.Second

// Kind orders constraint severities; higher is more severe
type Kind string

const (
	KindNotice   Kind = "notice"
	KindWarning  Kind = "warning"
	KindBlocking Kind = "blocking"
)

func severity(k Kind) int {
	switch k {
	case KindBlocking:
		return 3
	case KindWarning:
		return 2
	case KindNotice:
		return 1
	default:
		return 0
	}
}

// Constraint is one remote version rule. A constraint is active once its
// start date (unix seconds) has passed, or immediately when absent; it fires
// when the running version is older than Version
type Constraint struct {
	Kind      Kind   `json:"kind"`
	StartDate *int64 `json:"start_date,omitempty"`
	Message   string `json:"message"`
	Version   string `json:"version"`
}

// Manifest is the remote JSON blob
type Manifest struct {
	VersionConstraints []Constraint       `json:"version_constraints"`
	OFACCountries      map[string]*string `json:"ofac_countries"`
}

// Decision is the gate outcome
type Decision struct {
	// Block means the process must exit non-zero
	Block bool
	// Message is printed regardless of blocking when non-empty
	Message string
}

// ofacDenial is the static message shown for restricted countries
const ofacDenial = "This service is not available in your region."

// canon coerces a version string to the canonical "vX.Y.Z" form semver wants
func canon(v string) string {
	v = strings.TrimSpace(v)
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	return v
}

// Evaluate applies the manifest to the running version and detected country.
// The most severe active violation wins; blocking > warning > notice
func Evaluate(m *Manifest, currentVersion, country string, now time.Time) Decision {
	if _, restricted := m.OFACCountries[strings.ToUpper(country)]; restricted {
		return Decision{Block: true, Message: ofacDenial}
	}

	var worst *Constraint
	for i := range m.VersionConstraints {
		c := &m.VersionConstraints[i]
		if c.StartDate != nil && time.Unix(*c.StartDate, 0).After(now) {
			continue
		}
		if semver.Compare(canon(currentVersion), canon(c.Version)) >= 0 {
			continue
		}
		if worst == nil || severity(c.Kind) > severity(worst.Kind) {
			worst = c
		}
	}
	if worst == nil {
		return Decision{}
	}
	msg := strings.ReplaceAll(worst.Message, "{version}", worst.Version)
	return Decision{Block: worst.Kind == KindBlocking, Message: msg}
}

// Fetch retrieves the manifest, retrying transient failures with
// exponential backoff for a bounded time
func Fetch(ctx context.Context, url string) (*Manifest, error) {
	client := &http.Client{Timeout: fetchTimeout}
	var m *Manifest

	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		resp, err := client.Do(req)
		if err != nil {
			return err
		}
		defer func() { _ = resp.Body.Close() }()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("manifest fetch returned %d", resp.StatusCode)
		}
		b, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if err != nil {
			return err
		}
		var parsed Manifest
		if err := json.Unmarshal(b, &parsed); err != nil {
			return backoff.Permanent(err)
		}
		m = &parsed
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 20 * time.Second
	if err := backoff.Retry(op, backoff.WithContext(bo, ctx)); err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeTransport, "version manifest fetch failed")
	}
	return m, nil
}

// Check fetches and evaluates the gate. A fetch failure is logged and
// treated as pass so an unreachable manifest never strands the client
func Check(ctx context.Context, url, currentVersion, country string) Decision {
	log := logger.Named("versiongate")
	m, err := Fetch(ctx, url)
	if err != nil {
		log.Warn().Err(err).Msg("skipping version gate, manifest unreachable")
		return Decision{}
	}
	d := Evaluate(m, currentVersion, country, time.Now())
	if d.Message != "" {
		log.Info().Bool("blocking", d.Block).Msg(d.Message)
	}
	return d
}
