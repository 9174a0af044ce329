package orchestrator

import (
	"context"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"nexusprover/internal/platform/logger"
)

// Country detection: the 2-letter ISO code is used only for OFAC gating and
// server-side task routing. No IP or sub-country data is recorded

const (
	cloudflareTraceURL = "https://www.cloudflare.com/cdn-cgi/trace"
	ipinfoCountryURL   = "https://ipinfo.io/country"
	countryFallback    = "US"
)

var (
	countryOnce   sync.Once
	countryCached string

	// seam for tests
	countryHTTP = &http.Client{Timeout: 5 * time.Second}
)

// Country returns the detected 2-letter country code, memoized for the
// process lifetime. Cloudflare's trace endpoint is tried first, then ipinfo,
// then the fallback
func Country(ctx context.Context) string {
	countryOnce.Do(func() {
		countryCached = detectCountry(ctx)
		logger.Named("country").Debug().Str("code", countryCached).Msg("country detected")
	})
	return countryCached
}

func detectCountry(ctx context.Context) string {
	if cc := countryFromCloudflare(ctx); cc != "" {
		return cc
	}
	if cc := countryFromIPInfo(ctx); cc != "" {
		return cc
	}
	return countryFallback
}

func countryFromCloudflare(ctx context.Context) string {
	body, err := fetchSmall(ctx, cloudflareTraceURL)
	if err != nil {
		return ""
	}
	for _, line := range strings.Split(body, "\n") {
		if cc, ok := strings.CutPrefix(strings.TrimSpace(line), "loc="); ok {
			return validCountry(cc)
		}
	}
	return ""
}

func countryFromIPInfo(ctx context.Context) string {
	body, err := fetchSmall(ctx, ipinfoCountryURL)
	if err != nil {
		return ""
	}
	return validCountry(strings.TrimSpace(body))
}

func validCountry(cc string) string {
	cc = strings.ToUpper(strings.TrimSpace(cc))
	if len(cc) != 2 {
		return ""
	}
	for i := 0; i < 2; i++ {
		if cc[i] < 'A' || cc[i] > 'Z' {
			return ""
		}
	}
	return cc
}

func fetchSmall(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	resp, err := countryHTTP.Do(req)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()
	b, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return "", err
	}
	return string(b), nil
}
