package session

import (
	"strings"

	perr "nexusprover/internal/platform/errors"
)

// productionOrchestratorURL is the fixed production endpoint
const productionOrchestratorURL = "https://beta.orchestrator.nexus.xyz"

// Environment selects which orchestrator the client talks to
type Environment struct {
	Name string
	URL  string
}

// Production is the built-in default environment
func Production() Environment {
	return Environment{Name: "production", URL: productionOrchestratorURL}
}

// Custom points at an explicit orchestrator URL
func Custom(url string) Environment {
	return Environment{Name: "custom", URL: url}
}

// ResolveEnvironment picks the environment: an explicit URL wins, then the
// NEXUS_ENVIRONMENT preset name, then production
func ResolveEnvironment(explicitURL, presetName string) (Environment, error) {
	if explicitURL != "" {
		return Custom(explicitURL), nil
	}
	switch strings.ToLower(strings.TrimSpace(presetName)) {
	case "", "production":
		return Production(), nil
	default:
		return Environment{}, perr.InvalidArgf("unknown environment %q", presetName)
	}
}
