// Package session manages the persisted client state: a single JSON config
// file holding the registered user, node, and environment
package session

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"

	perr "nexusprover/internal/platform/errors"
)

// configDirName lives under the user home directory
const configDirName = ".nexus"

// configFileName is the single persisted file
const configFileName = "config.json"

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// the stock eth_addr rule rejects an uppercase 0X prefix, which the
	// server accepts, so register our own. EIP-55 checksums are out of scope
	_ = v.RegisterValidation("wallet_addr", func(fl validator.FieldLevel) bool {
		return walletOK(fl.Field().String())
	})
	return v
}

func walletOK(addr string) bool {
	if len(addr) != 42 {
		return false
	}
	if addr[0] != '0' || (addr[1] != 'x' && addr[1] != 'X') {
		return false
	}
	for i := 2; i < len(addr); i++ {
		c := addr[i]
		switch {
		case c >= '0' && c <= '9', c >= 'a' && c <= 'f', c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}

// Config is the persisted state
type Config struct {
	UserID        string `json:"user_id"`
	WalletAddress string `json:"wallet_address" validate:"omitempty,wallet_addr"`
	NodeID        string `json:"node_id"`
	Environment   string `json:"environment"`
}

// DefaultPath returns the config file location, honoring NEXUS_CONFIG for
// overrides
func DefaultPath() (string, error) {
	if p := os.Getenv("NEXUS_CONFIG"); p != "" {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", perr.Wrap(err, perr.ErrorCodeNotFound, "cannot resolve home directory")
	}
	return filepath.Join(home, configDirName, configFileName), nil
}

// Load reads and validates the config file. Invalid JSON is an error, a
// missing file is ErrorCodeNotFound
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, perr.NotFoundf("no config at %s", path)
		}
		return nil, perr.Wrap(err, perr.ErrorCodeUnknown, "read config failed")
	}
	var c Config
	if err := json.Unmarshal(b, &c); err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeValidation, "config file is not valid JSON")
	}
	if err := validate.Struct(&c); err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeValidation, "config file failed validation")
	}
	return &c, nil
}

// Save writes the config, creating absent parent directories
func (c *Config) Save(path string) error {
	if err := validate.Struct(c); err != nil {
		return perr.Wrap(err, perr.ErrorCodeValidation, "refusing to save invalid config")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return perr.Wrap(err, perr.ErrorCodeUnknown, "create config directory failed")
	}
	b, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return perr.Wrap(err, perr.ErrorCodeSerialization, "encode config failed")
	}
	return os.WriteFile(path, b, 0o600)
}

// Delete removes the config file; deleting an absent file is not an error
func Delete(path string) error {
	err := os.Remove(path)
	if err != nil && !os.IsNotExist(err) {
		return perr.Wrap(err, perr.ErrorCodeUnknown, "delete config failed")
	}
	return nil
}

// ValidateWallet checks an Ethereum address: 42 chars, 0x or 0X prefix, 40
// hex chars. Checksum casing is not enforced
func ValidateWallet(addr string) error {
	if err := validate.Var(addr, "required,wallet_addr"); err != nil {
		return perr.InvalidArgf("invalid wallet address %q: want 0x followed by 40 hex characters", addr)
	}
	return nil
}
