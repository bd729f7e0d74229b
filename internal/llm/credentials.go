package llm

import (
	"os"
	"strings"

	"github.com/nulzo/polychat/internal/config"
)

// APIKey reads the provider credential from the environment at call time, so a
// missing key only fails the call that needs it. Providers without a credential
// variable get an empty key and no error.
func APIKey(cfg config.ProviderConfig) (string, error) {
	if cfg.APIKeyEnv == "" {
		return "", nil
	}
	key := strings.TrimSpace(os.Getenv(cfg.APIKeyEnv))
	if key == "" {
		return "", &Error{
			Kind:     KindConfiguration,
			Provider: cfg.Name,
			Message:  cfg.Name + " API key not configured",
		}
	}
	return key, nil
}

// HasAPIKey reports whether the credential is currently available.
func HasAPIKey(cfg config.ProviderConfig) bool {
	_, err := APIKey(cfg)
	return err == nil
}
