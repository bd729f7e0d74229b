package gateway

import (
	"fmt"

	"github.com/nulzo/polychat/internal/cli"
	"github.com/nulzo/polychat/internal/config"
	"github.com/nulzo/polychat/internal/llm"
	"go.uber.org/zap"
)

// NewRegistry builds every enabled provider through the adapter factory table.
// Invalid entries and duplicate ids fail startup; a missing credential only
// produces a warning since keys are read again on every call.
func NewRegistry(providers []config.ProviderConfig, log *zap.Logger) (*Registry, error) {
	var entries []Entry
	seen := make(map[string]bool)

	for _, pCfg := range providers {
		if !pCfg.Enabled {
			log.Debug("Provider disabled", zap.String("id", pCfg.ID))
			continue
		}

		if err := pCfg.Validate(); err != nil {
			return nil, fmt.Errorf("provider %q: %w", pCfg.ID, err)
		}
		if seen[pCfg.ID] {
			return nil, fmt.Errorf("duplicate model id %q", pCfg.ID)
		}
		seen[pCfg.ID] = true

		provider, err := llm.New(pCfg)
		if err != nil {
			return nil, fmt.Errorf("provider %q: %w", pCfg.ID, err)
		}

		if !llm.HasAPIKey(pCfg) {
			log.Warn(fmt.Sprintf("%s %s %s",
				cli.WarningSign(),
				cli.Style(fmt.Sprintf("%s\t", pCfg.ID), cli.Bold),
				cli.Style(fmt.Sprintf("%s is not set, calls will fail until it is", pCfg.APIKeyEnv), cli.Yellow),
			))
		} else {
			log.Info(fmt.Sprintf("%s %s %s",
				cli.CheckMark(),
				cli.Style(fmt.Sprintf("%s\t", pCfg.ID), cli.Bold),
				cli.Style(fmt.Sprintf("%s (%s)", pCfg.Type, modelLabel(pCfg)), cli.Cyan),
			))
		}

		entries = append(entries, Entry{Config: pCfg, Provider: provider})
	}

	if len(entries) == 0 {
		log.Warn("No providers were registered. Every dispatch will answer with unknown model errors.")
	}

	return RegistryOf(entries...)
}

func modelLabel(p config.ProviderConfig) string {
	if p.Model == "" {
		return "builtin"
	}
	return p.Model
}
