package gateway

import (
	"fmt"
	"sort"

	"github.com/nulzo/polychat/internal/config"
	"github.com/nulzo/polychat/internal/llm"
	"github.com/nulzo/polychat/pkg/api"
)

// Entry binds a configured model identifier to its constructed adapter.
type Entry struct {
	Config   config.ProviderConfig
	Provider llm.Provider
}

// Registry maps model identifiers to providers. It is built once at startup
// and only read afterwards, so it is shared between dispatches without locks.
type Registry struct {
	entries map[string]Entry
}

// RegistryOf assembles a registry from already constructed providers.
func RegistryOf(entries ...Entry) (*Registry, error) {
	r := &Registry{entries: make(map[string]Entry, len(entries))}
	for _, e := range entries {
		if e.Config.ID == "" {
			return nil, fmt.Errorf("registry entry without id")
		}
		if e.Provider == nil {
			return nil, fmt.Errorf("registry entry %q has no provider", e.Config.ID)
		}
		if _, dup := r.entries[e.Config.ID]; dup {
			return nil, fmt.Errorf("duplicate model id %q", e.Config.ID)
		}
		r.entries[e.Config.ID] = e
	}
	return r, nil
}

// Lookup returns the entry for id. A missing id is a normal false result.
func (r *Registry) Lookup(id string) (Entry, bool) {
	e, ok := r.entries[id]
	return e, ok
}

func (r *Registry) Len() int {
	return len(r.entries)
}

// Models lists every entry sorted by id. Configured reflects the credential
// environment at call time.
func (r *Registry) Models() []api.ModelInfo {
	out := make([]api.ModelInfo, 0, len(r.entries))
	for id, e := range r.entries {
		out = append(out, api.ModelInfo{
			ID:            id,
			Name:          e.Config.Name,
			Icon:          e.Config.Icon,
			Type:          e.Provider.Type(),
			UpstreamModel: e.Config.Model,
			Configured:    llm.HasAPIKey(e.Config),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
