package language

import (
	"sort"
	"strings"

	"codejudge/internal/judge/sandbox/engine"
	"codejudge/internal/judge/sandbox/profile"
	appErr "codejudge/pkg/errors"
)

// Registry maps language IDs and aliases to adapters.
type Registry struct {
	adapters map[string]Adapter
	specs    []profile.LanguageSpec
}

// NewRegistry builds one adapter per spec. Later specs with the same ID
// replace earlier ones, so configured languages can override the defaults.
func NewRegistry(langs []profile.LanguageSpec, eng engine.Engine, opts Options) (*Registry, error) {
	byID := make(map[string]profile.LanguageSpec, len(langs))
	order := make([]string, 0, len(langs))
	for _, lang := range langs {
		id := normalizeKey(lang.ID)
		if _, ok := byID[id]; !ok {
			order = append(order, id)
		}
		lang.ID = id
		byID[id] = lang
	}

	r := &Registry{adapters: make(map[string]Adapter, len(byID))}
	for _, id := range order {
		lang := byID[id]
		adapter, err := New(lang, eng, opts)
		if err != nil {
			return nil, err
		}
		keys := append([]string{lang.ID}, lang.Aliases...)
		for _, key := range keys {
			key = normalizeKey(key)
			if key == "" {
				continue
			}
			if prev, ok := r.adapters[key]; ok && prev.Language().ID != lang.ID {
				return nil, appErr.Newf(appErr.InvalidParams, "language key %q used by %s and %s", key, prev.Language().ID, lang.ID)
			}
			r.adapters[key] = adapter
		}
		r.specs = append(r.specs, lang)
	}
	sort.Slice(r.specs, func(i, j int) bool { return r.specs[i].ID < r.specs[j].ID })
	return r, nil
}

// Get returns the adapter for a language ID or alias.
func (r *Registry) Get(id string) (Adapter, error) {
	adapter, ok := r.adapters[normalizeKey(id)]
	if !ok {
		return nil, appErr.Newf(appErr.LanguageNotSupported, "language not supported: %s", id)
	}
	return adapter, nil
}

// Languages lists the registered language specs sorted by ID.
func (r *Registry) Languages() []profile.LanguageSpec {
	out := make([]profile.LanguageSpec, len(r.specs))
	copy(out, r.specs)
	return out
}

func normalizeKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
