package carrier

import (
	"log/slog"
	"strings"
)

// Constructor builds a connector from merged credentials.
type Constructor func(creds Credentials) Connector

type registration struct {
	keywords []string
	build    Constructor
}

// Registry resolves a free-text carrier display name to a connector by
// case-insensitive substring match ("La Poste - Colissimo" matches the
// "colissimo" registration). Unrecognized names resolve to the synthetic
// connector: live lookups still return a well-formed, explicitly
// non-authoritative result instead of erroring.
type Registry struct {
	global  Credentials
	entries []registration
	log     *slog.Logger
}

func NewRegistry(global Credentials, log *slog.Logger) *Registry {
	if log == nil {
		log = slog.Default()
	}
	return &Registry{global: global, log: log}
}

// Register adds a connector constructor matched by any of the keywords.
// Registration order is resolution order.
func (r *Registry) Register(keywords []string, build Constructor) {
	lowered := make([]string, len(keywords))
	for i, kw := range keywords {
		lowered[i] = strings.ToLower(kw)
	}
	r.entries = append(r.entries, registration{keywords: lowered, build: build})
}

// Resolve returns the connector for a carrier display name, with per-caller
// credential overrides layered over the registry's global credentials.
func (r *Registry) Resolve(displayName string, overrides Credentials) Connector {
	name := strings.ToLower(displayName)
	creds := MergeCredentials(r.global, overrides)

	for _, e := range r.entries {
		for _, kw := range e.keywords {
			if strings.Contains(name, kw) {
				return e.build(creds)
			}
		}
	}

	r.log.Debug("no connector registered for carrier, using synthetic fallback",
		"carrier", displayName)
	return NewSyntheticConnector(displayName)
}
