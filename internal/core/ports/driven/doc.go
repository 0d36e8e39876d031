// Package driven defines the interfaces the core depends on (driven ports).
//
// These are implemented by adapters: collectors under internal/arenas,
// stores under internal/adapters/driven/storage, the status feed under
// internal/adapters/driven/feed. The core services only ever see these
// interfaces, never the concrete adapters.
package driven
