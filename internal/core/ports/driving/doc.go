// Package driving defines the interfaces the core exposes (driving ports).
//
// The CLI and the live scheduler drive the engine exclusively through
// these interfaces.
package driving
