// Package domain defines the core business entities for the Issue
// Observatory collection engine.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - ArenaDescriptor: A registered external data source and its capabilities
//   - QueryDesign: A researcher's declarative collection request
//   - CollectionRun / CollectionTask: The orchestrated unit of execution
//   - ContentRecord: The canonical unit of collected content
//   - RawItem: Opaque collector output before normalisation
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
