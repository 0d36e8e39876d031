// Package services contains the core orchestration logic: the arena
// registry, credential resolver, term scoping filter, run orchestrator,
// task executor, normalisation pipeline, and live scheduler.
//
// Services depend on domain types and ports only. All external I/O is
// behind driven ports.
package services
