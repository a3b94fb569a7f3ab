// Package modules contains the dependency modules of the composition root.
// Each module owns the wiring of one concern and contributes to the HTTP
// server deps, the River worker registry and background startup.
package modules

import (
	"context"

	"github.com/riverqueue/river"

	"collabhub.io/realtime/internal/api/handlers"
)

// Module represents a domain-specific dependency unit in the composition root.
type Module interface {
	// Name returns a stable module identifier for logging/debugging.
	Name() string

	// ContributeServerDeps injects module-owned dependencies into the HTTP server deps.
	ContributeServerDeps(*handlers.ServerDeps)

	// RegisterWorkers registers module workers into a shared River worker registry.
	RegisterWorkers(*river.Workers)

	// Start launches module background work on the worker pools.
	Start(context.Context) error

	// Shutdown performs module-local graceful cleanup.
	Shutdown(context.Context) error
}

// PeriodicJobSource is implemented by modules that schedule River periodic jobs.
type PeriodicJobSource interface {
	PeriodicJobs() []*river.PeriodicJob
}
