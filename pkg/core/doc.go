// Package core defines the shared language of the polylex system.
//
// This package contains:
//   - Domain entities (LanguageDefinition, PluginRecord, Origin)
//   - Service interfaces (Engine)
//   - Error kinds shared by the registry, store, lifecycle manager and dispatcher
//
// The Golden Rule: pkg/core imports ONLY pkg/token and stdlib.
// All other packages depend on core, not the reverse.
package core
