// Package core defines the shared language of the dsg system.
//
// This package contains:
//   - Domain entities (Table, QueryContext, Page, LinkIndex)
//   - Configuration types (ProjectConfig, ConnectionInfo)
//   - The build error taxonomy (ConfigurationError, QueryExecutionError,
//     ContentError, TemplateError)
//
// The Golden Rule: pkg/core imports ONLY stdlib.
// All other packages depend on core, not the reverse.
package core
