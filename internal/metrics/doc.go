// Package metrics holds the engine's in-process counters. Export formats
// live under metrics/export in the root module.
package metrics
