// Package metrics defines the Prometheus collectors exported by the dashboard.
//
// Collectors are grouped per concern (gateway transport, observation
// channels, discovery, user actions, browser connections). New creates them
// unregistered, which is what tests and optional wiring want; NewRegistry
// registers them together with the Go runtime collectors and exposes them
// over HTTP via Handler.
package metrics
