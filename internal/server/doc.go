// Package server provides the HTTP plumbing shared by the transports:
// Kubernetes health probes backed by dependency checks, a dedicated
// Prometheus metrics server, and graceful serve/shutdown helpers.
package server
