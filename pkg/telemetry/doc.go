// Package telemetry provides the ambient observability stack: a zerolog
// based structured logger and Prometheus metrics for the policy engine.
package telemetry
