// Package api serves the policy engine over a JSON HTTP API: policy and
// rule CRUD, queries, simulation, and datasource management, plus health and
// Prometheus metrics endpoints. When a store is attached, mutations are
// persisted and Restore brings a fresh runtime back to the stored state.
package api
