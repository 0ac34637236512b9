// Package stores persists policies, rules, and datasource definitions so a
// restarted server comes back with the same state. The only implementation
// is SQLite, initialized in WAL mode with embedded migrations.
package stores
