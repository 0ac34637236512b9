// Package datasource connects external services to the policy runtime.
//
// A driver translates one kind of external service into Datalog facts. The
// manager owns the configured datasources, gives each one a facts-only policy
// named after it, and polls the driver on an interval, replacing the policy's
// tables with every snapshot. Rules in other policies reference the data as
// service-qualified tables, for example nova:virtual_machine(vm).
package datasource
