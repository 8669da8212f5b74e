package restadmin

import "time"

const (
	// Namespace is the name the route table is mounted under.
	Namespace = "restful_admin"

	APIUserHeader = "Api-User"
	APIKeyHeader  = "Api-Key"

	DriverMemory   = "memory"
	DriverMongoDB  = "mongodb"
	DriverPostgres = "postgres"

	DefaultAPIPort      = 8080
	DefaultDatabaseName = "restadmin"
	MaxPageSize         = 1000
	DefaultShutdownWait = 10 * time.Second
	DefaultSettingsFile = "restadmin.yml"
	SettingsPathEnv     = "RESTADMIN_SETTINGS"
)

// BuildRevision is set at link time.
var BuildRevision = ""

// Drivers lists the supported database drivers.
var Drivers = []string{DriverMemory, DriverMongoDB, DriverPostgres}
