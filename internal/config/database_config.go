package config

import "github.com/spf13/viper"

const (
	databaseDriverVar = "DATABASE_DRIVER"
	databaseURLVar    = "DATABASE_URL"
)

// Supported DATABASE_DRIVER values
const (
	DriverPostgres = "pgx"
	DriverSQLite   = "sqlite"
	DriverMemory   = "memory"
)

type DatabaseConfig interface {
	GetDatabaseDriver() string
	GetDatabaseURL() string
}

type Database struct {
	v *viper.Viper
}

var _ DatabaseConfig = Database{}

func (d Database) GetDatabaseDriver() string {
	return d.v.GetString(databaseDriverVar)
}

func (d Database) GetDatabaseURL() string {
	return d.v.GetString(databaseURLVar)
}
