package config

// EnvPrefix is applied by envconfig to every variable lookup.
const EnvPrefix = "loumo"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvDBDSN  = "LOUMO_DB_DSN"
	EnvDBHost = "LOUMO_DB_HOST"
	EnvDBUser = "LOUMO_DB_USER"
	EnvDBName = "LOUMO_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
