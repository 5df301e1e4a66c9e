package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App      AppConfig
	Service  ServiceConfig
	DB       DBConfig
	Redis    RedisConfig
	GCP      GCPConfig
	PubSub   PubSubConfig
	Outbox   OutboxConfig
	Pawapay  PawapayConfig
	Orders   OrdersConfig
	Payments PaymentsConfig
	Cron     CronConfig
	Features FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Orders.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"LOUMO_APP_ENV" required:"true"`
	Port         string `envconfig:"LOUMO_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"LOUMO_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"LOUMO_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"LOUMO_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"LOUMO_DB_DSN"`
	Driver string `envconfig:"LOUMO_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"LOUMO_DB_HOST"`
	LegacyPort     int    `envconfig:"LOUMO_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"LOUMO_DB_USER"`
	LegacyPassword string `envconfig:"LOUMO_DB_PASSWORD"`
	LegacyName     string `envconfig:"LOUMO_DB_NAME"`
	LegacySSLMode  string `envconfig:"LOUMO_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"LOUMO_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"LOUMO_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"LOUMO_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"LOUMO_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"LOUMO_REDIS_URL" required:"true"`
	Address      string        `envconfig:"LOUMO_REDIS_ADDR"`
	Password     string        `envconfig:"LOUMO_REDIS_PASSWORD"`
	DB           int           `envconfig:"LOUMO_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"LOUMO_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"LOUMO_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"LOUMO_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"LOUMO_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"LOUMO_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"LOUMO_AUTO_MIGRATE" default:"false"`
}

type GCPConfig struct {
	ProjectID       string `envconfig:"LOUMO_GCP_PROJECT_ID"`
	CredentialsJSON string `envconfig:"LOUMO_GCP_CREDENTIALS_JSON"`
}

type PubSubConfig struct {
	NotificationTopic        string `envconfig:"LOUMO_PUBSUB_NOTIFICATION_TOPIC" default:"loumo-notification-events"`
	NotificationSubscription string `envconfig:"LOUMO_PUBSUB_NOTIFICATION_SUBSCRIPTION"`
	OrdersTopic              string `envconfig:"LOUMO_PUBSUB_ORDERS_TOPIC" default:"loumo-order-events"`
	OrdersSubscription       string `envconfig:"LOUMO_PUBSUB_ORDERS_SUBSCRIPTION"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"LOUMO_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"LOUMO_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"LOUMO_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type PawapayConfig struct {
	BaseURL  string        `envconfig:"LOUMO_PAWAPAY_BASE_URL" default:"https://api.sandbox.pawapay.io/v2"`
	APIToken string        `envconfig:"LOUMO_PAWAPAY_API_TOKEN"`
	Timeout  time.Duration `envconfig:"LOUMO_PAWAPAY_TIMEOUT" default:"10s"`
	Currency string        `envconfig:"LOUMO_PAWAPAY_CURRENCY" default:"XAF"`
	Country  string        `envconfig:"LOUMO_PAWAPAY_COUNTRY" default:"CMR"`
}

// CompletionPolicy names the delivery requirement applied by order completion.
type CompletionPolicy string

const (
	// CompletionPolicyLenient completes an order whose deliveries, if any exist,
	// are all completed.
	CompletionPolicyLenient CompletionPolicy = "lenient"
	// CompletionPolicyStrict additionally requires at least one delivery to exist.
	CompletionPolicyStrict CompletionPolicy = "strict"
)

type OrdersConfig struct {
	CompletionPolicy CompletionPolicy `envconfig:"LOUMO_ORDERS_COMPLETION_POLICY" default:"lenient"`
}

func (o OrdersConfig) validate() error {
	switch o.CompletionPolicy {
	case CompletionPolicyLenient, CompletionPolicyStrict:
		return nil
	}
	return fmt.Errorf("invalid completion policy %q (expected %q or %q)",
		o.CompletionPolicy, CompletionPolicyLenient, CompletionPolicyStrict)
}

type PaymentsConfig struct {
	// CancelOrderOnReject cancels the pending order when the gateway rejects the
	// deposit synchronously. Off by default: the order stays pending for a retry
	// payment.
	CancelOrderOnReject bool `envconfig:"LOUMO_PAYMENTS_CANCEL_ORDER_ON_REJECT" default:"false"`
}

type CronConfig struct {
	Interval              time.Duration `envconfig:"LOUMO_CRON_INTERVAL" default:"30s"`
	ReconcileBatchLimit   int           `envconfig:"LOUMO_CRON_RECONCILE_BATCH_LIMIT" default:"250"`
	NotificationRetention int           `envconfig:"LOUMO_CRON_NOTIFICATION_RETENTION_DAYS" default:"30"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
