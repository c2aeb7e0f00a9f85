package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	HTTPPort string `env:"APP_PORT" env-default:"9000"`
	Username string `env:"APP_USER" env-default:"admin"`
	Password string `env:"APP_PASS" env-default:"secret"`

	GatewayBaseURL string        `env:"GATEWAY_BASE_URL" env-default:"http://localhost:3000/api/v1"`
	GatewayTimeout time.Duration `env:"GATEWAY_TIMEOUT" env-default:"10s"`

	SessionPath string `env:"SESSION_DB_PATH" env-default:"session.db"`

	// When true and the merchant record carries precomputed aggregates,
	// the summary trusts them instead of recomputing from raw returns.
	TrustMerchantAggregates bool `env:"TRUST_MERCHANT_AGGREGATES" env-default:"false"`

	SuccessMessageTTL time.Duration `env:"SUCCESS_MESSAGE_TTL" env-default:"15s"`

	// Audit pipeline. An empty DSN disables DB persistence and the outbox;
	// an empty broker list disables Kafka publishing.
	AuditDSN      string `env:"AUDIT_DSN" env-default:""`
	MigrationsDir string `env:"MIGRATIONS_DIR" env-default:"migrations"`
	AuditFilter   string `env:"AUDIT_FILTER" env-default:""`

	KafkaBrokersRaw string `env:"KAFKA_BROKERS" env-default:""`
	KafkaTopic      string `env:"KAFKA_TOPIC" env-default:"returns-audit"`
	KafkaGroupID    string `env:"KAFKA_GROUP_ID" env-default:"returns-audit-group"`
	AuditTail       bool   `env:"AUDIT_TAIL" env-default:"false"`
}

func MustLoad() *Config {
	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		log.Fatalf("failed to read config: %v", err)
	}
	return &cfg
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%s", c.HTTPPort)
}

func (c *Config) KafkaBrokers() []string {
	if c.KafkaBrokersRaw == "" {
		return nil
	}
	return strings.Split(c.KafkaBrokersRaw, ",")
}
