package config

import (
	"fmt"
	"os"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Env             string `yaml:"env" env:"ENV" env-default:"development"`
	Port            string `yaml:"port" env:"PORT" env-default:"8080"`
	DBDSN           string `yaml:"db_dsn" env:"DB_DSN" env-default:"storefront.db"` // sqlite file in project root
	TemplatesDir    string `yaml:"templates_dir" env:"TEMPLATES_DIR" env-default:"./web/templates"`
	StaticDir       string `yaml:"static_dir" env:"STATIC_DIR" env-default:"./web/static"`
	LogFile         string `yaml:"log_file" env:"LOG_FILE" env-default:"./storefront.log"`
	RateLimitPerMin int    `yaml:"rate_limit_per_min" env:"RATE_LIMIT_PER_MIN" env-default:"60"`
	SeedDemo        bool   `yaml:"seed_demo" env:"SEED_DEMO" env-default:"true"`

	// AdminEmails overrides the role lookup for alert and report recipients.
	AdminEmails []string `yaml:"admin_email" env:"ADMIN_EMAIL" env-separator:","`

	Mail   MailConfig   `yaml:"mail"`
	Report ReportConfig `yaml:"report"`
	Notify NotifyConfig `yaml:"notify"`
}

// MailConfig describes the outbound SMTP relay. An empty Host switches to the log-only sender.
type MailConfig struct {
	Host     string `yaml:"host" env:"SMTP_HOST"`
	Port     int    `yaml:"port" env:"SMTP_PORT" env-default:"587"`
	User     string `yaml:"user" env:"SMTP_USER"`
	Password string `yaml:"-" env:"SMTP_PASSWORD"`
	From     string `yaml:"from" env:"MAIL_FROM" env-default:"Storefront <no-reply@storefront.local>"`
}

type ReportConfig struct {
	Enabled  bool   `yaml:"enabled" env:"REPORT_ENABLED" env-default:"true"`
	At       string `yaml:"at" env:"REPORT_AT" env-default:"18:00"`
	Timezone string `yaml:"timezone" env:"REPORT_TZ"`
}

type NotifyConfig struct {
	Backend      string   `yaml:"backend" env:"NOTIFY_BACKEND" env-default:"memory"` // memory | kafka
	Workers      int      `yaml:"workers" env:"NOTIFY_WORKERS" env-default:"1"`
	Buffer       int      `yaml:"buffer" env:"NOTIFY_BUFFER" env-default:"64"`
	KafkaBrokers []string `yaml:"kafka_brokers" env:"KAFKA_BROKERS" env-separator:"," env-default:"localhost:9092"`
	KafkaTopic   string   `yaml:"kafka_topic" env:"KAFKA_TOPIC" env-default:"storefront.low-stock"`
	KafkaGroup   string   `yaml:"kafka_group" env:"KAFKA_GROUP" env-default:"storefront-notifier"`
}

// Load reads CONFIG_PATH (if set) and then the environment.
func Load() (Config, error) {
	var cfg Config
	if path := os.Getenv("CONFIG_PATH"); path != "" {
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
		return cfg, nil
	}
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: read env: %w", err)
	}
	return cfg, nil
}

// MustLoad panics when the configuration cannot be read.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}
