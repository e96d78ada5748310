package config

import (
	"flag"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Env       string `yaml:"env" env-default:"local" env-description:"Environment" env-choices:"local,dev,prod"`
	ApiPort   int    `yaml:"api_port" env:"API_PORT" env-default:"8080"`
	ApiHost   string `yaml:"api_host" env:"API_HOST" env-default:"localhost"`
	Postgres  `yaml:"postgres"`
	JWT       `yaml:"jwt"`
	Rates     `yaml:"rates"`
	RateLimit `yaml:"rate_limit"`
}

type Postgres struct {
	Host     string `yaml:"host" env:"POSTGRES_HOST" env-default:"localhost"`
	Port     string `yaml:"port" env:"POSTGRES_PORT" env-default:"5432"`
	User     string `yaml:"user" env:"POSTGRES_USER" env-default:"bank"`
	Pass     string `yaml:"pass" env:"POSTGRES_PASS" env-default:"bank"`
	Db       string `yaml:"db" env:"POSTGRES_DB" env-default:"bank"`
	PoolSize int    `yaml:"pool_size" env:"POSTGRES_POOL_SIZE" env-default:"10"`
	// AcquireTimeout bounds the wait for a pooled connection; 0 waits
	// until the request is cancelled.
	AcquireTimeout time.Duration `yaml:"acquire_timeout" env:"POSTGRES_ACQUIRE_TIMEOUT" env-default:"0s"`
}

type JWT struct {
	Secret   string        `yaml:"secret" env:"JWT_SECRET" env-required:"true"`
	TokenTTL time.Duration `yaml:"token_ttl" env:"JWT_TOKEN_TTL" env-default:"24h"`
}

type Rates struct {
	BaseURL string        `yaml:"base_url" env:"RATES_BASE_URL" env-default:"https://api.frankfurter.app"`
	TTL     time.Duration `yaml:"ttl" env:"RATES_TTL" env-default:"600s"`
	Timeout time.Duration `yaml:"timeout" env:"RATES_TIMEOUT" env-default:"5s"`
}

// RateLimit is per client address. RPS 0 disables limiting.
type RateLimit struct {
	RPS   float64 `yaml:"rps" env:"RATE_LIMIT_RPS" env-default:"20"`
	Burst int     `yaml:"burst" env:"RATE_LIMIT_BURST" env-default:"40"`
}

func MustLoad() *Config {
	path := fetchConfigPath()

	if path == "" {
		panic("config path is empty")
	}

	return MustLoadPath(path)
}

func MustLoadPath(path string) *Config {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		panic("config file does not exist: " + path)
	}

	var cfg Config

	if err := cleanenv.ReadConfig(path, &cfg); err != nil {
		panic("Failed to read config: " + err.Error())
	}

	return &cfg
}

// fetchConfigPath reads the --config flag, falling back to CONFIG_PATH.
func fetchConfigPath() string {
	var res string

	flag.StringVar(&res, "config", "", "path to config file")
	flag.Parse()

	if res == "" {
		res = os.Getenv("CONFIG_PATH")
	}

	return res
}
