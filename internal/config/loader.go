package config

import (
	"fmt"
	"strings"

	"github.com/rpattn/labetl/internal/db"
	"github.com/spf13/viper"
)

// Config is the full service configuration: where the extracts live, where
// the server listens, and how to reach the storage backend. Credentials are
// never embedded in code; they come from config.yaml or the environment.
type Config struct {
	ListenAddr string
	DataDir    string
	Database   db.Config
}

// Defaults returns the configuration used when nothing is provided.
func Defaults() Config {
	return Config{
		ListenAddr: ":8080",
		DataDir:    "data",
		Database:   db.DefaultConfig(),
	}
}

// Load reads config.yaml from configPath with environment overrides
// (ETL_SERVER_ADDR, ETL_DATABASE_HOST, ...).
func Load(configPath string) (Config, error) {
	// Start with defaults
	cfg := Defaults()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.AutomaticEnv()      // allow environment overrides
	v.SetEnvPrefix("ETL") // map env vars like ETL_DATABASE_HOST
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.BindEnv("server.addr")
	v.BindEnv("data.dir")
	v.BindEnv("database.host")
	v.BindEnv("database.port")
	v.BindEnv("database.user")
	v.BindEnv("database.password")
	v.BindEnv("database.dbname")
	v.BindEnv("database.sslmode")

	if err := v.ReadInConfig(); err != nil {
		// Config file not found? Just log it, use defaults + env
		fmt.Println("No config.yaml found, using defaults and env vars")
	} else {
		fmt.Println("Loaded config.yaml")
	}

	if v.IsSet("server.addr") {
		cfg.ListenAddr = v.GetString("server.addr")
	}
	if v.IsSet("data.dir") {
		cfg.DataDir = v.GetString("data.dir")
	}
	if v.IsSet("database.host") {
		cfg.Database.Host = v.GetString("database.host")
	}
	if v.IsSet("database.port") {
		cfg.Database.Port = v.GetInt("database.port")
	}
	if v.IsSet("database.user") {
		cfg.Database.User = v.GetString("database.user")
	}
	if v.IsSet("database.password") {
		cfg.Database.Password = v.GetString("database.password")
	}
	if v.IsSet("database.dbname") {
		cfg.Database.DBName = v.GetString("database.dbname")
	}
	if v.IsSet("database.sslmode") {
		cfg.Database.SSLMode = v.GetString("database.sslmode")
	}

	return cfg, nil
}
