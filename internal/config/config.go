// Package config binds the gateway's CLI flags, environment variables,
// and optional .env file into viper, following the teacher's
// internal/config/config.go pattern.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// findEnvFile 向上递归查找 .env 文件
func findEnvFile() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		envFile := filepath.Join(dir, ".env")
		if _, err := os.Stat(envFile); err == nil {
			return envFile
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// 已到达根目录
			break
		}
		dir = parent
	}
	return ""
}

// Init loads an optional .env file and binds WEBHOOKGW_-prefixed
// environment variables into viper. Unlike the teacher, this gateway has
// no YAML application config of its own — the forwarding rules live in
// the Config Store document, whose path is itself just one bound flag.
func Init() {
	if err := godotenv.Load(); err != nil {
		if envFile := findEnvFile(); envFile != "" {
			if err := godotenv.Load(envFile); err == nil {
				fmt.Fprintf(os.Stderr, "Loaded .env file from: %s\n", envFile)
			} else {
				fmt.Fprintf(os.Stderr, "Warning: error loading .env file from %s: %v\n", envFile, err)
			}
		}
	}

	viper.SetEnvPrefix("WEBHOOKGW")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
}

// Settings holds the resolved runtime configuration for the gateway
// process, bound from flags/env by cmd/webhookgw.
type Settings struct {
	Host       string
	Port       int
	ConfigPath string
	LogLevel   string
}

// Defaults matches webhook_server.py's command-line argument defaults.
func Defaults() Settings {
	return Settings{
		Host:       "0.0.0.0",
		Port:       8080,
		ConfigPath: "config/webhook_config.json",
		LogLevel:   "INFO",
	}
}

// Addr formats the listen address for http.Server.
func (s Settings) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}
