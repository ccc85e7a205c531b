package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/viper"
)

var (
	envFilePath string
	parseOnce   sync.Once
	exportOnce  sync.Once
	exportErr   error
)

// Validator is implemented by config structs that check themselves after
// envconfig has filled them.
type Validator interface {
	Validate() error
}

func MustNew[T any](prefix string) *T {
	conf, err := New[T](prefix)
	if err != nil {
		panic(err)
	}
	return conf
}

func New[T any](prefix string) (*T, error) {
	if err := loadEnvFile(); err != nil {
		return nil, err
	}

	var conf T
	if err := envconfig.Process(prefix, &conf); err != nil {
		return nil, fmt.Errorf("process %s config: %w", describe(prefix), err)
	}
	if v, ok := any(&conf).(Validator); ok {
		if err := v.Validate(); err != nil {
			return nil, fmt.Errorf("validate %s config: %w", describe(prefix), err)
		}
	}

	return &conf, nil
}

// loadEnvFile exports the -env file (or ./.env when present) once per process.
func loadEnvFile() error {
	exportOnce.Do(func() {
		path := resolveEnvPath()
		if path != "" {
			if err := exportEnvironment(path); err != nil {
				exportErr = fmt.Errorf("failed to load env file: %w", err)
			}
			return
		}
		if err := exportEnvironmentIfExists(".env"); err != nil {
			exportErr = fmt.Errorf("failed to load default env file: %w", err)
		}
	})
	return exportErr
}

func describe(prefix string) string {
	if prefix == "" {
		return "app"
	}
	return strings.ToLower(prefix)
}

func resolveEnvPath() string {
	parseOnce.Do(func() {
		if flag.Lookup("env") == nil {
			flag.StringVar(&envFilePath, "env", "", "path to .env file")
		}
		if !flag.Parsed() {
			flag.Parse()
		}
	})
	return strings.TrimSpace(envFilePath)
}

func exportEnvironmentIfExists(filepath string) error {
	info, err := os.Stat(filepath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	if info.IsDir() {
		return nil
	}
	return exportEnvironment(filepath)
}

// exportEnvironment copies the file's keys into the process environment.
// Variables already set by the deployment win over the file.
func exportEnvironment(filepath string) error {
	v := viper.New()
	v.SetConfigFile(filepath)
	v.SetConfigType("env")
	if err := v.ReadInConfig(); err != nil {
		return err
	}

	for k, val := range v.AllSettings() {
		key := strings.ToUpper(k)
		if _, set := os.LookupEnv(key); set {
			continue
		}
		if err := os.Setenv(key, fmt.Sprint(val)); err != nil {
			return err
		}
	}

	return nil
}
