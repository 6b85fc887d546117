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

	exportOnce sync.Once
	exportErr  error
)

func MustNew[T any](prefix string) *T {
	conf, err := New[T](prefix)
	if err != nil {
		panic(err)
	}
	return conf
}

// New fills T from the environment under prefix. The env file named by -env,
// or ./.env when present, is exported once per process before the first read.
func New[T any](prefix string) (*T, error) {
	exportOnce.Do(func() {
		exportErr = exportEnvFile(resolveEnvPath())
	})
	if exportErr != nil {
		return nil, exportErr
	}

	var conf T
	if err := envconfig.Process(prefix, &conf); err != nil {
		return nil, fmt.Errorf("process %s config: %w", prefixName(prefix), err)
	}
	return &conf, nil
}

// ReadSection decodes one top-level key of a YAML/JSON/TOML file into out.
// A missing key leaves out untouched.
func ReadSection(path, key string, out any) error {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := v.UnmarshalKey(key, out); err != nil {
		return fmt.Errorf("decode %s.%s: %w", path, key, err)
	}
	return nil
}

func prefixName(prefix string) string {
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

func exportEnvFile(explicit string) error {
	if explicit != "" {
		if err := exportEnvironment(explicit); err != nil {
			return fmt.Errorf("failed to load env file: %w", err)
		}
		return nil
	}
	if err := exportEnvironmentIfExists(".env"); err != nil {
		return fmt.Errorf("failed to load default env file: %w", err)
	}
	return nil
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
		name := strings.ToUpper(k)
		if _, set := os.LookupEnv(name); set {
			continue
		}
		if err := os.Setenv(name, fmt.Sprint(val)); err != nil {
			return err
		}
	}
	return nil
}
