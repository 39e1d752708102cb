package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// FromEnv returns the default config overridden by INTERCEPT_* environment variables. If
// the .env file is present in the working directory, it's loaded first. Variables that are
// already set in the environment take precedence over the file.
func FromEnv() (*Config, error) {
	if err := loadEnvFile(".env"); err != nil {
		return nil, err
	}

	cfg := Default()
	overrides := []struct {
		key   string
		apply func(string) error
	}{
		{"INTERCEPT_HEADER_SPACE", intVar(&cfg.Decoder.HeaderSpace.Maximal)},
		{"INTERCEPT_READ_BUFFER_SIZE", intVar(&cfg.NET.ReadBufferSize)},
		{"INTERCEPT_READ_TIMEOUT", durationVar(&cfg.NET.ReadTimeout)},
		{"INTERCEPT_SHUTDOWN_TIMEOUT", durationVar(&cfg.NET.ShutdownTimeout)},
		{"INTERCEPT_H2_HEADER_TABLE_SIZE", uint32Var(&cfg.HTTP2.HeaderTableSize)},
		{"INTERCEPT_H2_MAX_FRAME_SIZE", uint32Var(&cfg.HTTP2.MaxFrameSize)},
		{"INTERCEPT_H2_WINDOW_SIZE", uint32Var(&cfg.HTTP2.InitialWindowSize)},
	}

	for _, o := range overrides {
		value, found := os.LookupEnv(o.key)
		if !found || len(value) == 0 {
			continue
		}

		if err := o.apply(value); err != nil {
			return nil, fmt.Errorf("%s: %w", o.key, err)
		}
	}

	return cfg, nil
}

func loadEnvFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return godotenv.Load(path)
	}

	return nil
}

func intVar(dst *int) func(string) error {
	return func(value string) error {
		n, err := strconv.Atoi(value)
		if err != nil {
			return err
		}

		*dst = n
		return nil
	}
}

func uint32Var(dst *uint32) func(string) error {
	return func(value string) error {
		n, err := strconv.ParseUint(value, 10, 32)
		if err != nil {
			return err
		}

		*dst = uint32(n)
		return nil
	}
}

func durationVar(dst *time.Duration) func(string) error {
	return func(value string) error {
		d, err := time.ParseDuration(value)
		if err != nil {
			return err
		}

		*dst = d
		return nil
	}
}
