package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateProvider(); err != nil {
		return err
	}
	if err := c.validatePipeline(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateProvider() error {
	if c.Provider.APIKey == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/patina/config.toml"
		}
		return fmt.Errorf("provider.api_key is required. Set PATINA_API_KEY env var or edit %s (create with 'patina config init')", defaultPath)
	}
	if c.Provider.BaseURL == "" {
		return errors.New("provider.base_url must be set")
	}
	return nil
}

func (c *Config) validatePipeline() error {
	if c.Pipeline.Concurrency < 1 || c.Pipeline.Concurrency > 16 {
		return errors.New("pipeline.concurrency must be between 1 and 16")
	}
	if c.Pipeline.MaxRetries < 1 || c.Pipeline.MaxRetries > 10 {
		return errors.New("pipeline.max_retries must be between 1 and 10")
	}
	if c.Pipeline.RetryMaxDelay < c.Pipeline.RetryBaseDelay {
		return errors.New("pipeline.retry_max_delay must be at least retry_base_delay")
	}
	if c.Pipeline.PaddingFraction < 0 || c.Pipeline.PaddingFraction > 0.5 {
		return errors.New("pipeline.padding_fraction must be between 0 and 0.5")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	return nil
}
