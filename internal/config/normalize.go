package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeProvider()
	c.normalizePipeline()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.OutputDir) == "" {
		c.Paths.OutputDir = defaultOutputDir
	}
	if c.Paths.OutputDir, err = expandPath(c.Paths.OutputDir); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeProvider() {
	if c.Provider.APIKey == "" {
		if value, ok := os.LookupEnv("PATINA_API_KEY"); ok {
			c.Provider.APIKey = value
		}
	}
	c.Provider.APIKey = strings.TrimSpace(c.Provider.APIKey)
	c.Provider.BaseURL = strings.TrimSpace(c.Provider.BaseURL)
	if c.Provider.BaseURL == "" {
		c.Provider.BaseURL = defaultProviderBaseURL
	}
	c.Provider.BaseURL = strings.TrimRight(c.Provider.BaseURL, "/")
	if strings.TrimSpace(c.Provider.DetectModel) == "" {
		c.Provider.DetectModel = defaultDetectModel
	}
	if strings.TrimSpace(c.Provider.ImageModel) == "" {
		c.Provider.ImageModel = defaultImageModel
	}
	if strings.TrimSpace(c.Provider.VerifyModel) == "" {
		c.Provider.VerifyModel = defaultVerifyModel
	}
	if c.Provider.DetectTimeout <= 0 {
		c.Provider.DetectTimeout = defaultDetectTimeout
	}
	if c.Provider.OutpaintTimeout <= 0 {
		c.Provider.OutpaintTimeout = defaultOutpaintTimeout
	}
	if c.Provider.RestoreTimeout <= 0 {
		c.Provider.RestoreTimeout = defaultRestoreTimeout
	}
	if c.Provider.VerifyTimeout <= 0 {
		c.Provider.VerifyTimeout = defaultVerifyTimeout
	}
}

func (c *Config) normalizePipeline() {
	if c.Pipeline.Concurrency <= 0 {
		c.Pipeline.Concurrency = defaultConcurrency
	}
	if c.Pipeline.MaxRetries <= 0 {
		c.Pipeline.MaxRetries = defaultMaxRetries
	}
	if c.Pipeline.RetryBaseDelay <= 0 {
		c.Pipeline.RetryBaseDelay = defaultRetryBaseDelay
	}
	if c.Pipeline.RetryMaxDelay <= 0 {
		c.Pipeline.RetryMaxDelay = defaultRetryMaxDelay
	}
	if c.Pipeline.PaddingFraction <= 0 {
		c.Pipeline.PaddingFraction = defaultPaddingFraction
	}
	if c.Pipeline.OutputQuality <= 0 || c.Pipeline.OutputQuality > 100 {
		c.Pipeline.OutputQuality = defaultOutputQuality
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
