package config

const (
	defaultDataDir   = "~/.local/share/patina/data"
	defaultLogDir    = "~/.local/share/patina/logs"
	defaultOutputDir = "~/patina/restored"

	defaultProviderBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	defaultDetectModel     = "gemini-3-flash"
	defaultImageModel      = "gemini-3-pro-image-preview"
	defaultVerifyModel     = "gemini-3-flash"

	defaultDetectTimeout   = 30
	defaultOutpaintTimeout = 120
	defaultRestoreTimeout  = 120
	defaultVerifyTimeout   = 30

	defaultConcurrency     = 2
	defaultMaxRetries      = 3
	defaultRetryBaseDelay  = 1
	defaultRetryMaxDelay   = 10
	defaultPaddingFraction = 0.02
	defaultOutputQuality   = 90

	defaultLogFormat = "console"
	defaultLogLevel  = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:   defaultDataDir,
			LogDir:    defaultLogDir,
			OutputDir: defaultOutputDir,
		},
		Provider: Provider{
			BaseURL:         defaultProviderBaseURL,
			DetectModel:     defaultDetectModel,
			ImageModel:      defaultImageModel,
			VerifyModel:     defaultVerifyModel,
			DetectTimeout:   defaultDetectTimeout,
			OutpaintTimeout: defaultOutpaintTimeout,
			RestoreTimeout:  defaultRestoreTimeout,
			VerifyTimeout:   defaultVerifyTimeout,
		},
		Pipeline: Pipeline{
			Concurrency:        defaultConcurrency,
			MaxRetries:         defaultMaxRetries,
			RetryBaseDelay:     defaultRetryBaseDelay,
			RetryMaxDelay:      defaultRetryMaxDelay,
			EnableOutpaint:     true,
			EnableVerification: true,
			PaddingFraction:    defaultPaddingFraction,
			OutputQuality:      defaultOutputQuality,
			TrimDarkEdges:      true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
