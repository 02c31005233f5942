package config

import (
	"time"
)

const (
	// DefaultDomain is the proxy domain used for synthesized service
	// hostnames when neither the user nor the stack file sets one.
	DefaultDomain = "stackctl.site"

	// DefaultEngine is the container engine used when none is configured.
	DefaultEngine = "docker"

	// DefaultAccountURL is the account API endpoint used to validate
	// access tokens.
	DefaultAccountURL = "https://accounts.stackctl.site/api"
)

// GetDefaultGlobalConfig returns the built-in tool configuration.
// User configuration is layered on top of this.
func GetDefaultGlobalConfig() GlobalConfig {
	return GlobalConfig{
		Engine:   DefaultEngine,
		Domain:   DefaultDomain,
		LogLevel: "info",
		Account: AccountConfig{
			URL:     DefaultAccountURL,
			Timeout: 10 * time.Second,
		},
	}
}
