package services

import (
	"signal-trader/database"
)

// CredentialSource resolves Alpaca API credentials. Keys saved through
// the settings page are stored in the database and take precedence over
// the environment-provided fallbacks.
type CredentialSource struct {
	storage   *database.LocalStorage
	envKey    string
	envSecret string
}

// NewCredentialSource creates a credential source with environment
// fallbacks
func NewCredentialSource(storage *database.LocalStorage, envKey, envSecret string) *CredentialSource {
	return &CredentialSource{
		storage:   storage,
		envKey:    envKey,
		envSecret: envSecret,
	}
}

// AlpacaKeys returns the current API key pair
func (cs *CredentialSource) AlpacaKeys() (string, string) {
	config, err := cs.storage.GetTradingConfig()
	if err == nil && config != nil && config.AlpacaAPIKey != "" && config.AlpacaSecretKey != "" {
		return config.AlpacaAPIKey, config.AlpacaSecretKey
	}
	return cs.envKey, cs.envSecret
}
