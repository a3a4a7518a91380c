// Package config loads function settings from the Lambda environment.
package config

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go/service/kms/kmsiface"
	"github.com/spf13/viper"

	"github.com/bionicotaku/photoapp-users/cognito"
	"github.com/bionicotaku/photoapp-users/jwtx"
)

const (
	RegionKey              = "region"
	PoolIDKey              = "pool_id"
	ClientIDKey            = "client_id"
	ClientSecretKey        = "client_secret"
	SecretsKMSEncryptedKey = "secrets_kms_encrypted"
	JWKSHTTPTimeoutKey     = "jwks.http_timeout"
	JWKSCacheTTLKey        = "jwks.cache_ttl"
	DevBypassKey           = "auth.dev_bypass"
	InlineVerificationKey  = "auth.inline_verification"
	LogLevelKey            = "log.level"
)

// Config holds the settings shared by all functions.
type Config struct {
	Region              string
	PoolID              string
	ClientID            string
	ClientSecret        string
	SecretsKMSEncrypted bool

	JWKSHTTPTimeout         time.Duration
	JWKSCacheTTL            time.Duration
	DevBypass               bool
	InlineTokenVerification bool

	LogLevel string
}

// Load reads the configuration from environment variables.
func Load() (*Config, error) {
	return LoadFrom(viper.New())
}

// LoadFrom reads the configuration through v, binding the environment
// variable names used by the deployment templates.
func LoadFrom(v *viper.Viper) (*Config, error) {
	bindings := map[string][]string{
		RegionKey:              {"AWS_REGION", "AWS_DEFAULT_REGION"},
		PoolIDKey:              {"MY_COGNITO_POOL_ID", "PHOTO_APP_USERS_POOL_ID"},
		ClientIDKey:            {"MY_COGNITO_POOL_APP_CLIENT_ID"},
		ClientSecretKey:        {"MY_COGNITO_POOL_APP_CLIENT_SECRET"},
		SecretsKMSEncryptedKey: {"SECRETS_KMS_ENCRYPTED"},
		JWKSHTTPTimeoutKey:     {"JWKS_HTTP_TIMEOUT"},
		JWKSCacheTTLKey:        {"JWKS_CACHE_TTL"},
		DevBypassKey:           {"AUTH_DEV_BYPASS"},
		InlineVerificationKey:  {"INLINE_TOKEN_VERIFICATION"},
		LogLevelKey:            {"LOG_LEVEL"},
	}
	for key, envs := range bindings {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return nil, fmt.Errorf("bind %s: %w", key, err)
		}
	}

	v.SetDefault(JWKSHTTPTimeoutKey, 5*time.Second)
	v.SetDefault(JWKSCacheTTLKey, time.Hour)
	v.SetDefault(LogLevelKey, "info")

	cfg := &Config{
		Region:                  v.GetString(RegionKey),
		PoolID:                  v.GetString(PoolIDKey),
		ClientID:                v.GetString(ClientIDKey),
		ClientSecret:            v.GetString(ClientSecretKey),
		SecretsKMSEncrypted:     v.GetBool(SecretsKMSEncryptedKey),
		JWKSHTTPTimeout:         v.GetDuration(JWKSHTTPTimeoutKey),
		JWKSCacheTTL:            v.GetDuration(JWKSCacheTTLKey),
		DevBypass:               v.GetBool(DevBypassKey),
		InlineTokenVerification: v.GetBool(InlineVerificationKey),
		LogLevel:                v.GetString(LogLevelKey),
	}
	if cfg.Region == "" {
		return nil, errors.New("AWS_REGION is required")
	}
	return cfg, nil
}

// RequireClientCredentials fails when the app client is not configured.
func (c *Config) RequireClientCredentials() error {
	if err := c.RequireClientID(); err != nil {
		return err
	}
	if c.ClientSecret == "" {
		return errors.New("MY_COGNITO_POOL_APP_CLIENT_SECRET is required")
	}
	return nil
}

// RequireClientID fails when the app client id is not configured.
func (c *Config) RequireClientID() error {
	if c.ClientID == "" {
		return errors.New("MY_COGNITO_POOL_APP_CLIENT_ID is required")
	}
	return nil
}

// RequirePool fails when the user pool id is not configured.
func (c *Config) RequirePool() error {
	if c.PoolID == "" {
		return errors.New("MY_COGNITO_POOL_ID is required")
	}
	return nil
}

// DecryptSecrets replaces the client secret with its KMS plaintext when
// secrets are stored encrypted.
func (c *Config) DecryptSecrets(ctx context.Context, api kmsiface.KMSAPI) error {
	if !c.SecretsKMSEncrypted || c.ClientSecret == "" {
		return nil
	}
	secret, err := cognito.DecryptSecret(ctx, api, c.ClientSecret)
	if err != nil {
		return fmt.Errorf("decrypt client secret: %w", err)
	}
	c.ClientSecret = secret
	return nil
}

// ClientCredentials returns the app client credentials.
func (c *Config) ClientCredentials() cognito.ClientCredentials {
	return cognito.ClientCredentials{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
	}
}

// Issuer returns the token issuer of the configured pool.
func (c *Config) Issuer() string {
	return jwtx.IssuerURL(c.Region, c.PoolID)
}

// VerifierConfig returns the key fetching settings.
func (c *Config) VerifierConfig() jwtx.VerifierConfig {
	return jwtx.VerifierConfig{
		KeySetTTL:   c.JWKSCacheTTL,
		HTTPTimeout: c.JWKSHTTPTimeout,
	}
}
