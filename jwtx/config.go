package jwtx

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const (
	defaultKeySetTTL   = time.Hour
	defaultHTTPTimeout = 5 * time.Second

	jwksPath = "/.well-known/jwks.json"
)

// VerifierConfig controls how signing keys are fetched and cached.
type VerifierConfig struct {
	// KeySetTTL bounds how long a fetched key set is served before the
	// next lookup refetches it.
	KeySetTTL time.Duration
	// HTTPTimeout caps a single key set fetch.
	HTTPTimeout time.Duration
	// HTTPClient overrides the client used for key set fetches.
	HTTPClient *http.Client
	// JWKSURL maps an issuer to its key set endpoint. Defaults to
	// "<issuer>/.well-known/jwks.json".
	JWKSURL func(issuer string) string
	// Now overrides the clock used for expiry checks.
	Now func() time.Time
}

// normalize sets default values for optional fields.
func (c *VerifierConfig) normalize() {
	if c.KeySetTTL <= 0 {
		c.KeySetTTL = defaultKeySetTTL
	}
	if c.HTTPTimeout <= 0 {
		c.HTTPTimeout = defaultHTTPTimeout
	}
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{
			Timeout: c.HTTPTimeout,
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
			},
		}
	}
	if c.JWKSURL == nil {
		c.JWKSURL = DefaultJWKSURL
	}
	if c.Now == nil {
		c.Now = time.Now
	}
}

// validate ensures the expectations of a single call are usable.
func (e Expected) validate() error {
	switch {
	case e.Issuer == "":
		return errors.New("expected issuer is required")
	case e.Audience == "":
		return errors.New("expected audience is required")
	case e.Subject == "":
		return errors.New("expected subject is required")
	case e.TokenUse == "":
		return errors.New("expected token use is required")
	}
	return nil
}

// IssuerURL returns the issuer claim value of a user pool.
func IssuerURL(region, poolID string) string {
	return fmt.Sprintf("https://cognito-idp.%s.amazonaws.com/%s", region, poolID)
}

// DefaultJWKSURL returns the well-known key set endpoint of an issuer.
func DefaultJWKSURL(issuer string) string {
	return strings.TrimRight(issuer, "/") + jwksPath
}
