package jwtx

import "time"

// Token use values issued by the user pool.
const (
	TokenUseID     = "id"
	TokenUseAccess = "access"
)

// Claims represents the verified contents of a user pool token.
type Claims struct {
	Subject   string
	Issuer    string
	Audience  []string
	TokenUse  string
	ExpiresAt time.Time
	IssuedAt  time.Time

	Username string
	Email    string
	ClientID string
	Groups   []string

	// Custom holds every string-valued claim outside the registered set,
	// keyed by claim name (e.g. "custom:userId").
	Custom map[string]string
}

// Expected lists the values a token must carry to be accepted.
type Expected struct {
	Subject  string
	Audience string
	Issuer   string
	TokenUse string
}
