package jwtx

import "time"

// DevBypassClaims holds attributes used when issuing synthetic claims in dev mode.
type DevBypassClaims struct {
	Subject  string
	Username string
	Email    string
}

// ToCallerClaims converts the dev bypass configuration into caller claims
// shaped like a verified id token for want.
func (d DevBypassClaims) ToCallerClaims(want Expected, now time.Time) CallerClaims {
	subject := d.Subject
	if subject == "" {
		subject = want.Subject
	}
	claims := &Claims{
		Subject:   subject,
		Issuer:    want.Issuer,
		Audience:  []string{want.Audience},
		TokenUse:  want.TokenUse,
		IssuedAt:  now,
		ExpiresAt: now.Add(time.Hour),
		Username:  d.Username,
		Email:     d.Email,
	}
	return CallerClaims{
		Claims:    claims,
		DevBypass: true,
	}
}

// DefaultDevBypassClaims returns a baseline set of claims suitable for local development.
func DefaultDevBypassClaims() DevBypassClaims {
	return DevBypassClaims{
		Username: "dev-bypass",
		Email:    "dev-bypass@photoapp.local",
	}
}
