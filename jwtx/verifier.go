package jwtx

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jws"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

const (
	claimTokenUse = "token_use"
	claimUsername = "cognito:username"
	claimUserName = "username"
	claimEmail    = "email"
	claimClientID = "client_id"
	claimGroups   = "cognito:groups"
)

// strictEncoding rejects segments whose unused trailing bits are set, so
// every accepted token has exactly one encoding.
var strictEncoding = base64.RawURLEncoding.Strict()

// Verifier verifies user pool tokens against the signing keys of their issuer.
type Verifier struct {
	mu          sync.RWMutex
	directories map[string]KeyDirectory
	cfg         VerifierConfig
}

// NewVerifier builds a verifier. Key directories are created lazily per
// expected issuer unless registered up front.
func NewVerifier(cfg VerifierConfig) *Verifier {
	cfg.normalize()
	return &Verifier{
		directories: make(map[string]KeyDirectory),
		cfg:         cfg,
	}
}

// Register pins the key directory used for issuer.
func (v *Verifier) Register(issuer string, dir KeyDirectory) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.directories[issuer] = dir
}

// Warmup fetches the key set of issuer ahead of the first verification.
func (v *Verifier) Warmup(ctx context.Context, issuer string) error {
	dir := v.directory(issuer)
	refresher, ok := dir.(interface{ Refresh(context.Context) error })
	if !ok {
		return nil
	}
	return refresher.Refresh(ctx)
}

// Verify checks token and returns its claims when signature, expiry,
// issuer, audience, subject and token use all match want. The signature
// is checked before any claim is read.
func (v *Verifier) Verify(ctx context.Context, token string, want Expected) (*Claims, error) {
	if err := want.validate(); err != nil {
		return nil, err
	}

	kid, err := parseCompact(token)
	if err != nil {
		return nil, err
	}

	key, err := v.directory(want.Issuer).Resolve(ctx, kid)
	if err != nil {
		var verr *Error
		if errors.As(err, &verr) {
			return nil, err
		}
		return nil, newError(ErrCodeKeyFetch, err)
	}
	if key.Algorithm != jwa.RS256.String() {
		return nil, newError(ErrCodeUnsupportedAlgorithm, fmt.Errorf("key %q is published for %s", kid, key.Algorithm))
	}

	if _, err := strictEncoding.DecodeString(token[strings.LastIndexByte(token, '.')+1:]); err != nil {
		return nil, newError(ErrCodeInvalidSignature, fmt.Errorf("signature is not canonical base64url: %w", err))
	}
	payload, err := jws.Verify([]byte(token), jws.WithKey(jwa.RS256, key.PublicKey))
	if err != nil {
		return nil, newError(ErrCodeInvalidSignature, err)
	}

	parsed := jwt.New()
	if err := json.Unmarshal(payload, parsed); err != nil {
		return nil, newError(ErrCodeMalformedToken, fmt.Errorf("decode claims: %w", err))
	}

	if err := checkClaims(parsed, want, v.cfg.Now()); err != nil {
		return nil, err
	}
	return extractClaims(parsed), nil
}

func (v *Verifier) directory(issuer string) KeyDirectory {
	v.mu.RLock()
	dir, ok := v.directories[issuer]
	v.mu.RUnlock()
	if ok {
		return dir
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if dir, ok = v.directories[issuer]; ok {
		return dir
	}
	dir = NewJWKSDirectory(v.cfg.JWKSURL(issuer), v.cfg)
	v.directories[issuer] = dir
	return dir
}

// parseCompact validates the token structure and returns the header key id.
func parseCompact(token string) (string, error) {
	if token == "" {
		return "", newError(ErrCodeMalformedToken, errors.New("token is empty"))
	}
	segments := strings.Split(token, ".")
	if len(segments) != 3 {
		return "", newError(ErrCodeMalformedToken, fmt.Errorf("expected 3 segments, got %d", len(segments)))
	}
	for i, seg := range segments {
		if seg == "" {
			return "", newError(ErrCodeMalformedToken, fmt.Errorf("segment %d is empty", i))
		}
		enc := strictEncoding
		if i == 2 {
			// canonical signature encoding is checked after key resolution
			enc = base64.RawURLEncoding
		}
		if _, err := enc.DecodeString(seg); err != nil {
			return "", newError(ErrCodeMalformedToken, fmt.Errorf("segment %d: %w", i, err))
		}
	}

	msg, err := jws.Parse([]byte(token))
	if err != nil {
		return "", newError(ErrCodeMalformedToken, err)
	}
	sigs := msg.Signatures()
	if len(sigs) != 1 {
		return "", newError(ErrCodeMalformedToken, fmt.Errorf("expected 1 signature, got %d", len(sigs)))
	}
	var body map[string]json.RawMessage
	if err := json.Unmarshal(msg.Payload(), &body); err != nil {
		return "", newError(ErrCodeMalformedToken, fmt.Errorf("payload is not a JSON object: %w", err))
	}

	headers := sigs[0].ProtectedHeaders()
	if alg := headers.Algorithm(); alg != jwa.RS256 {
		return "", newError(ErrCodeUnsupportedAlgorithm, fmt.Errorf("alg %q", alg))
	}
	kid := headers.KeyID()
	if kid == "" {
		return "", newError(ErrCodeUnknownSigningKey, errors.New("header has no kid"))
	}
	return kid, nil
}

func checkClaims(token jwt.Token, want Expected, now time.Time) error {
	exp := token.Expiration()
	if exp.IsZero() {
		return newError(ErrCodeTokenExpired, errors.New("exp claim missing"))
	}
	if !now.Before(exp) {
		return newError(ErrCodeTokenExpired, fmt.Errorf("expired at %s", exp.UTC().Format(time.RFC3339)))
	}

	if token.Issuer() != want.Issuer {
		return newError(ErrCodeIssuerMismatch, fmt.Errorf("got %q, want %q", token.Issuer(), want.Issuer))
	}

	audience := audienceOf(token)
	if !contains(audience, want.Audience) {
		return newError(ErrCodeAudienceMismatch, fmt.Errorf("got %v, want %q", audience, want.Audience))
	}

	if token.Subject() != want.Subject {
		return newError(ErrCodeSubjectMismatch, fmt.Errorf("got %q, want %q", token.Subject(), want.Subject))
	}

	use := stringClaim(token.PrivateClaims(), claimTokenUse)
	if use != want.TokenUse {
		return newError(ErrCodeTokenUseMismatch, fmt.Errorf("got %q, want %q", use, want.TokenUse))
	}
	return nil
}

// audienceOf returns aud, or client_id for access tokens which carry no aud.
func audienceOf(token jwt.Token) []string {
	if aud := token.Audience(); len(aud) > 0 {
		return aud
	}
	if clientID := stringClaim(token.PrivateClaims(), claimClientID); clientID != "" {
		return []string{clientID}
	}
	return nil
}

func extractClaims(token jwt.Token) *Claims {
	private := token.PrivateClaims()
	claims := &Claims{
		Subject:   token.Subject(),
		Issuer:    token.Issuer(),
		Audience:  append([]string(nil), audienceOf(token)...),
		TokenUse:  stringClaim(private, claimTokenUse),
		ExpiresAt: token.Expiration(),
		IssuedAt:  token.IssuedAt(),
		Username:  stringClaim(private, claimUsername),
		Email:     stringClaim(private, claimEmail),
		ClientID:  stringClaim(private, claimClientID),
		Groups:    stringsClaim(private, claimGroups),
	}
	if claims.Username == "" {
		claims.Username = stringClaim(private, claimUserName)
	}
	for k, val := range private {
		s, ok := val.(string)
		if !ok {
			continue
		}
		if claims.Custom == nil {
			claims.Custom = make(map[string]string, len(private))
		}
		claims.Custom[k] = s
	}
	return claims
}

func stringClaim(private map[string]interface{}, name string) string {
	s, _ := private[name].(string)
	return s
}

func stringsClaim(private map[string]interface{}, name string) []string {
	switch v := private[name].(type) {
	case []string:
		return append([]string(nil), v...)
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	case string:
		if v != "" {
			return []string{v}
		}
	}
	return nil
}

func contains(values []string, want string) bool {
	for _, v := range values {
		if v == want {
			return true
		}
	}
	return false
}
