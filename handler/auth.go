package handler

import (
	"context"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/rs/zerolog"

	"github.com/bionicotaku/photoapp-users/jwtx"
)

const headerAuthorization = "Authorization"

var errMissingToken = &jwtx.Error{Code: jwtx.ErrCodeMalformedToken, Message: "Missing bearer token"}

// TokenVerifier verifies a compact JWT against expectations.
type TokenVerifier interface {
	Verify(ctx context.Context, token string, want jwtx.Expected) (*jwtx.Claims, error)
}

// Authenticator checks that a request carries an id token issued to the
// principal named in its path.
type Authenticator struct {
	verifier  TokenVerifier
	issuer    string
	clientID  string
	devBypass *jwtx.DevBypassClaims
	now       func() time.Time
}

// AuthOption customizes an Authenticator.
type AuthOption func(*Authenticator)

// WithDevBypass accepts every request with synthetic claims.
func WithDevBypass(claims jwtx.DevBypassClaims) AuthOption {
	return func(a *Authenticator) {
		a.devBypass = &claims
	}
}

// WithClock overrides the clock used for synthetic claims.
func WithClock(now func() time.Time) AuthOption {
	return func(a *Authenticator) {
		a.now = now
	}
}

// NewAuthenticator builds an Authenticator for id tokens issued by issuer to
// the app client clientID.
func NewAuthenticator(verifier TokenVerifier, issuer, clientID string, opts ...AuthOption) *Authenticator {
	a := &Authenticator{
		verifier: verifier,
		issuer:   issuer,
		clientID: clientID,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Authenticator) expected(principal string) jwtx.Expected {
	return jwtx.Expected{
		Subject:  principal,
		Audience: a.clientID,
		Issuer:   a.issuer,
		TokenUse: jwtx.TokenUseID,
	}
}

// Authenticate verifies the bearer token in headers for principal.
func (a *Authenticator) Authenticate(ctx context.Context, headers map[string]string, principal string) (jwtx.CallerClaims, error) {
	want := a.expected(principal)
	if a.devBypass != nil {
		zerolog.Ctx(ctx).Warn().Str("principal", principal).Msg("auth dev bypass enabled")
		return a.devBypass.ToCallerClaims(want, a.now()), nil
	}
	if principal == "" {
		return jwtx.CallerClaims{}, badRequest("%s path parameter is required", pathUserName)
	}
	token := bearerToken(header(headers, headerAuthorization))
	if token == "" {
		return jwtx.CallerClaims{}, errMissingToken
	}
	claims, err := a.verifier.Verify(ctx, token, want)
	if err != nil {
		return jwtx.CallerClaims{}, err
	}
	return jwtx.CallerClaims{Claims: claims}, nil
}

// RequireIDToken wraps next so it only runs for requests whose id token
// belongs to the path userName. Verified claims are bound to the context.
func (a *Authenticator) RequireIDToken(next Func) Func {
	return func(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
		principal := req.PathParameters[pathUserName]
		caller, err := a.Authenticate(ctx, req.Headers, principal)
		if err != nil {
			return Error(ctx, err), nil
		}
		return next(jwtx.BindCallerClaims(ctx, caller), req)
	}
}
