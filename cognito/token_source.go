package cognito

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/oauth2"
)

// IDTokenKey is the oauth2.Token extra field holding the id token.
const IDTokenKey = "id_token"

// Authenticator is the subset of UserService a TokenSource needs.
type Authenticator interface {
	Login(ctx context.Context, creds ClientCredentials, email, password string) (*LoginResult, error)
	Refresh(ctx context.Context, creds ClientCredentials, username, refreshToken string) (*LoginResult, error)
}

// UserCredentials identifies the user a TokenSource signs in as.
type UserCredentials struct {
	Client   ClientCredentials
	Email    string
	Password string
}

// tokenSource logs a user in once and then refreshes with the refresh
// token, falling back to a full login when the refresh is rejected.
type tokenSource struct {
	ctx   context.Context
	auth  Authenticator
	creds UserCredentials
	now   func() time.Time

	mu           sync.Mutex
	refreshToken string
}

// NewTokenSource returns a caching oauth2.TokenSource for the user. The
// access token is the token's AccessToken; the id token is available via IDToken.
func NewTokenSource(ctx context.Context, auth Authenticator, creds UserCredentials) (oauth2.TokenSource, error) {
	if creds.Email == "" || creds.Password == "" {
		return nil, errors.New("email and password are required")
	}
	if creds.Client.ClientID == "" {
		return nil, errors.New("client id is required")
	}
	ts := &tokenSource{
		ctx:   persistentContext(ctx),
		auth:  auth,
		creds: creds,
		now:   time.Now,
	}
	return oauth2.ReuseTokenSource(nil, ts), nil
}

// Token implements oauth2.TokenSource.
func (s *tokenSource) Token() (*oauth2.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.refreshToken != "" {
		result, err := s.auth.Refresh(s.ctx, s.creds.Client, s.creds.Email, s.refreshToken)
		if err == nil {
			return s.toToken(result)
		}
		s.refreshToken = ""
	}

	result, err := s.auth.Login(s.ctx, s.creds.Client, s.creds.Email, s.creds.Password)
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	return s.toToken(result)
}

func (s *tokenSource) toToken(result *LoginResult) (*oauth2.Token, error) {
	if result.AccessToken == "" && result.IDToken == "" {
		return nil, errors.New("empty tokens returned")
	}
	if result.RefreshToken != "" {
		s.refreshToken = result.RefreshToken
	}
	tok := &oauth2.Token{
		AccessToken:  result.AccessToken,
		TokenType:    "Bearer",
		RefreshToken: result.RefreshToken,
	}
	if result.ExpiresIn > 0 {
		tok.Expiry = s.now().Add(time.Duration(result.ExpiresIn) * time.Second)
	}
	return tok.WithExtra(map[string]interface{}{IDTokenKey: result.IDToken}), nil
}

// IDToken extracts the id token from a token produced by NewTokenSource.
func IDToken(tok *oauth2.Token) string {
	if tok == nil {
		return ""
	}
	s, _ := tok.Extra(IDTokenKey).(string)
	return s
}

// persistentContext keeps request values but drops cancellation, so a
// refresh triggered later does not inherit a finished caller's deadline.
func persistentContext(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	if _, ok := ctx.(*detachedContext); ok {
		return ctx
	}
	return &detachedContext{parent: ctx}
}

type detachedContext struct {
	parent context.Context
}

func (d *detachedContext) Deadline() (time.Time, bool) {
	return time.Time{}, false
}

func (d *detachedContext) Done() <-chan struct{} {
	return nil
}

func (d *detachedContext) Err() error {
	return nil
}

func (d *detachedContext) Value(key any) any {
	if d.parent == nil {
		return nil
	}
	return d.parent.Value(key)
}
