// Package bootstrap wires configuration, logging and AWS clients for the
// Lambda entry points.
package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/cognitoidentityprovider"
	"github.com/aws/aws-sdk-go/service/kms"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/bionicotaku/photoapp-users/cognito"
	"github.com/bionicotaku/photoapp-users/config"
	"github.com/bionicotaku/photoapp-users/handler"
	"github.com/bionicotaku/photoapp-users/jwtx"
	"github.com/bionicotaku/photoapp-users/logging"
)

const warmupTimeout = 3 * time.Second

// Requirement validates a setting a function cannot run without.
type Requirement func(*config.Config) error

// Common requirements.
var (
	NeedClientCredentials Requirement = (*config.Config).RequireClientCredentials
	NeedClientID          Requirement = (*config.Config).RequireClientID
	NeedPool              Requirement = (*config.Config).RequirePool
)

// Environment holds what every function builds at cold start.
type Environment struct {
	Config  *config.Config
	Session *session.Session
	Logger  zerolog.Logger
}

// Load reads the configuration, installs the logger and decrypts secrets.
func Load(ctx context.Context, reqs ...Requirement) (*Environment, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger := logging.Init(cfg.LogLevel)

	for _, req := range reqs {
		if err := req(cfg); err != nil {
			return nil, err
		}
	}

	sess, err := cognito.NewSession(cfg.Region)
	if err != nil {
		return nil, err
	}
	if err := cfg.DecryptSecrets(ctx, kms.New(sess)); err != nil {
		return nil, err
	}
	return &Environment{Config: cfg, Session: sess, Logger: logger}, nil
}

// MustLoad is Load for main packages; it exits on failure.
func MustLoad(reqs ...Requirement) *Environment {
	env, err := Load(context.Background(), reqs...)
	if err != nil {
		log.Fatal().Err(err).Msg("startup failed")
	}
	return env
}

// Users builds the account handlers backed by the user pool.
func (e *Environment) Users() *handler.Users {
	svc := cognito.NewUserService(cognitoidentityprovider.New(e.Session))
	return handler.NewUsers(svc, e.Config.ClientCredentials(), e.Config.PoolID)
}

// Authenticator builds the id token check for the configured pool and
// fetches its signing keys ahead of the first request.
func (e *Environment) Authenticator() *handler.Authenticator {
	issuer := e.Config.Issuer()
	verifier := jwtx.NewVerifier(e.Config.VerifierConfig())

	var opts []handler.AuthOption
	if e.Config.DevBypass {
		e.Logger.Warn().Msg("AUTH_DEV_BYPASS is enabled, tokens are not verified")
		opts = append(opts, handler.WithDevBypass(jwtx.DefaultDevBypassClaims()))
	} else {
		ctx, cancel := context.WithTimeout(context.Background(), warmupTimeout)
		defer cancel()
		if err := verifier.Warmup(ctx, issuer); err != nil {
			e.Logger.Warn().Err(err).Str("issuer", issuer).Msg("signing key warmup failed")
		}
	}
	return handler.NewAuthenticator(verifier, issuer, e.Config.ClientID, opts...)
}
