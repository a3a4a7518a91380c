package handler

import (
	"context"
	"errors"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/rs/zerolog"

	"github.com/bionicotaku/photoapp-users/jwtx"
	"github.com/bionicotaku/photoapp-users/logging"
)

const (
	effectAllow = "Allow"
	effectDeny  = "Deny"
)

// ErrKeysUnavailable is returned by the authorizer when signing keys could
// not be fetched. API Gateway answers 500 and the caller may retry.
var ErrKeysUnavailable = errors.New("signing keys unavailable")

// Authorizer decides REQUEST authorizer events with an Authenticator.
type Authorizer struct {
	auth *Authenticator
}

// NewAuthorizer builds an Authorizer.
func NewAuthorizer(auth *Authenticator) *Authorizer {
	return &Authorizer{auth: auth}
}

// Handle returns an Allow policy for the method ARN when the id token in the
// Authorization header belongs to the path userName, and a Deny policy when
// it does not.
func (a *Authorizer) Handle(ctx context.Context, req events.APIGatewayCustomAuthorizerRequestTypeRequest) (events.APIGatewayCustomAuthorizerResponse, error) {
	principal := req.PathParameters[pathUserName]
	ctx = logging.WithRequest(ctx, map[string]interface{}{"op": "authorize", "principal": principal})
	logger := zerolog.Ctx(ctx)

	caller, err := a.auth.Authenticate(ctx, req.Headers, principal)
	if err != nil {
		if jwtx.IsRetryable(err) {
			logger.Error().Err(err).Msg("authorizer could not fetch signing keys")
			return events.APIGatewayCustomAuthorizerResponse{}, ErrKeysUnavailable
		}
		logger.Info().Err(err).Str("code", string(jwtx.CodeOf(err))).Msg("access denied")
		return policy(principal, effectDeny, req.MethodArn, nil), nil
	}

	claims := caller.Claims
	logger.Info().Str("sub", claims.Subject).Bool("dev_bypass", caller.DevBypass).Msg("access allowed")
	if principal == "" {
		principal = claims.Subject
	}
	return policy(principal, effectAllow, req.MethodArn, map[string]interface{}{
		"sub":      claims.Subject,
		"email":    claims.Email,
		"username": claims.Username,
	}), nil
}

func policy(principal, effect, methodArn string, authContext map[string]interface{}) events.APIGatewayCustomAuthorizerResponse {
	if strings.TrimSpace(principal) == "" {
		principal = "anonymous"
	}
	return events.APIGatewayCustomAuthorizerResponse{
		PrincipalID: principal,
		PolicyDocument: events.APIGatewayCustomAuthorizerPolicy{
			Version: "2012-10-17",
			Statement: []events.IAMPolicyStatement{{
				Action:   []string{"execute-api:Invoke"},
				Effect:   effect,
				Resource: []string{methodArn},
			}},
		},
		Context: authContext,
	}
}
