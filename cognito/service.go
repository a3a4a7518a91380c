// Package cognito wraps the user pool API calls used by the photo app.
package cognito

import (
	"context"
	"fmt"
	"net/http"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/cognitoidentityprovider"
	"github.com/aws/aws-sdk-go/service/cognitoidentityprovider/cognitoidentityprovideriface"
	"github.com/google/uuid"
)

const (
	attrEmail  = "email"
	attrName   = "name"
	attrUserID = "custom:userId"

	authParamUsername     = "USERNAME"
	authParamPassword     = "PASSWORD"
	authParamSecretHash   = "SECRET_HASH"
	authParamRefreshToken = "REFRESH_TOKEN"
)

// NewUser is the sign up payload.
type NewUser struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

// ClientCredentials identifies the app client calls are made for.
type ClientCredentials struct {
	ClientID     string
	ClientSecret string
}

func (c ClientCredentials) secretHash(username string) string {
	return SecretHash(c.ClientID, c.ClientSecret, username)
}

// CallResult reports the HTTP outcome of a user pool call.
type CallResult struct {
	IsSuccessful bool `json:"isSuccessful"`
	StatusCode   int  `json:"statusCode"`
}

// CreateUserResult is returned by CreateUser.
type CreateUserResult struct {
	CallResult
	CognitoUserID string `json:"cognitoUserId"`
	IsConfirmed   bool   `json:"isConfirmed"`
}

// LoginResult carries the tokens issued by a successful authentication.
type LoginResult struct {
	CallResult
	IDToken      string `json:"idToken"`
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken,omitempty"`
	ExpiresIn    int64  `json:"expiresIn,omitempty"`
}

// GetUserResult is returned by GetUser.
type GetUserResult struct {
	CallResult
	User map[string]string `json:"user"`
}

// UserService performs account operations against a user pool.
type UserService struct {
	api   cognitoidentityprovideriface.CognitoIdentityProviderAPI
	newID func() string
}

// NewUserService wraps an existing user pool client.
func NewUserService(api cognitoidentityprovideriface.CognitoIdentityProviderAPI) *UserService {
	return &UserService{api: api, newID: uuid.NewString}
}

// NewUserServiceForRegion builds a service backed by the default credential chain.
func NewUserServiceForRegion(region string) (*UserService, error) {
	sess, err := NewSession(region)
	if err != nil {
		return nil, err
	}
	return NewUserService(cognitoidentityprovider.New(sess)), nil
}

// NewSession creates an AWS session for region.
func NewSession(region string) (*session.Session, error) {
	sess, err := session.NewSession(&aws.Config{
		Region: aws.String(region),
	})
	if err != nil {
		return nil, fmt.Errorf("aws session: %w", err)
	}
	return sess, nil
}

// CreateUser signs a new user up with email as the username.
func (s *UserService) CreateUser(ctx context.Context, creds ClientCredentials, user NewUser) (*CreateUserResult, error) {
	var status int
	out, err := s.api.SignUpWithContext(ctx, &cognitoidentityprovider.SignUpInput{
		ClientId:   aws.String(creds.ClientID),
		SecretHash: aws.String(creds.secretHash(user.Email)),
		Username:   aws.String(user.Email),
		Password:   aws.String(user.Password),
		UserAttributes: []*cognitoidentityprovider.AttributeType{
			attribute(attrEmail, user.Email),
			attribute(attrName, user.FirstName+" "+user.LastName),
			attribute(attrUserID, s.newID()),
		},
	}, captureStatus(&status))
	if err != nil {
		return nil, wrapError("SignUp", err)
	}
	return &CreateUserResult{
		CallResult:    callResult(status),
		CognitoUserID: aws.StringValue(out.UserSub),
		IsConfirmed:   aws.BoolValue(out.UserConfirmed),
	}, nil
}

// ConfirmSignUp confirms a registration with the code sent to the user.
func (s *UserService) ConfirmSignUp(ctx context.Context, creds ClientCredentials, email, code string) (*CallResult, error) {
	var status int
	_, err := s.api.ConfirmSignUpWithContext(ctx, &cognitoidentityprovider.ConfirmSignUpInput{
		ClientId:         aws.String(creds.ClientID),
		SecretHash:       aws.String(creds.secretHash(email)),
		Username:         aws.String(email),
		ConfirmationCode: aws.String(code),
	}, captureStatus(&status))
	if err != nil {
		return nil, wrapError("ConfirmSignUp", err)
	}
	result := callResult(status)
	return &result, nil
}

// Login authenticates with username and password.
func (s *UserService) Login(ctx context.Context, creds ClientCredentials, email, password string) (*LoginResult, error) {
	return s.initiateAuth(ctx, creds, cognitoidentityprovider.AuthFlowTypeUserPasswordAuth, map[string]*string{
		authParamUsername:   aws.String(email),
		authParamPassword:   aws.String(password),
		authParamSecretHash: aws.String(creds.secretHash(email)),
	})
}

// Refresh exchanges a refresh token for new id and access tokens. The
// returned result carries the refresh token that was passed in.
func (s *UserService) Refresh(ctx context.Context, creds ClientCredentials, username, refreshToken string) (*LoginResult, error) {
	result, err := s.initiateAuth(ctx, creds, cognitoidentityprovider.AuthFlowTypeRefreshTokenAuth, map[string]*string{
		authParamRefreshToken: aws.String(refreshToken),
		authParamSecretHash:   aws.String(creds.secretHash(username)),
	})
	if err != nil {
		return nil, err
	}
	if result.RefreshToken == "" {
		result.RefreshToken = refreshToken
	}
	return result, nil
}

func (s *UserService) initiateAuth(ctx context.Context, creds ClientCredentials, flow string, params map[string]*string) (*LoginResult, error) {
	var status int
	out, err := s.api.InitiateAuthWithContext(ctx, &cognitoidentityprovider.InitiateAuthInput{
		AuthFlow:       aws.String(flow),
		ClientId:       aws.String(creds.ClientID),
		AuthParameters: params,
	}, captureStatus(&status))
	if err != nil {
		return nil, wrapError("InitiateAuth", err)
	}
	auth := out.AuthenticationResult
	if auth == nil {
		return nil, &ServiceError{
			Op:         "InitiateAuth",
			StatusCode: http.StatusUnauthorized,
			Code:       "ChallengeRequired",
			Message:    fmt.Sprintf("authentication requires challenge %q", aws.StringValue(out.ChallengeName)),
		}
	}
	return &LoginResult{
		CallResult:   callResult(status),
		IDToken:      aws.StringValue(auth.IdToken),
		AccessToken:  aws.StringValue(auth.AccessToken),
		RefreshToken: aws.StringValue(auth.RefreshToken),
		ExpiresIn:    aws.Int64Value(auth.ExpiresIn),
	}, nil
}

// AddUserToGroup adds username to group as an administrator.
func (s *UserService) AddUserToGroup(ctx context.Context, poolID, group, username string) (*CallResult, error) {
	var status int
	_, err := s.api.AdminAddUserToGroupWithContext(ctx, &cognitoidentityprovider.AdminAddUserToGroupInput{
		UserPoolId: aws.String(poolID),
		GroupName:  aws.String(group),
		Username:   aws.String(username),
	}, captureStatus(&status))
	if err != nil {
		return nil, wrapError("AdminAddUserToGroup", err)
	}
	result := callResult(status)
	return &result, nil
}

// GetUser returns the attributes of the user owning accessToken.
func (s *UserService) GetUser(ctx context.Context, accessToken string) (*GetUserResult, error) {
	var status int
	out, err := s.api.GetUserWithContext(ctx, &cognitoidentityprovider.GetUserInput{
		AccessToken: aws.String(accessToken),
	}, captureStatus(&status))
	if err != nil {
		return nil, wrapError("GetUser", err)
	}
	return &GetUserResult{
		CallResult: callResult(status),
		User:       attributeMap(out.UserAttributes),
	}, nil
}

// GetUserByUsername returns the attributes of username as an administrator.
func (s *UserService) GetUserByUsername(ctx context.Context, poolID, username string) (map[string]string, error) {
	var status int
	out, err := s.api.AdminGetUserWithContext(ctx, &cognitoidentityprovider.AdminGetUserInput{
		UserPoolId: aws.String(poolID),
		Username:   aws.String(username),
	}, captureStatus(&status))
	if err != nil {
		return nil, wrapError("AdminGetUser", err)
	}
	if result := callResult(status); !result.IsSuccessful {
		return nil, &ServiceError{
			Op:         "AdminGetUser",
			StatusCode: result.StatusCode,
			Message:    fmt.Sprintf("unsuccessful result, status code %d", result.StatusCode),
		}
	}
	return attributeMap(out.UserAttributes), nil
}

func attribute(name, value string) *cognitoidentityprovider.AttributeType {
	return &cognitoidentityprovider.AttributeType{
		Name:  aws.String(name),
		Value: aws.String(value),
	}
}

func attributeMap(attrs []*cognitoidentityprovider.AttributeType) map[string]string {
	out := make(map[string]string, len(attrs))
	for _, a := range attrs {
		if a == nil {
			continue
		}
		out[aws.StringValue(a.Name)] = aws.StringValue(a.Value)
	}
	return out
}

// captureStatus records the HTTP status code of the completed request.
func captureStatus(status *int) request.Option {
	return func(r *request.Request) {
		r.Handlers.Complete.PushBack(func(r *request.Request) {
			if r.HTTPResponse != nil {
				*status = r.HTTPResponse.StatusCode
			}
		})
	}
}

// callResult reports a call that returned no error. Fakes never set a
// status, so zero reads as 200.
func callResult(status int) CallResult {
	if status == 0 {
		status = http.StatusOK
	}
	return CallResult{
		IsSuccessful: status >= 200 && status < 300,
		StatusCode:   status,
	}
}
