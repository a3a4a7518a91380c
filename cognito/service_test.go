package cognito

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/cognitoidentityprovider"
	"github.com/aws/aws-sdk-go/service/cognitoidentityprovider/cognitoidentityprovideriface"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeUserPool struct {
	cognitoidentityprovideriface.CognitoIdentityProviderAPI

	signUp      *cognitoidentityprovider.SignUpInput
	confirm     *cognitoidentityprovider.ConfirmSignUpInput
	initiate    []*cognitoidentityprovider.InitiateAuthInput
	addToGroup  *cognitoidentityprovider.AdminAddUserToGroupInput
	getUser     *cognitoidentityprovider.GetUserInput
	adminGet    *cognitoidentityprovider.AdminGetUserInput
	authResult  *cognitoidentityprovider.AuthenticationResultType
	challenge   string
	attributes  []*cognitoidentityprovider.AttributeType
	err         error
	refreshErr  error
	initiateErr error
}

func (f *fakeUserPool) SignUpWithContext(_ aws.Context, in *cognitoidentityprovider.SignUpInput, _ ...request.Option) (*cognitoidentityprovider.SignUpOutput, error) {
	f.signUp = in
	if f.err != nil {
		return nil, f.err
	}
	return &cognitoidentityprovider.SignUpOutput{
		UserSub:       aws.String("sub-123"),
		UserConfirmed: aws.Bool(false),
	}, nil
}

func (f *fakeUserPool) ConfirmSignUpWithContext(_ aws.Context, in *cognitoidentityprovider.ConfirmSignUpInput, _ ...request.Option) (*cognitoidentityprovider.ConfirmSignUpOutput, error) {
	f.confirm = in
	if f.err != nil {
		return nil, f.err
	}
	return &cognitoidentityprovider.ConfirmSignUpOutput{}, nil
}

func (f *fakeUserPool) InitiateAuthWithContext(_ aws.Context, in *cognitoidentityprovider.InitiateAuthInput, _ ...request.Option) (*cognitoidentityprovider.InitiateAuthOutput, error) {
	f.initiate = append(f.initiate, in)
	if aws.StringValue(in.AuthFlow) == cognitoidentityprovider.AuthFlowTypeRefreshTokenAuth && f.refreshErr != nil {
		return nil, f.refreshErr
	}
	if f.initiateErr != nil {
		return nil, f.initiateErr
	}
	if f.challenge != "" {
		return &cognitoidentityprovider.InitiateAuthOutput{ChallengeName: aws.String(f.challenge)}, nil
	}
	return &cognitoidentityprovider.InitiateAuthOutput{AuthenticationResult: f.authResult}, nil
}

func (f *fakeUserPool) AdminAddUserToGroupWithContext(_ aws.Context, in *cognitoidentityprovider.AdminAddUserToGroupInput, _ ...request.Option) (*cognitoidentityprovider.AdminAddUserToGroupOutput, error) {
	f.addToGroup = in
	if f.err != nil {
		return nil, f.err
	}
	return &cognitoidentityprovider.AdminAddUserToGroupOutput{}, nil
}

func (f *fakeUserPool) GetUserWithContext(_ aws.Context, in *cognitoidentityprovider.GetUserInput, _ ...request.Option) (*cognitoidentityprovider.GetUserOutput, error) {
	f.getUser = in
	if f.err != nil {
		return nil, f.err
	}
	return &cognitoidentityprovider.GetUserOutput{UserAttributes: f.attributes}, nil
}

func (f *fakeUserPool) AdminGetUserWithContext(_ aws.Context, in *cognitoidentityprovider.AdminGetUserInput, _ ...request.Option) (*cognitoidentityprovider.AdminGetUserOutput, error) {
	f.adminGet = in
	if f.err != nil {
		return nil, f.err
	}
	return &cognitoidentityprovider.AdminGetUserOutput{UserAttributes: f.attributes}, nil
}

var testCreds = ClientCredentials{ClientID: "client-1", ClientSecret: "s3cret"}

func TestCreateUser(t *testing.T) {
	pool := &fakeUserPool{}
	svc := NewUserService(pool)
	svc.newID = func() string { return "user-id-1" }

	result, err := svc.CreateUser(context.Background(), testCreds, NewUser{
		Email:     "jane@example.com",
		Password:  "Passw0rd!",
		FirstName: "Jane",
		LastName:  "Doe",
	})
	require.NoError(t, err)

	assert.True(t, result.IsSuccessful)
	assert.Equal(t, http.StatusOK, result.StatusCode)
	assert.Equal(t, "sub-123", result.CognitoUserID)
	assert.False(t, result.IsConfirmed)

	require.NotNil(t, pool.signUp)
	assert.Equal(t, "jane@example.com", aws.StringValue(pool.signUp.Username))
	assert.Equal(t, "client-1", aws.StringValue(pool.signUp.ClientId))
	assert.Equal(t, SecretHash("client-1", "s3cret", "jane@example.com"), aws.StringValue(pool.signUp.SecretHash))
	assert.Equal(t, map[string]string{
		"email":         "jane@example.com",
		"name":          "Jane Doe",
		"custom:userId": "user-id-1",
	}, attributeMap(pool.signUp.UserAttributes))
}

func TestConfirmSignUp(t *testing.T) {
	pool := &fakeUserPool{}
	svc := NewUserService(pool)

	result, err := svc.ConfirmSignUp(context.Background(), testCreds, "jane@example.com", "123456")
	require.NoError(t, err)
	assert.True(t, result.IsSuccessful)
	assert.Equal(t, "123456", aws.StringValue(pool.confirm.ConfirmationCode))
	assert.Equal(t, SecretHash("client-1", "s3cret", "jane@example.com"), aws.StringValue(pool.confirm.SecretHash))
}

func TestLogin(t *testing.T) {
	pool := &fakeUserPool{authResult: &cognitoidentityprovider.AuthenticationResultType{
		IdToken:      aws.String("id"),
		AccessToken:  aws.String("access"),
		RefreshToken: aws.String("refresh"),
		ExpiresIn:    aws.Int64(3600),
	}}
	svc := NewUserService(pool)

	result, err := svc.Login(context.Background(), testCreds, "jane@example.com", "pw")
	require.NoError(t, err)
	assert.Equal(t, "id", result.IDToken)
	assert.Equal(t, "access", result.AccessToken)
	assert.Equal(t, "refresh", result.RefreshToken)
	assert.EqualValues(t, 3600, result.ExpiresIn)

	require.Len(t, pool.initiate, 1)
	in := pool.initiate[0]
	assert.Equal(t, cognitoidentityprovider.AuthFlowTypeUserPasswordAuth, aws.StringValue(in.AuthFlow))
	assert.Equal(t, "jane@example.com", aws.StringValue(in.AuthParameters["USERNAME"]))
	assert.Equal(t, "pw", aws.StringValue(in.AuthParameters["PASSWORD"]))
	assert.Equal(t, SecretHash("client-1", "s3cret", "jane@example.com"), aws.StringValue(in.AuthParameters["SECRET_HASH"]))
}

func TestLoginChallenge(t *testing.T) {
	svc := NewUserService(&fakeUserPool{challenge: cognitoidentityprovider.ChallengeNameTypeNewPasswordRequired})

	_, err := svc.Login(context.Background(), testCreds, "jane@example.com", "pw")
	var svcErr *ServiceError
	require.ErrorAs(t, err, &svcErr)
	assert.Equal(t, http.StatusUnauthorized, svcErr.StatusCode)
	assert.Contains(t, svcErr.Message, "NEW_PASSWORD_REQUIRED")
}

func TestRefreshKeepsRefreshToken(t *testing.T) {
	pool := &fakeUserPool{authResult: &cognitoidentityprovider.AuthenticationResultType{
		IdToken:     aws.String("id-2"),
		AccessToken: aws.String("access-2"),
	}}
	svc := NewUserService(pool)

	result, err := svc.Refresh(context.Background(), testCreds, "jane@example.com", "refresh-1")
	require.NoError(t, err)
	assert.Equal(t, "refresh-1", result.RefreshToken)
	assert.Equal(t, "refresh-1", aws.StringValue(pool.initiate[0].AuthParameters["REFRESH_TOKEN"]))
}

func TestAddUserToGroup(t *testing.T) {
	pool := &fakeUserPool{}
	svc := NewUserService(pool)

	result, err := svc.AddUserToGroup(context.Background(), "pool-1", "photographers", "jane@example.com")
	require.NoError(t, err)
	assert.True(t, result.IsSuccessful)
	assert.Equal(t, "pool-1", aws.StringValue(pool.addToGroup.UserPoolId))
	assert.Equal(t, "photographers", aws.StringValue(pool.addToGroup.GroupName))
	assert.Equal(t, "jane@example.com", aws.StringValue(pool.addToGroup.Username))
}

func TestGetUserAndGetUserByUsername(t *testing.T) {
	pool := &fakeUserPool{attributes: []*cognitoidentityprovider.AttributeType{
		attribute("email", "jane@example.com"),
		attribute("custom:userId", "user-id-1"),
		nil,
	}}
	svc := NewUserService(pool)

	result, err := svc.GetUser(context.Background(), "access-token")
	require.NoError(t, err)
	assert.Equal(t, "access-token", aws.StringValue(pool.getUser.AccessToken))
	assert.Equal(t, "user-id-1", result.User["custom:userId"])

	attrs, err := svc.GetUserByUsername(context.Background(), "pool-1", "jane@example.com")
	require.NoError(t, err)
	assert.Equal(t, "pool-1", aws.StringValue(pool.adminGet.UserPoolId))
	assert.Equal(t, map[string]string{"email": "jane@example.com", "custom:userId": "user-id-1"}, attrs)
}

func TestServiceErrors(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{
			name:   "request failure keeps status",
			err:    awserr.NewRequestFailure(awserr.New(cognitoidentityprovider.ErrCodeUsernameExistsException, "User already exists", nil), http.StatusBadRequest, "req-1"),
			status: http.StatusBadRequest,
			code:   cognitoidentityprovider.ErrCodeUsernameExistsException,
		},
		{
			name:   "sdk error without status",
			err:    awserr.New("RequestCanceled", "request context canceled", nil),
			status: http.StatusInternalServerError,
			code:   "RequestCanceled",
		},
		{
			name:   "plain error",
			err:    errors.New("boom"),
			status: http.StatusInternalServerError,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := NewUserService(&fakeUserPool{err: tc.err})
			_, err := svc.CreateUser(context.Background(), testCreds, NewUser{Email: "a@b.c"})

			var svcErr *ServiceError
			require.ErrorAs(t, err, &svcErr)
			assert.Equal(t, "SignUp", svcErr.Op)
			assert.Equal(t, tc.status, svcErr.StatusCode)
			assert.Equal(t, tc.code, svcErr.Code)
			assert.ErrorIs(t, err, tc.err)
		})
	}
}

func TestSecretHash(t *testing.T) {
	// HMAC-SHA256(key="secret", msg="user@example.com"+"client"), base64 std.
	assert.Equal(t, "4zqhOFl0JivfkWh1VINyOJyrDTdsinJktzPUT+t0plg=", SecretHash("client", "secret", "user@example.com"))
	assert.Equal(t, "Ov23iETb5Cwg340kw0nAxlgcRaj0aocveAMBmnrgZIA=", SecretHash("client", "secret", "ab"))
	assert.NotEqual(t, SecretHash("client", "secret", "a"), SecretHash("client", "other", "a"))
}
