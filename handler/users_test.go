package handler

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bionicotaku/photoapp-users/cognito"
)

type fakeUserService struct {
	err error

	created   cognito.NewUser
	creds     cognito.ClientCredentials
	confirmed [2]string
	loggedIn  [2]string
	grouped   [3]string
	token     string
	looked    [2]string
	calls     int
}

func (f *fakeUserService) CreateUser(_ context.Context, creds cognito.ClientCredentials, user cognito.NewUser) (*cognito.CreateUserResult, error) {
	f.calls++
	f.creds, f.created = creds, user
	if f.err != nil {
		return nil, f.err
	}
	return &cognito.CreateUserResult{
		CallResult:    cognito.CallResult{IsSuccessful: true, StatusCode: 200},
		CognitoUserID: "sub-1",
	}, nil
}

func (f *fakeUserService) ConfirmSignUp(_ context.Context, creds cognito.ClientCredentials, email, code string) (*cognito.CallResult, error) {
	f.calls++
	f.creds, f.confirmed = creds, [2]string{email, code}
	if f.err != nil {
		return nil, f.err
	}
	return &cognito.CallResult{IsSuccessful: true, StatusCode: 200}, nil
}

func (f *fakeUserService) Login(_ context.Context, creds cognito.ClientCredentials, email, password string) (*cognito.LoginResult, error) {
	f.calls++
	f.creds, f.loggedIn = creds, [2]string{email, password}
	if f.err != nil {
		return nil, f.err
	}
	return &cognito.LoginResult{
		CallResult:  cognito.CallResult{IsSuccessful: true, StatusCode: 200},
		IDToken:     "id-token",
		AccessToken: "access-token",
	}, nil
}

func (f *fakeUserService) AddUserToGroup(_ context.Context, poolID, group, username string) (*cognito.CallResult, error) {
	f.calls++
	f.grouped = [3]string{poolID, group, username}
	if f.err != nil {
		return nil, f.err
	}
	return &cognito.CallResult{IsSuccessful: true, StatusCode: 200}, nil
}

func (f *fakeUserService) GetUser(_ context.Context, accessToken string) (*cognito.GetUserResult, error) {
	f.calls++
	f.token = accessToken
	if f.err != nil {
		return nil, f.err
	}
	return &cognito.GetUserResult{
		CallResult: cognito.CallResult{IsSuccessful: true, StatusCode: 200},
		User:       map[string]string{"email": "jane@example.com"},
	}, nil
}

func (f *fakeUserService) GetUserByUsername(_ context.Context, poolID, username string) (map[string]string, error) {
	f.calls++
	f.looked = [2]string{poolID, username}
	if f.err != nil {
		return nil, f.err
	}
	return map[string]string{"sub": "sub-1", "email": username}, nil
}

var testCreds = cognito.ClientCredentials{ClientID: "client", ClientSecret: "secret"}

func newTestUsers() (*Users, *fakeUserService) {
	svc := &fakeUserService{}
	return NewUsers(svc, testCreds, "us-east-1_pool"), svc
}

func decodeResponse(t *testing.T, resp events.APIGatewayProxyResponse) map[string]interface{} {
	t.Helper()
	assert.Equal(t, "application/json", resp.Headers["Content-Type"])
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(resp.Body), &out))
	return out
}

func TestCreateUser(t *testing.T) {
	users, svc := newTestUsers()
	resp, err := users.CreateUser(context.Background(), events.APIGatewayProxyRequest{
		Body: `{"email":"jane@example.com","password":"Secret123!","firstName":"Jane","lastName":"Doe"}`,
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeResponse(t, resp)
	assert.Equal(t, true, body["isSuccessful"])
	assert.Equal(t, "sub-1", body["cognitoUserId"])
	assert.Equal(t, testCreds, svc.creds)
	assert.Equal(t, cognito.NewUser{Email: "jane@example.com", Password: "Secret123!", FirstName: "Jane", LastName: "Doe"}, svc.created)
}

func TestCreateUserBase64Body(t *testing.T) {
	users, svc := newTestUsers()
	raw := `{"email":"jane@example.com","password":"p","firstName":"Jane","lastName":"Doe"}`
	resp, err := users.CreateUser(context.Background(), events.APIGatewayProxyRequest{
		Body:            base64.StdEncoding.EncodeToString([]byte(raw)),
		IsBase64Encoded: true,
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "jane@example.com", svc.created.Email)
}

func TestCreateUserBadInput(t *testing.T) {
	cases := map[string]string{
		"empty":          "",
		"malformed json": `{"email":`,
		"missing fields": `{"email":"jane@example.com"}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			users, svc := newTestUsers()
			resp, err := users.CreateUser(context.Background(), events.APIGatewayProxyRequest{Body: body})
			require.NoError(t, err)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.NotEmpty(t, decodeResponse(t, resp)["message"])
			assert.Zero(t, svc.calls)
		})
	}
}

func TestMissingFieldsAreNamed(t *testing.T) {
	users, _ := newTestUsers()
	resp, err := users.CreateUser(context.Background(), events.APIGatewayProxyRequest{Body: `{"email":"jane@example.com"}`})
	require.NoError(t, err)
	assert.Equal(t, "missing required fields: password, firstName, lastName", decodeResponse(t, resp)["message"])
}

func TestServiceErrorStatus(t *testing.T) {
	users, svc := newTestUsers()
	svc.err = &cognito.ServiceError{Op: "SignUp", StatusCode: http.StatusConflict, Code: "UsernameExistsException", Message: "User already exists"}

	resp, err := users.CreateUser(context.Background(), events.APIGatewayProxyRequest{
		Body: `{"email":"jane@example.com","password":"p","firstName":"Jane","lastName":"Doe"}`,
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "User already exists", decodeResponse(t, resp)["message"])
}

func TestConfirmUser(t *testing.T) {
	users, svc := newTestUsers()
	resp, err := users.ConfirmUser(context.Background(), events.APIGatewayProxyRequest{
		Body: `{"email":"jane@example.com","code":"123456"}`,
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, [2]string{"jane@example.com", "123456"}, svc.confirmed)
	assert.Equal(t, true, decodeResponse(t, resp)["isSuccessful"])
}

func TestLoginUser(t *testing.T) {
	users, svc := newTestUsers()
	resp, err := users.LoginUser(context.Background(), events.APIGatewayProxyRequest{
		Body: `{"email":"jane@example.com","password":"Secret123!"}`,
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, [2]string{"jane@example.com", "Secret123!"}, svc.loggedIn)

	body := decodeResponse(t, resp)
	assert.Equal(t, "id-token", body["idToken"])
	assert.Equal(t, "access-token", body["accessToken"])
}

func TestLoginUserRejected(t *testing.T) {
	users, svc := newTestUsers()
	svc.err = &cognito.ServiceError{Op: "InitiateAuth", StatusCode: http.StatusBadRequest, Code: "NotAuthorizedException", Message: "Incorrect username or password."}

	resp, err := users.LoginUser(context.Background(), events.APIGatewayProxyRequest{
		Body: `{"email":"jane@example.com","password":"wrong"}`,
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Incorrect username or password.", decodeResponse(t, resp)["message"])
}

func TestAddUserToGroup(t *testing.T) {
	users, svc := newTestUsers()
	resp, err := users.AddUserToGroup(context.Background(), events.APIGatewayProxyRequest{
		PathParameters: map[string]string{"userName": "jane@example.com"},
		Body:           `{"group":"photographers"}`,
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, [3]string{"us-east-1_pool", "photographers", "jane@example.com"}, svc.grouped)
	assert.Equal(t, true, decodeResponse(t, resp)["isSuccessful"])
}

func TestAddUserToGroupAlwaysResponds(t *testing.T) {
	cases := map[string]struct {
		req    events.APIGatewayProxyRequest
		err    error
		status int
	}{
		"missing user": {
			req:    events.APIGatewayProxyRequest{Body: `{"group":"photographers"}`},
			status: http.StatusBadRequest,
		},
		"missing group": {
			req:    events.APIGatewayProxyRequest{PathParameters: map[string]string{"userName": "jane"}, Body: `{}`},
			status: http.StatusBadRequest,
		},
		"service failure": {
			req:    events.APIGatewayProxyRequest{PathParameters: map[string]string{"userName": "jane"}, Body: `{"group":"admins"}`},
			err:    &cognito.ServiceError{Op: "AdminAddUserToGroup", StatusCode: http.StatusNotFound, Code: "ResourceNotFoundException", Message: "Group not found."},
			status: http.StatusNotFound,
		},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			users, svc := newTestUsers()
			svc.err = tc.err
			resp, err := users.AddUserToGroup(context.Background(), tc.req)
			require.NoError(t, err)
			assert.Equal(t, tc.status, resp.StatusCode)
			assert.NotEmpty(t, resp.Body)
		})
	}
}

func TestGetUser(t *testing.T) {
	users, svc := newTestUsers()
	resp, err := users.GetUser(context.Background(), events.APIGatewayProxyRequest{
		Headers: map[string]string{"accesstoken": "Bearer access-token"},
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "access-token", svc.token)

	body := decodeResponse(t, resp)
	assert.Equal(t, map[string]interface{}{"email": "jane@example.com"}, body["user"])
}

func TestGetUserMissingHeader(t *testing.T) {
	users, svc := newTestUsers()
	resp, err := users.GetUser(context.Background(), events.APIGatewayProxyRequest{})
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Zero(t, svc.calls)
}

func TestGetUserByUsername(t *testing.T) {
	users, svc := newTestUsers()
	resp, err := users.GetUserByUsername(context.Background(), events.APIGatewayProxyRequest{
		PathParameters: map[string]string{"userName": "jane@example.com"},
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, [2]string{"us-east-1_pool", "jane@example.com"}, svc.looked)
	assert.Equal(t, "sub-1", decodeResponse(t, resp)["sub"])
}

func TestGetUserByUsernameUnknownError(t *testing.T) {
	users, svc := newTestUsers()
	svc.err = assert.AnError

	resp, err := users.GetUserByUsername(context.Background(), events.APIGatewayProxyRequest{
		PathParameters: map[string]string{"userName": "jane"},
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestBearerToken(t *testing.T) {
	assert.Equal(t, "abc", bearerToken("Bearer abc"))
	assert.Equal(t, "abc", bearerToken("bearer  abc "))
	assert.Equal(t, "abc", bearerToken("abc"))
	assert.Equal(t, "", bearerToken("  "))
}
