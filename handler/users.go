package handler

import (
	"context"
	"net/http"

	"github.com/aws/aws-lambda-go/events"
	"github.com/rs/zerolog"

	"github.com/bionicotaku/photoapp-users/cognito"
	"github.com/bionicotaku/photoapp-users/logging"
)

const (
	pathUserName      = "userName"
	headerAccessToken = "AccessToken"
)

// UserService is the user pool API the handlers call.
type UserService interface {
	CreateUser(ctx context.Context, creds cognito.ClientCredentials, user cognito.NewUser) (*cognito.CreateUserResult, error)
	ConfirmSignUp(ctx context.Context, creds cognito.ClientCredentials, email, code string) (*cognito.CallResult, error)
	Login(ctx context.Context, creds cognito.ClientCredentials, email, password string) (*cognito.LoginResult, error)
	AddUserToGroup(ctx context.Context, poolID, group, username string) (*cognito.CallResult, error)
	GetUser(ctx context.Context, accessToken string) (*cognito.GetUserResult, error)
	GetUserByUsername(ctx context.Context, poolID, username string) (map[string]string, error)
}

// Users serves the account endpoints of the photo app.
type Users struct {
	svc    UserService
	creds  cognito.ClientCredentials
	poolID string
}

// NewUsers builds the account handlers.
func NewUsers(svc UserService, creds cognito.ClientCredentials, poolID string) *Users {
	return &Users{svc: svc, creds: creds, poolID: poolID}
}

type confirmRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type groupRequest struct {
	Group string `json:"group"`
}

// CreateUser handles POST /users.
func (u *Users) CreateUser(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	ctx = logging.WithRequest(ctx, map[string]interface{}{"op": "create_user"})

	var body cognito.NewUser
	if err := decodeBody(req, &body); err != nil {
		return Error(ctx, err), nil
	}
	if err := requireFields(
		[2]string{"email", body.Email},
		[2]string{"password", body.Password},
		[2]string{"firstName", body.FirstName},
		[2]string{"lastName", body.LastName},
	); err != nil {
		return Error(ctx, err), nil
	}

	result, err := u.svc.CreateUser(ctx, u.creds, body)
	if err != nil {
		return Error(ctx, err), nil
	}
	zerolog.Ctx(ctx).Info().Str("user_sub", result.CognitoUserID).Bool("confirmed", result.IsConfirmed).Msg("user created")
	return JSON(http.StatusOK, result), nil
}

// ConfirmUser handles POST /confirm.
func (u *Users) ConfirmUser(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	ctx = logging.WithRequest(ctx, map[string]interface{}{"op": "confirm_user"})

	var body confirmRequest
	if err := decodeBody(req, &body); err != nil {
		return Error(ctx, err), nil
	}
	if err := requireFields([2]string{"email", body.Email}, [2]string{"code", body.Code}); err != nil {
		return Error(ctx, err), nil
	}

	result, err := u.svc.ConfirmSignUp(ctx, u.creds, body.Email, body.Code)
	if err != nil {
		return Error(ctx, err), nil
	}
	return JSON(http.StatusOK, result), nil
}

// LoginUser handles POST /login.
func (u *Users) LoginUser(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	ctx = logging.WithRequest(ctx, map[string]interface{}{"op": "login_user"})

	var body loginRequest
	if err := decodeBody(req, &body); err != nil {
		return Error(ctx, err), nil
	}
	if err := requireFields([2]string{"email", body.Email}, [2]string{"password", body.Password}); err != nil {
		return Error(ctx, err), nil
	}

	result, err := u.svc.Login(ctx, u.creds, body.Email, body.Password)
	if err != nil {
		return Error(ctx, err), nil
	}
	return JSON(http.StatusOK, result), nil
}

// AddUserToGroup handles POST /users/{userName}/group.
func (u *Users) AddUserToGroup(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	userName := req.PathParameters[pathUserName]
	ctx = logging.WithRequest(ctx, map[string]interface{}{"op": "add_user_to_group", "user": userName})

	var body groupRequest
	if err := decodeBody(req, &body); err != nil {
		return Error(ctx, err), nil
	}
	if err := requireFields([2]string{pathUserName, userName}, [2]string{"group", body.Group}); err != nil {
		return Error(ctx, err), nil
	}
	zerolog.Ctx(ctx).Info().Str("group", body.Group).Msg("adding user to group")

	result, err := u.svc.AddUserToGroup(ctx, u.poolID, body.Group, userName)
	if err != nil {
		return Error(ctx, err), nil
	}
	return JSON(http.StatusOK, result), nil
}

// GetUser handles GET /users/me using the caller's access token.
func (u *Users) GetUser(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	ctx = logging.WithRequest(ctx, map[string]interface{}{"op": "get_user"})

	accessToken := bearerToken(header(req.Headers, headerAccessToken))
	if accessToken == "" {
		return Error(ctx, badRequest("%s header is required", headerAccessToken)), nil
	}

	result, err := u.svc.GetUser(ctx, accessToken)
	if err != nil {
		return Error(ctx, err), nil
	}
	return JSON(http.StatusOK, result), nil
}

// GetUserByUsername handles GET /users/{userName}.
func (u *Users) GetUserByUsername(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	userName := req.PathParameters[pathUserName]
	ctx = logging.WithRequest(ctx, map[string]interface{}{"op": "get_user_by_username", "user": userName})

	if userName == "" {
		return Error(ctx, badRequest("%s path parameter is required", pathUserName)), nil
	}

	attrs, err := u.svc.GetUserByUsername(ctx, u.poolID, userName)
	if err != nil {
		return Error(ctx, err), nil
	}
	return JSON(http.StatusOK, attrs), nil
}
