// Command authorizer is the API Gateway REQUEST authorizer for the user
// endpoints. It allows a call when the bearer id token belongs to the
// path userName.
package main

import (
	"github.com/aws/aws-lambda-go/lambda"

	"github.com/bionicotaku/photoapp-users/handler"
	"github.com/bionicotaku/photoapp-users/internal/bootstrap"
)

func main() {
	env := bootstrap.MustLoad(bootstrap.NeedPool, bootstrap.NeedClientID)
	lambda.Start(handler.NewAuthorizer(env.Authenticator()).Handle)
}
