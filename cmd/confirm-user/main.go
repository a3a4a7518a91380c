// Command confirm-user confirms a sign up with the emailed code.
package main

import (
	"github.com/aws/aws-lambda-go/lambda"

	"github.com/bionicotaku/photoapp-users/internal/bootstrap"
)

func main() {
	env := bootstrap.MustLoad(bootstrap.NeedClientCredentials)
	lambda.Start(env.Users().ConfirmUser)
}
