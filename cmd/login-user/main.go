// Command login-user exchanges an email and password for user pool tokens.
package main

import (
	"github.com/aws/aws-lambda-go/lambda"

	"github.com/bionicotaku/photoapp-users/internal/bootstrap"
)

func main() {
	env := bootstrap.MustLoad(bootstrap.NeedClientCredentials)
	lambda.Start(env.Users().LoginUser)
}
