// Command create-user signs a new photo app user up.
package main

import (
	"github.com/aws/aws-lambda-go/lambda"

	"github.com/bionicotaku/photoapp-users/internal/bootstrap"
)

func main() {
	env := bootstrap.MustLoad(bootstrap.NeedClientCredentials)
	lambda.Start(env.Users().CreateUser)
}
