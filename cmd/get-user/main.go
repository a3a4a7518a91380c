// Command get-user returns the attributes of the access token's owner.
package main

import (
	"github.com/aws/aws-lambda-go/lambda"

	"github.com/bionicotaku/photoapp-users/internal/bootstrap"
)

func main() {
	env := bootstrap.MustLoad()
	lambda.Start(env.Users().GetUser)
}
