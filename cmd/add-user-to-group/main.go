// Command add-user-to-group adds the path user to a user pool group.
package main

import (
	"github.com/aws/aws-lambda-go/lambda"

	"github.com/bionicotaku/photoapp-users/internal/bootstrap"
)

func main() {
	env := bootstrap.MustLoad(bootstrap.NeedPool)
	lambda.Start(env.Users().AddUserToGroup)
}
