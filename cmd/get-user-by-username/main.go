// Command get-user-by-username returns the attributes of the path user.
package main

import (
	"github.com/aws/aws-lambda-go/lambda"

	"github.com/bionicotaku/photoapp-users/handler"
	"github.com/bionicotaku/photoapp-users/internal/bootstrap"
)

func main() {
	env := bootstrap.MustLoad(bootstrap.NeedPool)

	var fn handler.Func = env.Users().GetUserByUsername
	if env.Config.InlineTokenVerification {
		if err := env.Config.RequireClientID(); err != nil {
			env.Logger.Fatal().Err(err).Msg("inline token verification needs the app client id")
		}
		fn = env.Authenticator().RequireIDToken(fn)
	}
	lambda.Start(fn)
}
