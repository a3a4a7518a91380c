// Command cognito-validate verifies a user pool id token from the command
// line, signing in first when no token is given.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/bionicotaku/photoapp-users/cognito"
	"github.com/bionicotaku/photoapp-users/jwtx"
)

var envNames = map[string]string{
	"region":        "COGNITO_REGION",
	"pool-id":       "COGNITO_POOL_ID",
	"client-id":     "COGNITO_CLIENT_ID",
	"client-secret": "COGNITO_CLIENT_SECRET",
	"email":         "COGNITO_EMAIL",
	"password":      "COGNITO_PASSWORD",
	"token":         "COGNITO_ID_TOKEN",
	"subject":       "COGNITO_SUBJECT",
}

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	envPath := defaultEnvPath()
	if err := loadEnvFile(envPath); err != nil {
		log.Warn().Err(err).Str("path", envPath).Msg("load env file")
	}

	values := make(map[string]*string, len(envNames))
	for name, env := range envNames {
		values[name] = flag.String(name, os.Getenv(env), fmt.Sprintf("(env %s)", env))
	}
	timeout := flag.Duration("timeout", 5*time.Second, "HTTP timeout for the JWKS fetch")
	envFileFlag := flag.String("env", envPath, "Optional path to .env file (default .env)")
	flag.Parse()

	if *envFileFlag != "" && *envFileFlag != envPath {
		if err := loadEnvFile(*envFileFlag); err != nil {
			log.Warn().Err(err).Str("path", *envFileFlag).Msg("load env file")
		}
		reloadDefaults(values)
	}

	region, poolID, clientID := *values["region"], *values["pool-id"], *values["client-id"]
	if region == "" || poolID == "" || clientID == "" {
		flag.Usage()
		log.Fatal().Msg("region, pool-id, and client-id are required")
	}
	if *values["subject"] == "" {
		flag.Usage()
		log.Fatal().Msg("subject is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*(*timeout))
	defer cancel()

	token := *values["token"]
	if token == "" {
		var err error
		token, err = signIn(ctx, region, cognito.UserCredentials{
			Client:   cognito.ClientCredentials{ClientID: clientID, ClientSecret: *values["client-secret"]},
			Email:    *values["email"],
			Password: *values["password"],
		})
		if err != nil {
			log.Fatal().Err(err).Msg("sign in failed")
		}
		log.Info().Msg("acquired fresh id token via sign in")
	}

	issuer := jwtx.IssuerURL(region, poolID)
	verifier := jwtx.NewVerifier(jwtx.VerifierConfig{HTTPTimeout: *timeout})
	if err := verifier.Warmup(ctx, issuer); err != nil {
		log.Warn().Err(err).Msg("warmup")
	}

	claims, err := verifier.Verify(ctx, token, jwtx.Expected{
		Subject:  *values["subject"],
		Audience: clientID,
		Issuer:   issuer,
		TokenUse: jwtx.TokenUseID,
	})
	if err != nil {
		log.Fatal().Err(err).Str("code", string(jwtx.CodeOf(err))).Msg("verification failed")
	}

	printClaims(claims)
}

func signIn(ctx context.Context, region string, creds cognito.UserCredentials) (string, error) {
	svc, err := cognito.NewUserServiceForRegion(region)
	if err != nil {
		return "", err
	}
	ts, err := cognito.NewTokenSource(ctx, svc, creds)
	if err != nil {
		return "", err
	}
	tok, err := ts.Token()
	if err != nil {
		return "", err
	}
	idToken := cognito.IDToken(tok)
	if idToken == "" {
		return "", fmt.Errorf("sign in returned no id token")
	}
	return idToken, nil
}

func defaultEnvPath() string {
	if path := os.Getenv("COGNITO_ENV_FILE"); path != "" {
		return path
	}
	return ".env"
}

func reloadDefaults(values map[string]*string) {
	for name, v := range values {
		if v != nil && *v == "" {
			*v = os.Getenv(envNames[name])
		}
	}
}

func printClaims(claims *jwtx.Claims) {
	fmt.Println("== Cognito ID Token Verified ==")
	fmt.Printf("subject      : %s\n", claims.Subject)
	fmt.Printf("username     : %s\n", claims.Username)
	fmt.Printf("email        : %s\n", claims.Email)
	fmt.Printf("issuer       : %s\n", claims.Issuer)
	fmt.Printf("audience     : %s\n", strings.Join(claims.Audience, ", "))
	fmt.Printf("token_use    : %s\n", claims.TokenUse)
	if !claims.ExpiresAt.IsZero() {
		fmt.Printf("expires_at   : %s\n", claims.ExpiresAt.Format(time.RFC3339))
	}
	if len(claims.Groups) > 0 {
		fmt.Printf("groups       : %s\n", strings.Join(claims.Groups, ", "))
	}
	if len(claims.Custom) > 0 {
		fmt.Println("custom_claims:")
		keys := make([]string, 0, len(claims.Custom))
		for k := range claims.Custom {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Printf("  %s: %s\n", k, claims.Custom[k])
		}
	}
}

func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimPrefix(line, "export ")
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			log.Warn().Int("line", lineNum).Str("file", filepath.Base(path)).Msg("invalid env line")
			continue
		}
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		if _, present := os.LookupEnv(key); present {
			continue
		}
		if err := os.Setenv(key, strings.Trim(strings.TrimSpace(value), `"'`)); err != nil {
			return fmt.Errorf("set %s: %w", key, err)
		}
	}
	return scanner.Err()
}
