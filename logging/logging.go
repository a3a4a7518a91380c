// Package logging configures the zerolog logger shared by the functions.
package logging

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/lambdacontext"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// New builds a JSON logger writing to w at the given level. Unknown levels
// fall back to info.
func New(level string, w io.Writer) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(w).Level(lvl).With().Timestamp().Logger()
}

// Init installs a stdout logger as the global and default context logger.
func Init(level string) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	logger := New(level, os.Stdout)
	log.Logger = logger
	zerolog.DefaultContextLogger = &logger
	return logger
}

// WithRequest attaches a logger tagged with the Lambda request id and the
// given fields to ctx.
func WithRequest(ctx context.Context, fields map[string]interface{}) context.Context {
	builder := zerolog.Ctx(ctx).With()
	if lc, ok := lambdacontext.FromContext(ctx); ok {
		builder = builder.Str("request_id", lc.AwsRequestID)
	}
	if len(fields) > 0 {
		builder = builder.Fields(fields)
	}
	logger := builder.Logger()
	return logger.WithContext(ctx)
}
