// Package handler adapts API Gateway events to the user pool operations.
package handler

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/rs/zerolog"

	"github.com/bionicotaku/photoapp-users/cognito"
	"github.com/bionicotaku/photoapp-users/jwtx"
)

// Func is the signature of an API Gateway proxy handler.
type Func func(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Message string `json:"message"`
}

// inputError reports a request the client must fix.
type inputError struct {
	msg string
}

func (e *inputError) Error() string {
	return e.msg
}

func badRequest(format string, args ...interface{}) error {
	return &inputError{msg: fmt.Sprintf(format, args...)}
}

// JSON renders body with status.
func JSON(status int, body interface{}) events.APIGatewayProxyResponse {
	payload, err := json.Marshal(body)
	if err != nil {
		status = http.StatusInternalServerError
		payload, _ = json.Marshal(ErrorResponse{Message: "failed to encode response"})
	}
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       string(payload),
	}
}

// Error renders err with the status it maps to and logs it.
func Error(ctx context.Context, err error) events.APIGatewayProxyResponse {
	status, msg := StatusFor(err)
	event := zerolog.Ctx(ctx).Warn()
	if status >= http.StatusInternalServerError {
		event = zerolog.Ctx(ctx).Error()
	}
	event.Err(err).Int("status", status).Msg("request failed")
	return JSON(status, ErrorResponse{Message: msg})
}

// StatusFor maps an error to an HTTP status code and a client message.
func StatusFor(err error) (int, string) {
	var inErr *inputError
	if errors.As(err, &inErr) {
		return http.StatusBadRequest, inErr.msg
	}
	var svcErr *cognito.ServiceError
	if errors.As(err, &svcErr) {
		return svcErr.StatusCode, svcErr.Message
	}
	var verr *jwtx.Error
	if errors.As(err, &verr) {
		if verr.Retryable() {
			return http.StatusServiceUnavailable, verr.Message
		}
		return http.StatusUnauthorized, verr.Message
	}
	return http.StatusInternalServerError, err.Error()
}

// decodeBody unmarshals the request body into v.
func decodeBody(req events.APIGatewayProxyRequest, v interface{}) error {
	body := req.Body
	if req.IsBase64Encoded {
		raw, err := base64.StdEncoding.DecodeString(body)
		if err != nil {
			return badRequest("request body is not valid base64")
		}
		body = string(raw)
	}
	if strings.TrimSpace(body) == "" {
		return badRequest("request body is required")
	}
	if err := json.Unmarshal([]byte(body), v); err != nil {
		return badRequest("request body is not valid JSON: %v", err)
	}
	return nil
}

func requireFields(fields ...[2]string) error {
	var missing []string
	for _, f := range fields {
		if strings.TrimSpace(f[1]) == "" {
			missing = append(missing, f[0])
		}
	}
	if len(missing) > 0 {
		return badRequest("missing required fields: %s", strings.Join(missing, ", "))
	}
	return nil
}

// header looks name up case-insensitively.
func header(headers map[string]string, name string) string {
	if v, ok := headers[name]; ok {
		return v
	}
	for k, v := range headers {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}

// bearerToken strips an optional "Bearer " prefix.
func bearerToken(value string) string {
	value = strings.TrimSpace(value)
	if len(value) > 7 && strings.EqualFold(value[:7], "bearer ") {
		return strings.TrimSpace(value[7:])
	}
	return value
}
