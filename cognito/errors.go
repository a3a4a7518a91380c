package cognito

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/aws/aws-sdk-go/aws/awserr"
)

// ServiceError describes a failed user pool call.
type ServiceError struct {
	Op         string
	StatusCode int
	Code       string
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *ServiceError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Code, e.Message)
}

// Unwrap returns the underlying SDK error.
func (e *ServiceError) Unwrap() error {
	return e.Err
}

func wrapError(op string, err error) error {
	if err == nil {
		return nil
	}
	var reqErr awserr.RequestFailure
	if errors.As(err, &reqErr) {
		status := reqErr.StatusCode()
		if status == 0 {
			status = http.StatusInternalServerError
		}
		return &ServiceError{
			Op:         op,
			StatusCode: status,
			Code:       reqErr.Code(),
			Message:    reqErr.Message(),
			Err:        err,
		}
	}
	var aerr awserr.Error
	if errors.As(err, &aerr) {
		return &ServiceError{
			Op:         op,
			StatusCode: http.StatusInternalServerError,
			Code:       aerr.Code(),
			Message:    aerr.Message(),
			Err:        err,
		}
	}
	return &ServiceError{
		Op:         op,
		StatusCode: http.StatusInternalServerError,
		Message:    err.Error(),
		Err:        err,
	}
}
