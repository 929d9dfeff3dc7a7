package httpresponse

import (
	"fmt"

	log "github.com/sirupsen/logrus"
)

// APIError is the JSON error envelope returned by all handlers.
type APIError struct {
	ErrorMessage string `json:"error"`
}

func Error(message string) *APIError {
	log.Error(message)
	return &APIError{ErrorMessage: message}
}

func Errorf(format string, a ...interface{}) *APIError {
	return Error(fmt.Sprintf(format, a...))
}
