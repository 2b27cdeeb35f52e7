package linear

import (
	"errors"
	"fmt"
	"strings"
)

// AuthError indicates that authentication has failed or expired.
// It is returned when the API responds 401/403 or with a GraphQL error
// that reports an authorization failure.
type AuthError struct {
	Message string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth error: %s", e.Message)
}

// CommunicationError indicates a transport-level failure: a timeout,
// a connection error, or an unreadable response.
type CommunicationError struct {
	Err error
}

func (e *CommunicationError) Error() string {
	return fmt.Sprintf("communication error: %v", e.Err)
}

func (e *CommunicationError) Unwrap() error {
	return e.Err
}

// APIError carries the messages of a GraphQL error response that is
// neither an auth nor a communication failure.
type APIError struct {
	Messages []string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("GraphQL errors: %s", strings.Join(e.Messages, ", "))
}

// IsAuthError reports whether err (or any error in its chain) is an AuthError.
func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}

// IsCommunicationError reports whether err (or any error in its chain)
// is a CommunicationError.
func IsCommunicationError(err error) bool {
	var commErr *CommunicationError
	return errors.As(err, &commErr)
}
