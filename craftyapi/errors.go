package craftyapi

import "fmt"

// AuthError indicates a failed login or a login response without a token.
type AuthError struct {
	Status  int
	Message string
}

func (e *AuthError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("crafty login failed: status %d: %s", e.Status, e.Message)
	}
	return "crafty login failed: " + e.Message
}

// APIError indicates the API returned >= 400 after any permitted retry.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("crafty api: HTTP %d: %s", e.Status, e.Body)
}

// TransportError indicates a connection failure or request timeout. The
// client never retries these; callers decide whether to try again later.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return "crafty unreachable: " + e.Err.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
