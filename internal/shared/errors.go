package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrForbidden indicates the actor does not manage the target invoicer.
	ErrForbidden = errors.New("forbidden")
	// ErrUnauthorized indicates a missing or invalid API key.
	ErrUnauthorized = errors.New("unauthorized")
)

// UserSafeMessage returns an error message suitable for API consumers.
func UserSafeMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return "resource not found"
	case errors.Is(err, ErrForbidden):
		return "you do not manage this invoicer"
	case errors.Is(err, ErrUnauthorized):
		return "authentication required"
	default:
		return err.Error()
	}
}
