package bot

import "errors"

// UserError carries the text shown to the user together with the internal cause
type UserError struct {
	Err     error
	UserMsg string
}

func (e *UserError) Error() string {
	return e.Err.Error()
}

func (e *UserError) Unwrap() error {
	return e.Err
}

func NewUserError(internalErr error, userMsg string) *UserError {
	return &UserError{
		Err:     internalErr,
		UserMsg: userMsg,
	}
}

// userMessage returns the text to show for err, fallback for internal errors
func userMessage(err error, fallback string) (string, bool) {
	var userErr *UserError
	if errors.As(err, &userErr) {
		return userErr.UserMsg, true
	}
	return fallback, false
}
