package checkin

import "errors"

// Expected, user-correctable scan rejections.
var (
	ErrWindowClosed     = errors.New("attendance window closed")
	ErrInvalidCode      = errors.New("invalid admission code")
	ErrAlreadyCheckedIn = errors.New("already checked in today")
)
