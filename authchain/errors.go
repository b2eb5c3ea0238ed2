package authchain

import "errors"

// Reason identifies the stage at which a credential chain was rejected.
type Reason string

const (
	InvalidOrExpiredAuthToken    Reason = "InvalidOrExpiredAuthToken"
	InvalidOrExpiredSessionToken Reason = "InvalidOrExpiredSessionToken"
	InvalidOrExpiredProjectToken Reason = "InvalidOrExpiredProjectToken"
)

var messages = map[Reason]string{
	InvalidOrExpiredAuthToken:    "invalid or expired auth token",
	InvalidOrExpiredSessionToken: "invalid or expired session token",
	InvalidOrExpiredProjectToken: "invalid or expired project token",
}

// Rejection is the expected, typed outcome of a credential chain that does not authorize the
// request. It never carries token values.
type Rejection struct {
	Reason Reason
}

func (r *Rejection) Error() string {
	if msg, ok := messages[r.Reason]; ok {
		return msg
	}
	return string(r.Reason)
}

func reject(reason Reason) error {
	return &Rejection{Reason: reason}
}

// AsRejection returns the rejection in err's chain, if any.
func AsRejection(err error) (*Rejection, bool) {
	var rejection *Rejection
	if errors.As(err, &rejection) {
		return rejection, true
	}
	return nil, false
}

// IsRejection reports whether err is a credential rejection as opposed to an infrastructure
// failure.
func IsRejection(err error) bool {
	_, ok := AsRejection(err)
	return ok
}

// HasReason reports whether err is a rejection for the given reason.
func HasReason(err error, reason Reason) bool {
	rejection, ok := AsRejection(err)
	return ok && rejection.Reason == reason
}
