package token

import "time"

// Namespace is a disjoint key space in the store, one per token kind.
type Namespace string

const (
	NamespaceAuth              Namespace = "auth_token"
	NamespaceSession           Namespace = "session_token"
	NamespaceProject           Namespace = "project_token"
	NamespaceEmailVerification Namespace = "email_verification"
)

const (
	emailVerificationTTL = 24 * time.Hour
	fallbackTTL          = time.Hour
)

// Policy is the expiration behaviour of a namespace.
type Policy struct {
	TTL            time.Duration // default time-to-live, zero when HasTTL is false
	RenewsOnAccess bool          // a successful Get resets the TTL to its default
	HasTTL         bool          // false means entries live until explicitly deleted
}

// Key returns the store key for a token in this namespace.
func (ns Namespace) Key(token string) string {
	return string(ns) + ":" + token
}

// Pattern matches every key of this namespace.
func (ns Namespace) Pattern() string {
	return string(ns) + ":*"
}

func (ns Namespace) String() string {
	return string(ns)
}
