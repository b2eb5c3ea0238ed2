package account

import (
	"context"

	"github.com/rs/zerolog"
)

// Notifier delivers the verification token to the user out of band.
type Notifier interface {
	SendVerification(ctx context.Context, email, verificationToken string) error
}

// LogNotifier records that a verification message would be sent. The token itself is not
// logged.
type LogNotifier struct {
	Log zerolog.Logger
}

func (n LogNotifier) SendVerification(_ context.Context, email, _ string) error {
	n.Log.Info().Str("email", email).Msg("verification email queued")
	return nil
}
