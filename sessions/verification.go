package sessions

import (
	"context"

	apperrors "github.com/jrsteele09/codeassist-auth/internal/errors"
	"github.com/jrsteele09/codeassist-auth/token"
	"github.com/pkg/errors"
)

// CreateVerificationToken issues a single-use email verification token for the user.
func (m *Manager) CreateVerificationToken(ctx context.Context, userID string) (string, error) {
	if userID == "" {
		return "", errors.Wrap(apperrors.ErrInvalidInput, "[Manager.CreateVerificationToken] empty user id")
	}
	verificationToken := token.NewValue()
	if err := m.registry.Set(ctx, token.NamespaceEmailVerification, verificationToken, token.VerificationPayload{UserID: userID}, true); err != nil {
		return "", errors.Wrap(err, "[Manager.CreateVerificationToken]")
	}
	return verificationToken, nil
}

// ConsumeVerificationToken resolves the token to its user and deletes it. The lookup and the
// delete are separate store calls; two racing consumers of the same token may both succeed.
func (m *Manager) ConsumeVerificationToken(ctx context.Context, verificationToken string) (string, error) {
	var payload token.VerificationPayload
	found, err := m.registry.Get(ctx, token.NamespaceEmailVerification, verificationToken, &payload)
	if err != nil {
		return "", errors.Wrap(err, "[Manager.ConsumeVerificationToken]")
	}
	if !found || payload.UserID == "" {
		return "", apperrors.ErrInvalidVerificationToken
	}
	if err := m.registry.Delete(ctx, token.NamespaceEmailVerification, verificationToken); err != nil {
		return "", errors.Wrap(err, "[Manager.ConsumeVerificationToken]")
	}
	return payload.UserID, nil
}
