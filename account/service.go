// Package account implements the user facing flows that create and destroy tokens: signup,
// email verification, login and logout.
package account

import (
	"context"
	"time"

	apperrors "github.com/jrsteele09/codeassist-auth/internal/errors"
	"github.com/jrsteele09/codeassist-auth/sessions"
	"github.com/jrsteele09/codeassist-auth/users"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Service coordinates the user directory with the session manager.
type Service struct {
	users    users.Repo
	sessions *sessions.Manager
	notifier Notifier
	log      zerolog.Logger
	nowTime  func() time.Time
}

// ServiceOption defines a function type to modify the Service instance.
type ServiceOption func(*Service)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) ServiceOption {
	return func(s *Service) {
		s.nowTime = nowFunc
	}
}

func WithNotifier(notifier Notifier) ServiceOption {
	return func(s *Service) {
		s.notifier = notifier
	}
}

func WithLogger(logger zerolog.Logger) ServiceOption {
	return func(s *Service) {
		s.log = logger
	}
}

func NewService(userRepo users.Repo, manager *sessions.Manager, options ...ServiceOption) (*Service, error) {
	if userRepo == nil {
		return nil, errors.New("[NewService] user repo is required")
	}
	if manager == nil {
		return nil, errors.New("[NewService] session manager is required")
	}

	s := &Service{
		users:    userRepo,
		sessions: manager,
		log:      zerolog.Nop(),
		nowTime:  time.Now,
	}
	for _, opt := range options {
		opt(s)
	}
	if s.notifier == nil {
		s.notifier = LogNotifier{Log: s.log}
	}
	return s, nil
}

// Signup registers an unverified user and issues the email verification token, which is
// returned as well as handed to the notifier.
func (s *Service) Signup(ctx context.Context, email, password string) (*users.User, string, error) {
	email = users.NormaliseEmail(email)
	if email == "" {
		return nil, "", errors.Wrap(apperrors.ErrInvalidInput, "[Service.Signup] email is required")
	}
	if err := users.ValidatePasswordStrength(password); err != nil {
		return nil, "", errors.Wrapf(apperrors.ErrInvalidInput, "[Service.Signup] %v", err)
	}

	hash, err := users.HashPassword(password)
	if err != nil {
		return nil, "", errors.Wrap(err, "[Service.Signup] hash password")
	}
	user := &users.User{
		Email:        email,
		PasswordHash: hash,
		DateJoined:   s.nowTime(),
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, "", errors.Wrap(err, "[Service.Signup] create user")
	}

	verificationToken, err := s.sessions.CreateVerificationToken(ctx, user.ID)
	if err != nil {
		return nil, "", errors.Wrap(err, "[Service.Signup]")
	}
	if err := s.notifier.SendVerification(ctx, email, verificationToken); err != nil {
		s.log.Error().Err(err).Str("user_id", user.ID).Msg("failed to send verification")
	}
	return user, verificationToken, nil
}

// ResendVerification issues a fresh verification token for an unverified user.
func (s *Service) ResendVerification(ctx context.Context, email string) (string, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return "", errors.Wrap(err, "[Service.ResendVerification]")
	}
	if user.Verified {
		return "", errors.Wrap(apperrors.ErrInvalidInput, "[Service.ResendVerification] already verified")
	}
	verificationToken, err := s.sessions.CreateVerificationToken(ctx, user.ID)
	if err != nil {
		return "", errors.Wrap(err, "[Service.ResendVerification]")
	}
	if err := s.notifier.SendVerification(ctx, user.Email, verificationToken); err != nil {
		s.log.Error().Err(err).Str("user_id", user.ID).Msg("failed to send verification")
	}
	return verificationToken, nil
}

// VerifyEmail consumes a verification token and marks its user verified.
func (s *Service) VerifyEmail(ctx context.Context, verificationToken string) (*users.User, error) {
	userID, err := s.sessions.ConsumeVerificationToken(ctx, verificationToken)
	if err != nil {
		return nil, errors.Wrap(err, "[Service.VerifyEmail]")
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "[Service.VerifyEmail]")
	}
	user.Verified = true
	if err := s.users.Update(ctx, user); err != nil {
		return nil, errors.Wrap(err, "[Service.VerifyEmail] update user")
	}
	return user, nil
}

// Login checks the credentials and issues a new auth token. Unknown emails and wrong
// passwords are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, email, password string) (string, *users.User, error) {
	user, err := s.users.GetByEmail(ctx, email)
	switch {
	case errors.Is(err, apperrors.ErrUserNotFound):
		return "", nil, apperrors.ErrInvalidCredentials
	case err != nil:
		return "", nil, errors.Wrap(err, "[Service.Login] GetByEmail")
	}

	if !user.CheckPassword(password) {
		return "", nil, apperrors.ErrInvalidCredentials
	}
	if user.Blocked {
		return "", nil, apperrors.ErrUserBlocked
	}
	if !user.Verified {
		return "", nil, apperrors.ErrUserNotVerified
	}

	authToken, err := s.sessions.CreateAuthToken(ctx, user.ID)
	if err != nil {
		return "", nil, errors.Wrap(err, "[Service.Login]")
	}

	user.LastLogin = s.nowTime()
	if err := s.users.Update(ctx, user); err != nil {
		s.log.Warn().Err(err).Str("user_id", user.ID).Msg("failed to record last login")
	}
	return authToken, user, nil
}

// Logout ends the auth token and the session linked to it.
func (s *Service) Logout(ctx context.Context, authToken string) error {
	if err := s.sessions.DeleteAuthToken(ctx, authToken); err != nil {
		return errors.Wrap(err, "[Service.Logout]")
	}
	return nil
}

// LogoutAll invalidates every auth token and session of the user.
func (s *Service) LogoutAll(ctx context.Context, userID string) (sessions.LogoutResult, error) {
	result, err := s.sessions.LogoutAll(ctx, userID)
	if err != nil {
		return result, errors.Wrap(err, "[Service.LogoutAll]")
	}
	return result, nil
}

// User resolves an authorized user id through the directory.
func (s *Service) User(ctx context.Context, userID string) (*users.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "[Service.User]")
	}
	return user, nil
}
