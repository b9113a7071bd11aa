package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"skillswap-auth/internal/lockout"
	"skillswap-auth/internal/models"
	"skillswap-auth/internal/notify"
	"skillswap-auth/internal/otp"
	"skillswap-auth/internal/policy"
	"skillswap-auth/internal/repository"
	"skillswap-auth/internal/token"
	"skillswap-auth/internal/util"
	"skillswap-auth/internal/validation"
)

type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(encoded, password string) (bool, error)
}

type CodeIssuer interface {
	Issue(now time.Time) (models.OneTimeCode, error)
}

type TokenIssuer interface {
	Sign(userID string) (string, error)
	Parse(tokenString string) (*token.Claims, error)
}

type EventRecorder interface {
	Record(ctx context.Context, event models.SecurityEvent)
}

type nopRecorder struct{}

func (nopRecorder) Record(context.Context, models.SecurityEvent) {}

// Dependencies are the collaborators of AuthService
type Dependencies struct {
	Accounts repository.AccountRepository
	Hasher   PasswordHasher
	Policy   *policy.Engine
	Guard    *lockout.Guard
	Codes    CodeIssuer
	Mailer   notify.Sender
	Tokens   TokenIssuer
	Audit    EventRecorder
}

type Option func(*AuthService)

func WithLogger(logger *zap.Logger) Option {
	return func(s *AuthService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *AuthService) {
		if now != nil {
			s.now = now
		}
	}
}

// AuthService runs registration, two-step login and password management
type AuthService struct {
	accounts repository.AccountRepository
	hasher   PasswordHasher
	policy   *policy.Engine
	guard    *lockout.Guard
	codes    CodeIssuer
	mailer   notify.Sender
	tokens   TokenIssuer
	audit    EventRecorder
	validate *validator.Validate
	logger   *zap.Logger
	now      func() time.Time
}

func NewAuthService(deps Dependencies, opts ...Option) *AuthService {
	s := &AuthService{
		accounts: deps.Accounts,
		hasher:   deps.Hasher,
		policy:   deps.Policy,
		guard:    deps.Guard,
		codes:    deps.Codes,
		mailer:   deps.Mailer,
		tokens:   deps.Tokens,
		audit:    deps.Audit,
		validate: validation.New(),
		logger:   util.Get(),
		now:      time.Now,
	}
	if s.audit == nil {
		s.audit = nopRecorder{}
	}
	if s.guard == nil {
		s.guard = lockout.NewGuard(lockout.DefaultMaxAttempts, lockout.DefaultLockDuration)
	}
	if s.policy == nil {
		s.policy = policy.NewEngine(deps.Hasher)
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register creates an account after the complexity and uniqueness checks
func (s *AuthService) Register(ctx context.Context, req RegisterRequest) (*RegisterResult, error) {
	req.Name = strings.TrimSpace(req.Name)
	if err := s.validate.Struct(req); err != nil {
		s.fail(ctx, models.ActionRegister, "", req.Email, "invalid input")
		if validation.OnlyTag(err, validation.StrongPasswordTag) {
			return nil, ErrWeakPassword
		}
		return nil, invalidInput(ErrInvalidInput, failedFields(err))
	}

	if _, err := s.accounts.FindByEmail(ctx, req.Email); err == nil {
		s.fail(ctx, models.ActionRegister, "", req.Email, "duplicate email")
		return nil, ErrDuplicateEmail
	} else if !errors.Is(err, repository.ErrAccountNotFound) {
		return nil, internalError("find account", err)
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, internalError("hash password", err)
	}

	now := s.now().UTC()
	account := &models.Account{
		Name:         util.SanitizeInput(req.Name),
		Email:        req.Email,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.accounts.Create(ctx, account); err != nil {
		if errors.Is(err, repository.ErrEmailTaken) {
			s.fail(ctx, models.ActionRegister, "", req.Email, "duplicate email")
			return nil, ErrDuplicateEmail
		}
		return nil, internalError("create account", err)
	}

	s.logger.Info("Account registered",
		zap.String("user_id", account.ID),
		zap.String("email", util.MaskEmail(account.Email)))
	s.succeed(ctx, models.ActionRegister, account.ID, account.Email)
	return &RegisterResult{UserID: account.ID}, nil
}

// LoginStepOne checks the password and emails a login code. A locked account
// is rejected before the password is compared.
func (s *AuthService) LoginStepOne(ctx context.Context, req LoginRequest) (*PendingMFA, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, invalidInput(ErrInvalidInput, failedFields(err))
	}

	account, err := s.accounts.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			s.fail(ctx, models.ActionLoginPassword, "", req.Email, "unknown email")
			return nil, ErrUnknownEmail
		}
		return nil, internalError("find account", err)
	}

	now := s.now()
	if state, remaining := s.guard.Status(*account, now); state == lockout.Locked {
		s.fail(ctx, models.ActionLoginPassword, account.ID, account.Email, "account locked")
		return nil, &LockoutError{SecondsRemaining: remaining}
	}

	matches, err := s.hasher.Compare(account.PasswordHash, req.Password)
	if err != nil {
		return nil, internalError("compare password", err)
	}

	next, decision := s.guard.CheckAndRecordAttempt(*account, matches, now)
	if !decision.Allowed {
		if err := s.accounts.Save(ctx, &next); err != nil {
			return nil, internalError("save failed attempt", err)
		}
		reason := "bad password"
		if decision.LockedNow {
			reason = "bad password, account locked"
			s.logger.Warn("Account locked after failed attempts",
				zap.String("user_id", account.ID),
				zap.Int("failed_attempts", next.FailedLoginAttempts),
				zap.Int("lock_seconds", decision.SecondsRemaining))
		}
		s.fail(ctx, models.ActionLoginPassword, account.ID, account.Email, reason)
		return nil, ErrBadPassword
	}

	if s.policy.IsExpired(next, now) {
		s.fail(ctx, models.ActionLoginPassword, account.ID, account.Email, "password expired")
		return nil, ErrPasswordExpired
	}

	code, err := s.codes.Issue(now)
	if err != nil {
		return nil, internalError("issue code", err)
	}
	if err := s.mailer.SendOTPEmail(ctx, account.Email, code.Code); err != nil {
		s.logger.Error("Failed to send login code",
			zap.String("user_id", account.ID),
			zap.Error(err))
		s.fail(ctx, models.ActionLoginPassword, account.ID, account.Email, "code delivery failed")
		return nil, fmt.Errorf("%w: %v", ErrDelivery, err)
	}

	next.MFA = &code
	if err := s.accounts.Save(ctx, &next); err != nil {
		return nil, internalError("save login code", err)
	}

	s.succeed(ctx, models.ActionLoginPassword, account.ID, account.Email)
	return &PendingMFA{UserID: account.ID}, nil
}

// LoginStepTwo exchanges a pending login code for a session token. The code
// is consumed on success.
func (s *AuthService) LoginStepTwo(ctx context.Context, req VerifyMFARequest) (*LoginResult, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, invalidInput(ErrInvalidInput, failedFields(err))
	}

	account, err := s.accounts.FindByID(ctx, req.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			s.fail(ctx, models.ActionLoginMFA, req.UserID, "", "unknown user")
			return nil, ErrUnknownUser
		}
		return nil, internalError("find account", err)
	}

	now := s.now()
	if err := otp.Verify(account.MFA, req.Code, now); err != nil {
		var out *Error
		switch {
		case errors.Is(err, otp.ErrNoPending):
			out = ErrNoPendingOTP
		case errors.Is(err, otp.ErrExpired):
			out = ErrOTPExpired
		default:
			out = ErrBadOTP
		}
		s.fail(ctx, models.ActionLoginMFA, account.ID, account.Email, err.Error())
		return nil, out
	}

	next := account.Clone()
	next.MFA = nil
	next.UpdatedAt = now.UTC()
	if err := s.accounts.Save(ctx, &next); err != nil {
		return nil, internalError("consume login code", err)
	}

	signed, err := s.tokens.Sign(account.ID)
	if err != nil {
		return nil, internalError("sign token", err)
	}

	s.logger.Info("Login completed", zap.String("user_id", account.ID))
	s.succeed(ctx, models.ActionLoginMFA, account.ID, account.Email)
	return &LoginResult{UserID: account.ID, Token: signed}, nil
}

// UpdatePassword changes the password of an authenticated account
func (s *AuthService) UpdatePassword(ctx context.Context, req UpdatePasswordRequest) error {
	if err := s.validate.Struct(req); err != nil {
		return invalidInput(ErrInvalidInput, failedFields(err))
	}

	account, err := s.accounts.FindByID(ctx, req.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return ErrUserNotFound
		}
		return internalError("find account", err)
	}

	matches, err := s.hasher.Compare(account.PasswordHash, req.CurrentPassword)
	if err != nil {
		return internalError("compare password", err)
	}
	if !matches {
		s.fail(ctx, models.ActionUpdatePassword, account.ID, account.Email, "bad current password")
		return ErrBadCurrentPassword
	}

	if err := s.changePassword(ctx, account, req.NewPassword, models.ActionUpdatePassword, nil); err != nil {
		return err
	}
	s.logger.Info("Password updated", zap.String("user_id", account.ID))
	return nil
}

// ForgotPassword emails a reset code. A second request replaces the first code.
func (s *AuthService) ForgotPassword(ctx context.Context, req ForgotPasswordRequest) error {
	if err := s.validate.Struct(req); err != nil {
		return invalidInput(ErrInvalidInput, failedFields(err))
	}

	account, err := s.accounts.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			s.fail(ctx, models.ActionForgotPassword, "", req.Email, "unknown email")
			return ErrUnknownEmail
		}
		return internalError("find account", err)
	}

	now := s.now()
	code, err := s.codes.Issue(now)
	if err != nil {
		return internalError("issue code", err)
	}
	if err := s.mailer.SendOTPEmail(ctx, account.Email, code.Code); err != nil {
		s.logger.Error("Failed to send reset code",
			zap.String("user_id", account.ID),
			zap.Error(err))
		s.fail(ctx, models.ActionForgotPassword, account.ID, account.Email, "code delivery failed")
		return fmt.Errorf("%w: %v", ErrDelivery, err)
	}

	next := account.Clone()
	next.PasswordReset = &code
	next.UpdatedAt = now.UTC()
	if err := s.accounts.Save(ctx, &next); err != nil {
		return internalError("save reset code", err)
	}

	s.succeed(ctx, models.ActionForgotPassword, account.ID, account.Email)
	return nil
}

// ResetPassword sets a new password using an emailed reset code
func (s *AuthService) ResetPassword(ctx context.Context, req ResetPasswordRequest) error {
	if err := s.validate.Struct(req); err != nil {
		return ErrMissingFields
	}

	account, err := s.accounts.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			s.fail(ctx, models.ActionResetPassword, "", req.Email, "unknown email")
			return ErrResetUnknownEmail
		}
		return internalError("find account", err)
	}

	if err := otp.Verify(account.PasswordReset, req.OTP, s.now()); err != nil {
		s.fail(ctx, models.ActionResetPassword, account.ID, account.Email, err.Error())
		return ErrInvalidOrExpiredOTP
	}

	clearReset := func(a *models.Account) { a.PasswordReset = nil }
	if err := s.changePassword(ctx, account, req.NewPassword, models.ActionResetPassword, clearReset); err != nil {
		return err
	}
	s.logger.Info("Password reset", zap.String("user_id", account.ID))
	return nil
}

// Authenticate resolves a bearer token to its account id
func (s *AuthService) Authenticate(ctx context.Context, bearer, resource string) (string, error) {
	if bearer == "" {
		s.audit.Record(ctx, models.SecurityEvent{
			Action:  models.ActionAuthenticate,
			Outcome: models.OutcomeFailure,
			Reason:  "missing token",
			Details: "Accessed " + resource,
		})
		return "", ErrMissingToken
	}

	claims, err := s.tokens.Parse(bearer)
	if err != nil {
		s.audit.Record(ctx, models.SecurityEvent{
			Action:  models.ActionAuthenticate,
			Outcome: models.OutcomeFailure,
			Reason:  "invalid token",
			Details: "Accessed " + resource,
		})
		return "", ErrInvalidToken
	}

	s.audit.Record(ctx, models.SecurityEvent{
		Action:  models.ActionAuthenticate,
		Outcome: models.OutcomeSuccess,
		UserID:  claims.UserID,
		Details: "Accessed " + resource,
	})
	return claims.UserID, nil
}

// changePassword applies the complexity and history rules, then stores the
// new hash with its history. Only earlier passwords count as reuse. mutate runs on the account before it is saved.
func (s *AuthService) changePassword(ctx context.Context, account *models.Account, newPassword, action string, mutate func(*models.Account)) error {
	if !policy.ValidateComplexity(newPassword) {
		s.fail(ctx, action, account.ID, account.Email, "weak password")
		return ErrWeakPassword
	}
	if s.policy.IsReused(newPassword, account.PasswordHistory) {
		s.fail(ctx, action, account.ID, account.Email, "password reused")
		return ErrPasswordReused
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return internalError("hash password", err)
	}

	next := s.policy.RecordPasswordChange(*account, hash, s.now())
	if mutate != nil {
		mutate(&next)
	}
	if err := s.accounts.Save(ctx, &next); err != nil {
		return internalError("save password", err)
	}

	s.succeed(ctx, action, account.ID, account.Email)
	return nil
}

func (s *AuthService) succeed(ctx context.Context, action, userID, email string) {
	s.audit.Record(ctx, models.SecurityEvent{
		Action:  action,
		Outcome: models.OutcomeSuccess,
		UserID:  userID,
		Email:   email,
	})
}

func (s *AuthService) fail(ctx context.Context, action, userID, email, reason string) {
	s.audit.Record(ctx, models.SecurityEvent{
		Action:  action,
		Outcome: models.OutcomeFailure,
		Reason:  reason,
		UserID:  userID,
		Email:   email,
	})
}

func failedFields(err error) string {
	tags := validation.FailedTags(err)
	if len(tags) == 0 {
		return "malformed request"
	}
	fields := make([]string, 0, len(tags))
	for field := range tags {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	return strings.Join(fields, ", ")
}
