package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/testiflow-api/internal/application/notification"
	"github.com/testiflow-api/internal/domain"
	googleinfra "github.com/testiflow-api/internal/infrastructure/google"
	jwtinfra "github.com/testiflow-api/internal/infrastructure/jwt"
	"github.com/testiflow-api/internal/infrastructure/mail"
	"github.com/testiflow-api/internal/pkg/id"
	"github.com/testiflow-api/internal/pkg/logger"
	pkgtoken "github.com/testiflow-api/internal/pkg/token"
	"github.com/testiflow-api/internal/pkg/validate"
	"golang.org/x/crypto/bcrypt"
)

const (
	verificationTTL = 24 * time.Hour
	resetTTL        = time.Hour
)

// DynamoDB attribute names used in partial update maps.
const (
	fieldPasswordHash          = "password_hash"
	fieldHasPassword           = "has_password"
	fieldVerified              = "verified"
	fieldResetToken            = "reset_token"
	fieldResetExpiresAt        = "reset_expires_at"
	fieldGoogleSub             = "google_sub"
	fieldLastLoginAt           = "last_login_at"
	fieldVerificationCode      = "verification_code"
	fieldVerificationExpiresAt = "verification_expires_at"
)

// dummyHash is compared against when the account does not exist so that
// unknown emails cost the same bcrypt work as wrong passwords.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("testiflow-timing-equaliser"), bcrypt.DefaultCost)

type Service interface {
	Register(ctx context.Context, req domain.SignupRequest) (*domain.Session, error)
	VerifyEmail(ctx context.Context, req domain.VerifyEmailRequest) (*domain.Account, error)
	ResendVerification(ctx context.Context, accountID string) error
	Login(ctx context.Context, req domain.LoginRequest) (*domain.Session, error)
	RequestPasswordReset(ctx context.Context, req domain.ForgotPasswordRequest) error
	ResetPassword(ctx context.Context, token string, req domain.ResetPasswordRequest) (*domain.Account, error)
	SetInitialPassword(ctx context.Context, accountID string, req domain.SetPasswordRequest) (*domain.Account, error)
	FederatedLogin(ctx context.Context, req domain.GoogleAuthRequest) (*domain.Session, error)
	ValidateSession(ctx context.Context, token string) (string, error)
}

type accountStore interface {
	Create(ctx context.Context, a *domain.Account) error
	Get(ctx context.Context, accountID string) (*domain.Account, error)
	GetByEmail(ctx context.Context, email string) (*domain.Account, error)
	GetByVerificationCode(ctx context.Context, code string, now time.Time) (*domain.Account, error)
	GetByResetToken(ctx context.Context, token string, now time.Time) (*domain.Account, error)
	Update(ctx context.Context, accountID string, updates map[string]interface{}) error
	ConsumeVerificationCode(ctx context.Context, accountID, code string, now time.Time, updates map[string]interface{}) error
	ConsumeResetToken(ctx context.Context, accountID, token string, now time.Time, updates map[string]interface{}) error
}

type tokenIssuer interface {
	Sign(accountID string) (string, time.Time, error)
	Verify(token string) (*jwtinfra.Claims, error)
}

type identityProvider interface {
	Verify(ctx context.Context, idToken string) (*googleinfra.Payload, error)
	Exchange(ctx context.Context, code string) (*googleinfra.Payload, error)
}

type notifier interface {
	Send(msg mail.Message) bool
}

type service struct {
	accounts  accountStore
	tokens    tokenIssuer
	google    identityProvider
	notifier  notifier
	clientURL string
	now       func() time.Time
}

type ServiceDeps struct {
	AccountRepo accountStore
	Tokens      tokenIssuer
	Google      identityProvider
	Notifier    notifier
	ClientURL   string
}

func NewService(deps ServiceDeps) Service {
	return &service{
		accounts:  deps.AccountRepo,
		tokens:    deps.Tokens,
		google:    deps.Google,
		notifier:  deps.Notifier,
		clientURL: deps.ClientURL,
		now:       time.Now,
	}
}

func (s *service) Register(ctx context.Context, req domain.SignupRequest) (*domain.Session, error) {
	req.Email = domain.NormalizeEmail(req.Email)
	if err := validate.Struct(&req); err != nil {
		return nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	code, err := s.newVerificationCode(ctx)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	a := &domain.Account{
		AccountID:             id.New(),
		Email:                 req.Email,
		Name:                  req.Name,
		PasswordHash:          string(hash),
		HasPassword:           true,
		VerificationCode:      code,
		VerificationExpiresAt: now.Add(verificationTTL).Unix(),
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	if err := s.accounts.Create(ctx, a); err != nil {
		return nil, err
	}
	s.notifier.Send(notification.VerificationEmail(a.Email, a.Name, code))
	logger.FromContext(ctx).Info("account registered", "account_id", a.AccountID)
	return s.issue(a)
}

func (s *service) VerifyEmail(ctx context.Context, req domain.VerifyEmailRequest) (*domain.Account, error) {
	if err := validate.Struct(&req); err != nil {
		return nil, fmt.Errorf("invalid verification code: %w", domain.ErrInvalidOrExpired)
	}
	now := s.now()
	a, err := s.accounts.GetByVerificationCode(ctx, req.Code, now)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("invalid verification code: %w", domain.ErrInvalidOrExpired)
	}
	if err != nil {
		return nil, err
	}
	if a.VerificationExpiresAt <= now.Unix() {
		return nil, fmt.Errorf("verification code expired: %w", domain.ErrInvalidOrExpired)
	}
	if err := s.accounts.ConsumeVerificationCode(ctx, a.AccountID, req.Code, now,
		map[string]interface{}{fieldVerified: true}); err != nil {
		return nil, err
	}
	a.Verified = true
	a.VerificationCode = ""
	a.VerificationExpiresAt = 0
	s.notifier.Send(notification.WelcomeEmail(a.Email, a.Name))
	return a, nil
}

// ResendVerification issues a fresh code to an unverified account.
func (s *service) ResendVerification(ctx context.Context, accountID string) error {
	a, err := s.accounts.Get(ctx, accountID)
	if err != nil {
		return err
	}
	if a.Verified {
		return fmt.Errorf("email already verified: %w", domain.ErrBadRequest)
	}
	code, err := s.newVerificationCode(ctx)
	if err != nil {
		return err
	}
	if err := s.accounts.Update(ctx, accountID, map[string]interface{}{
		fieldVerificationCode:      code,
		fieldVerificationExpiresAt: s.now().Add(verificationTTL).Unix(),
	}); err != nil {
		return err
	}
	s.notifier.Send(notification.VerificationEmail(a.Email, a.Name, code))
	return nil
}

func (s *service) Login(ctx context.Context, req domain.LoginRequest) (*domain.Session, error) {
	invalid := fmt.Errorf("invalid email or password: %w", domain.ErrInvalidCredentials)
	if err := validate.Struct(&req); err != nil {
		return nil, invalid
	}
	a, err := s.accounts.GetByEmail(ctx, domain.NormalizeEmail(req.Email))
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	if a == nil || !a.CanLoginWithPassword() {
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(req.Password))
		return nil, invalid
	}
	if err := bcrypt.CompareHashAndPassword([]byte(a.PasswordHash), []byte(req.Password)); err != nil {
		return nil, invalid
	}
	s.touchLogin(ctx, a, nil)
	return s.issue(a)
}

// RequestPasswordReset succeeds whether or not the email is registered.
func (s *service) RequestPasswordReset(ctx context.Context, req domain.ForgotPasswordRequest) error {
	req.Email = domain.NormalizeEmail(req.Email)
	if err := validate.Struct(&req); err != nil {
		return err
	}
	a, err := s.accounts.GetByEmail(ctx, req.Email)
	if errors.Is(err, domain.ErrNotFound) {
		logger.FromContext(ctx).Info("password reset requested for unknown email")
		return nil
	}
	if err != nil {
		return err
	}
	tok, err := pkgtoken.NewResetToken()
	if err != nil {
		return err
	}
	if err := s.accounts.Update(ctx, a.AccountID, map[string]interface{}{
		fieldResetToken:     tok,
		fieldResetExpiresAt: s.now().Add(resetTTL).Unix(),
	}); err != nil {
		return err
	}
	link := fmt.Sprintf("%s/reset-password/%s", s.clientURL, tok)
	s.notifier.Send(notification.PasswordResetEmail(a.Email, a.Name, link))
	return nil
}

func (s *service) ResetPassword(ctx context.Context, token string, req domain.ResetPasswordRequest) (*domain.Account, error) {
	if token == "" {
		return nil, fmt.Errorf("missing reset token: %w", domain.ErrInvalidOrExpired)
	}
	if err := validate.Struct(&req); err != nil {
		return nil, err
	}
	now := s.now()
	a, err := s.accounts.GetByResetToken(ctx, token, now)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("invalid reset token: %w", domain.ErrInvalidOrExpired)
	}
	if err != nil {
		return nil, err
	}
	if a.ResetExpiresAt <= now.Unix() {
		return nil, fmt.Errorf("reset token expired: %w", domain.ErrInvalidOrExpired)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	if err := s.accounts.ConsumeResetToken(ctx, a.AccountID, token, now, map[string]interface{}{
		fieldPasswordHash: string(hash),
		fieldHasPassword:  true,
	}); err != nil {
		return nil, err
	}
	a.PasswordHash = string(hash)
	a.HasPassword = true
	a.ResetToken = ""
	a.ResetExpiresAt = 0
	s.notifier.Send(notification.PasswordChangedEmail(a.Email, a.Name))
	return a, nil
}

// SetInitialPassword lets the signed-in federated account add a password once.
func (s *service) SetInitialPassword(ctx context.Context, accountID string, req domain.SetPasswordRequest) (*domain.Account, error) {
	if accountID == "" {
		return nil, fmt.Errorf("missing session: %w", domain.ErrUnauthorized)
	}
	if err := validate.Struct(&req); err != nil {
		return nil, err
	}
	a, err := s.accounts.Get(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if a.CanLoginWithPassword() {
		return nil, fmt.Errorf("password already set: %w", domain.ErrConflict)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	if err := s.accounts.Update(ctx, a.AccountID, map[string]interface{}{
		fieldPasswordHash: string(hash),
		fieldHasPassword:  true,
	}); err != nil {
		return nil, err
	}
	a.PasswordHash = string(hash)
	a.HasPassword = true
	return a, nil
}

// FederatedLogin signs in with Google, creating a verified password-less
// account on first use.
func (s *service) FederatedLogin(ctx context.Context, req domain.GoogleAuthRequest) (*domain.Session, error) {
	var (
		p   *googleinfra.Payload
		err error
	)
	switch {
	case req.Code != "":
		p, err = s.google.Exchange(ctx, req.Code)
	case req.IDToken != "":
		p, err = s.google.Verify(ctx, req.IDToken)
	default:
		return nil, fmt.Errorf("code or token required: %w", domain.ErrBadRequest)
	}
	if err != nil {
		return nil, err
	}
	email := domain.NormalizeEmail(p.Email)
	if email == "" {
		return nil, fmt.Errorf("google account has no email: %w", domain.ErrUnauthorized)
	}
	if !p.EmailVerified {
		return nil, fmt.Errorf("google email not verified: %w", domain.ErrUnauthorized)
	}

	a, err := s.accounts.GetByEmail(ctx, email)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		a, err = s.createFederated(ctx, email, p)
		if errors.Is(err, domain.ErrConflict) {
			// lost a signup race for the same email
			a, err = s.accounts.GetByEmail(ctx, email)
		}
		if err != nil {
			return nil, err
		}
	case err != nil:
		return nil, err
	default:
		s.touchLogin(ctx, a, p)
	}
	return s.issue(a)
}

func (s *service) createFederated(ctx context.Context, email string, p *googleinfra.Payload) (*domain.Account, error) {
	now := s.now().UTC()
	name := p.Name
	if name == "" {
		name = email
	}
	a := &domain.Account{
		AccountID:   id.New(),
		Email:       email,
		Name:        name,
		Verified:    true,
		GoogleSub:   p.Sub,
		LastLoginAt: &now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.accounts.Create(ctx, a); err != nil {
		return nil, err
	}
	logger.FromContext(ctx).Info("federated account created", "account_id", a.AccountID)
	return a, nil
}

// touchLogin records the login time (and Google identity, when p is set).
// Failures are logged; they never block sign-in.
func (s *service) touchLogin(ctx context.Context, a *domain.Account, p *googleinfra.Payload) {
	now := s.now().UTC()
	updates := map[string]interface{}{fieldLastLoginAt: now}
	if p != nil {
		if p.Sub != "" && a.GoogleSub != p.Sub {
			updates[fieldGoogleSub] = p.Sub
			a.GoogleSub = p.Sub
		}
		if !a.Verified {
			updates[fieldVerified] = true
			a.Verified = true
		}
	}
	if err := s.accounts.Update(ctx, a.AccountID, updates); err != nil {
		logger.FromContext(ctx).Warn("failed to record login", "account_id", a.AccountID, "error", err)
		return
	}
	a.LastLoginAt = &now
}

// newVerificationCode draws a code no other account holds while it is live.
func (s *service) newVerificationCode(ctx context.Context) (string, error) {
	return pkgtoken.NewUnusedVerificationCode(ctx, func(ctx context.Context, code string) (bool, error) {
		_, err := s.accounts.GetByVerificationCode(ctx, code, s.now())
		if errors.Is(err, domain.ErrNotFound) {
			return false, nil
		}
		return err == nil, err
	})
}

func (s *service) ValidateSession(_ context.Context, token string) (string, error) {
	if token == "" {
		return "", fmt.Errorf("missing session token: %w", domain.ErrUnauthorized)
	}
	claims, err := s.tokens.Verify(token)
	if err != nil {
		return "", fmt.Errorf("invalid session token: %w", domain.ErrUnauthorized)
	}
	return claims.AccountID, nil
}

func (s *service) issue(a *domain.Account) (*domain.Session, error) {
	tok, exp, err := s.tokens.Sign(a.AccountID)
	if err != nil {
		return nil, fmt.Errorf("sign session: %w", err)
	}
	return &domain.Session{Token: tok, ExpiresAt: exp, Account: a}, nil
}
