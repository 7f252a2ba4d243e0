package account

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/testiflow-api/internal/application/notification"
	"github.com/testiflow-api/internal/domain"
	"github.com/testiflow-api/internal/infrastructure/mail"
	"github.com/testiflow-api/internal/pkg/logger"
	pkgtoken "github.com/testiflow-api/internal/pkg/token"
	"github.com/testiflow-api/internal/pkg/validate"
	"golang.org/x/crypto/bcrypt"
)

const verificationTTL = 24 * time.Hour

// DynamoDB attribute names used in partial update maps.
const (
	fieldName                  = "name"
	fieldPasswordHash          = "password_hash"
	fieldHasPassword           = "has_password"
	fieldVerified              = "verified"
	fieldVerificationCode      = "verification_code"
	fieldVerificationExpiresAt = "verification_expires_at"
)

type Service interface {
	Get(ctx context.Context, accountID string) (*domain.Account, error)
	UpdateProfile(ctx context.Context, accountID string, req domain.UpdateProfileRequest) (*domain.Account, error)
	Delete(ctx context.Context, callerID, target string) error
}

type accountStore interface {
	Get(ctx context.Context, accountID string) (*domain.Account, error)
	GetByVerificationCode(ctx context.Context, code string, now time.Time) (*domain.Account, error)
	Update(ctx context.Context, accountID string, updates map[string]interface{}) error
	ChangeEmail(ctx context.Context, accountID, oldEmail, newEmail string, updates map[string]interface{}) error
	Delete(ctx context.Context, accountID, email string) error
}

type spaceStore interface {
	ListByOwnerEmail(ctx context.Context, email string) ([]domain.Space, error)
	ReassignOwnerEmail(ctx context.Context, ownerID, oldEmail, newEmail string) (int, error)
	Delete(ctx context.Context, spaceID string) error
}

type notifier interface {
	Send(msg mail.Message) bool
}

type service struct {
	repo      accountStore
	spaceRepo spaceStore
	notifier  notifier
	now       func() time.Time
}

type ServiceDeps struct {
	AccountRepo accountStore
	SpaceRepo   spaceStore
	Notifier    notifier
}

func NewService(deps ServiceDeps) Service {
	return &service{
		repo:      deps.AccountRepo,
		spaceRepo: deps.SpaceRepo,
		notifier:  deps.Notifier,
		now:       time.Now,
	}
}

func (s *service) Get(ctx context.Context, accountID string) (*domain.Account, error) {
	return s.repo.Get(ctx, accountID)
}

// UpdateProfile applies the non-nil fields of req. An email change moves the
// email reservation in the same write as the other fields, marks the account
// unverified until the new address is confirmed and re-points its spaces.
func (s *service) UpdateProfile(ctx context.Context, accountID string, req domain.UpdateProfileRequest) (*domain.Account, error) {
	if req.Email != nil {
		e := domain.NormalizeEmail(*req.Email)
		req.Email = &e
	}
	if err := validate.Struct(&req); err != nil {
		return nil, err
	}
	a, err := s.repo.Get(ctx, accountID)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if req.Name != nil {
		updates[fieldName] = *req.Name
	}
	if req.Password != nil {
		hash, err := bcrypt.GenerateFromPassword([]byte(*req.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, err
		}
		updates[fieldPasswordHash] = string(hash)
		updates[fieldHasPassword] = true
	}

	if req.Email == nil || *req.Email == a.Email {
		if len(updates) > 0 {
			if err := s.repo.Update(ctx, accountID, updates); err != nil {
				return nil, err
			}
		}
		return s.repo.Get(ctx, accountID)
	}

	newEmail := *req.Email
	code, err := s.newVerificationCode(ctx)
	if err != nil {
		return nil, err
	}
	updates[fieldVerified] = false
	updates[fieldVerificationCode] = code
	updates[fieldVerificationExpiresAt] = s.now().Add(verificationTTL).Unix()
	if err := s.repo.ChangeEmail(ctx, accountID, a.Email, newEmail, updates); err != nil {
		return nil, err
	}
	n, err := s.spaceRepo.ReassignOwnerEmail(ctx, accountID, a.Email, newEmail)
	if err != nil {
		return nil, fmt.Errorf("re-point spaces to new email: %w", err)
	}
	name := a.Name
	if req.Name != nil {
		name = *req.Name
	}
	s.notifier.Send(notification.VerificationEmail(newEmail, name, code))
	logger.FromContext(ctx).Info("account email changed", "account_id", accountID, "spaces", n)
	return s.repo.Get(ctx, accountID)
}

func (s *service) newVerificationCode(ctx context.Context) (string, error) {
	return pkgtoken.NewUnusedVerificationCode(ctx, func(ctx context.Context, code string) (bool, error) {
		_, err := s.repo.GetByVerificationCode(ctx, code, s.now())
		if errors.Is(err, domain.ErrNotFound) {
			return false, nil
		}
		return err == nil, err
	})
}

// Delete removes the caller's own account together with its spaces. target may
// be the caller's id or email; anything else is forbidden.
func (s *service) Delete(ctx context.Context, callerID, target string) error {
	a, err := s.repo.Get(ctx, callerID)
	if err != nil {
		return err
	}
	if target != a.AccountID && domain.NormalizeEmail(target) != a.Email {
		return fmt.Errorf("accounts may only delete themselves: %w", domain.ErrForbidden)
	}
	spaces, err := s.spaceRepo.ListByOwnerEmail(ctx, a.Email)
	if err != nil {
		return err
	}
	for _, sp := range spaces {
		if !sp.IsOwnedBy(a.AccountID) {
			continue
		}
		if err := s.spaceRepo.Delete(ctx, sp.SpaceID); err != nil && !errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("delete space %s: %w", sp.SpaceID, err)
		}
	}
	if err := s.repo.Delete(ctx, a.AccountID, a.Email); err != nil {
		return err
	}
	logger.FromContext(ctx).Info("account deleted", "account_id", a.AccountID, "spaces", len(spaces))
	return nil
}
