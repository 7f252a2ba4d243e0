package space

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/testiflow-api/internal/domain"
	"github.com/testiflow-api/internal/pkg/id"
	"github.com/testiflow-api/internal/pkg/logger"
	"github.com/testiflow-api/internal/pkg/validate"
)

// maxWriteAttempts bounds how often a mutation is re-applied after losing an
// optimistic-concurrency race.
const maxWriteAttempts = 5

const (
	minRating     = 1
	maxRating     = 5
	defaultRating = 1
)

// errUnchanged tells mutate that the mutation left the space as it was.
var errUnchanged = errors.New("space unchanged")

type Service interface {
	CreateSpace(ctx context.Context, callerID string, req domain.CreateSpaceRequest) (*domain.Space, error)
	EditSpace(ctx context.Context, callerID string, req domain.EditSpaceRequest) (*domain.Space, error)
	ListSpaces(ctx context.Context, ownerEmail string) ([]domain.Space, error)
	ListOwnSpaces(ctx context.Context, callerID string) ([]domain.Space, error)
	GetSpace(ctx context.Context, callerID, spaceID string) (*domain.Space, error)
	GetByPublicLink(ctx context.Context, link string) (*domain.PublicSpace, error)
	WallOfLove(ctx context.Context, link string) ([]domain.PublicReview, error)
	SubmitReview(ctx context.Context, req domain.CreateReviewRequest) (*domain.Review, error)
	ToggleFavorite(ctx context.Context, callerID string, req domain.ToggleFavouriteRequest) ([]domain.Review, error)
	DeleteReview(ctx context.Context, callerID, spaceID, reviewID string) (*domain.Space, error)
	DeleteSpace(ctx context.Context, callerID, spaceID string) error
}

type spaceStore interface {
	Create(ctx context.Context, s *domain.Space) error
	Get(ctx context.Context, spaceID string) (*domain.Space, error)
	ListByOwnerEmail(ctx context.Context, email string) ([]domain.Space, error)
	Replace(ctx context.Context, s *domain.Space) error
	Delete(ctx context.Context, spaceID string) error
}

type accountReader interface {
	Get(ctx context.Context, accountID string) (*domain.Account, error)
}

type reviewNotifier interface {
	ReviewSubmitted(s *domain.Space, r *domain.Review)
}

type service struct {
	repo       spaceStore
	accounts   accountReader
	notifier   reviewNotifier
	publicBase string
	now        func() time.Time
	newBackOff func() backoff.BackOff
}

type ServiceDeps struct {
	SpaceRepo     spaceStore
	AccountRepo   accountReader
	Notifier      reviewNotifier
	PublicBaseURL string
}

func NewService(deps ServiceDeps) Service {
	return &service{
		repo:       deps.SpaceRepo,
		accounts:   deps.AccountRepo,
		notifier:   deps.Notifier,
		publicBase: strings.TrimRight(deps.PublicBaseURL, "/"),
		now:        time.Now,
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 20 * time.Millisecond
			b.MaxInterval = 500 * time.Millisecond
			return b
		},
	}
}

func (s *service) CreateSpace(ctx context.Context, callerID string, req domain.CreateSpaceRequest) (*domain.Space, error) {
	req.SpaceName = strings.TrimSpace(req.SpaceName)
	req.HeaderTitle = strings.TrimSpace(req.HeaderTitle)
	if err := validate.Struct(&req); err != nil {
		return nil, err
	}
	questions, err := normaliseQuestions(req.Questions)
	if err != nil {
		return nil, err
	}
	owner, err := s.accounts.Get(ctx, callerID)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	spaceID := uuid.NewString()
	sp := &domain.Space{
		RecordID:      id.New(),
		SpaceID:       spaceID,
		OwnerID:       owner.AccountID,
		OwnerEmail:    owner.Email,
		SpaceName:     req.SpaceName,
		SpaceLogo:     req.SpaceLogo,
		HeaderTitle:   req.HeaderTitle,
		CustomMessage: req.CustomMessage,
		Questions:     questions,
		Reviews:       []domain.Review{},
		Link:          s.publicLink(spaceID),
		Version:       1,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.repo.Create(ctx, sp); err != nil {
		return nil, err
	}
	logger.FromContext(ctx).Info("space created", "space_id", sp.SpaceID)
	return sp, nil
}

func (s *service) EditSpace(ctx context.Context, callerID string, req domain.EditSpaceRequest) (*domain.Space, error) {
	if err := validate.Struct(&req); err != nil {
		return nil, err
	}
	patch := req.SpaceData
	var questions []domain.Question
	if patch.Questions != nil {
		var err error
		if questions, err = normaliseQuestions(*patch.Questions); err != nil {
			return nil, err
		}
	}
	return s.mutate(ctx, req.SpaceID, func(sp *domain.Space) error {
		if !sp.IsOwnedBy(callerID) {
			return fmt.Errorf("not the owner of this space: %w", domain.ErrForbidden)
		}
		if patch.SpaceName != nil {
			sp.SpaceName = strings.TrimSpace(*patch.SpaceName)
		}
		if patch.SpaceLogo != nil {
			sp.SpaceLogo = *patch.SpaceLogo
		}
		if patch.HeaderTitle != nil {
			sp.HeaderTitle = strings.TrimSpace(*patch.HeaderTitle)
		}
		if patch.CustomMessage != nil {
			sp.CustomMessage = *patch.CustomMessage
		}
		if patch.Questions != nil {
			sp.Questions = questions
		}
		if sp.SpaceName == "" || sp.HeaderTitle == "" {
			return fmt.Errorf("spaceName and headerTitle must not be empty: %w", domain.ErrValidation)
		}
		return nil
	})
}

func (s *service) ListSpaces(ctx context.Context, ownerEmail string) ([]domain.Space, error) {
	ownerEmail = domain.NormalizeEmail(ownerEmail)
	if ownerEmail == "" {
		return nil, fmt.Errorf("owner email required: %w", domain.ErrBadRequest)
	}
	return s.repo.ListByOwnerEmail(ctx, ownerEmail)
}

// ListOwnSpaces lists the caller's spaces; entries left under the email by
// another account are skipped.
func (s *service) ListOwnSpaces(ctx context.Context, callerID string) ([]domain.Space, error) {
	owner, err := s.accounts.Get(ctx, callerID)
	if err != nil {
		return nil, err
	}
	spaces, err := s.ListSpaces(ctx, owner.Email)
	if err != nil {
		return nil, err
	}
	own := spaces[:0]
	for _, sp := range spaces {
		if sp.IsOwnedBy(callerID) {
			own = append(own, sp)
		}
	}
	return own, nil
}

func (s *service) GetSpace(ctx context.Context, callerID, spaceID string) (*domain.Space, error) {
	sp, err := s.repo.Get(ctx, spaceID)
	if err != nil {
		return nil, err
	}
	if !sp.IsOwnedBy(callerID) {
		return nil, fmt.Errorf("not the owner of this space: %w", domain.ErrForbidden)
	}
	return sp, nil
}

// GetByPublicLink accepts a bare space id or a full review link.
func (s *service) GetByPublicLink(ctx context.Context, link string) (*domain.PublicSpace, error) {
	sp, err := s.getByLink(ctx, link)
	if err != nil {
		return nil, err
	}
	return domain.NewPublicSpace(sp), nil
}

func (s *service) WallOfLove(ctx context.Context, link string) ([]domain.PublicReview, error) {
	sp, err := s.getByLink(ctx, link)
	if err != nil {
		return nil, err
	}
	out := []domain.PublicReview{}
	for _, r := range sp.Reviews {
		if !r.IsFav {
			continue
		}
		out = append(out, domain.PublicReview{
			ReviewID:  r.ReviewID,
			Name:      r.Name,
			Answers:   r.Answers,
			Rating:    r.Rating,
			CreatedAt: r.CreatedAt,
		})
	}
	return out, nil
}

func (s *service) SubmitReview(ctx context.Context, req domain.CreateReviewRequest) (*domain.Review, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	if req.Rating == 0 {
		req.Rating = defaultRating
	}
	if req.Rating < minRating || req.Rating > maxRating {
		return nil, fmt.Errorf("rating must be between %d and %d: %w", minRating, maxRating, domain.ErrValidation)
	}
	if err := validate.Struct(&req); err != nil {
		return nil, err
	}
	if req.Answers == nil {
		req.Answers = []domain.Answer{}
	}
	review := domain.Review{
		ReviewID:  id.New(),
		Name:      req.Name,
		Email:     req.Email,
		Answers:   req.Answers,
		Rating:    req.Rating,
		CreatedAt: s.now().UTC(),
	}
	sp, err := s.mutate(ctx, req.SpaceID, func(sp *domain.Space) error {
		if len(sp.Questions) > 0 && len(review.Answers) == 0 {
			return fmt.Errorf("at least one answer is required: %w", domain.ErrValidation)
		}
		for _, a := range review.Answers {
			if !sp.HasQuestion(a.QuestionID) {
				return fmt.Errorf("answer references unknown question %q: %w", a.QuestionID, domain.ErrValidation)
			}
		}
		sp.Reviews = append(sp.Reviews, review)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if s.notifier != nil {
		s.notifier.ReviewSubmitted(sp, &review)
	}
	return &review, nil
}

// ToggleFavorite sets the flag to req.IsFav, or flips it when IsFav is nil.
func (s *service) ToggleFavorite(ctx context.Context, callerID string, req domain.ToggleFavouriteRequest) ([]domain.Review, error) {
	if err := validate.Struct(&req); err != nil {
		return nil, err
	}
	sp, err := s.mutate(ctx, req.SpaceID, func(sp *domain.Space) error {
		if !sp.IsOwnedBy(callerID) {
			return fmt.Errorf("not the owner of this space: %w", domain.ErrForbidden)
		}
		i := sp.ReviewIndex(req.ReviewID)
		if i < 0 {
			return fmt.Errorf("review not found: %w", domain.ErrNotFound)
		}
		next := !sp.Reviews[i].IsFav
		if req.IsFav != nil {
			next = *req.IsFav
		}
		if sp.Reviews[i].IsFav == next {
			return errUnchanged
		}
		sp.Reviews[i].IsFav = next
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sp.Reviews, nil
}

// DeleteReview is idempotent: removing an absent review returns the space as is.
func (s *service) DeleteReview(ctx context.Context, callerID, spaceID, reviewID string) (*domain.Space, error) {
	return s.mutate(ctx, spaceID, func(sp *domain.Space) error {
		if !sp.IsOwnedBy(callerID) {
			return fmt.Errorf("not the owner of this space: %w", domain.ErrForbidden)
		}
		i := sp.ReviewIndex(reviewID)
		if i < 0 {
			return errUnchanged
		}
		sp.Reviews = append(sp.Reviews[:i], sp.Reviews[i+1:]...)
		return nil
	})
}

func (s *service) DeleteSpace(ctx context.Context, callerID, spaceID string) error {
	if _, err := s.GetSpace(ctx, callerID, spaceID); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, spaceID); err != nil {
		return err
	}
	logger.FromContext(ctx).Info("space deleted", "space_id", spaceID)
	return nil
}

// mutate reads the space, applies fn and writes it back conditioned on the
// version read. Lost races are retried with a fresh read; any other error
// from fn or the store ends the attempt.
func (s *service) mutate(ctx context.Context, spaceID string, fn func(*domain.Space) error) (*domain.Space, error) {
	if spaceID == "" {
		return nil, fmt.Errorf("spaceId required: %w", domain.ErrBadRequest)
	}
	var result *domain.Space
	attempt := 0
	op := func() error {
		attempt++
		sp, err := s.repo.Get(ctx, spaceID)
		if err != nil {
			return backoff.Permanent(err)
		}
		if err := fn(sp); err != nil {
			if errors.Is(err, errUnchanged) {
				result = sp
				return nil
			}
			return backoff.Permanent(err)
		}
		if err := s.repo.Replace(ctx, sp); err != nil {
			if errors.Is(err, domain.ErrConcurrentUpdate) {
				return err
			}
			return backoff.Permanent(err)
		}
		result = sp
		return nil
	}
	b := backoff.WithContext(backoff.WithMaxRetries(s.newBackOff(), maxWriteAttempts-1), ctx)
	if err := backoff.Retry(op, b); err != nil {
		if errors.Is(err, domain.ErrConcurrentUpdate) {
			logger.FromContext(ctx).Warn("space write conflict persisted", "space_id", spaceID, "attempts", attempt)
		}
		return nil, err
	}
	return result, nil
}

func (s *service) getByLink(ctx context.Context, link string) (*domain.Space, error) {
	spaceID := spaceIDFromLink(link)
	if spaceID == "" {
		return nil, fmt.Errorf("space not found: %w", domain.ErrNotFound)
	}
	return s.repo.Get(ctx, spaceID)
}

func (s *service) publicLink(spaceID string) string {
	return fmt.Sprintf("%s/review/%s", s.publicBase, spaceID)
}

// normaliseQuestions trims question text and gives id-less questions a fresh id.
func normaliseQuestions(in []domain.Question) ([]domain.Question, error) {
	out := make([]domain.Question, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, q := range in {
		q.Question = strings.TrimSpace(q.Question)
		if q.Question == "" {
			return nil, fmt.Errorf("question text required: %w", domain.ErrValidation)
		}
		if q.ID == "" {
			q.ID = id.New()
		}
		if _, dup := seen[q.ID]; dup {
			return nil, fmt.Errorf("duplicate question id %q: %w", q.ID, domain.ErrValidation)
		}
		seen[q.ID] = struct{}{}
		out = append(out, q)
	}
	return out, nil
}

func spaceIDFromLink(link string) string {
	link = strings.TrimRight(strings.TrimSpace(link), "/")
	if i := strings.LastIndexByte(link, '/'); i >= 0 {
		return link[i+1:]
	}
	return link
}
