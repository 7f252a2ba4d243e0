package insight

import (
	"context"
	"fmt"
	"strings"

	"github.com/testiflow-api/internal/domain"
	"github.com/testiflow-api/internal/pkg/logger"
	"github.com/testiflow-api/internal/pkg/validate"
)

// Service proxies owner requests to the text-generation service. It never
// writes to a space.
type Service interface {
	GenerateQuestions(ctx context.Context, req domain.GenerateQuestionsRequest) (*domain.GeneratedQuestions, error)
	SummarizeReview(ctx context.Context, callerID, spaceID, reviewID string) (string, error)
	CaseStudy(ctx context.Context, callerID, spaceID string) (string, error)
}

type spaceReader interface {
	Get(ctx context.Context, spaceID string) (*domain.Space, error)
}

type generator interface {
	GenerateQuestions(ctx context.Context, url string) (*domain.GeneratedQuestions, error)
	Summarize(ctx context.Context, req *domain.InsightRequest) (string, error)
	CaseStudy(ctx context.Context, req *domain.InsightRequest) (string, error)
}

type service struct {
	spaces spaceReader
	ai     generator
}

type ServiceDeps struct {
	SpaceRepo spaceReader
	AI        generator
}

func NewService(deps ServiceDeps) Service {
	return &service{spaces: deps.SpaceRepo, ai: deps.AI}
}

func (s *service) GenerateQuestions(ctx context.Context, req domain.GenerateQuestionsRequest) (*domain.GeneratedQuestions, error) {
	req.URL = strings.TrimSpace(req.URL)
	if err := validate.Struct(&req); err != nil {
		return nil, err
	}
	out, err := s.ai.GenerateQuestions(ctx, req.URL)
	if err != nil {
		logger.FromContext(ctx).Warn("question generation failed", "error", err)
		return nil, err
	}
	return out, nil
}

func (s *service) SummarizeReview(ctx context.Context, callerID, spaceID, reviewID string) (string, error) {
	sp, err := s.ownedSpace(ctx, callerID, spaceID)
	if err != nil {
		return "", err
	}
	i := sp.ReviewIndex(reviewID)
	if i < 0 {
		return "", fmt.Errorf("review not found: %w", domain.ErrNotFound)
	}
	summary, err := s.ai.Summarize(ctx, domain.NewInsightRequest(sp, sp.Reviews[i:i+1]))
	if err != nil {
		logger.FromContext(ctx).Warn("review summary failed", "space_id", spaceID, "review_id", reviewID, "error", err)
		return "", err
	}
	return summary, nil
}

func (s *service) CaseStudy(ctx context.Context, callerID, spaceID string) (string, error) {
	sp, err := s.ownedSpace(ctx, callerID, spaceID)
	if err != nil {
		return "", err
	}
	if len(sp.Reviews) == 0 {
		return "", fmt.Errorf("space has no reviews yet: %w", domain.ErrBadRequest)
	}
	study, err := s.ai.CaseStudy(ctx, domain.NewInsightRequest(sp, sp.Reviews))
	if err != nil {
		logger.FromContext(ctx).Warn("case study failed", "space_id", spaceID, "error", err)
		return "", err
	}
	return study, nil
}

func (s *service) ownedSpace(ctx context.Context, callerID, spaceID string) (*domain.Space, error) {
	if spaceID == "" {
		return nil, fmt.Errorf("spaceId required: %w", domain.ErrBadRequest)
	}
	sp, err := s.spaces.Get(ctx, spaceID)
	if err != nil {
		return nil, err
	}
	if !sp.IsOwnedBy(callerID) {
		return nil, fmt.Errorf("not the owner of this space: %w", domain.ErrForbidden)
	}
	return sp, nil
}
