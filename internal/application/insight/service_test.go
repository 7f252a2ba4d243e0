package insight

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/testiflow-api/internal/domain"
)

type mockSpaceReader struct{ mock.Mock }

func (m *mockSpaceReader) Get(ctx context.Context, spaceID string) (*domain.Space, error) {
	args := m.Called(ctx, spaceID)
	if s, _ := args.Get(0).(*domain.Space); s != nil {
		return s, args.Error(1)
	}
	return nil, args.Error(1)
}

type mockGenerator struct{ mock.Mock }

func (m *mockGenerator) GenerateQuestions(ctx context.Context, url string) (*domain.GeneratedQuestions, error) {
	args := m.Called(ctx, url)
	if q, _ := args.Get(0).(*domain.GeneratedQuestions); q != nil {
		return q, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockGenerator) Summarize(ctx context.Context, req *domain.InsightRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}
func (m *mockGenerator) CaseStudy(ctx context.Context, req *domain.InsightRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

func newTestService() (Service, *mockSpaceReader, *mockGenerator) {
	spaces := new(mockSpaceReader)
	ai := new(mockGenerator)
	return NewService(ServiceDeps{SpaceRepo: spaces, AI: ai}), spaces, ai
}

func space(reviews ...domain.Review) *domain.Space {
	return &domain.Space{
		SpaceID:   "space-1",
		OwnerID:   "acc-1",
		Questions: []domain.Question{{ID: "q1", Question: "Why?"}},
		Reviews:   reviews,
	}
}

func TestGenerateQuestions_ValidatesURL(t *testing.T) {
	svc, _, ai := newTestService()

	_, err := svc.GenerateQuestions(context.Background(), domain.GenerateQuestionsRequest{URL: "not a url"})
	assert.True(t, errors.Is(err, domain.ErrValidation))
	ai.AssertNotCalled(t, "GenerateQuestions", mock.Anything, mock.Anything)
}

func TestGenerateQuestions_PassesThrough(t *testing.T) {
	svc, _, ai := newTestService()
	want := &domain.GeneratedQuestions{Header: "Hi", Questions: domain.SuggestedQuestions{{Question: "Why?"}}}
	ai.On("GenerateQuestions", mock.Anything, "https://acme.io").Return(want, nil)

	got, err := svc.GenerateQuestions(context.Background(), domain.GenerateQuestionsRequest{URL: " https://acme.io "})
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestGenerateQuestions_UpstreamFailure(t *testing.T) {
	svc, _, ai := newTestService()
	ai.On("GenerateQuestions", mock.Anything, mock.Anything).Return(nil, fmt.Errorf("status 500: %w", domain.ErrUpstream))

	_, err := svc.GenerateQuestions(context.Background(), domain.GenerateQuestionsRequest{URL: "https://acme.io"})
	assert.True(t, errors.Is(err, domain.ErrUpstream))
}

func TestSummarizeReview_SendsOnlyThatReview(t *testing.T) {
	svc, spaces, ai := newTestService()
	spaces.On("Get", mock.Anything, "space-1").Return(space(
		domain.Review{ReviewID: "r1", Name: "Ann"},
		domain.Review{ReviewID: "r2", Name: "Bob"},
	), nil)
	ai.On("Summarize", mock.Anything, mock.MatchedBy(func(req *domain.InsightRequest) bool {
		return len(req.Reviews) == 1 && req.Reviews[0].Name == "Bob" && len(req.Questions) == 1
	})).Return("Bob liked it", nil)

	out, err := svc.SummarizeReview(context.Background(), "acc-1", "space-1", "r2")
	require.NoError(t, err)
	assert.Equal(t, "Bob liked it", out)
}

func TestSummarizeReview_Errors(t *testing.T) {
	svc, spaces, ai := newTestService()
	spaces.On("Get", mock.Anything, "space-1").Return(space(domain.Review{ReviewID: "r1"}), nil)
	spaces.On("Get", mock.Anything, "missing").Return(nil, fmt.Errorf("space not found: %w", domain.ErrNotFound))

	_, err := svc.SummarizeReview(context.Background(), "intruder", "space-1", "r1")
	assert.True(t, errors.Is(err, domain.ErrForbidden))
	_, err = svc.SummarizeReview(context.Background(), "acc-1", "space-1", "nope")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
	_, err = svc.SummarizeReview(context.Background(), "acc-1", "missing", "r1")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
	ai.AssertNotCalled(t, "Summarize", mock.Anything, mock.Anything)
}

func TestCaseStudy_RequiresReviews(t *testing.T) {
	svc, spaces, ai := newTestService()
	spaces.On("Get", mock.Anything, "space-1").Return(space(), nil)

	_, err := svc.CaseStudy(context.Background(), "acc-1", "space-1")
	assert.True(t, errors.Is(err, domain.ErrBadRequest))
	ai.AssertNotCalled(t, "CaseStudy", mock.Anything, mock.Anything)
}

func TestCaseStudy_UsesAllReviews(t *testing.T) {
	svc, spaces, ai := newTestService()
	spaces.On("Get", mock.Anything, "space-1").Return(space(
		domain.Review{ReviewID: "r1"}, domain.Review{ReviewID: "r2"}, domain.Review{ReviewID: "r3"},
	), nil)
	ai.On("CaseStudy", mock.Anything, mock.MatchedBy(func(req *domain.InsightRequest) bool {
		return len(req.Reviews) == 3
	})).Return("story", nil)

	out, err := svc.CaseStudy(context.Background(), "acc-1", "space-1")
	require.NoError(t, err)
	assert.Equal(t, "story", out)
}

func TestCaseStudy_UpstreamFailure(t *testing.T) {
	svc, spaces, ai := newTestService()
	spaces.On("Get", mock.Anything, "space-1").Return(space(domain.Review{ReviewID: "r1"}), nil)
	ai.On("CaseStudy", mock.Anything, mock.Anything).Return("", fmt.Errorf("timeout: %w", domain.ErrUpstream))

	_, err := svc.CaseStudy(context.Background(), "acc-1", "space-1")
	assert.True(t, errors.Is(err, domain.ErrUpstream))
}
