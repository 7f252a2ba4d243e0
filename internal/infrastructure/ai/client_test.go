package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testiflow-api/internal/domain"
)

func TestClient_GenerateQuestions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/generate-testimonial-questions", r.URL.Path)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "https://acme.io", body["url"])
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"questions":["What did you like?",{"id":"q2","question":"Would you recommend us?"}],"header":"Tell us","message":"Thanks"}`))
	}))
	defer srv.Close()

	out, err := NewClient(srv.URL, time.Second).GenerateQuestions(context.Background(), "https://acme.io")
	require.NoError(t, err)
	require.Len(t, out.Questions, 2)
	assert.Equal(t, "What did you like?", out.Questions[0].Question)
	assert.Equal(t, "q2", out.Questions[1].ID)
	assert.Equal(t, "Tell us", out.Header)
}

func TestClient_Summarize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/summarize-reviews", r.URL.Path)
		var req domain.InsightRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Len(t, req.Reviews, 1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"summary":"Great"}`))
	}))
	defer srv.Close()

	out, err := NewClient(srv.URL, time.Second).Summarize(context.Background(), &domain.InsightRequest{
		Reviews: []domain.InsightReview{{Name: "Jo"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "Great", out)
}

func TestClient_UpstreamFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, time.Second).CaseStudy(context.Background(), &domain.InsightRequest{})
	assert.True(t, errors.Is(err, domain.ErrUpstream))
}

func TestClient_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewClient(url, time.Second).GenerateQuestions(context.Background(), "https://acme.io")
	assert.True(t, errors.Is(err, domain.ErrUpstream))
}
