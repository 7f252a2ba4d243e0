package ai

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/testiflow-api/internal/domain"
)

// Client calls the external text-generation service.
type Client struct {
	http *resty.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	c := resty.New().
		SetBaseURL(baseURL).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetTimeout(timeout)
	return &Client{http: c}
}

type generateRequest struct {
	URL string `json:"url"`
}

type summaryResponse struct {
	Summary string `json:"summary"`
}

// GenerateQuestions asks the service for review questions tailored to the site at url.
func (c *Client) GenerateQuestions(ctx context.Context, url string) (*domain.GeneratedQuestions, error) {
	var out domain.GeneratedQuestions
	if err := c.post(ctx, "/generate-testimonial-questions", generateRequest{URL: url}, &out); err != nil {
		return nil, err
	}
	if out.Questions == nil {
		out.Questions = domain.SuggestedQuestions{}
	}
	return &out, nil
}

// Summarize returns a short summary of the reviews in req.
func (c *Client) Summarize(ctx context.Context, req *domain.InsightRequest) (string, error) {
	var out summaryResponse
	if err := c.post(ctx, "/summarize-reviews", req, &out); err != nil {
		return "", err
	}
	return out.Summary, nil
}

// CaseStudy returns a long-form case study built from the reviews in req.
func (c *Client) CaseStudy(ctx context.Context, req *domain.InsightRequest) (string, error) {
	var out summaryResponse
	if err := c.post(ctx, "/generate-casestudy", req, &out); err != nil {
		return "", err
	}
	return out.Summary, nil
}

func (c *Client) post(ctx context.Context, path string, body, result interface{}) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(result).
		Post(path)
	if err != nil {
		return fmt.Errorf("ai %s: %v: %w", path, err, domain.ErrUpstream)
	}
	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("ai %s: status %d: %w", path, resp.StatusCode(), domain.ErrUpstream)
	}
	return nil
}
