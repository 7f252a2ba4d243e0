package domain

import (
	"encoding/json"
	"strings"
)

type GenerateQuestionsRequest struct {
	URL string `json:"url" validate:"required,url"`
}

// GeneratedQuestions is the AI service's suggestion for a new space.
type GeneratedQuestions struct {
	Questions SuggestedQuestions `json:"questions"`
	Header    string             `json:"header"`
	Message   string             `json:"message"`
}

// SuggestedQuestions accepts either plain strings or {id, question} objects.
type SuggestedQuestions []Question

func (q *SuggestedQuestions) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(SuggestedQuestions, 0, len(raw))
	for _, r := range raw {
		var text string
		if err := json.Unmarshal(r, &text); err == nil {
			if text = strings.TrimSpace(text); text != "" {
				out = append(out, Question{Question: text})
			}
			continue
		}
		var item Question
		if err := json.Unmarshal(r, &item); err != nil {
			return err
		}
		if strings.TrimSpace(item.Question) != "" {
			out = append(out, item)
		}
	}
	*q = out
	return nil
}

// InsightReview is the shape of a review sent to the AI service.
type InsightReview struct {
	Name    string   `json:"name"`
	Email   string   `json:"email"`
	Answers []Answer `json:"reviewText"`
	IsFav   bool     `json:"isFav"`
	Rating  int      `json:"rating"`
}

// InsightRequest is the body of the summary and case-study calls.
type InsightRequest struct {
	Questions []Question      `json:"questions"`
	Reviews   []InsightReview `json:"reviews"`
}

// NewInsightRequest packages the space's questions with the given reviews.
func NewInsightRequest(s *Space, reviews []Review) *InsightRequest {
	req := &InsightRequest{
		Questions: s.Questions,
		Reviews:   make([]InsightReview, 0, len(reviews)),
	}
	if req.Questions == nil {
		req.Questions = []Question{}
	}
	for _, r := range reviews {
		req.Reviews = append(req.Reviews, InsightReview{
			Name:    r.Name,
			Email:   r.Email,
			Answers: r.Answers,
			IsFav:   r.IsFav,
			Rating:  r.Rating,
		})
	}
	return req
}
