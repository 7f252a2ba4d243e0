package validate

import (
	"errors"
	"testing"

	"github.com/testiflow-api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStruct_ValidPasses(t *testing.T) {
	err := Struct(domain.SignupRequest{Email: "a@b.com", Password: "password123", Name: "Alice"})
	assert.NoError(t, err)
}

func TestStruct_MissingFieldsWrapValidation(t *testing.T) {
	err := Struct(domain.SignupRequest{Email: "not-an-email"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrValidation))
	assert.Contains(t, err.Error(), "Password")
	assert.Contains(t, err.Error(), "Name")
}

func TestStruct_DivesIntoAnswers(t *testing.T) {
	err := Struct(domain.CreateReviewRequest{
		SpaceID: "s1",
		Name:    "Bob",
		Email:   "bob@example.com",
		Answers: []domain.Answer{{QuestionID: "q1", Answer: "great"}, {QuestionID: "q2"}},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrValidation))
	assert.Contains(t, err.Error(), "Answers[1].Answer")
}
