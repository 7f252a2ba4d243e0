package domain

import "time"

// Question is one prompt shown on a space's public review page. ID stays stable
// across edits so stored answers remain addressable.
type Question struct {
	ID       string `json:"id" dynamodbav:"id"`
	Question string `json:"question" dynamodbav:"question" validate:"required,max=500"`
}

// Answer is a submitter's reply to a single question.
type Answer struct {
	QuestionID string `json:"questionId" dynamodbav:"question_id" validate:"required"`
	Answer     string `json:"answer" dynamodbav:"answer" validate:"required,max=5000"`
}

// Review is a testimonial embedded in its parent Space. The space document is
// the only persisted copy.
type Review struct {
	ReviewID  string    `json:"id" dynamodbav:"review_id"`
	Name      string    `json:"name" dynamodbav:"name"`
	Email     string    `json:"email" dynamodbav:"email"`
	Answers   []Answer  `json:"reviewText" dynamodbav:"answers"`
	Rating    int       `json:"rating" dynamodbav:"rating"`
	IsFav     bool      `json:"isFav" dynamodbav:"is_fav"`
	CreatedAt time.Time `json:"createdAt" dynamodbav:"created_at"`
}

// Space is a testimonial collection point owned by one account.
type Space struct {
	RecordID      string     `json:"id" dynamodbav:"record_id"`
	SpaceID       string     `json:"spaceId" dynamodbav:"space_id"`
	OwnerID       string     `json:"ownerId" dynamodbav:"owner_id"`
	OwnerEmail    string     `json:"userEmail" dynamodbav:"owner_email"`
	SpaceName     string     `json:"spaceName" dynamodbav:"space_name"`
	SpaceLogo     string     `json:"spaceLogo" dynamodbav:"space_logo"`
	HeaderTitle   string     `json:"headerTitle" dynamodbav:"header_title"`
	CustomMessage string     `json:"customMessage" dynamodbav:"custom_message"`
	Questions     []Question `json:"questions" dynamodbav:"questions"`
	Reviews       []Review   `json:"reviews" dynamodbav:"reviews"`
	Link          string     `json:"link" dynamodbav:"link"`
	Version       int64      `json:"version" dynamodbav:"version"`
	CreatedAt     time.Time  `json:"createdAt" dynamodbav:"created_at"`
	UpdatedAt     time.Time  `json:"updatedAt" dynamodbav:"updated_at"`
}

// IsOwnedBy reports whether accountID owns the space.
func (s *Space) IsOwnedBy(accountID string) bool {
	return accountID != "" && s.OwnerID == accountID
}

// ReviewIndex returns the position of the review with reviewID, or -1.
func (s *Space) ReviewIndex(reviewID string) int {
	for i := range s.Reviews {
		if s.Reviews[i].ReviewID == reviewID {
			return i
		}
	}
	return -1
}

// HasQuestion reports whether questionID is one of the space's current questions.
func (s *Space) HasQuestion(questionID string) bool {
	for _, q := range s.Questions {
		if q.ID == questionID {
			return true
		}
	}
	return false
}

// PublicSpace is what anonymous visitors of the review link may see.
type PublicSpace struct {
	SpaceID       string     `json:"spaceId"`
	SpaceName     string     `json:"spaceName"`
	SpaceLogo     string     `json:"spaceLogo"`
	HeaderTitle   string     `json:"headerTitle"`
	CustomMessage string     `json:"customMessage"`
	Questions     []Question `json:"questions"`
	Link          string     `json:"link"`
}

// NewPublicSpace strips owner identity and reviews from s.
func NewPublicSpace(s *Space) *PublicSpace {
	questions := s.Questions
	if questions == nil {
		questions = []Question{}
	}
	return &PublicSpace{
		SpaceID:       s.SpaceID,
		SpaceName:     s.SpaceName,
		SpaceLogo:     s.SpaceLogo,
		HeaderTitle:   s.HeaderTitle,
		CustomMessage: s.CustomMessage,
		Questions:     questions,
		Link:          s.Link,
	}
}

// PublicReview is a wall-of-love entry; the submitter's email is never exposed.
type PublicReview struct {
	ReviewID  string    `json:"id"`
	Name      string    `json:"name"`
	Answers   []Answer  `json:"reviewText"`
	Rating    int       `json:"rating"`
	CreatedAt time.Time `json:"createdAt"`
}

type CreateSpaceRequest struct {
	SpaceName     string     `json:"spaceName" validate:"required,max=120"`
	SpaceLogo     string     `json:"spaceLogo" validate:"omitempty,max=2048"`
	HeaderTitle   string     `json:"headerTitle" validate:"required,max=200"`
	CustomMessage string     `json:"customMessage" validate:"max=2000"`
	Questions     []Question `json:"questions" validate:"dive"`
}

// SpacePatch is a field-level partial update; nil fields are left untouched.
type SpacePatch struct {
	SpaceName     *string     `json:"spaceName" validate:"omitempty,min=1,max=120"`
	SpaceLogo     *string     `json:"spaceLogo" validate:"omitempty,max=2048"`
	HeaderTitle   *string     `json:"headerTitle" validate:"omitempty,min=1,max=200"`
	CustomMessage *string     `json:"customMessage" validate:"omitempty,max=2000"`
	Questions     *[]Question `json:"questions" validate:"omitempty,dive"`
}

type EditSpaceRequest struct {
	SpaceID   string     `json:"spaceId" validate:"required"`
	SpaceData SpacePatch `json:"spaceData"`
}

type CreateReviewRequest struct {
	SpaceID string   `json:"spaceId" validate:"required"`
	Name    string   `json:"name" validate:"required,max=120"`
	Email   string   `json:"email" validate:"required,email"`
	Rating  int      `json:"rating"`
	// Answers may be empty only when the space asks no questions.
	Answers []Answer `json:"reviewText" validate:"dive"`
}

// ToggleFavouriteRequest sets IsFav when present and flips the flag otherwise.
type ToggleFavouriteRequest struct {
	SpaceID  string `json:"spaceId" validate:"required"`
	ReviewID string `json:"reviewId" validate:"required"`
	IsFav    *bool  `json:"isFav"`
}
