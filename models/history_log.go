package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Feedback is a user's rating of an answer
type Feedback string

const (
	FeedbackLike    Feedback = "like"
	FeedbackDislike Feedback = "dislike"
)

// ParseFeedback validates a raw feedback value
func ParseFeedback(s string) (Feedback, error) {
	switch f := Feedback(s); f {
	case FeedbackLike, FeedbackDislike:
		return f, nil
	default:
		return "", fmt.Errorf("invalid feedback %q: must be like or dislike", s)
	}
}

// HistoryLog records one question asked to a character together with the
// prompt sent to the model and the answer returned
type HistoryLog struct {
	ID          int64     `json:"id" db:"id"`
	UserID      uuid.UUID `json:"user_id" db:"user_id"`
	CharacterID int64     `json:"character_id" db:"character_id"`
	Question    string    `json:"question" db:"question"`
	Prompt      string    `json:"prompt" db:"prompt"`
	Answer      string    `json:"answer" db:"answer"`
	Feedback    *Feedback `json:"feedback,omitempty" db:"feedback"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// TableName returns the table name for the HistoryLog model
func (HistoryLog) TableName() string {
	return "history_logs"
}

// NewHistoryLog creates an unsaved log entry
func NewHistoryLog(userID uuid.UUID, characterID int64, question, prompt, answer string) *HistoryLog {
	return &HistoryLog{
		UserID:      userID,
		CharacterID: characterID,
		Question:    question,
		Prompt:      prompt,
		Answer:      answer,
		CreatedAt:   time.Now(),
	}
}

// WithFeedback sets the feedback
func (h *HistoryLog) WithFeedback(f Feedback) *HistoryLog {
	h.Feedback = &f
	return h
}
