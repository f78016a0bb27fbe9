package models

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewUser(t *testing.T) {
	user := NewUser("thanh", "thanh@example.com")

	assert.NotEqual(t, uuid.Nil, user.ID)
	assert.Equal(t, "thanh", user.Username)
	assert.Equal(t, RoleUser, user.Role)
	assert.False(t, user.IsAdmin())
	assert.False(t, user.CreatedAt.IsZero())
	assert.Equal(t, "user_accounts", user.TableName())

	user.Role = RoleAdmin
	assert.True(t, user.IsAdmin())
}

func TestUserRole_Valid(t *testing.T) {
	assert.True(t, RoleUser.Valid())
	assert.True(t, RoleAdmin.Valid())
	assert.False(t, UserRole("guest").Valid())
}

func TestNewCharacter(t *testing.T) {
	c := NewCharacter("tran_hung_dao", "Trần Hưng Đạo")

	assert.Zero(t, c.ID)
	assert.Equal(t, "tran_hung_dao", c.ShortName)
	assert.Equal(t, "Trần Hưng Đạo", c.Name)
	assert.Equal(t, c.CreatedAt, c.UpdatedAt)
	assert.Equal(t, "characters", c.TableName())
}

func TestCharacter_JSONOmitsEmptyOptionals(t *testing.T) {
	data, err := json.Marshal(NewCharacter("le_loi", "Lê Lợi"))
	require.NoError(t, err)

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &out))
	assert.NotContains(t, out, "description")
	assert.NotContains(t, out, "new_price")
	assert.Equal(t, "le_loi", out["short_name"])
}

func TestParseFeedback(t *testing.T) {
	tests := []struct {
		input   string
		want    Feedback
		wantErr bool
	}{
		{input: "like", want: FeedbackLike},
		{input: "dislike", want: FeedbackDislike},
		{input: "LIKE", wantErr: true},
		{input: "", wantErr: true},
		{input: "meh", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseFeedback(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewHistoryLog(t *testing.T) {
	userID := uuid.New()
	log := NewHistoryLog(userID, 7, "Ông là ai?", "prompt", "Ta là Trần Hưng Đạo.")

	assert.Zero(t, log.ID)
	assert.Equal(t, userID, log.UserID)
	assert.Equal(t, int64(7), log.CharacterID)
	assert.Nil(t, log.Feedback)
	assert.False(t, log.CreatedAt.IsZero())
	assert.Equal(t, "history_logs", log.TableName())

	log.WithFeedback(FeedbackLike)
	require.NotNil(t, log.Feedback)
	assert.Equal(t, FeedbackLike, *log.Feedback)
}
