package postgres

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/upb/character-chat/models"
	"github.com/upb/character-chat/repositories"
)

func newMockDB(t *testing.T) (*DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	return Wrap(sqlDB, zap.NewNop()), mock
}

var characterRowColumns = []string{
	"id", "short_name", "name", "description", "background_image", "profile_image",
	"original_price", "new_price", "percentage_discount", "created_at", "updated_at",
}

var historyRowColumns = []string{"id", "user_id", "character_id", "question", "prompt", "answer", "feedback", "created_at"}

func TestUserRepository_GetByID(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepository(db, zap.NewNop())
	id := uuid.New()
	now := time.Now()

	mock.ExpectQuery("SELECT uid, username, name, email, role, created_at FROM user_accounts WHERE uid").
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"uid", "username", "name", "email", "role", "created_at"}).
			AddRow(id.String(), "thanh", nil, "thanh@example.com", "admin", now))

	user, err := repo.GetByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, id, user.ID)
	assert.Nil(t, user.Name)
	assert.Equal(t, models.RoleAdmin, user.Role)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_NotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepository(db, zap.NewNop())
	id := uuid.New()

	mock.ExpectQuery("FROM user_accounts WHERE uid").
		WithArgs(id).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), id)
	assert.ErrorIs(t, err, repositories.ErrNotFound)
}

func TestUserRepository_Create(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepository(db, zap.NewNop())
	user := models.NewUser("thanh", "thanh@example.com")

	mock.ExpectExec("INSERT INTO user_accounts").
		WithArgs(user.ID, user.Username, user.Name, user.Email, user.Role, user.CreatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Create(context.Background(), user))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_CreateDuplicate(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepository(db, zap.NewNop())
	user := models.NewUser("thanh", "thanh@example.com")

	mock.ExpectExec("INSERT INTO user_accounts").
		WillReturnError(&pq.Error{Code: "23505", Message: "duplicate key value violates unique constraint"})

	err := repo.Create(context.Background(), user)
	assert.ErrorIs(t, err, repositories.ErrDuplicate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCharacterRepository_GetByID(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewCharacterRepository(db, zap.NewNop())
	now := time.Now()

	mock.ExpectQuery("FROM characters c WHERE c.id").
		WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows(characterRowColumns).
			AddRow(3, "tran_hung_dao", "Trần Hưng Đạo", "Danh tướng nhà Trần", nil, nil, 100.0, 80.0, nil, now, now))

	c, err := repo.GetByID(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, "tran_hung_dao", c.ShortName)
	require.NotNil(t, c.Description)
	assert.Equal(t, "Danh tướng nhà Trần", *c.Description)
	assert.Nil(t, c.ProfileImage)
	require.NotNil(t, c.NewPrice)
	assert.Equal(t, 80.0, *c.NewPrice)
	assert.Nil(t, c.PercentageDiscount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCharacterRepository_Lookups(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewCharacterRepository(db, zap.NewNop())

	mock.ExpectQuery("FROM characters c WHERE c.id").
		WithArgs(int64(99)).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery("FROM characters c WHERE c.short_name").
		WithArgs("le_loi").
		WillReturnError(errors.New("connection reset"))

	_, err := repo.GetByID(context.Background(), 99)
	assert.ErrorIs(t, err, repositories.ErrNotFound)

	_, err = repo.GetByShortName(context.Background(), "le_loi")
	require.Error(t, err)
	assert.NotErrorIs(t, err, repositories.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCharacterRepository_ListAndOwnership(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewCharacterRepository(db, zap.NewNop())
	userID := uuid.New()
	now := time.Now()

	mock.ExpectQuery("FROM characters c ORDER BY c.id LIMIT").
		WithArgs(10, 0).
		WillReturnRows(sqlmock.NewRows(characterRowColumns).
			AddRow(1, "le_loi", "Lê Lợi", nil, nil, nil, nil, nil, nil, now, now).
			AddRow(2, "tran_hung_dao", "Trần Hưng Đạo", nil, nil, nil, nil, nil, nil, now, now))
	mock.ExpectQuery("JOIN user_character uc").
		WithArgs(userID).
		WillReturnRows(sqlmock.NewRows(characterRowColumns).
			AddRow(2, "tran_hung_dao", "Trần Hưng Đạo", nil, nil, nil, nil, nil, nil, now, now))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS(SELECT 1 FROM user_character")).
		WithArgs(userID, int64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	all, err := repo.List(context.Background(), 10, 0)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	owned, err := repo.ListOwnedBy(context.Background(), userID)
	require.NoError(t, err)
	require.Len(t, owned, 1)
	assert.Equal(t, int64(2), owned[0].ID)

	ok, err := repo.IsOwnedBy(context.Background(), userID, 2)
	require.NoError(t, err)
	assert.True(t, ok)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCharacterRepository_Create(t *testing.T) {
	tests := []struct {
		name    string
		result  func(*sqlmock.ExpectedQuery)
		wantID  int64
		wantErr error
	}{
		{
			name: "assigns the id",
			result: func(q *sqlmock.ExpectedQuery) {
				q.WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))
			},
			wantID: 7,
		},
		{
			name: "short name taken",
			result: func(q *sqlmock.ExpectedQuery) {
				q.WillReturnError(&pq.Error{Code: "23505"})
			},
			wantErr: repositories.ErrDuplicate,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := newMockDB(t)
			repo := NewCharacterRepository(db, zap.NewNop())
			c := models.NewCharacter("tran_hung_dao", "Trần Hưng Đạo")
			price := 1000000.0
			c.NewPrice = &price

			q := mock.ExpectQuery("INSERT INTO characters").
				WithArgs(c.ShortName, c.Name, nil, nil, nil, nil, price, nil, c.CreatedAt, c.UpdatedAt)
			tt.result(q)

			err := repo.Create(context.Background(), c)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.wantID, c.ID)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestCharacterRepository_Update(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewCharacterRepository(db, zap.NewNop())
	description := "Danh tướng nhà Trần"
	c := models.NewCharacter("tran_hung_dao", "Hưng Đạo Vương")
	c.ID = 3
	c.Description = &description

	mock.ExpectExec("UPDATE characters").
		WithArgs(c.ShortName, c.Name, description, nil, nil, nil, nil, nil, c.UpdatedAt, int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE characters").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("UPDATE characters").
		WillReturnError(&pq.Error{Code: "23505"})

	require.NoError(t, repo.Update(context.Background(), c))
	assert.ErrorIs(t, repo.Update(context.Background(), c), repositories.ErrNotFound)
	assert.ErrorIs(t, repo.Update(context.Background(), c), repositories.ErrDuplicate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCharacterRepository_GrantOwnership(t *testing.T) {
	tests := []struct {
		name    string
		result  func(*sqlmock.ExpectedExec)
		wantErr error
	}{
		{
			name:   "new grant",
			result: func(e *sqlmock.ExpectedExec) { e.WillReturnResult(sqlmock.NewResult(0, 1)) },
		},
		{
			name:    "already owned",
			result:  func(e *sqlmock.ExpectedExec) { e.WillReturnResult(sqlmock.NewResult(0, 0)) },
			wantErr: repositories.ErrDuplicate,
		},
		{
			name:    "unknown user or character",
			result:  func(e *sqlmock.ExpectedExec) { e.WillReturnError(&pq.Error{Code: "23503"}) },
			wantErr: repositories.ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := newMockDB(t)
			repo := NewCharacterRepository(db, zap.NewNop())
			userID := uuid.New()

			tt.result(mock.ExpectExec("INSERT INTO user_character").WithArgs(userID, int64(2)))

			err := repo.GrantOwnership(context.Background(), userID, 2)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestHistoryLogRepository_Insert(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewHistoryLogRepository(db, zap.NewNop())
	log := models.NewHistoryLog(uuid.New(), 2, "Ông là ai?", "prompt", "Ta là Trần Hưng Đạo.")

	mock.ExpectQuery("INSERT INTO history_logs").
		WithArgs(log.UserID, log.CharacterID, log.Question, log.Prompt, log.Answer, nil, log.CreatedAt).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(17))

	require.NoError(t, repo.Insert(context.Background(), log))
	assert.Equal(t, int64(17), log.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHistoryLogRepository_List(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewHistoryLogRepository(db, zap.NewNop())
	userID := uuid.New()
	now := time.Now()

	mock.ExpectQuery("FROM history_logs\\s+WHERE user_id").
		WithArgs(userID, 20, 0).
		WillReturnRows(sqlmock.NewRows(historyRowColumns).
			AddRow(2, userID.String(), 1, "q2", "p2", "a2", "like", now).
			AddRow(1, userID.String(), 1, "q1", "p1", "a1", nil, now.Add(-time.Minute)))
	mock.ExpectQuery("FROM history_logs\\s+WHERE character_id").
		WithArgs(int64(1), 5, 5).
		WillReturnRows(sqlmock.NewRows(historyRowColumns))

	logs, err := repo.ListByUser(context.Background(), userID, 20, 0)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	require.NotNil(t, logs[0].Feedback)
	assert.Equal(t, models.FeedbackLike, *logs[0].Feedback)
	assert.Nil(t, logs[1].Feedback)

	logs, err = repo.ListByCharacter(context.Background(), 1, 5, 5)
	require.NoError(t, err)
	assert.Empty(t, logs)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHistoryLogRepository_UpdateFeedback(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewHistoryLogRepository(db, zap.NewNop())

	mock.ExpectExec("UPDATE history_logs SET feedback").
		WithArgs("dislike", int64(5)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE history_logs SET feedback").
		WithArgs("like", int64(404)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.UpdateFeedback(context.Background(), 5, models.FeedbackDislike))
	assert.ErrorIs(t, repo.UpdateFeedback(context.Background(), 404, models.FeedbackLike), repositories.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHistoryLogRepository_GetByIDLocksInsideTransaction(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewHistoryLogRepository(db, zap.NewNop())
	txMgr := NewTransactionManager(db, zap.NewNop())
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery("FROM history_logs WHERE id = \\$1 FOR UPDATE").
		WithArgs(int64(5)).
		WillReturnRows(sqlmock.NewRows(historyRowColumns).
			AddRow(5, uuid.New().String(), 1, "q", "p", "a", nil, now))
	mock.ExpectExec("UPDATE history_logs SET feedback").
		WithArgs("like", int64(5)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := txMgr.InTransaction(context.Background(), func(ctx context.Context, tx repositories.Transaction) error {
		if _, err := repo.GetByID(ctx, 5); err != nil {
			return err
		}
		return repo.UpdateFeedback(ctx, 5, models.FeedbackLike)
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionManager_RollsBackOnError(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewHistoryLogRepository(db, zap.NewNop())
	txMgr := NewTransactionManager(db, zap.NewNop())

	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE").WithArgs(int64(9)).WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	err := txMgr.InTransaction(context.Background(), func(ctx context.Context, tx repositories.Transaction) error {
		_, err := repo.GetByID(ctx, 9)
		return err
	})
	assert.ErrorIs(t, err, repositories.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionManager_NestedJoinsOuter(t *testing.T) {
	db, mock := newMockDB(t)
	txMgr := NewTransactionManager(db, zap.NewNop())

	mock.ExpectBegin()
	mock.ExpectCommit()

	err := txMgr.InTransaction(context.Background(), func(ctx context.Context, outer repositories.Transaction) error {
		return txMgr.InTransaction(ctx, func(ctx context.Context, inner repositories.Transaction) error {
			assert.Same(t, outer, inner)
			return nil
		})
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDB_HealthCheckAndSchema(t *testing.T) {
	sqlDB, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer sqlDB.Close()
	db := Wrap(sqlDB, nil)

	mock.ExpectPing()
	mock.ExpectQuery("SELECT 1").WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS user_accounts").WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, db.HealthCheck(context.Background()))
	require.NoError(t, db.InitSchema(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryFactory(t *testing.T) {
	db, _ := newMockDB(t)
	f := NewRepositoryFactoryFromDB(db, zap.NewNop())

	repos := f.NewRepositories()
	assert.NotNil(t, repos.Users)
	assert.NotNil(t, repos.Characters)
	assert.NotNil(t, repos.HistoryLogs)
	assert.NotNil(t, f.GetTransactionManager())
	assert.Same(t, db, f.GetDB())
}
