package storage

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitlab.com/atividade/api/wa-frontdesk/internal/apperrors"
	"gitlab.com/atividade/api/wa-frontdesk/internal/model"
)

func conversationRows(convs ...model.Conversation) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{
		"id", "user_id", "status", "menu_state", "unit_id", "department_id",
		"last_message_at", "created_at", "updated_at",
	})
	for _, c := range convs {
		rows.AddRow(c.ID, c.UserID, c.Status, c.MenuState, c.UnitID, c.DepartmentID,
			c.LastMessageAt, c.CreatedAt, c.UpdatedAt)
	}
	return rows
}

func TestSaveConversation_Upsert(t *testing.T) {
	repo, mock := newTestRepo(t)
	ctx := context.Background()

	mock.ExpectQuery(`INSERT INTO "conversations" .* ON CONFLICT \("user_id"\) DO UPDATE SET`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(11)))

	conv := &model.Conversation{
		UserID:    queueTestUser,
		Status:    model.ConvStatusStarted,
		MenuState: model.MenuStateRoot,
		CreatedAt: time.Now(),
	}
	err := repo.SaveConversation(ctx, conv)

	require.NoError(t, err)
	assert.Equal(t, int64(11), conv.ID)
}

func TestFindConversationByUserID(t *testing.T) {
	repo, mock := newTestRepo(t)
	ctx := context.Background()

	mock.ExpectQuery(`SELECT \* FROM "conversations" WHERE user_id = \$1`).
		WillReturnRows(conversationRows(model.Conversation{
			ID: 11, UserID: queueTestUser, Status: model.ConvStatusWaitingForAttendant,
			MenuState: model.MenuStateQueued, DepartmentID: queueTestDept,
		}))

	conv, err := repo.FindConversationByUserID(ctx, queueTestUser)

	require.NoError(t, err)
	assert.Equal(t, model.MenuStateQueued, conv.MenuState)
	assert.Equal(t, queueTestDept, conv.DepartmentID)
}

func TestFindConversationByUserID_NotFound(t *testing.T) {
	repo, mock := newTestRepo(t)
	ctx := context.Background()

	mock.ExpectQuery(`SELECT \* FROM "conversations" WHERE user_id = \$1`).
		WillReturnRows(conversationRows())

	_, err := repo.FindConversationByUserID(ctx, queueTestUser)

	require.Error(t, err)
	assert.True(t, apperrors.IsNotFoundError(err))
}

func TestUpdateConversation(t *testing.T) {
	repo, mock := newTestRepo(t)
	ctx := context.Background()

	mock.ExpectExec(`UPDATE "conversations" SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	conv := &model.Conversation{ID: 11, UserID: queueTestUser, Status: model.ConvStatusInService}
	err := repo.UpdateConversation(ctx, conv)

	require.NoError(t, err)
}
