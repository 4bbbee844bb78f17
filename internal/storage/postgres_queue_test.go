package storage

import (
	"context"
	"database/sql/driver"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"gitlab.com/atividade/api/wa-frontdesk/internal/apperrors"
	"gitlab.com/atividade/api/wa-frontdesk/internal/model"
	"gitlab.com/atividade/api/wa-frontdesk/pkg/logger"
)

// Note on SQL query matching:
// GORM appends ORDER BY and LIMIT clauses that make exact string matching
// brittle, so these tests use regex matching against the stable part of
// each statement and sqlmock.AnyArg for timestamps.

const (
	queueTestUser = "5511999990001@s.whatsapp.net"
	queueTestDept = "dept-geral"
)

// AnyTime matches any time.Time argument.
type AnyTime struct{}

func (a AnyTime) Match(v driver.Value) bool {
	_, ok := v.(time.Time)
	return ok
}

// newTestRepo creates a PostgresRepo backed by sqlmock with regex query
// matching.
func newTestRepo(t *testing.T) (*PostgresRepo, sqlmock.Sqlmock) {
	t.Helper()
	logger.Log = zaptest.NewLogger(t).Named("test")

	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn:                 db,
		PreferSimpleProtocol: true,
	}), &gorm.Config{
		Logger:                 gormLogger.Default.LogMode(gormLogger.Silent),
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
	})
	return &PostgresRepo{db: gormDB}, mock
}

func queueEntryRows(entries ...model.QueueEntry) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{
		"id", "department_id", "unit_id", "user_id", "status", "abandon_reason",
		"last_message_at", "last_notified_at", "created_at", "updated_at",
	})
	for _, e := range entries {
		rows.AddRow(e.ID, e.DepartmentID, e.UnitID, e.UserID, e.Status, e.AbandonReason,
			e.LastMessageAt, e.LastNotifiedAt, e.CreatedAt, e.UpdatedAt)
	}
	return rows
}

func TestSaveQueueEntry(t *testing.T) {
	repo, mock := newTestRepo(t)
	ctx := context.Background()

	mock.ExpectQuery(`INSERT INTO "queue_entries"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(7)))

	entry := &model.QueueEntry{
		DepartmentID: queueTestDept,
		UnitID:       "unit-centro",
		UserID:       queueTestUser,
		Status:       model.QueueStatusWaiting,
		CreatedAt:    time.Now(),
	}
	err := repo.SaveQueueEntry(ctx, entry)

	require.NoError(t, err)
	assert.Equal(t, int64(7), entry.ID)
}

func TestUpdateQueueEntry(t *testing.T) {
	repo, mock := newTestRepo(t)
	ctx := context.Background()

	mock.ExpectExec(`UPDATE "queue_entries" SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	entry := &model.QueueEntry{ID: 7, Status: model.QueueStatusInService}
	err := repo.UpdateQueueEntry(ctx, entry)

	require.NoError(t, err)
}

func TestUpdateQueueEntry_NotFound(t *testing.T) {
	repo, mock := newTestRepo(t)
	ctx := context.Background()

	mock.ExpectExec(`UPDATE "queue_entries" SET`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	entry := &model.QueueEntry{ID: 404, Status: model.QueueStatusAbandoned}
	err := repo.UpdateQueueEntry(ctx, entry)

	require.Error(t, err)
	assert.True(t, apperrors.IsNotFoundError(err))
}

func TestFindActiveQueueEntryByUser(t *testing.T) {
	repo, mock := newTestRepo(t)
	ctx := context.Background()

	now := time.Now()
	mock.ExpectQuery(`SELECT \* FROM "queue_entries" WHERE user_id = \$1 AND status IN`).
		WillReturnRows(queueEntryRows(model.QueueEntry{
			ID: 3, DepartmentID: queueTestDept, UserID: queueTestUser,
			Status: model.QueueStatusWaiting, CreatedAt: now, UpdatedAt: now,
		}))

	entry, err := repo.FindActiveQueueEntryByUser(ctx, queueTestUser)

	require.NoError(t, err)
	assert.Equal(t, int64(3), entry.ID)
	assert.Equal(t, model.QueueStatusWaiting, entry.Status)
}

func TestFindActiveQueueEntryByUser_NotFound(t *testing.T) {
	repo, mock := newTestRepo(t)
	ctx := context.Background()

	mock.ExpectQuery(`SELECT \* FROM "queue_entries" WHERE user_id = \$1 AND status IN`).
		WillReturnRows(queueEntryRows())

	_, err := repo.FindActiveQueueEntryByUser(ctx, queueTestUser)

	require.Error(t, err)
	assert.True(t, apperrors.IsNotFoundError(err))
}

func TestFindWaitingQueueEntriesByDepartment(t *testing.T) {
	repo, mock := newTestRepo(t)
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	mock.ExpectQuery(`SELECT \* FROM "queue_entries" WHERE department_id = \$1 AND status = \$2 ORDER BY created_at ASC, id ASC`).
		WillReturnRows(queueEntryRows(
			model.QueueEntry{ID: 1, DepartmentID: queueTestDept, UserID: queueTestUser, Status: model.QueueStatusWaiting, CreatedAt: base},
			model.QueueEntry{ID: 2, DepartmentID: queueTestDept, UserID: "5511999990002@s.whatsapp.net", Status: model.QueueStatusWaiting, CreatedAt: base.Add(time.Minute)},
		))

	entries, err := repo.FindWaitingQueueEntriesByDepartment(ctx, queueTestDept)

	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, int64(1), entries[0].ID)
	assert.Equal(t, int64(2), entries[1].ID)
}

func TestFindFinishedQueueEntriesPendingClose(t *testing.T) {
	repo, mock := newTestRepo(t)
	ctx := context.Background()

	mock.ExpectQuery(`SELECT \* FROM "queue_entries" WHERE status = \$1 AND \(last_notified_at IS NULL OR last_notified_at < updated_at\)`).
		WillReturnRows(queueEntryRows(model.QueueEntry{
			ID: 5, DepartmentID: queueTestDept, UserID: queueTestUser, Status: model.QueueStatusFinished,
		}))

	entries, err := repo.FindFinishedQueueEntriesPendingClose(ctx)

	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, model.QueueStatusFinished, entries[0].Status)
}

func TestCountWaitingQueueEntriesAhead(t *testing.T) {
	repo, mock := newTestRepo(t)
	ctx := context.Background()

	mock.ExpectQuery(`SELECT count\(\*\) FROM "queue_entries"`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(2)))

	count, err := repo.CountWaitingQueueEntriesAhead(ctx, queueTestDept, time.Now(), 9)

	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestListActiveQueueDepartmentIDs(t *testing.T) {
	repo, mock := newTestRepo(t)
	ctx := context.Background()

	mock.ExpectQuery(`SELECT DISTINCT "department_id" FROM "queue_entries"`).
		WillReturnRows(sqlmock.NewRows([]string{"department_id"}).
			AddRow("dept-exames").
			AddRow(queueTestDept))

	ids, err := repo.ListActiveQueueDepartmentIDs(ctx)

	require.NoError(t, err)
	assert.Equal(t, []string{"dept-exames", queueTestDept}, ids)
}
