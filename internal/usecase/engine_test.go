package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"gitlab.com/atividade/api/wa-frontdesk/internal/apperrors"
	"gitlab.com/atividade/api/wa-frontdesk/internal/cache"
	"gitlab.com/atividade/api/wa-frontdesk/internal/model"
	storagemock "gitlab.com/atividade/api/wa-frontdesk/internal/storage/mock"
	"gitlab.com/atividade/api/wa-frontdesk/pkg/logger"
)

type senderMock struct {
	mock.Mock
}

func (m *senderMock) Send(ctx context.Context, userID, text string) error {
	args := m.Called(ctx, userID, text)
	return args.Error(0)
}

type staticTunables struct {
	tun cache.Tunables
}

func (s staticTunables) Tunables() cache.Tunables {
	return s.tun
}

type serviceFixture struct {
	svc          *QueueService
	queueRepo    *storagemock.QueueEntryRepoMock
	convRepo     *storagemock.ConversationRepoMock
	interactions *storagemock.InteractionRepoMock
	catalog      *storagemock.CatalogRepoMock
	sender       *senderMock
	now          time.Time
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()
	logger.Log = zaptest.NewLogger(t).Named("test")
	f := &serviceFixture{
		queueRepo:    new(storagemock.QueueEntryRepoMock),
		convRepo:     new(storagemock.ConversationRepoMock),
		interactions: new(storagemock.InteractionRepoMock),
		catalog:      new(storagemock.CatalogRepoMock),
		sender:       new(senderMock),
		now:          time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	f.svc = NewQueueService(f.queueRepo, f.convRepo, f.interactions, f.catalog,
		staticTunables{tun: cache.DefaultTunables()}, f.sender)
	f.svc.now = func() time.Time { return f.now }
	return f
}

func (f *serviceFixture) advance(d time.Duration) {
	f.now = f.now.Add(d)
}

const (
	testUser = "5511999990001@s.whatsapp.net"
	testUnit = "unit-centro"
	testDept = "dept-geral"
)

func activeDept() *model.Department {
	return &model.Department{ID: testDept, UnitID: testUnit, Name: "Atendimento Geral", Active: true}
}

func TestEnterQueue_EmptyDepartmentStartsServiceAtOnce(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	f.catalog.On("FindDepartment", ctx, testDept).Return(activeDept(), nil)
	f.queueRepo.On("FindActiveByUser", ctx, testUser).Return(nil, apperrors.ErrNotFound)
	f.queueRepo.On("FindInServiceByDepartment", ctx, testDept).Return(nil, apperrors.ErrNotFound)
	var saved *model.QueueEntry
	f.queueRepo.On("Save", ctx, mock.AnythingOfType("*model.QueueEntry")).
		Run(func(args mock.Arguments) { saved = args.Get(1).(*model.QueueEntry) }).
		Return(nil)
	f.interactions.On("Save", ctx, mock.AnythingOfType("*model.Interaction")).Return(nil)
	f.sender.On("Send", ctx, testUser, msgYourTurn).Return(nil)
	conv := &model.Conversation{ID: 1, UserID: testUser, Status: model.ConvStatusStarted, MenuState: model.MenuStateDepartment}
	f.convRepo.On("FindByUserID", ctx, testUser).Return(conv, nil)
	f.convRepo.On("Update", ctx, conv).Return(nil)

	status, position, err := f.svc.EnterQueue(ctx, testUser, testUnit, testDept)

	require.NoError(t, err)
	assert.Equal(t, model.QueueStatusInService, status)
	assert.Equal(t, 0, position)
	require.NotNil(t, saved)
	assert.Equal(t, model.QueueStatusInService, saved.Status)
	assert.Equal(t, testUnit, saved.UnitID)
	assert.Equal(t, model.ConvStatusInService, conv.Status)
	assert.Equal(t, model.MenuStateQueued, conv.MenuState)
	assert.Equal(t, testDept, conv.DepartmentID)
	f.queueRepo.AssertNotCalled(t, "CountWaitingAhead", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	f.queueRepo.AssertExpectations(t)
	f.sender.AssertExpectations(t)
}

func TestEnterQueue_BusyDepartmentJoinsWaitingLine(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	inService := &model.QueueEntry{ID: 30, DepartmentID: testDept, UserID: "5511999990009@s.whatsapp.net", Status: model.QueueStatusInService}
	f.catalog.On("FindDepartment", ctx, testDept).Return(activeDept(), nil)
	f.queueRepo.On("FindActiveByUser", ctx, testUser).Return(nil, apperrors.ErrNotFound)
	f.queueRepo.On("FindInServiceByDepartment", ctx, testDept).Return(inService, nil)
	f.queueRepo.On("Save", ctx, mock.AnythingOfType("*model.QueueEntry")).Return(nil)
	f.queueRepo.On("CountWaitingAhead", ctx, testDept, f.now, int64(0)).Return(int64(0), nil)
	f.interactions.On("Save", ctx, mock.AnythingOfType("*model.Interaction")).Return(nil)
	f.sender.On("Send", ctx, testUser, "Voce esta na fila do atendimento. Sua posicao atual e 1.").Return(nil)
	f.queueRepo.On("Update", ctx, mock.AnythingOfType("*model.QueueEntry")).Return(nil)
	conv := &model.Conversation{ID: 1, UserID: testUser, Status: model.ConvStatusStarted, MenuState: model.MenuStateDepartment}
	f.convRepo.On("FindByUserID", ctx, testUser).Return(conv, nil)
	f.convRepo.On("Update", ctx, conv).Return(nil)

	status, position, err := f.svc.EnterQueue(ctx, testUser, testUnit, testDept)

	require.NoError(t, err)
	assert.Equal(t, model.QueueStatusWaiting, status)
	assert.Equal(t, 1, position)
	assert.Equal(t, model.ConvStatusWaitingForAttendant, conv.Status)
	assert.Equal(t, model.MenuStateQueued, conv.MenuState)
	assert.Equal(t, testDept, conv.DepartmentID)
	f.queueRepo.AssertExpectations(t)
	f.sender.AssertExpectations(t)
}

func TestEnterQueue_IdempotentForSameDepartment(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	created := f.now.Add(-2 * time.Minute)
	existing := &model.QueueEntry{
		ID:           7,
		DepartmentID: testDept,
		UserID:       testUser,
		Status:       model.QueueStatusWaiting,
		CreatedAt:    created,
	}
	f.catalog.On("FindDepartment", ctx, testDept).Return(activeDept(), nil)
	f.queueRepo.On("FindActiveByUser", ctx, testUser).Return(existing, nil)
	f.queueRepo.On("CountWaitingAhead", ctx, testDept, created, int64(7)).Return(int64(2), nil)

	status, position, err := f.svc.EnterQueue(ctx, testUser, testUnit, testDept)

	require.NoError(t, err)
	assert.Equal(t, model.QueueStatusWaiting, status)
	assert.Equal(t, 3, position)
	f.queueRepo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	f.sender.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything)
}

func TestEnterQueue_ConflictAcrossDepartments(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	existing := &model.QueueEntry{
		ID:           9,
		DepartmentID: "dept-ortodontia",
		UserID:       testUser,
		Status:       model.QueueStatusWaiting,
	}
	f.catalog.On("FindDepartment", ctx, testDept).Return(activeDept(), nil)
	f.queueRepo.On("FindActiveByUser", ctx, testUser).Return(existing, nil)

	_, _, err := f.svc.EnterQueue(ctx, testUser, testUnit, testDept)

	require.Error(t, err)
	assert.True(t, apperrors.IsConflictError(err))
}

func TestEnterQueue_InactiveDepartment(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	dept := activeDept()
	dept.Active = false
	f.catalog.On("FindDepartment", ctx, testDept).Return(dept, nil)

	_, _, err := f.svc.EnterQueue(ctx, testUser, testUnit, testDept)

	require.Error(t, err)
	assert.True(t, apperrors.IsBadRequestError(err))
	f.queueRepo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestTouch_ResetsLastMessageAt(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	entry := &model.QueueEntry{ID: 3, DepartmentID: testDept, UserID: testUser, Status: model.QueueStatusWaiting}
	f.queueRepo.On("FindActiveByUser", ctx, testUser).Return(entry, nil)
	f.queueRepo.On("Update", ctx, entry).Return(nil)

	err := f.svc.Touch(ctx, testUser)

	require.NoError(t, err)
	require.NotNil(t, entry.LastMessageAt)
	assert.Equal(t, f.now, *entry.LastMessageAt)
}

func TestTouch_NoActiveEntryIsNoop(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	f.queueRepo.On("FindActiveByUser", ctx, testUser).Return(nil, apperrors.ErrNotFound)

	err := f.svc.Touch(ctx, testUser)

	require.NoError(t, err)
	f.queueRepo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
}

func TestAbandonByUser_DropsWaitingEntry(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	entry := &model.QueueEntry{ID: 5, DepartmentID: testDept, UserID: testUser, Status: model.QueueStatusWaiting}
	f.queueRepo.On("FindActiveByUser", ctx, testUser).Return(entry, nil)
	f.queueRepo.On("Update", ctx, entry).Return(nil)
	f.interactions.On("Save", ctx, mock.AnythingOfType("*model.Interaction")).Return(nil)

	abandoned, err := f.svc.AbandonByUser(ctx, testUser)

	require.NoError(t, err)
	require.NotNil(t, abandoned)
	assert.Equal(t, model.QueueStatusAbandoned, abandoned.Status)
	assert.Equal(t, model.AbandonReasonMenu, abandoned.AbandonReason)
}

func TestAbandonByUser_LeavesInServiceAlone(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	entry := &model.QueueEntry{ID: 5, DepartmentID: testDept, UserID: testUser, Status: model.QueueStatusInService}
	f.queueRepo.On("FindActiveByUser", ctx, testUser).Return(entry, nil)

	abandoned, err := f.svc.AbandonByUser(ctx, testUser)

	require.NoError(t, err)
	assert.Nil(t, abandoned)
	f.queueRepo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
}

func TestCloseDepartmentQueue_MarksFinished(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	entry := &model.QueueEntry{ID: 11, DepartmentID: testDept, UserID: testUser, Status: model.QueueStatusInService}
	f.queueRepo.On("FindInServiceByDepartment", ctx, testDept).Return(entry, nil)
	f.queueRepo.On("Update", ctx, entry).Return(nil)

	finished, err := f.svc.CloseDepartmentQueue(ctx, testDept)

	require.NoError(t, err)
	assert.Equal(t, model.QueueStatusFinished, finished.Status)
	// Farewell, interaction record and conversation close are the
	// sweep's job, not CloseDepartmentQueue's.
	f.sender.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything)
	f.interactions.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	f.convRepo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
}

func TestCloseDepartmentQueue_NothingInService(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	f.queueRepo.On("FindInServiceByDepartment", ctx, testDept).Return(nil, apperrors.ErrNotFound)

	_, err := f.svc.CloseDepartmentQueue(ctx, testDept)

	require.Error(t, err)
	assert.True(t, apperrors.IsNotFoundError(err))
}

func TestDrainDepartmentQueue(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	waiting := []model.QueueEntry{
		{ID: 1, DepartmentID: testDept, UserID: "5511999990001@s.whatsapp.net", Status: model.QueueStatusWaiting},
		{ID: 2, DepartmentID: testDept, UserID: "5511999990002@s.whatsapp.net", Status: model.QueueStatusWaiting},
	}
	inService := &model.QueueEntry{ID: 3, DepartmentID: testDept, UserID: "5511999990003@s.whatsapp.net", Status: model.QueueStatusInService}

	f.queueRepo.On("FindWaitingByDepartment", ctx, testDept).Return(waiting, nil)
	f.queueRepo.On("FindInServiceByDepartment", ctx, testDept).Return(inService, nil)
	f.queueRepo.On("Update", ctx, mock.AnythingOfType("*model.QueueEntry")).Return(nil)
	f.interactions.On("Save", ctx, mock.AnythingOfType("*model.Interaction")).Return(nil)
	f.sender.On("Send", ctx, mock.AnythingOfType("string"), msgQueueClosed).Return(nil).Twice()
	f.convRepo.On("FindByUserID", ctx, mock.AnythingOfType("string")).Return(nil, apperrors.ErrNotFound)

	abandoned, finished, err := f.svc.DrainDepartmentQueue(ctx, testDept)

	require.NoError(t, err)
	assert.Equal(t, 2, abandoned)
	assert.Equal(t, 1, finished)
	assert.Equal(t, model.QueueStatusFinished, inService.Status)
	for i := range waiting {
		assert.Equal(t, model.QueueStatusAbandoned, waiting[i].Status)
		assert.Equal(t, model.AbandonReasonAdmin, waiting[i].AbandonReason)
	}
	f.sender.AssertExpectations(t)
}

func TestSummary(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	oldest := f.now.Add(-10 * time.Minute)
	f.queueRepo.On("ListActiveDepartmentIDs", ctx).Return([]string{testDept}, nil)
	f.catalog.On("FindDepartment", ctx, testDept).Return(activeDept(), nil)
	f.queueRepo.On("FindWaitingByDepartment", ctx, testDept).Return([]model.QueueEntry{
		{ID: 1, DepartmentID: testDept, UserID: "5511999990001@s.whatsapp.net", Status: model.QueueStatusWaiting, CreatedAt: oldest},
		{ID: 2, DepartmentID: testDept, UserID: "5511999990002@s.whatsapp.net", Status: model.QueueStatusWaiting, CreatedAt: f.now.Add(-5 * time.Minute)},
	}, nil)
	f.queueRepo.On("FindInServiceByDepartment", ctx, testDept).Return(
		&model.QueueEntry{ID: 3, UserID: "5511999990003@s.whatsapp.net", Status: model.QueueStatusInService}, nil)

	summaries, err := f.svc.Summary(ctx)

	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, testDept, summaries[0].DepartmentID)
	assert.Equal(t, "Atendimento Geral", summaries[0].DepartmentName)
	assert.Equal(t, 2, summaries[0].Waiting)
	assert.Equal(t, "5511999990003@s.whatsapp.net", summaries[0].InServiceUserID)
	require.NotNil(t, summaries[0].OldestWaitingSince)
	assert.Equal(t, oldest, *summaries[0].OldestWaitingSince)
}
