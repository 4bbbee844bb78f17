package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"gitlab.com/atividade/api/wa-frontdesk/internal/apperrors"
	"gitlab.com/atividade/api/wa-frontdesk/internal/model"
)

func TestTick_PromotesSingleHead(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	head := model.QueueEntry{
		ID: 1, DepartmentID: testDept, UserID: "5511999990001@s.whatsapp.net",
		Status: model.QueueStatusWaiting, CreatedAt: f.now.Add(-3 * time.Minute),
	}
	notified := f.now.Add(-5 * time.Second)
	second := model.QueueEntry{
		ID: 2, DepartmentID: testDept, UserID: "5511999990002@s.whatsapp.net",
		Status: model.QueueStatusWaiting, CreatedAt: f.now.Add(-1 * time.Minute),
		LastMessageAt: &notified, LastNotifiedAt: &notified,
	}

	f.queueRepo.On("ListActiveDepartmentIDs", ctx).Return([]string{testDept}, nil)
	f.queueRepo.On("FindInServiceByDepartment", ctx, testDept).Return(nil, apperrors.ErrNotFound)
	f.queueRepo.On("FindWaitingByDepartment", ctx, testDept).
		Return([]model.QueueEntry{head, second}, nil).Once()
	f.queueRepo.On("Update", ctx, mock.AnythingOfType("*model.QueueEntry")).Return(nil)
	f.sender.On("Send", ctx, head.UserID, msgYourTurn).Return(nil).Once()
	f.interactions.On("Save", ctx, mock.AnythingOfType("*model.Interaction")).Return(nil)
	f.convRepo.On("FindByUserID", ctx, head.UserID).Return(
		&model.Conversation{ID: 1, UserID: head.UserID, Status: model.ConvStatusWaitingForAttendant}, nil)
	f.convRepo.On("Update", ctx, mock.AnythingOfType("*model.Conversation")).Return(nil)
	f.queueRepo.On("FindFinishedPendingClose", ctx).Return([]model.QueueEntry{}, nil)
	// Second fetch happens after promotion, so only the second user waits.
	f.queueRepo.On("FindWaitingByDepartment", ctx, testDept).
		Return([]model.QueueEntry{second}, nil).Once()

	err := f.svc.Tick(ctx)

	require.NoError(t, err)
	// Recently notified survivor gets no extra message this tick.
	f.sender.AssertNumberOfCalls(t, "Send", 1)
	f.sender.AssertExpectations(t)
}

func TestTick_NoPromotionWhileInService(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	busy := &model.QueueEntry{
		ID: 1, DepartmentID: testDept, UserID: "5511999990001@s.whatsapp.net",
		Status: model.QueueStatusInService,
	}
	notified := f.now.Add(-5 * time.Second)
	waiting := model.QueueEntry{
		ID: 2, DepartmentID: testDept, UserID: "5511999990002@s.whatsapp.net",
		Status: model.QueueStatusWaiting, CreatedAt: f.now.Add(-time.Minute),
		LastMessageAt: &notified, LastNotifiedAt: &notified,
	}

	f.queueRepo.On("ListActiveDepartmentIDs", ctx).Return([]string{testDept}, nil)
	f.queueRepo.On("FindInServiceByDepartment", ctx, testDept).Return(busy, nil)
	f.queueRepo.On("FindFinishedPendingClose", ctx).Return([]model.QueueEntry{}, nil)
	f.queueRepo.On("FindWaitingByDepartment", ctx, testDept).Return([]model.QueueEntry{waiting}, nil)

	err := f.svc.Tick(ctx)

	require.NoError(t, err)
	f.queueRepo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
	f.sender.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything)
}

func TestTick_ExpiresAtTimeoutBoundary(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	timeout := f.svc.tunables.Tunables().AbandonTimeout
	expiredAnchor := f.now.Add(-timeout)
	freshAnchor := f.now.Add(-timeout + time.Second)

	recentlyNotified := f.now.Add(-5 * time.Second)
	expired := model.QueueEntry{
		ID: 1, DepartmentID: testDept, UserID: "5511999990001@s.whatsapp.net",
		Status: model.QueueStatusWaiting, CreatedAt: expiredAnchor,
	}
	fresh := model.QueueEntry{
		ID: 2, DepartmentID: testDept, UserID: "5511999990002@s.whatsapp.net",
		Status: model.QueueStatusWaiting, CreatedAt: f.now.Add(-2 * timeout),
		LastMessageAt: &freshAnchor, LastNotifiedAt: &recentlyNotified,
	}
	busy := &model.QueueEntry{ID: 3, DepartmentID: testDept, Status: model.QueueStatusInService}

	f.queueRepo.On("ListActiveDepartmentIDs", ctx).Return([]string{testDept}, nil)
	f.queueRepo.On("FindInServiceByDepartment", ctx, testDept).Return(busy, nil)
	f.queueRepo.On("FindFinishedPendingClose", ctx).Return([]model.QueueEntry{}, nil)
	f.queueRepo.On("FindWaitingByDepartment", ctx, testDept).
		Return([]model.QueueEntry{expired, fresh}, nil)
	f.queueRepo.On("Update", ctx, mock.AnythingOfType("*model.QueueEntry")).Return(nil)
	f.interactions.On("Save", ctx, mock.AnythingOfType("*model.Interaction")).Return(nil)
	f.sender.On("Send", ctx, expired.UserID, msgQueueExpired).Return(nil).Once()
	f.convRepo.On("FindByUserID", ctx, expired.UserID).Return(
		&model.Conversation{ID: 1, UserID: expired.UserID, Status: model.ConvStatusWaitingForAttendant}, nil)
	f.convRepo.On("Update", ctx, mock.AnythingOfType("*model.Conversation")).Return(nil)

	err := f.svc.Tick(ctx)

	require.NoError(t, err)
	// A recent message moves the anchor, so the old entry with fresh
	// activity survives while the silent one expires exactly on the line.
	f.sender.AssertNumberOfCalls(t, "Send", 1)
	f.sender.AssertExpectations(t)
}

func TestTick_NotifiesThrottledPositions(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	interval := f.svc.tunables.Tunables().NotifyInterval
	due := f.now.Add(-interval - time.Second)
	recent := f.now.Add(-interval + 5*time.Second)

	first := model.QueueEntry{
		ID: 1, DepartmentID: testDept, UserID: "5511999990001@s.whatsapp.net",
		Status: model.QueueStatusWaiting, CreatedAt: f.now.Add(-5 * time.Minute),
		LastMessageAt: &recent, LastNotifiedAt: &recent,
	}
	second := model.QueueEntry{
		ID: 2, DepartmentID: testDept, UserID: "5511999990002@s.whatsapp.net",
		Status: model.QueueStatusWaiting, CreatedAt: f.now.Add(-4 * time.Minute),
		LastMessageAt: &due, LastNotifiedAt: &due,
	}
	busy := &model.QueueEntry{ID: 3, DepartmentID: testDept, Status: model.QueueStatusInService}

	f.queueRepo.On("ListActiveDepartmentIDs", ctx).Return([]string{testDept}, nil)
	f.queueRepo.On("FindInServiceByDepartment", ctx, testDept).Return(busy, nil)
	f.queueRepo.On("FindFinishedPendingClose", ctx).Return([]model.QueueEntry{}, nil)
	f.queueRepo.On("FindWaitingByDepartment", ctx, testDept).
		Return([]model.QueueEntry{first, second}, nil)
	f.queueRepo.On("Update", ctx, mock.AnythingOfType("*model.QueueEntry")).Return(nil)
	f.sender.On("Send", ctx, second.UserID, "Voce esta na fila do atendimento. Sua posicao atual e 2.").
		Return(nil).Once()

	err := f.svc.Tick(ctx)

	require.NoError(t, err)
	f.sender.AssertNumberOfCalls(t, "Send", 1)
	f.sender.AssertExpectations(t)
}

func TestTick_SweepsFinishedEntries(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	finished := model.QueueEntry{
		ID: 4, DepartmentID: testDept, UserID: "5511999990004@s.whatsapp.net",
		Status: model.QueueStatusFinished,
	}

	f.queueRepo.On("ListActiveDepartmentIDs", ctx).Return([]string{}, nil)
	f.queueRepo.On("FindFinishedPendingClose", ctx).Return([]model.QueueEntry{finished}, nil)
	f.sender.On("Send", ctx, finished.UserID, msgAttendanceFinished).Return(nil).Once()
	f.queueRepo.On("Update", ctx, mock.MatchedBy(func(e *model.QueueEntry) bool {
		return e.ID == 4 && e.Status == model.QueueStatusClosed && e.LastNotifiedAt != nil
	})).Return(nil)
	f.interactions.On("Save", ctx, mock.MatchedBy(func(i *model.Interaction) bool {
		return i.Kind == model.InteractionAttendanceFinished && i.UserID == finished.UserID
	})).Return(nil).Once()
	conv := &model.Conversation{ID: 4, UserID: finished.UserID, Status: model.ConvStatusInService, MenuState: model.MenuStateQueued}
	f.convRepo.On("FindByUserID", ctx, finished.UserID).Return(conv, nil)
	f.convRepo.On("Update", ctx, conv).Return(nil)

	err := f.svc.Tick(ctx)

	require.NoError(t, err)
	assert.Equal(t, model.ConvStatusFinished, conv.Status)
	assert.Equal(t, model.MenuStateRoot, conv.MenuState)
	f.sender.AssertExpectations(t)
	f.interactions.AssertExpectations(t)
	f.queueRepo.AssertExpectations(t)
}

func TestTick_FullLifecycle(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	userA := "5511999990009@s.whatsapp.net"
	userB := "5511999990010@s.whatsapp.net"
	convA := &model.Conversation{ID: 1, UserID: userA, Status: model.ConvStatusStarted, MenuState: model.MenuStateDepartment}
	convB := &model.Conversation{ID: 2, UserID: userB, Status: model.ConvStatusStarted, MenuState: model.MenuStateDepartment}

	f.catalog.On("FindDepartment", mock.Anything, testDept).Return(activeDept(), nil)
	f.interactions.On("Save", mock.Anything, mock.AnythingOfType("*model.Interaction")).Return(nil)
	f.sender.On("Send", mock.Anything, mock.AnythingOfType("string"), mock.AnythingOfType("string")).Return(nil)
	f.queueRepo.On("Update", mock.Anything, mock.AnythingOfType("*model.QueueEntry")).Return(nil)
	f.convRepo.On("FindByUserID", mock.Anything, userA).Return(convA, nil)
	f.convRepo.On("FindByUserID", mock.Anything, userB).Return(convB, nil)
	f.convRepo.On("Update", mock.Anything, mock.AnythingOfType("*model.Conversation")).Return(nil)

	// A finds the department empty and goes straight into service.
	f.queueRepo.On("FindActiveByUser", mock.Anything, userA).Return(nil, apperrors.ErrNotFound).Once()
	f.queueRepo.On("FindInServiceByDepartment", mock.Anything, testDept).Return(nil, apperrors.ErrNotFound).Once()
	var entryA *model.QueueEntry
	f.queueRepo.On("Save", mock.Anything, mock.AnythingOfType("*model.QueueEntry")).
		Run(func(args mock.Arguments) {
			entryA = args.Get(1).(*model.QueueEntry)
			entryA.ID = 41
		}).Return(nil).Once()

	status, position, err := f.svc.EnterQueue(ctx, userA, testUnit, testDept)
	require.NoError(t, err)
	assert.Equal(t, model.QueueStatusInService, status)
	assert.Equal(t, 0, position)
	assert.Equal(t, model.ConvStatusInService, convA.Status)
	require.NotNil(t, entryA)

	// B joins behind A and waits.
	f.queueRepo.On("FindActiveByUser", mock.Anything, userB).Return(nil, apperrors.ErrNotFound).Once()
	f.queueRepo.On("FindInServiceByDepartment", mock.Anything, testDept).Return(entryA, nil).Once()
	var entryB *model.QueueEntry
	f.queueRepo.On("Save", mock.Anything, mock.AnythingOfType("*model.QueueEntry")).
		Run(func(args mock.Arguments) {
			entryB = args.Get(1).(*model.QueueEntry)
			entryB.ID = 42
		}).Return(nil).Once()
	f.queueRepo.On("CountWaitingAhead", mock.Anything, testDept, mock.Anything, mock.Anything).
		Return(int64(0), nil)

	status, position, err = f.svc.EnterQueue(ctx, userB, testUnit, testDept)
	require.NoError(t, err)
	assert.Equal(t, model.QueueStatusWaiting, status)
	assert.Equal(t, 1, position)
	assert.Equal(t, model.ConvStatusWaitingForAttendant, convB.Status)

	// Attendant wraps up A.
	f.queueRepo.On("FindInServiceByDepartment", mock.Anything, testDept).Return(entryA, nil).Once()
	_, err = f.svc.CloseDepartmentQueue(ctx, testDept)
	require.NoError(t, err)
	require.Equal(t, model.QueueStatusFinished, entryA.Status)

	// The tick promotes B, says farewell to A and closes A's entry.
	finishedA := *entryA
	f.queueRepo.On("ListActiveDepartmentIDs", mock.Anything).Return([]string{testDept}, nil)
	f.queueRepo.On("FindInServiceByDepartment", mock.Anything, testDept).Return(nil, apperrors.ErrNotFound)
	f.queueRepo.On("FindWaitingByDepartment", mock.Anything, testDept).Return([]model.QueueEntry{*entryB}, nil).Once()
	f.queueRepo.On("FindFinishedPendingClose", mock.Anything).Return([]model.QueueEntry{finishedA}, nil).Once()
	f.queueRepo.On("FindWaitingByDepartment", mock.Anything, testDept).Return([]model.QueueEntry{}, nil).Once()

	f.advance(10 * time.Second)
	require.NoError(t, f.svc.Tick(ctx))

	assert.Equal(t, model.ConvStatusInService, convB.Status)
	assert.Equal(t, model.ConvStatusFinished, convA.Status)
	f.sender.AssertCalled(t, "Send", mock.Anything, userB, msgYourTurn)
	f.sender.AssertCalled(t, "Send", mock.Anything, userA, msgAttendanceFinished)
}

func TestEnsureConversation_CreatesAndReopens(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	f.convRepo.On("FindByUserID", ctx, testUser).Return(nil, apperrors.ErrNotFound).Once()
	f.convRepo.On("Save", ctx, mock.AnythingOfType("*model.Conversation")).Return(nil)
	f.interactions.On("Save", ctx, mock.AnythingOfType("*model.Interaction")).Return(nil)

	conv, created, err := f.svc.EnsureConversation(ctx, testUser)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, model.ConvStatusStarted, conv.Status)
	assert.Equal(t, model.MenuStateRoot, conv.MenuState)

	// A finished conversation reopens at the root menu.
	closed := &model.Conversation{
		ID: 9, UserID: testUser, Status: model.ConvStatusFinished,
		MenuState: model.MenuStateQueued, DepartmentID: testDept,
	}
	f.convRepo.On("FindByUserID", ctx, testUser).Return(closed, nil).Once()
	f.convRepo.On("Update", ctx, closed).Return(nil)

	conv, created, err = f.svc.EnsureConversation(ctx, testUser)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, model.ConvStatusStarted, conv.Status)
	assert.Equal(t, model.MenuStateRoot, conv.MenuState)
	assert.Empty(t, conv.DepartmentID)

	// An open conversation is returned as is.
	f.convRepo.On("FindByUserID", ctx, testUser).Return(closed, nil).Once()
	_, created, err = f.svc.EnsureConversation(ctx, testUser)
	require.NoError(t, err)
	assert.False(t, created)
}
