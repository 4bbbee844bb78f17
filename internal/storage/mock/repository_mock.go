package mock

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"
	"gitlab.com/atividade/api/wa-frontdesk/internal/model"
)

// --- QueueEntryRepo Mock ---

// QueueEntryRepoMock mocks the QueueEntryRepo interface
type QueueEntryRepoMock struct {
	mock.Mock
}

func (m *QueueEntryRepoMock) Save(ctx context.Context, entry *model.QueueEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *QueueEntryRepoMock) Update(ctx context.Context, entry *model.QueueEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *QueueEntryRepoMock) FindByID(ctx context.Context, id int64) (*model.QueueEntry, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.QueueEntry), args.Error(1)
}

func (m *QueueEntryRepoMock) FindActiveByUser(ctx context.Context, userID string) (*model.QueueEntry, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.QueueEntry), args.Error(1)
}

func (m *QueueEntryRepoMock) FindActiveByUserAndDepartment(ctx context.Context, userID, departmentID string) (*model.QueueEntry, error) {
	args := m.Called(ctx, userID, departmentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.QueueEntry), args.Error(1)
}

func (m *QueueEntryRepoMock) FindWaitingByDepartment(ctx context.Context, departmentID string) ([]model.QueueEntry, error) {
	args := m.Called(ctx, departmentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.QueueEntry), args.Error(1)
}

func (m *QueueEntryRepoMock) FindInServiceByDepartment(ctx context.Context, departmentID string) (*model.QueueEntry, error) {
	args := m.Called(ctx, departmentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.QueueEntry), args.Error(1)
}

func (m *QueueEntryRepoMock) ListActiveDepartmentIDs(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *QueueEntryRepoMock) FindFinishedPendingClose(ctx context.Context) ([]model.QueueEntry, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.QueueEntry), args.Error(1)
}

func (m *QueueEntryRepoMock) CountWaitingAhead(ctx context.Context, departmentID string, createdAt time.Time, id int64) (int64, error) {
	args := m.Called(ctx, departmentID, createdAt, id)
	return args.Get(0).(int64), args.Error(1)
}

func (m *QueueEntryRepoMock) Close(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// --- ConversationRepo Mock ---

// ConversationRepoMock mocks the ConversationRepo interface
type ConversationRepoMock struct {
	mock.Mock
}

func (m *ConversationRepoMock) Save(ctx context.Context, conv *model.Conversation) error {
	args := m.Called(ctx, conv)
	return args.Error(0)
}

func (m *ConversationRepoMock) Update(ctx context.Context, conv *model.Conversation) error {
	args := m.Called(ctx, conv)
	return args.Error(0)
}

func (m *ConversationRepoMock) FindByUserID(ctx context.Context, userID string) (*model.Conversation, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Conversation), args.Error(1)
}

func (m *ConversationRepoMock) Close(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// --- InteractionRepo Mock ---

// InteractionRepoMock mocks the InteractionRepo interface
type InteractionRepoMock struct {
	mock.Mock
}

func (m *InteractionRepoMock) Save(ctx context.Context, interaction *model.Interaction) error {
	args := m.Called(ctx, interaction)
	return args.Error(0)
}

func (m *InteractionRepoMock) FindByUserID(ctx context.Context, userID string, limit, offset int) ([]model.Interaction, error) {
	args := m.Called(ctx, userID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Interaction), args.Error(1)
}

func (m *InteractionRepoMock) FindByKind(ctx context.Context, kind string, limit, offset int) ([]model.Interaction, error) {
	args := m.Called(ctx, kind, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Interaction), args.Error(1)
}

func (m *InteractionRepoMock) FindWithinTimeRange(ctx context.Context, start, end time.Time, limit, offset int) ([]model.Interaction, error) {
	args := m.Called(ctx, start, end, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Interaction), args.Error(1)
}

func (m *InteractionRepoMock) Close(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// --- CatalogRepo Mock ---

// CatalogRepoMock mocks the CatalogRepo interface
type CatalogRepoMock struct {
	mock.Mock
}

func (m *CatalogRepoMock) ListUnits(ctx context.Context, activeOnly bool) ([]model.Unit, error) {
	args := m.Called(ctx, activeOnly)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Unit), args.Error(1)
}

func (m *CatalogRepoMock) FindUnit(ctx context.Context, id string) (*model.Unit, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Unit), args.Error(1)
}

func (m *CatalogRepoMock) SaveUnit(ctx context.Context, unit *model.Unit) error {
	args := m.Called(ctx, unit)
	return args.Error(0)
}

func (m *CatalogRepoMock) DeleteUnit(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *CatalogRepoMock) ListDepartments(ctx context.Context, unitID string, activeOnly bool) ([]model.Department, error) {
	args := m.Called(ctx, unitID, activeOnly)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Department), args.Error(1)
}

func (m *CatalogRepoMock) FindDepartment(ctx context.Context, id string) (*model.Department, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Department), args.Error(1)
}

func (m *CatalogRepoMock) SaveDepartment(ctx context.Context, dept *model.Department) error {
	args := m.Called(ctx, dept)
	return args.Error(0)
}

func (m *CatalogRepoMock) DeleteDepartment(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *CatalogRepoMock) ListSellers(ctx context.Context, unitID string, activeOnly bool) ([]model.Seller, error) {
	args := m.Called(ctx, unitID, activeOnly)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Seller), args.Error(1)
}

func (m *CatalogRepoMock) SaveSeller(ctx context.Context, seller *model.Seller) error {
	args := m.Called(ctx, seller)
	return args.Error(0)
}

func (m *CatalogRepoMock) DeleteSeller(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *CatalogRepoMock) ListPriceItems(ctx context.Context, unitID string, activeOnly bool) ([]model.PriceItem, error) {
	args := m.Called(ctx, unitID, activeOnly)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.PriceItem), args.Error(1)
}

func (m *CatalogRepoMock) SavePriceItem(ctx context.Context, item *model.PriceItem) error {
	args := m.Called(ctx, item)
	return args.Error(0)
}

func (m *CatalogRepoMock) DeletePriceItem(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *CatalogRepoMock) Close(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// --- SettingsRepo Mock ---

// SettingsRepoMock mocks the SettingsRepo interface
type SettingsRepoMock struct {
	mock.Mock
}

func (m *SettingsRepoMock) GetAll(ctx context.Context) (map[string]string, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]string), args.Error(1)
}

func (m *SettingsRepoMock) Upsert(ctx context.Context, key, value string) error {
	args := m.Called(ctx, key, value)
	return args.Error(0)
}

func (m *SettingsRepoMock) Close(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
