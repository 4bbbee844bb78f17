package storage

import (
	"context"
	"time"

	"gitlab.com/atividade/api/wa-frontdesk/internal/model"
)

// QueueEntryRepo defines attendance queue storage operations
type QueueEntryRepo interface {
	Save(ctx context.Context, entry *model.QueueEntry) error
	Update(ctx context.Context, entry *model.QueueEntry) error
	FindByID(ctx context.Context, id int64) (*model.QueueEntry, error)
	// FindActiveByUser returns the user's waiting or in_service entry, if any.
	FindActiveByUser(ctx context.Context, userID string) (*model.QueueEntry, error)
	FindActiveByUserAndDepartment(ctx context.Context, userID, departmentID string) (*model.QueueEntry, error)
	// FindWaitingByDepartment returns waiting entries in FIFO order (created_at, id).
	FindWaitingByDepartment(ctx context.Context, departmentID string) ([]model.QueueEntry, error)
	FindInServiceByDepartment(ctx context.Context, departmentID string) (*model.QueueEntry, error)
	// ListActiveDepartmentIDs returns department ids that currently hold
	// at least one waiting or in_service entry.
	ListActiveDepartmentIDs(ctx context.Context) ([]string, error)
	// FindFinishedPendingClose returns finished entries whose farewell has
	// not been sent since the finish, across all departments.
	FindFinishedPendingClose(ctx context.Context) ([]model.QueueEntry, error)
	// CountWaitingAhead counts waiting entries in the department strictly
	// ahead of the given (createdAt, id) in FIFO order.
	CountWaitingAhead(ctx context.Context, departmentID string, createdAt time.Time, id int64) (int64, error)
	Close(ctx context.Context) error
}

// ConversationRepo defines conversation storage operations
type ConversationRepo interface {
	Save(ctx context.Context, conv *model.Conversation) error
	Update(ctx context.Context, conv *model.Conversation) error
	FindByUserID(ctx context.Context, userID string) (*model.Conversation, error)
	Close(ctx context.Context) error
}

// InteractionRepo defines append-only interaction log operations
type InteractionRepo interface {
	Save(ctx context.Context, interaction *model.Interaction) error
	FindByUserID(ctx context.Context, userID string, limit, offset int) ([]model.Interaction, error)
	FindByKind(ctx context.Context, kind string, limit, offset int) ([]model.Interaction, error)
	FindWithinTimeRange(ctx context.Context, start, end time.Time, limit, offset int) ([]model.Interaction, error)
	Close(ctx context.Context) error
}

// CatalogRepo defines storage operations for units, departments, sellers
// and price items managed through the admin API
type CatalogRepo interface {
	ListUnits(ctx context.Context, activeOnly bool) ([]model.Unit, error)
	FindUnit(ctx context.Context, id string) (*model.Unit, error)
	SaveUnit(ctx context.Context, unit *model.Unit) error
	DeleteUnit(ctx context.Context, id string) error

	ListDepartments(ctx context.Context, unitID string, activeOnly bool) ([]model.Department, error)
	FindDepartment(ctx context.Context, id string) (*model.Department, error)
	SaveDepartment(ctx context.Context, dept *model.Department) error
	DeleteDepartment(ctx context.Context, id string) error

	ListSellers(ctx context.Context, unitID string, activeOnly bool) ([]model.Seller, error)
	SaveSeller(ctx context.Context, seller *model.Seller) error
	DeleteSeller(ctx context.Context, id string) error

	ListPriceItems(ctx context.Context, unitID string, activeOnly bool) ([]model.PriceItem, error)
	SavePriceItem(ctx context.Context, item *model.PriceItem) error
	DeletePriceItem(ctx context.Context, id string) error

	Close(ctx context.Context) error
}

// SettingsRepo defines storage operations for runtime tunables
type SettingsRepo interface {
	GetAll(ctx context.Context) (map[string]string, error)
	Upsert(ctx context.Context, key, value string) error
	Close(ctx context.Context) error
}
