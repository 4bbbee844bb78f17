package storage

import (
	"context"
	"time"

	"gitlab.com/atividade/api/wa-frontdesk/internal/model"
)

// QueueEntryRepoAdapter adapts the PostgresRepo to the QueueEntryRepo interface
type QueueEntryRepoAdapter struct {
	postgres *PostgresRepo
}

// NewQueueEntryRepoAdapter creates a new queue entry repository adapter
func NewQueueEntryRepoAdapter(postgres *PostgresRepo) QueueEntryRepo {
	return &QueueEntryRepoAdapter{postgres: postgres}
}

func (a *QueueEntryRepoAdapter) Save(ctx context.Context, entry *model.QueueEntry) error {
	return a.postgres.SaveQueueEntry(ctx, entry)
}

func (a *QueueEntryRepoAdapter) Update(ctx context.Context, entry *model.QueueEntry) error {
	return a.postgres.UpdateQueueEntry(ctx, entry)
}

func (a *QueueEntryRepoAdapter) FindByID(ctx context.Context, id int64) (*model.QueueEntry, error) {
	return a.postgres.FindQueueEntryByID(ctx, id)
}

func (a *QueueEntryRepoAdapter) FindActiveByUser(ctx context.Context, userID string) (*model.QueueEntry, error) {
	return a.postgres.FindActiveQueueEntryByUser(ctx, userID)
}

func (a *QueueEntryRepoAdapter) FindActiveByUserAndDepartment(ctx context.Context, userID, departmentID string) (*model.QueueEntry, error) {
	return a.postgres.FindActiveQueueEntryByUserAndDepartment(ctx, userID, departmentID)
}

func (a *QueueEntryRepoAdapter) FindWaitingByDepartment(ctx context.Context, departmentID string) ([]model.QueueEntry, error) {
	return a.postgres.FindWaitingQueueEntriesByDepartment(ctx, departmentID)
}

func (a *QueueEntryRepoAdapter) FindInServiceByDepartment(ctx context.Context, departmentID string) (*model.QueueEntry, error) {
	return a.postgres.FindInServiceQueueEntryByDepartment(ctx, departmentID)
}

func (a *QueueEntryRepoAdapter) ListActiveDepartmentIDs(ctx context.Context) ([]string, error) {
	return a.postgres.ListActiveQueueDepartmentIDs(ctx)
}

func (a *QueueEntryRepoAdapter) FindFinishedPendingClose(ctx context.Context) ([]model.QueueEntry, error) {
	return a.postgres.FindFinishedQueueEntriesPendingClose(ctx)
}

func (a *QueueEntryRepoAdapter) CountWaitingAhead(ctx context.Context, departmentID string, createdAt time.Time, id int64) (int64, error) {
	return a.postgres.CountWaitingQueueEntriesAhead(ctx, departmentID, createdAt, id)
}

func (a *QueueEntryRepoAdapter) Close(ctx context.Context) error {
	return a.postgres.Close(ctx)
}

// ConversationRepoAdapter adapts the PostgresRepo to the ConversationRepo interface
type ConversationRepoAdapter struct {
	postgres *PostgresRepo
}

// NewConversationRepoAdapter creates a new conversation repository adapter
func NewConversationRepoAdapter(postgres *PostgresRepo) ConversationRepo {
	return &ConversationRepoAdapter{postgres: postgres}
}

func (a *ConversationRepoAdapter) Save(ctx context.Context, conv *model.Conversation) error {
	return a.postgres.SaveConversation(ctx, conv)
}

func (a *ConversationRepoAdapter) Update(ctx context.Context, conv *model.Conversation) error {
	return a.postgres.UpdateConversation(ctx, conv)
}

func (a *ConversationRepoAdapter) FindByUserID(ctx context.Context, userID string) (*model.Conversation, error) {
	return a.postgres.FindConversationByUserID(ctx, userID)
}

func (a *ConversationRepoAdapter) Close(ctx context.Context) error {
	return a.postgres.Close(ctx)
}

// InteractionRepoAdapter adapts the PostgresRepo to the InteractionRepo interface
type InteractionRepoAdapter struct {
	postgres *PostgresRepo
}

// NewInteractionRepoAdapter creates a new interaction repository adapter
func NewInteractionRepoAdapter(postgres *PostgresRepo) InteractionRepo {
	return &InteractionRepoAdapter{postgres: postgres}
}

func (a *InteractionRepoAdapter) Save(ctx context.Context, interaction *model.Interaction) error {
	return a.postgres.SaveInteraction(ctx, interaction)
}

func (a *InteractionRepoAdapter) FindByUserID(ctx context.Context, userID string, limit, offset int) ([]model.Interaction, error) {
	return a.postgres.FindInteractionsByUserID(ctx, userID, limit, offset)
}

func (a *InteractionRepoAdapter) FindByKind(ctx context.Context, kind string, limit, offset int) ([]model.Interaction, error) {
	return a.postgres.FindInteractionsByKind(ctx, kind, limit, offset)
}

func (a *InteractionRepoAdapter) FindWithinTimeRange(ctx context.Context, start, end time.Time, limit, offset int) ([]model.Interaction, error) {
	return a.postgres.FindInteractionsWithinTimeRange(ctx, start, end, limit, offset)
}

func (a *InteractionRepoAdapter) Close(ctx context.Context) error {
	return a.postgres.Close(ctx)
}

// CatalogRepoAdapter adapts the PostgresRepo to the CatalogRepo interface
type CatalogRepoAdapter struct {
	postgres *PostgresRepo
}

// NewCatalogRepoAdapter creates a new catalog repository adapter
func NewCatalogRepoAdapter(postgres *PostgresRepo) CatalogRepo {
	return &CatalogRepoAdapter{postgres: postgres}
}

func (a *CatalogRepoAdapter) ListUnits(ctx context.Context, activeOnly bool) ([]model.Unit, error) {
	return a.postgres.ListUnits(ctx, activeOnly)
}

func (a *CatalogRepoAdapter) FindUnit(ctx context.Context, id string) (*model.Unit, error) {
	return a.postgres.FindUnit(ctx, id)
}

func (a *CatalogRepoAdapter) SaveUnit(ctx context.Context, unit *model.Unit) error {
	return a.postgres.SaveUnit(ctx, unit)
}

func (a *CatalogRepoAdapter) DeleteUnit(ctx context.Context, id string) error {
	return a.postgres.DeleteUnit(ctx, id)
}

func (a *CatalogRepoAdapter) ListDepartments(ctx context.Context, unitID string, activeOnly bool) ([]model.Department, error) {
	return a.postgres.ListDepartments(ctx, unitID, activeOnly)
}

func (a *CatalogRepoAdapter) FindDepartment(ctx context.Context, id string) (*model.Department, error) {
	return a.postgres.FindDepartment(ctx, id)
}

func (a *CatalogRepoAdapter) SaveDepartment(ctx context.Context, dept *model.Department) error {
	return a.postgres.SaveDepartment(ctx, dept)
}

func (a *CatalogRepoAdapter) DeleteDepartment(ctx context.Context, id string) error {
	return a.postgres.DeleteDepartment(ctx, id)
}

func (a *CatalogRepoAdapter) ListSellers(ctx context.Context, unitID string, activeOnly bool) ([]model.Seller, error) {
	return a.postgres.ListSellers(ctx, unitID, activeOnly)
}

func (a *CatalogRepoAdapter) SaveSeller(ctx context.Context, seller *model.Seller) error {
	return a.postgres.SaveSeller(ctx, seller)
}

func (a *CatalogRepoAdapter) DeleteSeller(ctx context.Context, id string) error {
	return a.postgres.DeleteSeller(ctx, id)
}

func (a *CatalogRepoAdapter) ListPriceItems(ctx context.Context, unitID string, activeOnly bool) ([]model.PriceItem, error) {
	return a.postgres.ListPriceItems(ctx, unitID, activeOnly)
}

func (a *CatalogRepoAdapter) SavePriceItem(ctx context.Context, item *model.PriceItem) error {
	return a.postgres.SavePriceItem(ctx, item)
}

func (a *CatalogRepoAdapter) DeletePriceItem(ctx context.Context, id string) error {
	return a.postgres.DeletePriceItem(ctx, id)
}

func (a *CatalogRepoAdapter) Close(ctx context.Context) error {
	return a.postgres.Close(ctx)
}

// SettingsRepoAdapter adapts the PostgresRepo to the SettingsRepo interface
type SettingsRepoAdapter struct {
	postgres *PostgresRepo
}

// NewSettingsRepoAdapter creates a new settings repository adapter
func NewSettingsRepoAdapter(postgres *PostgresRepo) SettingsRepo {
	return &SettingsRepoAdapter{postgres: postgres}
}

func (a *SettingsRepoAdapter) GetAll(ctx context.Context) (map[string]string, error) {
	return a.postgres.GetAllSettings(ctx)
}

func (a *SettingsRepoAdapter) Upsert(ctx context.Context, key, value string) error {
	return a.postgres.UpsertSetting(ctx, key, value)
}

func (a *SettingsRepoAdapter) Close(ctx context.Context) error {
	return a.postgres.Close(ctx)
}

// Compile-time interface checks
var (
	_ QueueEntryRepo   = (*QueueEntryRepoAdapter)(nil)
	_ ConversationRepo = (*ConversationRepoAdapter)(nil)
	_ InteractionRepo  = (*InteractionRepoAdapter)(nil)
	_ CatalogRepo      = (*CatalogRepoAdapter)(nil)
	_ SettingsRepo     = (*SettingsRepoAdapter)(nil)
)
