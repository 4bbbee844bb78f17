package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"gitlab.com/atividade/api/wa-frontdesk/internal/apperrors"
	"gitlab.com/atividade/api/wa-frontdesk/internal/model"
	"gitlab.com/atividade/api/wa-frontdesk/internal/observer"
	"gitlab.com/atividade/api/wa-frontdesk/pkg/logger"
	"gitlab.com/atividade/api/wa-frontdesk/pkg/utils"
)

// runCatalogRead wraps a catalog read with retry and metrics.
func (r *PostgresRepo) runCatalogRead(ctx context.Context, opName, entity string, operation func() error) error {
	readPolicy := newRetryPolicy(ctx, readRetryMaxElapsedTime)
	startTime := utils.Now()
	err := retryableOperation(ctx, readPolicy, opName, operation)
	observer.ObserveDbOperationDuration("find", entity, time.Since(startTime), err)
	return err
}

// runCatalogWrite wraps a catalog write with retry and metrics.
func (r *PostgresRepo) runCatalogWrite(ctx context.Context, opName, op, entity string, operation func() error) error {
	commitPolicy := newRetryPolicy(ctx, commitRetryMaxElapsedTime)
	startTime := utils.Now()
	err := retryableOperation(ctx, commitPolicy, opName, operation)
	observer.ObserveDbOperationDuration(op, entity, time.Since(startTime), err)
	if err != nil {
		logger.FromContext(ctx).Error("Catalog write failed after retries",
			zap.String("operation", opName),
			zap.Error(err))
	}
	return err
}

// activeScope filters rows to active ones when requested.
func activeScope(activeOnly bool) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if activeOnly {
			return db.Where("active = ?", true)
		}
		return db
	}
}

// --- Units ---

func (r *PostgresRepo) ListUnits(ctx context.Context, activeOnly bool) ([]model.Unit, error) {
	var units []model.Unit
	err := r.runCatalogRead(ctx, "ListUnits", "unit", func() error {
		result := r.db.WithContext(ctx).Scopes(activeScope(activeOnly)).Order("name ASC").Find(&units)
		if result.Error != nil {
			return checkConstraintViolation(result.Error)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return units, nil
}

func (r *PostgresRepo) FindUnit(ctx context.Context, id string) (*model.Unit, error) {
	var unit model.Unit
	err := r.runCatalogRead(ctx, "FindUnit", "unit", func() error {
		result := r.db.WithContext(ctx).Where("id = ?", id).First(&unit)
		if result.Error != nil {
			if errors.Is(result.Error, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: unit %s", apperrors.ErrNotFound, id)
			}
			return checkConstraintViolation(result.Error)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &unit, nil
}

func (r *PostgresRepo) SaveUnit(ctx context.Context, unit *model.Unit) error {
	unit.UpdatedAt = utils.Now()
	return r.runCatalogWrite(ctx, "SaveUnit Commit", "upsert", "unit", func() error {
		result := r.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "address", "active", "updated_at"}),
		}).Create(unit)
		if result.Error != nil {
			return checkConstraintViolation(result.Error)
		}
		return nil
	})
}

func (r *PostgresRepo) DeleteUnit(ctx context.Context, id string) error {
	return r.runCatalogWrite(ctx, "DeleteUnit Commit", "delete", "unit", func() error {
		result := r.db.WithContext(ctx).Delete(&model.Unit{}, "id = ?", id)
		if result.Error != nil {
			return checkConstraintViolation(result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("%w: unit %s", apperrors.ErrNotFound, id)
		}
		return nil
	})
}

// --- Departments ---

func (r *PostgresRepo) ListDepartments(ctx context.Context, unitID string, activeOnly bool) ([]model.Department, error) {
	var departments []model.Department
	err := r.runCatalogRead(ctx, "ListDepartments", "department", func() error {
		query := r.db.WithContext(ctx).Scopes(activeScope(activeOnly))
		if unitID != "" {
			query = query.Where("unit_id = ?", unitID)
		}
		result := query.Order("name ASC").Find(&departments)
		if result.Error != nil {
			return checkConstraintViolation(result.Error)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return departments, nil
}

func (r *PostgresRepo) FindDepartment(ctx context.Context, id string) (*model.Department, error) {
	var dept model.Department
	err := r.runCatalogRead(ctx, "FindDepartment", "department", func() error {
		result := r.db.WithContext(ctx).Where("id = ?", id).First(&dept)
		if result.Error != nil {
			if errors.Is(result.Error, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: department %s", apperrors.ErrNotFound, id)
			}
			return checkConstraintViolation(result.Error)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &dept, nil
}

func (r *PostgresRepo) SaveDepartment(ctx context.Context, dept *model.Department) error {
	dept.UpdatedAt = utils.Now()
	return r.runCatalogWrite(ctx, "SaveDepartment Commit", "upsert", "department", func() error {
		result := r.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"unit_id", "name", "active", "updated_at"}),
		}).Create(dept)
		if result.Error != nil {
			return checkConstraintViolation(result.Error)
		}
		return nil
	})
}

func (r *PostgresRepo) DeleteDepartment(ctx context.Context, id string) error {
	return r.runCatalogWrite(ctx, "DeleteDepartment Commit", "delete", "department", func() error {
		result := r.db.WithContext(ctx).Delete(&model.Department{}, "id = ?", id)
		if result.Error != nil {
			return checkConstraintViolation(result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("%w: department %s", apperrors.ErrNotFound, id)
		}
		return nil
	})
}

// --- Sellers ---

func (r *PostgresRepo) ListSellers(ctx context.Context, unitID string, activeOnly bool) ([]model.Seller, error) {
	var sellers []model.Seller
	err := r.runCatalogRead(ctx, "ListSellers", "seller", func() error {
		query := r.db.WithContext(ctx).Scopes(activeScope(activeOnly))
		if unitID != "" {
			query = query.Where("unit_id = ?", unitID)
		}
		result := query.Order("name ASC").Find(&sellers)
		if result.Error != nil {
			return checkConstraintViolation(result.Error)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sellers, nil
}

func (r *PostgresRepo) SaveSeller(ctx context.Context, seller *model.Seller) error {
	seller.UpdatedAt = utils.Now()
	return r.runCatalogWrite(ctx, "SaveSeller Commit", "upsert", "seller", func() error {
		result := r.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"unit_id", "name", "phone", "active", "updated_at"}),
		}).Create(seller)
		if result.Error != nil {
			return checkConstraintViolation(result.Error)
		}
		return nil
	})
}

func (r *PostgresRepo) DeleteSeller(ctx context.Context, id string) error {
	return r.runCatalogWrite(ctx, "DeleteSeller Commit", "delete", "seller", func() error {
		result := r.db.WithContext(ctx).Delete(&model.Seller{}, "id = ?", id)
		if result.Error != nil {
			return checkConstraintViolation(result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("%w: seller %s", apperrors.ErrNotFound, id)
		}
		return nil
	})
}

// --- Price items ---

func (r *PostgresRepo) ListPriceItems(ctx context.Context, unitID string, activeOnly bool) ([]model.PriceItem, error) {
	var items []model.PriceItem
	err := r.runCatalogRead(ctx, "ListPriceItems", "price_item", func() error {
		query := r.db.WithContext(ctx).Scopes(activeScope(activeOnly))
		if unitID != "" {
			query = query.Where("unit_id = ?", unitID)
		}
		result := query.Order("name ASC").Find(&items)
		if result.Error != nil {
			return checkConstraintViolation(result.Error)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *PostgresRepo) SavePriceItem(ctx context.Context, item *model.PriceItem) error {
	item.UpdatedAt = utils.Now()
	return r.runCatalogWrite(ctx, "SavePriceItem Commit", "upsert", "price_item", func() error {
		result := r.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"unit_id", "name", "price_cents", "active", "updated_at"}),
		}).Create(item)
		if result.Error != nil {
			return checkConstraintViolation(result.Error)
		}
		return nil
	})
}

func (r *PostgresRepo) DeletePriceItem(ctx context.Context, id string) error {
	return r.runCatalogWrite(ctx, "DeletePriceItem Commit", "delete", "price_item", func() error {
		result := r.db.WithContext(ctx).Delete(&model.PriceItem{}, "id = ?", id)
		if result.Error != nil {
			return checkConstraintViolation(result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("%w: price item %s", apperrors.ErrNotFound, id)
		}
		return nil
	})
}

// --- Settings ---

// GetAllSettings returns every runtime tunable as a key/value map
func (r *PostgresRepo) GetAllSettings(ctx context.Context) (map[string]string, error) {
	var settings []model.Setting
	err := r.runCatalogRead(ctx, "GetAllSettings", "setting", func() error {
		result := r.db.WithContext(ctx).Find(&settings)
		if result.Error != nil {
			return checkConstraintViolation(result.Error)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	out := make(map[string]string, len(settings))
	for _, s := range settings {
		out[s.Key] = s.Value
	}
	return out, nil
}

// UpsertSetting inserts or replaces one runtime tunable
func (r *PostgresRepo) UpsertSetting(ctx context.Context, key, value string) error {
	setting := model.Setting{Key: key, Value: value, UpdatedAt: utils.Now()}
	return r.runCatalogWrite(ctx, "UpsertSetting Commit", "upsert", "setting", func() error {
		result := r.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).Create(&setting)
		if result.Error != nil {
			return checkConstraintViolation(result.Error)
		}
		return nil
	})
}
