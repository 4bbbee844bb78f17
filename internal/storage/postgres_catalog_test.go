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

func TestListUnits_ActiveOnly(t *testing.T) {
	repo, mock := newTestRepo(t)
	ctx := context.Background()

	now := time.Now()
	mock.ExpectQuery(`SELECT \* FROM "units" WHERE active = \$1 ORDER BY name ASC`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "address", "active", "created_at", "updated_at"}).
			AddRow("unit-centro", "Centro", "Rua Principal, 100", true, now, now))

	units, err := repo.ListUnits(ctx, true)

	require.NoError(t, err)
	require.Len(t, units, 1)
	assert.Equal(t, "Centro", units[0].Name)
}

func TestSaveUnit_Upsert(t *testing.T) {
	repo, mock := newTestRepo(t)
	ctx := context.Background()

	mock.ExpectExec(`INSERT INTO "units" .* ON CONFLICT \("id"\) DO UPDATE SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.SaveUnit(ctx, &model.Unit{ID: "unit-centro", Name: "Centro", Active: true})

	require.NoError(t, err)
}

func TestDeleteUnit_NotFound(t *testing.T) {
	repo, mock := newTestRepo(t)
	ctx := context.Background()

	mock.ExpectExec(`DELETE FROM "units" WHERE id = \$1`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.DeleteUnit(ctx, "missing")

	require.Error(t, err)
	assert.True(t, apperrors.IsNotFoundError(err))
}

func TestListDepartments_ByUnit(t *testing.T) {
	repo, mock := newTestRepo(t)
	ctx := context.Background()

	now := time.Now()
	mock.ExpectQuery(`SELECT \* FROM "departments" WHERE unit_id = \$1 AND active = \$2 ORDER BY name ASC`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "unit_id", "name", "active", "created_at", "updated_at"}).
			AddRow("dept-geral", "unit-centro", "Atendimento Geral", true, now, now))

	depts, err := repo.ListDepartments(ctx, "unit-centro", true)

	require.NoError(t, err)
	require.Len(t, depts, 1)
	assert.Equal(t, "Atendimento Geral", depts[0].Name)
}

func TestGetAllSettings(t *testing.T) {
	repo, mock := newTestRepo(t)
	ctx := context.Background()

	now := time.Now()
	mock.ExpectQuery(`SELECT \* FROM "settings"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "key", "value", "updated_at"}).
			AddRow(int64(1), model.SettingNotifyIntervalSeconds, "45", now).
			AddRow(int64(2), model.SettingAbandonTimeoutSeconds, "900", now))

	settings, err := repo.GetAllSettings(ctx)

	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		model.SettingNotifyIntervalSeconds: "45",
		model.SettingAbandonTimeoutSeconds: "900",
	}, settings)
}

func TestUpsertSetting(t *testing.T) {
	repo, mock := newTestRepo(t)
	ctx := context.Background()

	mock.ExpectQuery(`INSERT INTO "settings" .* ON CONFLICT \("key"\) DO UPDATE SET`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(1)))

	err := repo.UpsertSetting(ctx, model.SettingNotifyIntervalSeconds, "45")

	require.NoError(t, err)
}
