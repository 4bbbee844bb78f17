package storage

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"

	"gitlab.com/atividade/api/wa-frontdesk/internal/apperrors"
)

func TestIsTransientError(t *testing.T) {
	testCases := []struct {
		name     string
		err      error
		expected bool
	}{
		{name: "Nil error", err: nil, expected: false},
		{name: "Context deadline exceeded", err: context.DeadlineExceeded, expected: true},
		{name: "Wrapped context deadline exceeded", err: fmt.Errorf("operation failed: %w", context.DeadlineExceeded), expected: true},
		{name: "GORM record not found", err: gorm.ErrRecordNotFound, expected: false},
		{name: "PG connection exception (08000)", err: &pgconn.PgError{Code: "08000"}, expected: true},
		{name: "PG insufficient resources (53100)", err: &pgconn.PgError{Code: "53100"}, expected: true},
		{name: "PG deadlock detected (40P01)", err: &pgconn.PgError{Code: "40P01"}, expected: true},
		{name: "PG serialization failure (40001)", err: &pgconn.PgError{Code: "40001"}, expected: true},
		{name: "PG syntax error (42601)", err: &pgconn.PgError{Code: "42601"}, expected: false},
		{name: "Connection refused", err: errors.New("dial tcp 127.0.0.1:5432: connect: connection refused"), expected: true},
		{name: "I/O timeout", err: errors.New("read tcp: i/o timeout"), expected: true},
		{name: "Broken pipe", err: errors.New("write: broken pipe"), expected: true},
		{name: "Database starting up", err: errors.New("pq: the database system is starting up"), expected: true},
		{name: "Generic error", err: errors.New("some other database error"), expected: false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, isTransientError(tc.err))
		})
	}
}

func TestCheckConstraintViolation(t *testing.T) {
	testCases := []struct {
		name    string
		err     error
		checker func(error) bool
	}{
		{name: "Unique violation", err: &pgconn.PgError{Code: "23505"}, checker: apperrors.IsDuplicateError},
		{name: "Foreign key violation", err: &pgconn.PgError{Code: "23503"}, checker: apperrors.IsBadRequestError},
		{name: "Not null violation", err: &pgconn.PgError{Code: "23502"}, checker: apperrors.IsBadRequestError},
		{name: "Check violation", err: &pgconn.PgError{Code: "23514"}, checker: apperrors.IsBadRequestError},
		{name: "String too long", err: &pgconn.PgError{Code: "22001"}, checker: apperrors.IsBadRequestError},
		{name: "Serialization failure", err: &pgconn.PgError{Code: "40001"}, checker: apperrors.IsDatabaseError},
		{name: "Connection failure", err: &pgconn.PgError{Code: "08006"}, checker: apperrors.IsDatabaseError},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			mapped := checkConstraintViolation(tc.err)
			assert.True(t, tc.checker(mapped))
		})
	}

	t.Run("Nil passes through", func(t *testing.T) {
		assert.NoError(t, checkConstraintViolation(nil))
	})

	t.Run("Non-PG error maps to database error", func(t *testing.T) {
		plain := errors.New("not a pg error")
		mapped := checkConstraintViolation(plain)
		assert.True(t, apperrors.IsDatabaseError(mapped))
		assert.ErrorIs(t, mapped, plain)
	})
}
