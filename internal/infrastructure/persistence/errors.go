package persistence

import (
	"errors"
	"strings"

	"github.com/crm/backend/internal/domain/shared"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
	"gorm.io/gorm"
)

// integrity constraint violation class
const pgIntegrityClass = "23"

// TranslateError maps driver and GORM errors onto the shared domain errors.
// Errors that are already domain errors pass through unchanged.
func TranslateError(err error) error {
	if err == nil {
		return nil
	}

	var crmErr *shared.Error
	if errors.As(err, &crmErr) {
		return err
	}

	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return shared.ErrNotFound
	case errors.Is(err, gorm.ErrForeignKeyViolated),
		errors.Is(err, gorm.ErrDuplicatedKey),
		errors.Is(err, gorm.ErrCheckConstraintViolated):
		return shared.ErrConstraintViolation.Wrapf("%v", err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && strings.HasPrefix(pgErr.Code, pgIntegrityClass) {
		return shared.ErrConstraintViolation.Wrapf("%s", pgErr.Message)
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && string(pqErr.Code.Class()) == pgIntegrityClass {
		return shared.ErrConstraintViolation.Wrapf("%s", pqErr.Message)
	}

	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) && liteErr.Code == sqlite3.ErrConstraint {
		return shared.ErrConstraintViolation.Wrapf("%v", liteErr)
	}

	return err
}
