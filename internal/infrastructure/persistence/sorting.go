package persistence

import (
	"strings"

	"github.com/crm/backend/internal/domain/schema"
	"gorm.io/gorm/clause"
)

// sortDescending reports whether dir asks for a descending sort. Only "asc"
// (any case) sorts ascending; empty and unrecognised input sort descending.
func sortDescending(dir string) bool {
	return !strings.EqualFold(strings.TrimSpace(dir), "asc")
}

// orderColumns builds the ORDER BY for a listing of e. A column outside
// sortable falls back to the primary key, which also closes every ordering
// so that pages are stable.
func orderColumns(e schema.Entity, sortable map[string]bool, orderBy, orderDir string) []clause.OrderByColumn {
	column := strings.TrimSpace(orderBy)
	if !sortable[column] {
		column = e.PrimaryKey
	}

	cols := []clause.OrderByColumn{{Column: clause.Column{Name: column}, Desc: sortDescending(orderDir)}}
	if column != e.PrimaryKey {
		cols = append(cols, clause.OrderByColumn{Column: clause.Column{Name: e.PrimaryKey}})
	}
	return cols
}
