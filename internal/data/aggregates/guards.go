package aggregates

import (
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/skillforge-backend/internal/platform/dbctx"
)

// CASGuard performs compare-and-set writes keyed on an integer version column.
type CASGuard struct {
	db *gorm.DB
}

func NewCASGuard(db *gorm.DB) CASGuard {
	return CASGuard{db: db}
}

// UpdateByVersion applies updates only when id and version still match, and
// bumps the version in the same statement. It reports whether a row changed.
func (g CASGuard) UpdateByVersion(dbc dbctx.Context, table string, id uuid.UUID, expectedVersion int, updates map[string]any) (bool, error) {
	if dbc.Tx == nil && g.db == nil {
		return false, ValidationError("missing db handle")
	}
	table = strings.TrimSpace(table)
	if table == "" || id == uuid.Nil {
		return false, ValidationError("table and id are required for UpdateByVersion")
	}
	if expectedVersion < 0 {
		return false, ValidationError("expectedVersion must be >= 0")
	}
	set := make(map[string]any, len(updates)+1)
	for k, v := range updates {
		set[k] = v
	}
	set["version"] = expectedVersion + 1

	res := dbc.DB(g.db).Table(table).
		Where("id = ? AND version = ?", id, expectedVersion).
		Updates(set)
	if res.Error != nil {
		return false, Classify("cas update "+table, res.Error)
	}
	return res.RowsAffected > 0, nil
}

// RequireCASSuccess converts a failed compare-and-set into a conflict error.
func RequireCASSuccess(ok bool, message string) error {
	if ok {
		return nil
	}
	return ConflictError(message)
}
