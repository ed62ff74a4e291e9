package aggregates

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/yungbote/skillforge-backend/internal/platform/dbctx"
)

type versionedRow struct {
	ID      uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name    string
	Version int
}

func (versionedRow) TableName() string { return "versioned_row" }

func openDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:guards_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: gormLogger.Default.LogMode(gormLogger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&versionedRow{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func TestUpdateByVersion(t *testing.T) {
	db := openDB(t)
	row := versionedRow{ID: uuid.New(), Name: "a"}
	if err := db.Create(&row).Error; err != nil {
		t.Fatalf("create: %v", err)
	}
	guard := NewCASGuard(db)
	dbc := dbctx.Context{Ctx: context.Background()}

	ok, err := guard.UpdateByVersion(dbc, "versioned_row", row.ID, 0, map[string]any{"name": "b"})
	if err != nil || !ok {
		t.Fatalf("first update: ok=%v err=%v", ok, err)
	}
	ok, err = guard.UpdateByVersion(dbc, "versioned_row", row.ID, 0, map[string]any{"name": "c"})
	if err != nil {
		t.Fatalf("stale update err: %v", err)
	}
	if ok {
		t.Fatalf("stale version should not match")
	}
	if err := RequireCASSuccess(ok, "stale"); !IsConflict(err) {
		t.Fatalf("expected conflict, got %v", err)
	}

	var got versionedRow
	if err := db.First(&got, "id = ?", row.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got.Name != "b" || got.Version != 1 {
		t.Fatalf("row: want name=b version=1, got %+v", got)
	}
}

func TestUpdateByVersionValidates(t *testing.T) {
	guard := NewCASGuard(nil)
	if _, err := guard.UpdateByVersion(dbctx.Context{Ctx: context.Background()}, "t", uuid.New(), 0, nil); err == nil {
		t.Fatalf("expected error without db")
	}
}
