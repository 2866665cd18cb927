package specification

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

type row struct {
	Id uuid.UUID
}

func dryRun(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(postgres.New(postgres.Config{DSN: "host=localhost dbname=dry"}), &gorm.Config{
		DryRun:                 true,
		DisableAutomaticPing:   true,
		SkipDefaultTransaction: true,
	})
	if err != nil {
		t.Fatalf("open dry run db: %v", err)
	}
	return db
}

func TestSpecificationsCompose(t *testing.T) {
	db := dryRun(t)

	specs := []Specification{
		VisibleTo{UserID: "u1"},
		ByCategory{Category: "Services"},
		OrderBy{Field: "created_at", Desc: true},
		Pagination{Limit: 10, Offset: 20},
	}
	q := db.Table("documents")
	for _, s := range specs {
		q = s.Apply(q)
	}
	stmt := q.Find(&[]row{}).Statement

	sql := stmt.SQL.String()
	assert.Contains(t, sql, "(user_id = $1 OR user_id = '')")
	assert.Contains(t, sql, "category = $2")
	assert.Contains(t, sql, "ORDER BY created_at DESC")
	assert.Contains(t, sql, "LIMIT")
	assert.Contains(t, sql, "OFFSET")
	if assert.GreaterOrEqual(t, len(stmt.Vars), 2) {
		assert.Equal(t, "u1", stmt.Vars[0])
		assert.Equal(t, "Services", stmt.Vars[1])
	}
}
