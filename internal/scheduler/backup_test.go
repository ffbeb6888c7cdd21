package scheduler

import (
	"testing"

	"eventcover_backend/platform/logger"
)

func TestSelectTablesDefaultsToCoreTables(t *testing.T) {
	b := &Backup{log: logger.New("test")}

	selected := b.selectTables(nil)
	if len(selected) != len(coreTables) {
		t.Fatalf("selected %d tables, want %d", len(selected), len(coreTables))
	}
}

func TestSelectTablesDropsUnknownNames(t *testing.T) {
	b := &Backup{log: logger.New("test")}

	selected := b.selectTables([]string{"quotes", "pg_shadow", "payments"})
	if len(selected) != 2 {
		t.Fatalf("selected = %v, want [quotes payments]", selected)
	}
	if selected[0] != "quotes" || selected[1] != "payments" {
		t.Fatalf("selected = %v, want [quotes payments]", selected)
	}
}
