package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestShiftMigrationEnforcesSingleOpenShift(t *testing.T) {
	matches, err := filepath.Glob(filepath.Join("migrations", "*_create_shift_tables.sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no shift migration file found")
	}

	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	content := string(data)

	checks := []string{
		"CREATE TABLE IF NOT EXISTS pos_shifts",
		"CREATE UNIQUE INDEX IF NOT EXISTS uq_shifts_open_cashier ON pos_shifts(open_key) WHERE open_key IS NOT NULL",
		"CREATE TABLE IF NOT EXISTS safebag_deposits",
		"CHECK (amount > 0)",
		"CREATE UNIQUE INDEX IF NOT EXISTS uq_daily_closure_reports_shift",
		"DROP TABLE IF EXISTS pos_shifts",
	}

	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}
