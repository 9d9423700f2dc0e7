package database

import (
	"context"
	"testing"
	"testing/fstest"
	"time"
)

func testMigrations() fstest.MapFS {
	return fstest.MapFS{
		"20250101_080000_readings.up.sql": {Data: []byte(
			`CREATE TABLE readings (id INTEGER PRIMARY KEY, value REAL NOT NULL);`)},
		"20250101_080000_readings.down.sql": {Data: []byte(`DROP TABLE readings;`)},
		"20250102_090000_notes.up.sql": {Data: []byte(
			`CREATE TABLE notes (id INTEGER PRIMARY KEY, body TEXT NOT NULL);`)},
		"20250102_090000_notes.down.sql": {Data: []byte(`DROP TABLE notes;`)},
		"README.md":                      {Data: []byte("not a migration")},
	}
}

func tableExists(t *testing.T, db *DB, name string) bool {
	t.Helper()
	var count int
	err := db.QueryRowContext(context.Background(),
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", name,
	).Scan(&count)
	if err != nil {
		t.Fatalf("querying sqlite_master: %v", err)
	}
	return count == 1
}

func TestMigrate(t *testing.T) {
	db := openTestDB(t)
	fsys := testMigrations()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.Migrate(ctx, fsys); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}

	for _, table := range []string{"readings", "notes"} {
		if !tableExists(t, db, table) {
			t.Errorf("table %s not created", table)
		}
	}

	applied, pending, err := db.MigrationStatus(ctx, fsys)
	if err != nil {
		t.Fatalf("MigrationStatus() error = %v", err)
	}
	if len(applied) != 2 || len(pending) != 0 {
		t.Errorf("applied=%d pending=%d, want 2/0", len(applied), len(pending))
	}
	if applied[0].Version != "20250101_080000" {
		t.Errorf("first applied version = %q, want 20250101_080000", applied[0].Version)
	}

	// Running again is a no-op.
	if err := db.Migrate(ctx, fsys); err != nil {
		t.Fatalf("second Migrate() error = %v", err)
	}
}

func TestMigrateDown(t *testing.T) {
	db := openTestDB(t)
	fsys := testMigrations()
	ctx := context.Background()

	if err := db.Migrate(ctx, fsys); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	if err := db.MigrateDown(ctx, fsys); err != nil {
		t.Fatalf("MigrateDown() error = %v", err)
	}

	if tableExists(t, db, "notes") {
		t.Error("notes table still exists after rollback")
	}
	if !tableExists(t, db, "readings") {
		t.Error("readings table dropped by single rollback")
	}

	_, pending, err := db.MigrationStatus(ctx, fsys)
	if err != nil {
		t.Fatalf("MigrationStatus() error = %v", err)
	}
	if len(pending) != 1 || pending[0].Name != "notes" {
		t.Errorf("pending = %+v, want notes only", pending)
	}
}

func TestMigrate_FailureRollsBack(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	fsys := fstest.MapFS{
		"20250101_080000_good.up.sql": {Data: []byte(`CREATE TABLE good (id INTEGER);`)},
		"20250102_080000_bad.up.sql":  {Data: []byte(`CREATE TABLE bad (id INTEGER); NOT SQL;`)},
	}

	if err := db.Migrate(ctx, fsys); err == nil {
		t.Fatal("Migrate() with invalid SQL should fail")
	}

	applied, _, err := db.MigrationStatus(ctx, fsys)
	if err != nil {
		t.Fatalf("MigrationStatus() error = %v", err)
	}
	if len(applied) != 1 {
		t.Errorf("applied = %d, want 1 (only the good migration)", len(applied))
	}
	if tableExists(t, db, "bad") {
		t.Error("failed migration left its table behind")
	}
}

func TestMigrate_NilFS(t *testing.T) {
	db := openTestDB(t)
	if err := db.Migrate(context.Background(), nil); err != nil {
		t.Errorf("Migrate(nil) error = %v", err)
	}
}

func TestParseMigrationFilename(t *testing.T) {
	tests := []struct {
		filename    string
		wantVersion string
		wantName    string
		wantUp      bool
		wantOK      bool
	}{
		{"20250101_083000_clock_state.up.sql", "20250101_083000", "clock_state", true, true},
		{"20250101_083000_clock_state.down.sql", "20250101_083000", "clock_state", false, true},
		{"20250101_083000.up.sql", "20250101_083000", "20250101_083000", true, true},
		{"20250101.up.sql", "", "", false, false},
		{"20250101_083000_clock.sql", "", "", false, false},
		{"notes.txt", "", "", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			version, name, up, ok := parseMigrationFilename(tt.filename)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if version != tt.wantVersion || name != tt.wantName || up != tt.wantUp {
				t.Errorf("got (%q, %q, %v), want (%q, %q, %v)",
					version, name, up, tt.wantVersion, tt.wantName, tt.wantUp)
			}
		})
	}
}
