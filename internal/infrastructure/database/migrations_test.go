package database

import (
	"embed"
	"errors"
	"testing"
	"testing/fstest"
)

//go:embed testdata/*.sql
var testMigrationsFS embed.FS

// testMigrations is the source of the versioned scripts under testdata.
var testMigrations = MigrationSource{FS: testMigrationsFS, Dir: "testdata"}

// TestMigrate verifies migration application.
func TestMigrate(t *testing.T) {
	op := openTestOperator(t)
	ctx := testContext(t)

	if err := op.Migrate(ctx, testMigrations); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}

	rs, err := op.SelectQueryFetchAll(ctx,
		"SELECT name FROM sqlite_master WHERE type='table' AND name='Person'")
	if err != nil {
		t.Fatalf("SelectQueryFetchAll() error = %v", err)
	}
	if rs.Len() != 1 {
		t.Fatal("table Person not created")
	}

	applied, pending, err := op.MigrationStatus(ctx, testMigrations)
	if err != nil {
		t.Fatalf("MigrationStatus() error = %v", err)
	}
	if len(applied) != 2 {
		t.Errorf("expected 2 applied migrations, got %d", len(applied))
	}
	if len(pending) != 0 {
		t.Errorf("expected 0 pending migrations, got %d", len(pending))
	}
	for _, a := range applied {
		if a.AppliedAt.IsZero() {
			t.Errorf("migration %s has zero AppliedAt", a.Version)
		}
	}

	// Running again must not re-apply the seed insert.
	if err := op.Migrate(ctx, testMigrations); err != nil {
		t.Fatalf("second Migrate() error = %v", err)
	}
	if n := countPersons(t, op); n != 1 {
		t.Errorf("Person rows after second Migrate = %d, want 1", n)
	}
}

// TestMigrateDown verifies migration rollback.
func TestMigrateDown(t *testing.T) {
	op := openTestOperator(t)
	ctx := testContext(t)

	if err := op.Migrate(ctx, testMigrations); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}

	if err := op.MigrateDown(ctx, testMigrations); err != nil {
		t.Fatalf("MigrateDown() error = %v", err)
	}
	if n := countPersons(t, op); n != 0 {
		t.Errorf("Person rows after first MigrateDown = %d, want 0", n)
	}

	applied, pending, err := op.MigrationStatus(ctx, testMigrations)
	if err != nil {
		t.Fatalf("MigrationStatus() error = %v", err)
	}
	if len(applied) != 1 || len(pending) != 1 {
		t.Errorf("applied=%d pending=%d, want 1 and 1", len(applied), len(pending))
	}

	if err := op.MigrateDown(ctx, testMigrations); err != nil {
		t.Fatalf("second MigrateDown() error = %v", err)
	}
	if _, err := op.SelectQueryFetchAll(ctx, "SELECT * FROM Person"); !errors.Is(err, ErrQuery) {
		t.Errorf("Person still readable after full rollback, err = %v", err)
	}

	// Nothing left to roll back.
	if err := op.MigrateDown(ctx, testMigrations); err != nil {
		t.Errorf("MigrateDown() on empty history error = %v", err)
	}
}

// TestMigrate_FailureRollsBackMigration verifies a broken script leaves no trace.
func TestMigrate_FailureRollsBackMigration(t *testing.T) {
	op := openTestOperator(t)
	ctx := testContext(t)

	src := MigrationSource{
		FS: fstest.MapFS{
			"20260101_000000_good.up.sql": {Data: []byte("CREATE TABLE good (id INTEGER);")},
			"20260102_000000_bad.up.sql":  {Data: []byte("CREATE TABLE half (id INTEGER); NOT SQL;")},
		},
		Dir: ".",
	}

	if err := op.Migrate(ctx, src); err == nil {
		t.Fatal("Migrate() expected error for broken migration")
	}

	applied, pending, err := op.MigrationStatus(ctx, src)
	if err != nil {
		t.Fatalf("MigrationStatus() error = %v", err)
	}
	if len(applied) != 1 || applied[0].Version != "20260101_000000" {
		t.Errorf("applied = %v, want only 20260101_000000", applied)
	}
	if len(pending) != 1 {
		t.Errorf("pending = %d, want 1", len(pending))
	}

	rs, err := op.SelectQueryFetchAll(ctx, "SELECT name FROM sqlite_master WHERE name = 'half'")
	if err != nil {
		t.Fatalf("SelectQueryFetchAll() error = %v", err)
	}
	if rs.Len() != 0 {
		t.Error("table from failed migration was not rolled back")
	}
}

// TestMigrateNoMigrations verifies behaviour with an empty source.
func TestMigrateNoMigrations(t *testing.T) {
	op := openTestOperator(t)
	ctx := testContext(t)

	if err := op.Migrate(ctx, MigrationSource{FS: fstest.MapFS{}}); err != nil {
		t.Fatalf("Migrate() with no migrations error = %v", err)
	}
	if err := op.Migrate(ctx, MigrationSource{}); err != nil {
		t.Fatalf("Migrate() with nil FS error = %v", err)
	}
}

// TestMigrate_MissingDirectory verifies a bad source is reported.
func TestMigrate_MissingDirectory(t *testing.T) {
	op := openTestOperator(t)

	err := op.Migrate(testContext(t), MigrationSource{FS: testMigrationsFS, Dir: "nope"})
	if err == nil {
		t.Fatal("Migrate() expected error for missing directory")
	}
}

// TestParseMigrationFilename verifies filename parsing.
func TestParseMigrationFilename(t *testing.T) {
	tests := []struct {
		name        string
		filename    string
		wantVersion string
		wantIsUp    bool
		wantOk      bool
	}{
		{
			name:        "valid up migration",
			filename:    "20260118_120000_create_person.up.sql",
			wantVersion: "20260118_120000",
			wantIsUp:    true,
			wantOk:      true,
		},
		{
			name:        "valid down migration",
			filename:    "20260118_120000_create_person.down.sql",
			wantVersion: "20260118_120000",
			wantIsUp:    false,
			wantOk:      true,
		},
		{
			name:     "not sql file",
			filename: "README.txt",
			wantOk:   false,
		},
		{
			name:     "missing direction",
			filename: "20260118_120000_create_person.sql",
			wantOk:   false,
		},
		{
			name:     "invalid format",
			filename: "invalid.up.sql",
			wantOk:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			version, isUp, ok := parseMigrationFilename(tt.filename)
			if ok != tt.wantOk {
				t.Errorf("ok = %v, want %v", ok, tt.wantOk)
			}
			if ok {
				if version != tt.wantVersion {
					t.Errorf("version = %v, want %v", version, tt.wantVersion)
				}
				if isUp != tt.wantIsUp {
					t.Errorf("isUp = %v, want %v", isUp, tt.wantIsUp)
				}
			}
		})
	}
}

// TestExtractMigrationName verifies name extraction.
func TestExtractMigrationName(t *testing.T) {
	tests := []struct {
		filename string
		want     string
	}{
		{"20260118_120000_create_person.up.sql", "create_person"},
		{"20260118_120000_initial_schema.down.sql", "initial_schema"},
		{"20260118_120000_add_score_index.up.sql", "add_score_index"},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			got := extractMigrationName(tt.filename)
			if got != tt.want {
				t.Errorf("extractMigrationName(%q) = %q, want %q", tt.filename, got, tt.want)
			}
		})
	}
}
