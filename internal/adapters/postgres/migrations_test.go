package postgres_test

import (
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/vgarrido/rutasur/internal/core/domain"
)

// findMigrationsDir locates the migrations directory by walking up from the
// test directory.
func findMigrationsDir(t *testing.T) string {
	dir, _ := os.Getwd()

	for i := 0; i < 5; i++ {
		candidate := filepath.Join(dir, "migrations")
		if info, err := os.Stat(candidate); err == nil && info.IsDir() {
			return candidate
		}
		dir = filepath.Dir(dir)
	}

	t.Fatalf("could not find migrations directory")
	return ""
}

// Vehicles written by the schema default or the seed must be schedulable,
// or a fresh install reports capacity_shortfall for every booking.
func TestMigrations_VehicleStatesSchedulable(t *testing.T) {
	dir := findMigrationsDir(t)

	schema, err := os.ReadFile(filepath.Join(dir, "001_core_tables.sql"))
	if err != nil {
		t.Fatalf("read schema migration: %v", err)
	}
	seed, err := os.ReadFile(filepath.Join(dir, "002_seed.sql"))
	if err != nil {
		t.Fatalf("read seed migration: %v", err)
	}

	check := func(raw string) {
		t.Helper()
		v := domain.Vehicle{State: domain.VehicleState(raw), Capacity: 1}
		if !v.Schedulable() {
			t.Errorf("migration writes vehicle state %q, which no booking can use", raw)
		}
	}

	defaultRe := regexp.MustCompile(`state\s+TEXT NOT NULL DEFAULT '(\w+)'`)
	m := defaultRe.FindStringSubmatch(string(schema))
	if m == nil {
		t.Fatal("vehicles table declares no state default")
	}
	check(m[1])

	rowRe := regexp.MustCompile(`\('[A-Z]{4}-\d+',\s*'\w+',\s*\d+,\s*'(\w+)'\)`)
	rows := rowRe.FindAllStringSubmatch(string(seed), -1)
	if len(rows) == 0 {
		t.Fatal("seed migration inserts no vehicles")
	}
	for _, row := range rows {
		check(row[1])
	}
}
