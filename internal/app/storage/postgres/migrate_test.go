package postgres

import (
	"io/fs"
	"strings"
	"testing"
)

func TestMigrationsComeInPairs(t *testing.T) {
	entries, err := fs.ReadDir(migrationFS, "migrations")
	if err != nil {
		t.Fatalf("read embedded migrations: %v", err)
	}

	ups := map[string]bool{}
	downs := map[string]bool{}
	for _, e := range entries {
		name := e.Name()
		switch {
		case strings.HasSuffix(name, ".up.sql"):
			ups[strings.TrimSuffix(name, ".up.sql")] = true
		case strings.HasSuffix(name, ".down.sql"):
			downs[strings.TrimSuffix(name, ".down.sql")] = true
		default:
			t.Errorf("unexpected file %s in migrations", name)
		}
	}

	if len(ups) == 0 {
		t.Fatal("no up migrations embedded")
	}
	for base := range ups {
		if !downs[base] {
			t.Errorf("migration %s has no down script", base)
		}
	}
	for base := range downs {
		if !ups[base] {
			t.Errorf("migration %s has no up script", base)
		}
	}
}
