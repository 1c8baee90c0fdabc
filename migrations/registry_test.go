package migrations

import (
	"context"
	"io/fs"
	"testing"
)

func TestFilesystems_ResolvesBothDialects(t *testing.T) {
	filesystems, err := Filesystems()
	if err != nil {
		t.Fatalf("filesystems: %v", err)
	}
	if len(filesystems) != 2 {
		t.Fatalf("expected postgres and sqlite filesystems, got %d", len(filesystems))
	}
	for _, fsys := range filesystems {
		matches, err := fs.Glob(fsys.FS, "*.up.sql")
		if err != nil {
			t.Fatalf("glob %s: %v", fsys.Dialect, err)
		}
		if len(matches) == 0 {
			t.Fatalf("expected up migrations for %s", fsys.Dialect)
		}
	}
}

func TestRegister_InvokesPerValidatedDialect(t *testing.T) {
	seen := map[string]string{}
	reg, err := Register(context.Background(), func(_ context.Context, dialect string, label string, fsys fs.FS) error {
		if fsys == nil {
			t.Fatalf("nil filesystem for %s", dialect)
		}
		seen[dialect] = label
		return nil
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if reg.SourceLabel != "go-proposal-sync" {
		t.Fatalf("unexpected source label %q", reg.SourceLabel)
	}
	if len(seen) != 2 {
		t.Fatalf("expected both dialects registered, got %v", seen)
	}
}

func TestRegister_HonorsValidationTargets(t *testing.T) {
	seen := []string{}
	_, err := Register(context.Background(), func(_ context.Context, dialect string, _ string, _ fs.FS) error {
		seen = append(seen, dialect)
		return nil
	}, WithValidationTargets(DialectSQLite))
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if len(seen) != 1 || seen[0] != DialectSQLite {
		t.Fatalf("expected sqlite only, got %v", seen)
	}
}

func TestRegister_RequiresRegisterFunc(t *testing.T) {
	if _, err := Register(context.Background(), nil); err == nil {
		t.Fatalf("expected missing register function to fail")
	}
}
