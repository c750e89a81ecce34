package migrate

import (
	"io/fs"
	"strings"
	"testing"
)

func TestEmbeddedMigrations(t *testing.T) {
	files, err := fs.Glob(migrations, migrationsDir+"/*.sql")
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	want := []string{
		"migrations/00001_create_directory.sql",
		"migrations/00002_create_user_security.sql",
	}
	if len(files) != len(want) {
		t.Fatalf("embedded migrations = %v, want %v", files, want)
	}
	for i, name := range want {
		if files[i] != name {
			t.Fatalf("migration %d = %s, want %s", i, files[i], name)
		}
		body, err := fs.ReadFile(migrations, name)
		if err != nil {
			t.Fatalf("read %s: %v", name, err)
		}
		text := string(body)
		up := strings.Index(text, "-- +goose Up")
		down := strings.Index(text, "-- +goose Down")
		if up < 0 || down < 0 || down < up {
			t.Fatalf("%s: expected goose Up then Down sections", name)
		}
	}
}

func TestSecurityMigrationShape(t *testing.T) {
	body, err := fs.ReadFile(migrations, "migrations/00002_create_user_security.sql")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	text := strings.Join(strings.Fields(strings.ToLower(string(body))), " ")
	for _, fragment := range []string{
		"must_change_password boolean not null default true",
		"reset_token_hash",
		"references users",
	} {
		if !strings.Contains(text, fragment) {
			t.Fatalf("security migration lacks %q", fragment)
		}
	}
}

func TestPrepareSelectsPgxDialect(t *testing.T) {
	gooseMu.Lock()
	defer gooseMu.Unlock()
	if err := prepare(); err != nil {
		t.Fatalf("prepare: %v", err)
	}
}
