package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDatabaseURL(t *testing.T) {
	t.Run("flag wins", func(t *testing.T) {
		t.Setenv("DATABASE_URL", "postgres://env")
		got, err := databaseURL("postgres://flag", "")
		if err != nil || got != "postgres://flag" {
			t.Errorf("Expected flag URL, got %q (%v)", got, err)
		}
	})

	t.Run("DATABASE_URL", func(t *testing.T) {
		t.Setenv("DATABASE_URL", "postgres://env")
		got, err := databaseURL("", "")
		if err != nil || got != "postgres://env" {
			t.Errorf("Expected env URL, got %q (%v)", got, err)
		}
	})

	t.Run("config file", func(t *testing.T) {
		t.Setenv("DATABASE_URL", "")
		path := filepath.Join(t.TempDir(), "rulebuilder.toml")
		body := "[store]\nbackend = \"postgres\"\npostgres_url = \"postgres://file\"\n\n[catalog]\nfile = \"catalog.yaml\"\n"
		if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
			t.Fatal(err)
		}
		got, err := databaseURL("", path)
		if err != nil || got != "postgres://file" {
			t.Errorf("Expected config URL, got %q (%v)", got, err)
		}
	})

	t.Run("none", func(t *testing.T) {
		t.Setenv("DATABASE_URL", "")
		t.Setenv("RULEBUILDER_CATALOG_FILE", "catalog.yaml")
		if _, err := databaseURL("", ""); err == nil {
			t.Error("Expected an error without any database URL")
		}
	})
}
