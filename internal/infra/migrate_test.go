package infra

import (
	"io/fs"
	"strings"
	"testing"
)

func TestEmbeddedMigrationsHaveGooseSections(t *testing.T) {
	entries, err := fs.ReadDir(migrationsFS, migrationsDir)
	if err != nil {
		t.Fatalf("read migrations: %v", err)
	}
	if len(entries) == 0 {
		t.Fatal("expected embedded migrations")
	}
	for _, entry := range entries {
		raw, err := fs.ReadFile(migrationsFS, migrationsDir+"/"+entry.Name())
		if err != nil {
			t.Fatalf("read %s: %v", entry.Name(), err)
		}
		body := string(raw)
		if !strings.Contains(body, "-- +goose Up") || !strings.Contains(body, "-- +goose Down") {
			t.Fatalf("%s is missing goose up/down annotations", entry.Name())
		}
	}
}

func TestOrdersTableEnforcesArtifactOnCompletion(t *testing.T) {
	raw, err := fs.ReadFile(migrationsFS, migrationsDir+"/00001_init.sql")
	if err != nil {
		t.Fatalf("read init migration: %v", err)
	}
	if !strings.Contains(string(raw), "processing_status <> 'completed' or processed_video_url is not null") {
		t.Fatal("orders table must reject completed rows without an artifact url")
	}
}
