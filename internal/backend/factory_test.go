package backend

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"teamapp/internal/config"
	"teamapp/internal/storage"
)

func TestBackendType_IsValid(t *testing.T) {
	tests := []struct {
		in   BackendType
		want bool
	}{
		{JSONBackend, true},
		{SQLiteBackend, true},
		{"memory", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := tt.in.IsValid(); got != tt.want {
			t.Errorf("BackendType(%q).IsValid() = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestFromAppConfig(t *testing.T) {
	if _, err := FromAppConfig(nil); err == nil {
		t.Error("FromAppConfig(nil) should fail")
	}
	if _, err := FromAppConfig(&config.Config{DataBackend: "sheets"}); err == nil {
		t.Error("FromAppConfig with unknown backend should fail")
	}

	got, err := FromAppConfig(&config.Config{DataBackend: "sqlite", SQLiteDBPath: "x.db", DataDir: "d"})
	if err != nil {
		t.Fatalf("FromAppConfig() error = %v", err)
	}
	want := Config{Type: SQLiteBackend, SQLiteDBPath: "x.db", DataDirectory: "d"}
	if got != want {
		t.Errorf("FromAppConfig() = %+v, want %+v", got, want)
	}
}

func TestConfig_Validate(t *testing.T) {
	if err := (Config{Type: SQLiteBackend}).Validate(); err == nil {
		t.Error("sqlite without path should fail")
	}
	if err := (Config{Type: JSONBackend}).Validate(); err != nil {
		t.Errorf("json without directory should default, got %v", err)
	}
}

func TestGetBackendTypeStrings(t *testing.T) {
	got := GetBackendTypeStrings()
	if len(got) != 2 || got[0] != "json" || got[1] != "sqlite" {
		t.Errorf("GetBackendTypeStrings() = %v", got)
	}
}

func TestFactory_CreateBackend(t *testing.T) {
	tests := []struct {
		name string
		cfg  func(dir string) Config
	}{
		{"json", func(dir string) Config { return Config{Type: JSONBackend, DataDirectory: dir} }},
		{"sqlite", func(dir string) Config {
			return Config{Type: SQLiteBackend, SQLiteDBPath: filepath.Join(dir, "teamapp.db")}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			res, err := NewFactory(nil).CreateBackend(ctx, tt.cfg(t.TempDir()))
			if err != nil {
				t.Fatalf("CreateBackend() error = %v", err)
			}
			defer res.Cleanup()

			if _, err := res.Store.Load(ctx, "agents"); !errors.Is(err, storage.ErrDocumentNotFound) {
				t.Errorf("Load() on fresh store error = %v, want ErrDocumentNotFound", err)
			}
			if err := res.Store.Save(ctx, "agents", []byte(`{}`)); err != nil {
				t.Errorf("Save() error = %v", err)
			}
		})
	}
}

func TestFactory_CreateBackendInvalid(t *testing.T) {
	if _, err := NewFactory(nil).CreateBackend(context.Background(), Config{Type: "memory"}); err == nil {
		t.Error("CreateBackend() with invalid type should fail")
	}
}
