package cli

import (
	"context"
	"path/filepath"
	"testing"

	"teamapp/internal/config"
	"teamapp/internal/services"
)

func TestSetupLogger(t *testing.T) {
	logger := SetupLogger("debug", "json", "worker")
	if logger.Component() != "worker" {
		t.Errorf("Component() = %q, want worker", logger.Component())
	}
	if !logger.Enabled(context.Background(), -4) {
		t.Error("debug level should be enabled")
	}

	fallback := SetupLogger("loud", "text", "app")
	if fallback.Enabled(context.Background(), -4) {
		t.Error("unknown level should fall back to info")
	}
}

func TestOpenStoreAndServices(t *testing.T) {
	ctx := context.Background()
	logger := SetupLogger("error", "text", "app")
	cfg := &config.Config{DataBackend: "json", DataDir: filepath.Join(t.TempDir(), "data")}

	store, cleanup, err := OpenStore(ctx, logger, cfg)
	if err != nil {
		t.Fatalf("OpenStore() error = %v", err)
	}
	defer cleanup()

	svc := NewServices(store, nil)
	agent, err := svc.Agents.Create(ctx, services.AgentInput{Pseudo: "Nova"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	summary, err := svc.Summary.Summary(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if summary.Agents.Total != 1 || agent.ID != 1 {
		t.Errorf("agent %d, summary %+v", agent.ID, summary.Agents)
	}
}

func TestOpenStore_InvalidBackend(t *testing.T) {
	cfg := &config.Config{DataBackend: "postgres"}
	if _, _, err := OpenStore(context.Background(), SetupLogger("error", "text", "app"), cfg); err == nil {
		t.Error("expected error for unknown backend")
	}
}

func TestConnectAMQP_Disabled(t *testing.T) {
	client, err := ConnectAMQP(SetupLogger("error", "text", "app"), &config.Config{})
	if client != nil || err != nil {
		t.Errorf("ConnectAMQP() = %v, %v, want nil, nil", client, err)
	}
}
