package main

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/signalsfoundry/globe-scale/internal/api"
	"github.com/signalsfoundry/globe-scale/internal/config"
	"github.com/signalsfoundry/globe-scale/internal/logging"
	"github.com/signalsfoundry/globe-scale/kb"
	"github.com/signalsfoundry/globe-scale/model"
)

const modesYAML = `modes:
  - name: size
    scale_kind: LINEAR
    length_is_radius: false
  - name: votes
    scale_kind: AREA_PRESERVING
    length_is_radius: false
    description: ballots cast
`

func TestServerStartupSmoke(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("net.Listen: %v", err)
	}

	modesPath := filepath.Join(t.TempDir(), "modes.yaml")
	if err := os.WriteFile(modesPath, []byte(modesYAML), 0o644); err != nil {
		t.Fatalf("write modes: %v", err)
	}

	cfg := config.Default()
	cfg.Server.GRPCAddr = lis.Addr().String()
	cfg.Server.MetricsAddr = ""
	cfg.ModesFile = modesPath
	log := logging.New(logging.Config{Level: "warn"})

	errCh := make(chan error, 1)
	go func() {
		errCh <- run(ctx, &cfg, nil, log, lis)
	}()

	conn, err := grpc.NewClient(cfg.Server.GRPCAddr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatalf("grpc.NewClient: %v", err)
	}
	defer conn.Close()

	health, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{Service: api.ServiceName}, grpc.WaitForReady(true))
	if err != nil {
		t.Fatalf("health check: %v", err)
	}
	if health.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		t.Fatalf("health status = %v", health.GetStatus())
	}

	client := api.NewClient(conn)
	modes, err := client.ListModes(ctx)
	if err != nil {
		t.Fatalf("ListModes: %v", err)
	}
	if len(modes) != 2 || modes[1].Name != "votes" || modes[1].ScaleKind != model.ScaleAreaPreserving {
		t.Fatalf("modes = %+v", modes)
	}

	if _, err := client.EstablishBaseline(ctx, api.EstablishRequest{SessionID: "s", Mode: "votes", ReferenceValue: 100, ReferenceLengthMeters: 10}); err != nil {
		t.Fatalf("EstablishBaseline: %v", err)
	}
	resp, err := client.Compare(ctx, api.CompareRequest{SessionID: "s", Targets: []float64{8e9}})
	if err != nil {
		t.Fatalf("Compare: %v", err)
	}
	if got := resp.Results[0].RadiusMeters; got < 44721.35 || got > 44721.37 {
		t.Fatalf("radius = %v, want ~44721.36", got)
	}

	cancel()

	if err := <-errCh; err != nil {
		t.Fatalf("server returned error: %v", err)
	}
}

func TestLoadModes(t *testing.T) {
	def, err := loadModes("")
	if err != nil {
		t.Fatalf("loadModes default: %v", err)
	}
	if len(def.ListModes()) != 8 {
		t.Fatalf("default modes = %d, want 8", len(def.ListModes()))
	}

	if _, err := loadModes(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(bad, []byte("modes:\n  - name: x\n    scale_kind: CUBIC\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := loadModes(bad); err == nil {
		t.Fatalf("expected error for invalid scale kind")
	}
}

func TestSampleModeTableMatchesBuiltins(t *testing.T) {
	table, err := loadModes(filepath.Join("..", "..", "configs", "modes.yaml"))
	if err != nil {
		t.Fatalf("loadModes: %v", err)
	}
	want := kb.NewDefaultModeTable().ListModes()
	got := table.ListModes()
	if len(got) != len(want) {
		t.Fatalf("modes = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("mode %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}
