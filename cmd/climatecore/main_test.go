package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nerrad567/climate-core/internal/alert"
	"github.com/nerrad567/climate-core/internal/hardware"
	"github.com/nerrad567/climate-core/internal/infrastructure/config"
)

const testSecret = "test-secret-key-at-least-32-characters-long"

func writeConfig(t *testing.T, extra string) string {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
site:
  id: test-site
database:
  path: "` + filepath.Join(dir, "climate.db") + `"
  wal_mode: true
  busy_timeout: 5
hardware:
  driver: sim
  read_timeout: 1s
  sim:
    failure_rate: 0
logging:
  level: error
  format: text
  output: stderr
` + extra
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	t.Setenv("CLIMATECORE_CONFIG", path)
	return path
}

func TestGetConfigPath(t *testing.T) {
	t.Setenv("CLIMATECORE_CONFIG", "")
	if got := getConfigPath(); got != defaultConfigPath {
		t.Errorf("getConfigPath() = %q, want %q", got, defaultConfigPath)
	}

	t.Setenv("CLIMATECORE_CONFIG", "/etc/climatecore.yaml")
	if got := getConfigPath(); got != "/etc/climatecore.yaml" {
		t.Errorf("getConfigPath() = %q, want env value", got)
	}
}

func TestRun_InvalidConfig(t *testing.T) {
	t.Setenv("CLIMATECORE_CONFIG", "/nonexistent/path/config.yaml")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx, true); err == nil {
		t.Fatal("run() error = nil, want config error")
	}
}

func TestRun_Once(t *testing.T) {
	writeConfig(t, "")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := run(ctx, true); err != nil {
		t.Fatalf("run(once) error = %v", err)
	}
}

func TestRun_MQTTDriverRequiresBroker(t *testing.T) {
	writeConfig(t, "")
	t.Setenv("CLIMATECORE_HARDWARE_DRIVER", "mqtt")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := run(ctx, true)
	if err == nil || !strings.Contains(err.Error(), "mqtt.enabled") {
		t.Fatalf("run() error = %v, want mqtt.enabled validation error", err)
	}
}

func TestRunToken(t *testing.T) {
	writeConfig(t, "")

	t.Run("no secret", func(t *testing.T) {
		t.Setenv("CLIMATECORE_JWT_SECRET", "")
		var out bytes.Buffer
		if err := runToken(nil, &out); err == nil {
			t.Error("runToken() error = nil, want missing secret error")
		}
	})

	t.Run("with secret", func(t *testing.T) {
		t.Setenv("CLIMATECORE_JWT_SECRET", testSecret)

		var out bytes.Buffer
		if err := runToken([]string{"-subject", "ops", "-ttl", "1h"}, &out); err != nil {
			t.Fatalf("runToken() error = %v", err)
		}
		if parts := strings.Split(strings.TrimSpace(out.String()), "."); len(parts) != 3 {
			t.Errorf("token = %q, want three JWT segments", out.String())
		}
	})
}

func TestNewDriver(t *testing.T) {
	drv, err := newDriver(config.HardwareConfig{Driver: config.DriverSim}, nil)
	if err != nil {
		t.Fatalf("newDriver(sim) error = %v", err)
	}
	if _, ok := drv.(*hardware.SimDriver); !ok {
		t.Errorf("newDriver(sim) = %T, want *hardware.SimDriver", drv)
	}

	if _, err := newDriver(config.HardwareConfig{Driver: config.DriverMQTT}, nil); err == nil {
		t.Error("newDriver(mqtt, nil) error = nil, want error")
	}
}

func TestFanOut(t *testing.T) {
	var got []int64
	hook := func(tag int64) func(alert.Event) {
		return func(e alert.Event) { got = append(got, tag*100+e.UnitID) }
	}

	fanOut([]func(alert.Event){hook(1), hook(2)})(alert.Event{UnitID: 7})

	if len(got) != 2 || got[0] != 107 || got[1] != 207 {
		t.Errorf("hooks saw %v, want [107 207]", got)
	}
}
