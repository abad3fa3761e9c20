package main

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/urfave/cli/v3"
	"github.com/wricardo/partyroom/logging"
)

func TestConstants(t *testing.T) {
	if Version == "" {
		t.Error("Version should not be empty")
	}
	if AppName != "partyroom" {
		t.Errorf("Expected app name partyroom, got %s", AppName)
	}
}

// parse runs the command with its action replaced so flags can be
// inspected without starting a server.
func parse(t *testing.T, args ...string) settings {
	t.Helper()
	var got settings
	cmd := newCommand()
	cmd.Action = func(ctx context.Context, cmd *cli.Command) error {
		got = settingsFrom(cmd)
		return nil
	}
	if err := cmd.Run(context.Background(), append([]string{AppName}, args...)); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	return got
}

// clearEnv unsets every flag variable for the duration of the test. An
// empty variable would still count as set.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"HOST", "PORT", "CONFIG_DIR", "LOG_LEVEL", "ROOM_CAPACITY", "DEFAULT_GAME", "NGROK_ENABLED", "NGROK_AUTHTOKEN", "NGROK_AUTH_TOKEN", "NGROK_DOMAIN"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestFlagDefaults(t *testing.T) {
	clearEnv(t)

	cfg := parse(t)
	if cfg.Port <= 0 || cfg.Port > 65535 {
		t.Errorf("Invalid default port: %d", cfg.Port)
	}
	if cfg.Host == "" {
		t.Error("Host should have a default value")
	}
	if cfg.ConfigDir != "configs" {
		t.Errorf("Expected config dir 'configs', got %q", cfg.ConfigDir)
	}
	if cfg.RoomCapacity != 8 {
		t.Errorf("Expected room capacity 8, got %d", cfg.RoomCapacity)
	}
	if cfg.DefaultGame != "cellmatch" {
		t.Errorf("Expected default game cellmatch, got %q", cfg.DefaultGame)
	}
	if cfg.NgrokEnabled || cfg.MCPStdio {
		t.Error("Optional listeners should be off by default")
	}
}

func TestFlagOverrides(t *testing.T) {
	clearEnv(t)

	t.Run("command line", func(t *testing.T) {
		cfg := parse(t, "--port", "9090", "--host", "0.0.0.0", "--default-game", "rope", "--ngrok")
		if cfg.addr() != "0.0.0.0:9090" {
			t.Errorf("Expected 0.0.0.0:9090, got %s", cfg.addr())
		}
		if cfg.DefaultGame != "rope" || !cfg.NgrokEnabled {
			t.Errorf("Unexpected settings: %+v", cfg)
		}
	})

	t.Run("environment", func(t *testing.T) {
		t.Setenv("PORT", "7070")
		t.Setenv("NGROK_AUTH_TOKEN", "secret")
		cfg := parse(t)
		if cfg.Port != 7070 {
			t.Errorf("Expected port 7070 from env, got %d", cfg.Port)
		}
		if cfg.NgrokAuth != "secret" {
			t.Errorf("Expected ngrok token from env, got %q", cfg.NgrokAuth)
		}
	})
}

func TestNewApp(t *testing.T) {
	cfg := settings{
		ConfigDir:    filepath.Join(t.TempDir(), "configs"),
		LogLevel:     "error",
		RoomCapacity: 4,
		DefaultGame:  "minefield",
	}
	a, err := newApp(cfg, logging.Discard())
	if err != nil {
		t.Fatalf("newApp failed: %v", err)
	}
	defer a.close()

	tests := []struct {
		name           string
		method         string
		path           string
		body           string
		expectedStatus int
		contains       string
	}{
		{name: "health", method: "GET", path: "/api/health", expectedStatus: http.StatusOK, contains: "healthy"},
		{name: "games", method: "GET", path: "/api/games", expectedStatus: http.StatusOK, contains: "minefield"},
		{name: "rooms", method: "GET", path: "/api/rooms", expectedStatus: http.StatusOK, contains: `"count":0`},
		{name: "mcp tools", method: "POST", path: "/mcp", body: `{"jsonrpc":"2.0","id":1,"method":"tools/list"}`, expectedStatus: http.StatusOK, contains: "list_rooms"},
		{name: "mcp rejects GET", method: "GET", path: "/mcp", expectedStatus: http.StatusMethodNotAllowed},
		{name: "statsviz", method: "GET", path: "/debug/statsviz/", expectedStatus: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			w := httptest.NewRecorder()
			a.handler.ServeHTTP(w, req)
			if w.Code != tt.expectedStatus {
				t.Fatalf("Expected status %d, got %d", tt.expectedStatus, w.Code)
			}
			if tt.contains != "" && !strings.Contains(w.Body.String(), tt.contains) {
				t.Errorf("Expected body to contain %q, got %s", tt.contains, w.Body.String())
			}
		})
	}
}

func TestNewApp_InvalidDefaultGame(t *testing.T) {
	cfg := settings{DefaultGame: "chess"}
	if _, err := newApp(cfg, logging.Discard()); err == nil {
		t.Error("Expected error for unknown default game")
	}
}

func TestValidateConfigs(t *testing.T) {
	t.Run("valid files", func(t *testing.T) {
		dir := t.TempDir()
		os.WriteFile(filepath.Join(dir, "minefield.yaml"), []byte("rows: 9\ncols: 9\nmines: 10\n"), 0644)

		var out bytes.Buffer
		if err := validateConfigs(&out, dir); err != nil {
			t.Fatalf("Expected no error, got %v\n%s", err, out.String())
		}
		if !strings.Contains(out.String(), "✓ minefield.yaml: 9x9 grid, 10 mines") || !strings.Contains(out.String(), "1/1 files valid") {
			t.Errorf("Unexpected output:\n%s", out.String())
		}
	})

	t.Run("invalid field", func(t *testing.T) {
		dir := t.TempDir()
		os.WriteFile(filepath.Join(dir, "rope.json"), []byte(`{"gapSize": 5}`), 0644)

		var out bytes.Buffer
		err := validateConfigs(&out, dir)
		if !errors.Is(err, errInvalidConfigs) {
			t.Fatalf("Expected errInvalidConfigs, got %v", err)
		}
		if !strings.Contains(out.String(), "gapsize=5") || !strings.Contains(out.String(), "0/1 files valid") {
			t.Errorf("Unexpected output:\n%s", out.String())
		}
	})

	t.Run("empty directory", func(t *testing.T) {
		var out bytes.Buffer
		if err := validateConfigs(&out, t.TempDir()); err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if !strings.Contains(out.String(), "built-in defaults") {
			t.Errorf("Unexpected output:\n%s", out.String())
		}
	})

	t.Run("shipped configs", func(t *testing.T) {
		if _, err := os.Stat("configs"); os.IsNotExist(err) {
			t.Skip("Skipping test - configs directory not found")
		}
		var out bytes.Buffer
		if err := validateConfigs(&out, "configs"); err != nil {
			t.Errorf("Shipped configs should validate: %v\n%s", err, out.String())
		}
	})
}
