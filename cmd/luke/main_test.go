package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// freePort returns a TCP port that was free a moment ago.
func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test-config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

// TestRun_InvalidConfig verifies run fails with invalid config path.
func TestRun_InvalidConfig(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := run(ctx, options{configPath: "/nonexistent/path/config.yaml"})
	if err == nil {
		t.Fatal("run() should fail with invalid config path")
	}
	if !strings.Contains(err.Error(), "loading config") {
		t.Errorf("error = %v, want a config error", err)
	}
}

// TestRun_MissingCoreRD verifies validation rejects a config without a
// discovery resource.
func TestRun_MissingCoreRD(t *testing.T) {
	path := writeConfig(t, `
gateway:
  coap_service: "127.0.0.1:5656"
logging:
  level: error
  format: text
`)

	err := run(context.Background(), options{configPath: path})
	if err == nil {
		t.Fatal("run() should fail without gateway.corerd")
	}
}

// TestRun_MissingDatabasePath verifies run fails when history is enabled
// without a database path.
func TestRun_MissingDatabasePath(t *testing.T) {
	path := writeConfig(t, `
gateway:
  coap_service: "127.0.0.1:5656"
  corerd:
    url: "coap://gw/resource-lookup"
    anchor: "coap://gw"
database:
  enabled: true
  path: ""
logging:
  level: error
  format: text
`)

	if err := run(context.Background(), options{configPath: path}); err == nil {
		t.Fatal("run() should fail with empty database path")
	}
}

// TestRun_UnreachableInfluxDB verifies an enabled but unreachable backend
// stops startup.
func TestRun_UnreachableInfluxDB(t *testing.T) {
	path := writeConfig(t, fmt.Sprintf(`
gateway:
  coap_service: "127.0.0.1:5656"
  corerd:
    url: "coap://gw/resource-lookup"
    anchor: "coap://gw"
influxdb:
  enabled: true
  url: "http://127.0.0.1:%d"
  org: luke
  bucket: points
logging:
  level: error
  format: text
`, freePort(t)))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := run(ctx, options{configPath: path}); err == nil {
		t.Fatal("run() should fail when InfluxDB is unreachable")
	}
}

// TestRun_StartupAndShutdown starts the dashboard against a gateway that
// refuses everything, checks the API answers and shuts down.
func TestRun_StartupAndShutdown(t *testing.T) {
	gw := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "gateway down", http.StatusServiceUnavailable)
	}))
	defer gw.Close()

	port := freePort(t)
	dbPath := filepath.Join(t.TempDir(), "luke.db")
	path := writeConfig(t, fmt.Sprintf(`
gateway:
  coap_service: %q
  corerd:
    url: "coap://gw/resource-lookup"
    anchor: "coap://gw"
  reconnect_delay_ms: 20
database:
  enabled: true
  path: %q
api:
  host: "127.0.0.1"
  port: %d
logging:
  level: error
  format: text
`, strings.TrimPrefix(gw.URL, "http://"), dbPath, port))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- run(ctx, options{configPath: path}) }()

	base := fmt.Sprintf("http://127.0.0.1:%d", port)
	var health map[string]any
	deadline := time.Now().Add(5 * time.Second)
	for {
		resp, err := http.Get(base + "/api/v1/health")
		if err == nil {
			//nolint:errcheck // test decode checked below
			json.NewDecoder(resp.Body).Decode(&health)
			resp.Body.Close()
			break
		}
		if time.Now().After(deadline) {
			cancel()
			t.Fatalf("API never came up: %v", err)
		}
		time.Sleep(20 * time.Millisecond)
	}
	if health["status"] != "ok" {
		t.Errorf("health = %v", health)
	}

	resp, err := http.Get(base + "/coap_service.json")
	if err != nil {
		t.Fatalf("GET /coap_service.json: %v", err)
	}
	var doc struct {
		Service string `json:"coap_service"`
	}
	//nolint:errcheck // test decode checked below
	json.NewDecoder(resp.Body).Decode(&doc)
	resp.Body.Close()
	if doc.Service != strings.TrimPrefix(gw.URL, "http://") {
		t.Errorf("coap_service = %q", doc.Service)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("run() = %v, want nil", err)
		}
	case <-time.After(15 * time.Second):
		t.Fatal("run() did not return after cancel")
	}

	if _, err := os.Stat(dbPath); err != nil {
		t.Errorf("history database not created: %v", err)
	}
}

// TestGetConfigPath_Default verifies default config path.
func TestGetConfigPath_Default(t *testing.T) {
	t.Setenv("LUKE_CONFIG", "")

	if path := getConfigPath(); path != defaultConfigPath {
		t.Errorf("getConfigPath() = %q, want %q", path, defaultConfigPath)
	}
}

// TestGetConfigPath_EnvOverride verifies environment variable override.
func TestGetConfigPath_EnvOverride(t *testing.T) {
	expected := "/custom/path/config.yaml"
	t.Setenv("LUKE_CONFIG", expected)

	if path := getConfigPath(); path != expected {
		t.Errorf("getConfigPath() = %q, want %q", path, expected)
	}
}

func TestParseFlags(t *testing.T) {
	t.Setenv("LUKE_CONFIG", "")

	opts, err := parseFlags([]string{"-interactive", "-config", "/etc/luke.yaml"}, &bytes.Buffer{})
	if err != nil {
		t.Fatalf("parseFlags: %v", err)
	}
	if !opts.interactive || opts.configPath != "/etc/luke.yaml" {
		t.Errorf("opts = %+v", opts)
	}

	opts, err = parseFlags(nil, &bytes.Buffer{})
	if err != nil {
		t.Fatalf("parseFlags: %v", err)
	}
	if opts.interactive || opts.configPath != defaultConfigPath {
		t.Errorf("defaults = %+v", opts)
	}

	if _, err := parseFlags([]string{"-bogus"}, &bytes.Buffer{}); err == nil {
		t.Error("unknown flag should fail")
	}
}
