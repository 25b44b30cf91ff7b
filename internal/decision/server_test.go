package decision

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/rowanhale/conveyor/internal/checkpoint"
)

func testSettings() Settings {
	s := Settings{Enabled: true, Host: DefaultHost, Port: 0}
	s.normalize()
	return s
}

func startTestServer(t *testing.T) (*Server, *checkpoint.Gate) {
	t.Helper()
	gate := checkpoint.NewGate()
	server, err := NewServer(testSettings(), gate)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	if err := server.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	t.Cleanup(func() { _ = server.Shutdown(nil) })
	return server, gate
}

func parkCheckpoint(t *testing.T, gate *checkpoint.Gate, id string) chan checkpoint.Decision {
	t.Helper()
	done := make(chan checkpoint.Decision, 1)
	go func() {
		decision, _ := gate.Decide(context.Background(), checkpoint.Request{CheckpointID: id, Question: "OK?"})
		done <- decision
	}()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(gate.Pending()) > 0 {
			return done
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("checkpoint %s never parked", id)
	return nil
}

func TestServerStartStop(t *testing.T) {
	server, _ := startTestServer(t)
	if server.Status() != StatusReady {
		t.Fatalf("expected ready, got %s", server.Status())
	}
	if server.Addr() == "" {
		t.Fatalf("expected bound address")
	}
	if err := server.Shutdown(nil); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if err := server.Shutdown(nil); err != nil {
		t.Fatalf("second shutdown must be a no-op: %v", err)
	}
}

func TestServerDisabled(t *testing.T) {
	settings := testSettings()
	settings.Enabled = false
	server, err := NewServer(settings, checkpoint.NewGate())
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	if err := server.Start(context.Background()); !errors.Is(err, ErrDisabled) {
		t.Fatalf("expected ErrDisabled, got %v", err)
	}
}

func TestServerRequiresGate(t *testing.T) {
	if _, err := NewServer(testSettings(), nil); err == nil {
		t.Fatalf("expected error without a gate")
	}
}

func TestHealthEndpoint(t *testing.T) {
	server, _ := startTestServer(t)
	resp, err := http.Get(server.BaseURL() + "/health")
	if err != nil {
		t.Fatalf("get health: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var health healthResponse
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if health.Status != string(StatusReady) || health.Pending != 0 {
		t.Fatalf("unexpected health payload: %+v", health)
	}
}

func TestPendingEndpointListsParkedCheckpoint(t *testing.T) {
	server, gate := startTestServer(t)
	done := parkCheckpoint(t, gate, "final-gate")
	resp, err := http.Get(server.BaseURL() + "/checkpoints")
	if err != nil {
		t.Fatalf("get checkpoints: %v", err)
	}
	defer resp.Body.Close()
	var payload struct {
		Pending []checkpoint.Request `json:"pending"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(payload.Pending) != 1 || payload.Pending[0].CheckpointID != "final-gate" {
		t.Fatalf("unexpected pending list: %+v", payload.Pending)
	}
	if err := gate.Approve("final-gate", ""); err != nil {
		t.Fatalf("approve: %v", err)
	}
	<-done
}

func TestResolveEndpointApproves(t *testing.T) {
	server, gate := startTestServer(t)
	done := parkCheckpoint(t, gate, "final-gate")

	body, _ := json.Marshal(resolveRequest{CheckpointID: "final-gate", Approved: true, Note: "ship it"})
	resp, err := http.Post(server.BaseURL()+"/checkpoints/resolve", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("post resolve: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	decision := <-done
	if !decision.Approved || decision.Note != "ship it" {
		t.Fatalf("unexpected decision: %+v", decision)
	}
}

func TestResolveEndpointRejects(t *testing.T) {
	server, gate := startTestServer(t)
	done := parkCheckpoint(t, gate, "final-gate")

	body, _ := json.Marshal(resolveRequest{CheckpointID: "final-gate", Approved: false, Note: "rework"})
	resp, err := http.Post(server.BaseURL()+"/checkpoints/resolve", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("post resolve: %v", err)
	}
	resp.Body.Close()
	decision := <-done
	if decision.Approved || decision.Note != "rework" {
		t.Fatalf("unexpected decision: %+v", decision)
	}
}

func TestResolveEndpointUnknownCheckpoint(t *testing.T) {
	server, _ := startTestServer(t)
	body, _ := json.Marshal(resolveRequest{CheckpointID: "ghost", Approved: true})
	resp, err := http.Post(server.BaseURL()+"/checkpoints/resolve", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("post resolve: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestResolveEndpointRejectsBadPayloads(t *testing.T) {
	server, _ := startTestServer(t)
	for name, body := range map[string]string{
		"invalid json": "{not json",
		"missing id":   `{"approved":true}`,
	} {
		resp, err := http.Post(server.BaseURL()+"/checkpoints/resolve", "application/json", bytes.NewReader([]byte(body)))
		if err != nil {
			t.Fatalf("%s: post: %v", name, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", name, resp.StatusCode)
		}
	}
}

func TestResolveEndpointMethodNotAllowed(t *testing.T) {
	server, _ := startTestServer(t)
	resp, err := http.Get(server.BaseURL() + "/checkpoints/resolve")
	if err != nil {
		t.Fatalf("get resolve: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", resp.StatusCode)
	}
}

func TestResolveEndpointBodyLimit(t *testing.T) {
	gate := checkpoint.NewGate()
	settings := testSettings()
	settings.MaxBodyBytes = 64
	server, err := NewServer(settings, gate)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	if err := server.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	t.Cleanup(func() { _ = server.Shutdown(nil) })

	huge := fmt.Sprintf(`{"checkpoint_id":%q,"approved":true}`, bytes.Repeat([]byte("x"), 256))
	resp, err := http.Post(server.BaseURL()+"/checkpoints/resolve", "application/json", bytes.NewReader([]byte(huge)))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", resp.StatusCode)
	}
}

func TestSettingsEnvOverrides(t *testing.T) {
	t.Setenv("CONVEYOR_DECISION_ENABLED", "false")
	t.Setenv("CONVEYOR_DECISION_HOST", "0.0.0.0")
	t.Setenv("CONVEYOR_DECISION_PORT", "8123")
	settings := SettingsFromConfig(nil)
	if settings.Enabled {
		t.Fatalf("env disable ignored")
	}
	if settings.Host != "0.0.0.0" || settings.Port != 8123 {
		t.Fatalf("env host/port ignored: %+v", settings)
	}
}

func TestSettingsDefaults(t *testing.T) {
	t.Setenv("CONVEYOR_DECISION_ENABLED", "")
	t.Setenv("CONVEYOR_DECISION_HOST", "")
	t.Setenv("CONVEYOR_DECISION_PORT", "")
	settings := SettingsFromConfig(nil)
	if !settings.Enabled || settings.Host != DefaultHost || settings.Port != 0 {
		t.Fatalf("unexpected defaults: %+v", settings)
	}
	if settings.MaxBodyBytes != DefaultMaxBodyBytes || settings.ReadTimeout != DefaultReadTimeout {
		t.Fatalf("limits not defaulted: %+v", settings)
	}
}
