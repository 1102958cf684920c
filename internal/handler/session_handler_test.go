// internal/handler/session_handler_test.go
package handler

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"telemetry-service/internal/config"
	internalLink "telemetry-service/internal/link"
	"telemetry-service/internal/model"
	"telemetry-service/internal/service"
	"telemetry-service/pkg/link"
)

func testRouter(t *testing.T) *gin.Engine {
	t.Helper()

	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		Session: config.SessionConfig{
			SampleRateHz:  2000,
			WindowSeconds: 0.01,
		},
		Sensors: []model.SensorConfig{
			{ID: "emg-a", Tag: "ABE", Name: "EMG2ch_A"},
			{ID: "emg-b", Tag: "ABB", Name: "EMG2ch_B"},
		},
		Link: internalLink.Config{
			Kind: link.KindReplay,
			Replay: internalLink.ReplayConfig{
				SampleRateHz:   2000,
				GroupsPerFrame: 2,
				Seed:           1,
			},
		},
	}

	logger := zap.NewNop()
	bridges := internalLink.NewRegistry(logger)
	internalLink.RegisterDefaultBridges(bridges)
	sessionService := service.NewSessionService(cfg, bridges, logger)
	t.Cleanup(sessionService.Shutdown)

	router := gin.New()
	api := router.Group("/api/v1")
	NewSessionHandler(sessionService, logger).RegisterRoutes(api)
	NewTelemetryHandler(sessionService, logger).RegisterRoutes(api)

	return router
}

type apiEnvelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func doRequest(t *testing.T, router *gin.Engine, method, path, body string) (int, apiEnvelope) {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var envelope apiEnvelope
	if rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
			t.Fatalf("%s %s: decoding response: %v", method, path, err)
		}
	}
	return rec.Code, envelope
}

func decodeData(t *testing.T, envelope apiEnvelope, out interface{}) {
	t.Helper()

	if err := json.Unmarshal(envelope.Data, out); err != nil {
		t.Fatalf("decoding data payload: %v", err)
	}
}

// waitForFrames polls the stats endpoint until the sensor has received frames.
func waitForFrames(t *testing.T, router *gin.Engine, sensor string) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		status, envelope := doRequest(t, router, http.MethodGet, "/api/v1/sensors/"+sensor+"/stats", "")
		if status == http.StatusOK {
			var stats model.SensorStats
			decodeData(t, envelope, &stats)
			if stats.Received > 0 {
				return
			}
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for frames from %s", sensor)
}

func TestSessionEndpoints(t *testing.T) {
	router := testRouter(t)

	status, envelope := doRequest(t, router, http.MethodGet, "/api/v1/session", "")
	if status != http.StatusNotFound {
		t.Fatalf("GET /session before start = %d, want %d", status, http.StatusNotFound)
	}
	if envelope.Error == nil || envelope.Error.Code != "NO_SESSION" {
		t.Errorf("error code = %v, want NO_SESSION", envelope.Error)
	}

	status, _ = doRequest(t, router, http.MethodPost, "/api/v1/session/stop", "")
	if status != http.StatusNotFound {
		t.Fatalf("POST /session/stop before start = %d, want %d", status, http.StatusNotFound)
	}

	status, _ = doRequest(t, router, http.MethodGet, "/api/v1/sensors/emg-a/stats", "")
	if status != http.StatusNotFound {
		t.Fatalf("GET /sensors/emg-a/stats before start = %d, want %d", status, http.StatusNotFound)
	}

	// The sensor roster is configuration, readable without a session
	status, envelope = doRequest(t, router, http.MethodGet, "/api/v1/sensors", "")
	if status != http.StatusOK {
		t.Fatalf("GET /sensors = %d, want %d", status, http.StatusOK)
	}
	var sensors []model.SensorConfig
	decodeData(t, envelope, &sensors)
	if len(sensors) != 2 {
		t.Fatalf("len(sensors) = %d, want 2", len(sensors))
	}

	status, envelope = doRequest(t, router, http.MethodPost, "/api/v1/session/start", "")
	if status != http.StatusCreated {
		t.Fatalf("POST /session/start = %d, want %d", status, http.StatusCreated)
	}
	var info model.SessionInfo
	decodeData(t, envelope, &info)
	if info.State != model.SessionRunning {
		t.Errorf("State = %q, want %q", info.State, model.SessionRunning)
	}
	if info.LinkKind != string(link.KindReplay) {
		t.Errorf("LinkKind = %q, want %q", info.LinkKind, link.KindReplay)
	}

	status, envelope = doRequest(t, router, http.MethodPost, "/api/v1/session/start", "")
	if status != http.StatusConflict {
		t.Fatalf("second POST /session/start = %d, want %d", status, http.StatusConflict)
	}
	if envelope.Error == nil || envelope.Error.Code != "SESSION_ACTIVE" {
		t.Errorf("error code = %v, want SESSION_ACTIVE", envelope.Error)
	}

	waitForFrames(t, router, "emg-a")
	waitForFrames(t, router, "emg-b")

	status, envelope = doRequest(t, router, http.MethodGet, "/api/v1/sensors/emg-a/window?channel=b", "")
	if status != http.StatusOK {
		t.Fatalf("GET window = %d, want %d", status, http.StatusOK)
	}
	var window struct {
		SensorID string    `json:"sensor_id"`
		Channel  string    `json:"channel"`
		Samples  []float64 `json:"samples"`
	}
	decodeData(t, envelope, &window)
	if window.Channel != string(model.ChannelB) {
		t.Errorf("window channel = %q, want %q", window.Channel, model.ChannelB)
	}
	if len(window.Samples) != 20 {
		t.Errorf("len(samples) = %d, want the full window of 20", len(window.Samples))
	}

	status, envelope = doRequest(t, router, http.MethodGet, "/api/v1/sensors/emg-b/cumulative", "")
	if status != http.StatusOK {
		t.Fatalf("GET cumulative = %d, want %d", status, http.StatusOK)
	}
	var cumulative struct {
		Count   int       `json:"count"`
		Samples []float64 `json:"samples"`
	}
	decodeData(t, envelope, &cumulative)
	if cumulative.Count == 0 || len(cumulative.Samples) != cumulative.Count {
		t.Errorf("cumulative count = %d with %d samples", cumulative.Count, len(cumulative.Samples))
	}

	status, envelope = doRequest(t, router, http.MethodGet, "/api/v1/sensors/ghost/stats", "")
	if status != http.StatusNotFound {
		t.Fatalf("GET unknown sensor stats = %d, want %d", status, http.StatusNotFound)
	}
	if envelope.Error == nil || envelope.Error.Code != "UNKNOWN_SENSOR" {
		t.Errorf("error code = %v, want UNKNOWN_SENSOR", envelope.Error)
	}

	status, envelope = doRequest(t, router, http.MethodGet, "/api/v1/sensors/emg-a/window?channel=x", "")
	if status != http.StatusBadRequest {
		t.Fatalf("GET window bad channel = %d, want %d", status, http.StatusBadRequest)
	}
	if envelope.Error == nil || envelope.Error.Code != "BAD_CHANNEL" {
		t.Errorf("error code = %v, want BAD_CHANNEL", envelope.Error)
	}

	status, envelope = doRequest(t, router, http.MethodPost, "/api/v1/session/stop", "")
	if status != http.StatusOK {
		t.Fatalf("POST /session/stop = %d, want %d", status, http.StatusOK)
	}
	var summary model.SessionSummary
	decodeData(t, envelope, &summary)
	if summary.Session.State != model.SessionStopped {
		t.Errorf("summary State = %q, want %q", summary.Session.State, model.SessionStopped)
	}
	if summary.FramesDelivered == 0 {
		t.Error("FramesDelivered = 0, want > 0")
	}
	if len(summary.Sensors) != 2 {
		t.Errorf("len(summary.Sensors) = %d, want 2", len(summary.Sensors))
	}

	// Stopping again is idempotent and reports the same run
	status, envelope = doRequest(t, router, http.MethodPost, "/api/v1/session/stop", "")
	if status != http.StatusOK {
		t.Fatalf("second POST /session/stop = %d, want %d", status, http.StatusOK)
	}
	var again model.SessionSummary
	decodeData(t, envelope, &again)
	if again.Session.ID != summary.Session.ID {
		t.Error("second stop reported a different session")
	}

	status, envelope = doRequest(t, router, http.MethodGet, "/api/v1/session", "")
	if status != http.StatusOK {
		t.Fatalf("GET /session after stop = %d, want %d", status, http.StatusOK)
	}
	decodeData(t, envelope, &info)
	if info.State != model.SessionStopped {
		t.Errorf("State after stop = %q, want %q", info.State, model.SessionStopped)
	}

	// Data stays readable between runs
	status, _ = doRequest(t, router, http.MethodGet, "/api/v1/sensors/emg-a/window", "")
	if status != http.StatusOK {
		t.Fatalf("GET window after stop = %d, want %d", status, http.StatusOK)
	}

	status, _ = doRequest(t, router, http.MethodGet, "/api/v1/session/summary", "")
	if status != http.StatusOK {
		t.Fatalf("GET /session/summary = %d, want %d", status, http.StatusOK)
	}
}

func TestStartSessionValidation(t *testing.T) {
	router := testRouter(t)

	cases := []struct {
		name       string
		body       string
		wantStatus int
		wantCode   string
	}{
		{
			name:       "invalid link kind",
			body:       `{"link_kind": "bluetooth"}`,
			wantStatus: http.StatusBadRequest,
			wantCode:   "BAD_REQUEST",
		},
		{
			name:       "malformed body",
			body:       `{"link_kind":`,
			wantStatus: http.StatusBadRequest,
			wantCode:   "BAD_REQUEST",
		},
		{
			name:       "link cannot be opened",
			body:       `{"link_kind": "serial"}`,
			wantStatus: http.StatusServiceUnavailable,
			wantCode:   "LINK_UNAVAILABLE",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, envelope := doRequest(t, router, http.MethodPost, "/api/v1/session/start", tc.body)
			if status != tc.wantStatus {
				t.Fatalf("status = %d, want %d", status, tc.wantStatus)
			}
			if envelope.Success {
				t.Error("success = true for a rejected start")
			}
			if envelope.Error == nil || envelope.Error.Code != tc.wantCode {
				t.Errorf("error code = %v, want %s", envelope.Error, tc.wantCode)
			}
		})
	}

	// None of the rejected starts may leave a session behind
	status, _ := doRequest(t, router, http.MethodGet, "/api/v1/session", "")
	if status != http.StatusNotFound {
		t.Errorf("GET /session after rejected starts = %d, want %d", status, http.StatusNotFound)
	}
}
