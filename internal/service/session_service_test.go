// internal/service/session_service_test.go
package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"telemetry-service/internal/config"
	internalLink "telemetry-service/internal/link"
	"telemetry-service/internal/model"
	"telemetry-service/pkg/link"
)

func testConfig() *config.Config {
	return &config.Config{
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
}

func newTestService(t *testing.T) *SessionService {
	t.Helper()

	logger := zap.NewNop()
	bridges := internalLink.NewRegistry(logger)
	internalLink.RegisterDefaultBridges(bridges)

	return NewSessionService(testConfig(), bridges, logger)
}

// waitFor polls cond until it returns true or the deadline passes.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool, what string) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func hasFrames(ss *SessionService) bool {
	stats, err := ss.AllStats()
	if err != nil {
		return false
	}
	for _, s := range stats {
		if s.Received == 0 {
			return false
		}
	}
	return len(stats) > 0
}

func TestSessionLifecycle(t *testing.T) {
	ss := newTestService(t)

	info, err := ss.Start(context.Background(), "")
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if info.State != model.SessionRunning {
		t.Fatalf("State = %q, want %q", info.State, model.SessionRunning)
	}
	if info.LinkKind != string(link.KindReplay) {
		t.Errorf("LinkKind = %q, want %q", info.LinkKind, link.KindReplay)
	}
	if !ss.IsRunning() {
		t.Error("IsRunning() = false after Start")
	}

	if _, err := ss.Start(context.Background(), ""); !errors.Is(err, ErrSessionActive) {
		t.Errorf("second Start() error = %v, want ErrSessionActive", err)
	}

	waitFor(t, 2*time.Second, func() bool { return hasFrames(ss) }, "frames from both sensors")

	summary, err := ss.Stop(model.StopReasonUser)
	if err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if summary.Session.State != model.SessionStopped {
		t.Errorf("summary State = %q, want %q", summary.Session.State, model.SessionStopped)
	}
	if summary.Session.StopReason != model.StopReasonUser {
		t.Errorf("StopReason = %q, want %q", summary.Session.StopReason, model.StopReasonUser)
	}
	if summary.FramesDelivered == 0 {
		t.Error("FramesDelivered = 0, want > 0")
	}
	if len(summary.Sensors) != 2 {
		t.Fatalf("len(Sensors) = %d, want 2", len(summary.Sensors))
	}
	for _, s := range summary.Sensors {
		if s.Received == 0 {
			t.Errorf("sensor %s Received = 0, want > 0", s.ID)
		}
	}
	if summary.DurationSeconds <= 0 {
		t.Errorf("DurationSeconds = %v, want > 0", summary.DurationSeconds)
	}
	if ss.IsRunning() {
		t.Error("IsRunning() = true after Stop")
	}

	// Stopping again is idempotent and returns the same summary
	again, err := ss.Stop(model.StopReasonShutdown)
	if err != nil {
		t.Fatalf("second Stop() error = %v", err)
	}
	if again.Session.ID != summary.Session.ID {
		t.Error("second Stop() returned a different session")
	}
	if again.Session.StopReason != model.StopReasonUser {
		t.Errorf("second Stop() StopReason = %q, first reason should stick", again.Session.StopReason)
	}
}

func TestSessionDataReadableAfterStop(t *testing.T) {
	ss := newTestService(t)

	if _, err := ss.Start(context.Background(), ""); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	waitFor(t, 2*time.Second, func() bool { return hasFrames(ss) }, "frames from both sensors")

	if _, err := ss.Stop(model.StopReasonUser); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}

	window, err := ss.Window("emg-a", model.ChannelA)
	if err != nil {
		t.Fatalf("Window() after stop error = %v", err)
	}
	if len(window) != testConfig().WindowSize() {
		t.Errorf("len(window) = %d, want %d", len(window), testConfig().WindowSize())
	}

	cumulative, err := ss.Cumulative("emg-a", model.ChannelB)
	if err != nil {
		t.Fatalf("Cumulative() after stop error = %v", err)
	}
	if len(cumulative) == 0 {
		t.Error("Cumulative() empty after frames were received")
	}

	stats, err := ss.Stats("emg-b")
	if err != nil {
		t.Fatalf("Stats() after stop error = %v", err)
	}
	if stats.Received == 0 {
		t.Error("Stats() Received = 0 after frames were received")
	}

	status, err := ss.Status()
	if err != nil {
		t.Fatalf("Status() after stop error = %v", err)
	}
	if status.State != model.SessionStopped {
		t.Errorf("Status() State = %q, want %q", status.State, model.SessionStopped)
	}
}

func TestSessionRestartReplacesData(t *testing.T) {
	ss := newTestService(t)

	first, err := ss.Start(context.Background(), "")
	if err != nil {
		t.Fatalf("first Start() error = %v", err)
	}
	waitFor(t, 2*time.Second, func() bool { return hasFrames(ss) }, "frames in first session")
	if _, err := ss.Stop(model.StopReasonUser); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}

	second, err := ss.Start(context.Background(), "")
	if err != nil {
		t.Fatalf("second Start() error = %v", err)
	}
	if second.ID == first.ID {
		t.Error("restart reused the previous session ID")
	}

	secondSummary, err := ss.Stop(model.StopReasonUser)
	if err != nil {
		t.Fatalf("final Stop() error = %v", err)
	}
	if secondSummary.Session.ID != second.ID {
		t.Error("Summary() still reports the previous session after restart")
	}
}

func TestSessionReadValidation(t *testing.T) {
	ss := newTestService(t)

	if _, err := ss.Window("emg-a", model.ChannelA); !errors.Is(err, ErrNoSession) {
		t.Errorf("Window() before start error = %v, want ErrNoSession", err)
	}
	if _, err := ss.Stop(model.StopReasonUser); !errors.Is(err, ErrNoSession) {
		t.Errorf("Stop() before start error = %v, want ErrNoSession", err)
	}
	if _, err := ss.Status(); !errors.Is(err, ErrNoSession) {
		t.Errorf("Status() before start error = %v, want ErrNoSession", err)
	}
	if _, err := ss.Summary(); !errors.Is(err, ErrNoSession) {
		t.Errorf("Summary() before start error = %v, want ErrNoSession", err)
	}

	if _, err := ss.Start(context.Background(), ""); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer ss.Stop(model.StopReasonUser)

	if _, err := ss.Window("emg-a", "c"); !errors.Is(err, ErrBadChannel) {
		t.Errorf("Window() bad channel error = %v, want ErrBadChannel", err)
	}
	if _, err := ss.Cumulative("emg-a", ""); !errors.Is(err, ErrBadChannel) {
		t.Errorf("Cumulative() empty channel error = %v, want ErrBadChannel", err)
	}
	if _, err := ss.Window("ghost", model.ChannelA); !errors.Is(err, ErrUnknownSensor) {
		t.Errorf("Window() unknown sensor error = %v, want ErrUnknownSensor", err)
	}
	if _, err := ss.Stats("ghost"); !errors.Is(err, ErrUnknownSensor) {
		t.Errorf("Stats() unknown sensor error = %v, want ErrUnknownSensor", err)
	}
	if _, err := ss.Arrival("ghost"); !errors.Is(err, ErrUnknownSensor) {
		t.Errorf("Arrival() unknown sensor error = %v, want ErrUnknownSensor", err)
	}
}

func TestSessionStartInvalidKind(t *testing.T) {
	ss := newTestService(t)

	if _, err := ss.Start(context.Background(), "bluetooth"); err == nil {
		t.Fatal("Start() with invalid kind succeeded, want error")
	}
	if _, err := ss.Status(); !errors.Is(err, ErrNoSession) {
		t.Error("failed Start() left a session behind")
	}
}

func TestSessionEvents(t *testing.T) {
	ss := newTestService(t)

	var mu sync.Mutex
	var events []model.TelemetryEvent
	ss.SetEventSink(func(event model.TelemetryEvent) {
		mu.Lock()
		events = append(events, event)
		mu.Unlock()
	})

	if _, err := ss.Start(context.Background(), ""); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if _, err := ss.Stop(model.StopReasonUser); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}

	mu.Lock()
	defer mu.Unlock()

	var sawStarted, sawStopped bool
	for _, event := range events {
		switch event.EventType {
		case model.EventSessionStarted:
			sawStarted = true
		case model.EventSessionStopped:
			sawStopped = true
			if event.Data["stop_reason"] != model.StopReasonUser {
				t.Errorf("stop event reason = %v, want %q", event.Data["stop_reason"], model.StopReasonUser)
			}
		}
	}
	if !sawStarted {
		t.Error("no SESSION_STARTED event emitted")
	}
	if !sawStopped {
		t.Error("no SESSION_STOPPED event emitted")
	}
}

func TestSessionDoneSignal(t *testing.T) {
	ss := newTestService(t)

	if _, err := ss.Start(context.Background(), ""); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	done, err := ss.Done()
	if err != nil {
		t.Fatalf("Done() error = %v", err)
	}
	select {
	case <-done:
		t.Fatal("done channel closed while running")
	default:
	}

	ss.Shutdown()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("done channel not closed after Shutdown")
	}

	summary, err := ss.Summary()
	if err != nil {
		t.Fatalf("Summary() error = %v", err)
	}
	if summary.Session.StopReason != model.StopReasonShutdown {
		t.Errorf("StopReason = %q, want %q", summary.Session.StopReason, model.StopReasonShutdown)
	}
}
