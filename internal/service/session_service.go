// internal/service/session_service.go
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"telemetry-service/internal/codec"
	"telemetry-service/internal/config"
	"telemetry-service/internal/ingest"
	internalLink "telemetry-service/internal/link"
	"telemetry-service/internal/model"
	"telemetry-service/internal/session"
	"telemetry-service/internal/utils"
	"telemetry-service/pkg/link"
)

// Service-level errors mapped to API error codes by the handlers
var (
	ErrSessionActive = errors.New("a session is already active")
	ErrNoSession     = errors.New("no session has been started")
	ErrUnknownSensor = errors.New("unknown sensor")
	ErrBadChannel    = errors.New("unknown channel")
)

// run bundles everything owned by one acquisition session
type run struct {
	controller  *session.Controller
	coordinator *ingest.Coordinator
	bridge      link.Bridge
	sessionLog  *utils.SessionLogger
	cancel      context.CancelFunc
	listenDone  chan struct{}
	finalized   chan struct{}
}

// SessionService orchestrates acquisition sessions: one active run at a time,
// with the previous run's data readable until the next start.
type SessionService struct {
	config    *config.Config
	bridges   *internalLink.Registry
	logger    *utils.ServiceLogger
	reporter  *utils.ReportLogger
	baseLog   *zap.Logger
	eventSink func(model.TelemetryEvent)

	mu      sync.Mutex
	current *run
	last    *model.SessionSummary
}

// NewSessionService creates a new session service instance
func NewSessionService(
	cfg *config.Config,
	bridges *internalLink.Registry,
	logger *zap.Logger,
) *SessionService {
	return &SessionService{
		config:   cfg,
		bridges:  bridges,
		logger:   utils.NewServiceLogger(logger, "session-service"),
		reporter: utils.NewReportLogger(logger),
		baseLog:  logger,
	}
}

// SetEventSink registers the callback that receives session events
func (ss *SessionService) SetEventSink(sink func(model.TelemetryEvent)) {
	ss.eventSink = sink
}

// Start begins a new acquisition session. kindOverride selects a transport
// for this run only; empty means the configured default.
func (ss *SessionService) Start(ctx context.Context, kindOverride link.Kind) (*model.SessionInfo, error) {
	ss.mu.Lock()
	if ss.current != nil && !ss.current.controller.IsStopped() {
		ss.mu.Unlock()
		return nil, ErrSessionActive
	}
	ss.mu.Unlock()

	linkCfg := ss.config.Link
	if kindOverride != "" {
		if !kindOverride.IsValid() {
			return nil, fmt.Errorf("invalid link kind: %s", kindOverride)
		}
		linkCfg.Kind = kindOverride
	}

	bridge, err := ss.bridges.Create(&linkCfg, ss.config.Sensors)
	if err != nil {
		return nil, fmt.Errorf("failed to create bridge: %w", err)
	}

	registry, err := codec.NewRegistry(ss.config.Sensors)
	if err != nil {
		return nil, fmt.Errorf("invalid sensor configuration: %w", err)
	}

	coordinator := ingest.NewCoordinator(registry, ss.config.WindowSize(), ss.baseLog)
	controller := session.New(string(linkCfg.Kind))
	sessionLog := utils.NewSessionLogger(ss.baseLog, controller.ID().String(), string(linkCfg.Kind))

	sessionLog.Start(zap.Int("window_capacity", coordinator.WindowCapacity()))

	if err := bridge.Open(ctx); err != nil {
		sessionLog.Error(err)
		return nil, fmt.Errorf("failed to open %s link: %w", linkCfg.Kind, err)
	}

	listenCtx, cancel := context.WithCancel(context.Background())
	r := &run{
		controller:  controller,
		coordinator: coordinator,
		bridge:      bridge,
		sessionLog:  sessionLog,
		cancel:      cancel,
		listenDone:  make(chan struct{}),
		finalized:   make(chan struct{}),
	}

	ss.mu.Lock()
	if ss.current != nil && !ss.current.controller.IsStopped() {
		// Lost a start race, roll back this run
		ss.mu.Unlock()
		cancel()
		bridge.Close()
		return nil, ErrSessionActive
	}
	ss.current = r
	ss.mu.Unlock()

	controller.MarkRunning()
	sessionLog.Running()

	go ss.listen(listenCtx, r)

	info := controller.Info()
	ss.emitSessionEvent(model.EventSessionStarted, &info, "")

	ss.logger.Info("Session started",
		zap.String("session_id", info.ID.String()),
		zap.String("link_kind", info.LinkKind),
	)

	return &info, nil
}

// listen pumps the bridge into the coordinator until cancelled or failed
func (ss *SessionService) listen(ctx context.Context, r *run) {
	err := r.bridge.Listen(ctx, r.coordinator.Ingest)
	close(r.listenDone)

	if err != nil {
		ss.logger.Error("Link failed during session",
			zap.String("session_id", r.controller.ID().String()),
			zap.Error(err),
		)
		ss.emitLinkError(r, err)
		ss.finalize(r, model.StopReasonTransport)
	}
}

// Stop ends the active session with the given reason. Stopping an already
// stopped session returns its summary without error.
func (ss *SessionService) Stop(reason string) (*model.SessionSummary, error) {
	ss.mu.Lock()
	r := ss.current
	ss.mu.Unlock()

	if r == nil {
		return nil, ErrNoSession
	}

	ss.finalize(r, reason)

	ss.mu.Lock()
	last := ss.last
	ss.mu.Unlock()
	return last, nil
}

// finalize performs the terminal transition exactly once; losers wait for
// the winner to finish so the summary is visible to every caller.
func (ss *SessionService) finalize(r *run, reason string) {
	if !r.controller.Stop(reason) {
		<-r.finalized
		return
	}

	r.cancel()
	<-r.listenDone

	if err := r.bridge.Close(); err != nil {
		ss.logger.Error("Failed to close bridge", zap.Error(err))
	}

	summary := ss.buildSummary(r)

	ss.mu.Lock()
	ss.last = &summary
	ss.mu.Unlock()

	info := r.controller.Info()
	r.sessionLog.Stopped(info.StopReason,
		zap.Uint64("frames_delivered", summary.FramesDelivered),
	)
	ss.reporter.LogSessionSummary(&summary)
	ss.emitSessionEvent(model.EventSessionStopped, &info, info.StopReason)

	close(r.finalized)
}

// buildSummary assembles the end-of-run loss accounting, merging link noise
// counted at the bridge into the reject taxonomy.
func (ss *SessionService) buildSummary(r *run) model.SessionSummary {
	rejects := r.coordinator.Rejects()
	rejects.LinkNoise = r.bridge.Stats().LinkNoise

	return model.SessionSummary{
		Session:         r.controller.Info(),
		DurationSeconds: r.controller.Elapsed().Seconds(),
		Sensors:         r.coordinator.AllStats(),
		Rejected:        rejects,
		FramesDelivered: r.coordinator.Frames(),
	}
}

// Shutdown stops any active session as part of service shutdown
func (ss *SessionService) Shutdown() {
	ss.mu.Lock()
	r := ss.current
	ss.mu.Unlock()

	if r != nil && !r.controller.IsStopped() {
		ss.finalize(r, model.StopReasonShutdown)
	}
}

// Status returns the current session, stopped or not
func (ss *SessionService) Status() (*model.SessionInfo, error) {
	r := ss.currentRun()
	if r == nil {
		return nil, ErrNoSession
	}

	info := r.controller.Info()
	return &info, nil
}

// Summary returns the summary of the most recently stopped session
func (ss *SessionService) Summary() (*model.SessionSummary, error) {
	ss.mu.Lock()
	last := ss.last
	ss.mu.Unlock()

	if last == nil {
		return nil, ErrNoSession
	}
	return last, nil
}

// IsRunning reports whether an acquisition session is currently running
func (ss *SessionService) IsRunning() bool {
	r := ss.currentRun()
	return r != nil && r.controller.IsRunning()
}

// Done exposes the active session's stop signal for lifecycle consumers
func (ss *SessionService) Done() (<-chan struct{}, error) {
	r := ss.currentRun()
	if r == nil {
		return nil, ErrNoSession
	}
	return r.controller.Done(), nil
}

// Sensors returns the configured sensor set
func (ss *SessionService) Sensors() []model.SensorConfig {
	return ss.config.Sensors
}

// Window returns a copy of the fixed-size recent window for one channel.
// Data stays readable after stop, until the next session replaces it.
func (ss *SessionService) Window(sensor model.SensorID, channel model.Channel) ([]float64, error) {
	r := ss.currentRun()
	if r == nil {
		return nil, ErrNoSession
	}
	if !channel.IsValid() {
		return nil, ErrBadChannel
	}

	window, ok := r.coordinator.Window(sensor, channel)
	if !ok {
		return nil, ErrUnknownSensor
	}
	return window, nil
}

// Cumulative returns a read-only view of everything received on one channel
func (ss *SessionService) Cumulative(sensor model.SensorID, channel model.Channel) ([]float64, error) {
	r := ss.currentRun()
	if r == nil {
		return nil, ErrNoSession
	}
	if !channel.IsValid() {
		return nil, ErrBadChannel
	}

	log, ok := r.coordinator.Cumulative(sensor, channel)
	if !ok {
		return nil, ErrUnknownSensor
	}
	return log, nil
}

// Stats returns the loss accounting snapshot for one sensor
func (ss *SessionService) Stats(sensor model.SensorID) (*model.SensorStats, error) {
	r := ss.currentRun()
	if r == nil {
		return nil, ErrNoSession
	}

	stats, ok := r.coordinator.Stats(sensor)
	if !ok {
		return nil, ErrUnknownSensor
	}
	return &stats, nil
}

// AllStats returns loss accounting snapshots for every configured sensor
func (ss *SessionService) AllStats() ([]model.SensorStats, error) {
	r := ss.currentRun()
	if r == nil {
		return nil, ErrNoSession
	}
	return r.coordinator.AllStats(), nil
}

// Arrival returns the lifetime inter-arrival gap summary for one sensor
func (ss *SessionService) Arrival(sensor model.SensorID) (*model.ArrivalSnapshot, error) {
	r := ss.currentRun()
	if r == nil {
		return nil, ErrNoSession
	}
	if _, ok := r.coordinator.Stats(sensor); !ok {
		return nil, ErrUnknownSensor
	}
	return r.coordinator.Arrival().Snapshot(sensor), nil
}

// ArrivalIntervals returns per-sensor gap summaries since the previous call
// and resets interval state. The stats publisher is the only caller.
func (ss *SessionService) ArrivalIntervals() map[model.SensorID]*model.ArrivalSnapshot {
	r := ss.currentRun()
	if r == nil {
		return nil
	}

	arrival := r.coordinator.Arrival()
	intervals := make(map[model.SensorID]*model.ArrivalSnapshot)
	for _, sensor := range r.coordinator.Sensors() {
		intervals[sensor.ID] = arrival.Interval(sensor.ID)
	}
	arrival.ResetIntervals()
	return intervals
}

// LinkStats returns the active bridge's activity counters
func (ss *SessionService) LinkStats() (link.Kind, *link.Stats, error) {
	r := ss.currentRun()
	if r == nil {
		return "", nil, ErrNoSession
	}

	stats := r.bridge.Stats()
	return r.bridge.Kind(), &stats, nil
}

func (ss *SessionService) currentRun() *run {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	return ss.current
}

// emitSessionEvent pushes a session lifecycle event to the registered sink
func (ss *SessionService) emitSessionEvent(eventType model.EventType, info *model.SessionInfo, reason string) {
	if ss.eventSink == nil {
		return
	}

	ss.eventSink(model.TelemetryEvent{
		ID:        uuid.New(),
		EventType: eventType,
		Data: model.JSONObject{
			"session_id":  info.ID.String(),
			"state":       string(info.State),
			"link_kind":   info.LinkKind,
			"stop_reason": reason,
		},
		Timestamp: time.Now(),
		Source:    "session-service",
		Severity:  model.SeverityInfo,
	})
}

// emitLinkError pushes a transport failure event to the registered sink
func (ss *SessionService) emitLinkError(r *run, err error) {
	if ss.eventSink == nil {
		return
	}

	info := r.controller.Info()
	ss.eventSink(model.TelemetryEvent{
		ID:        uuid.New(),
		EventType: model.EventLinkError,
		Data: model.JSONObject{
			"session_id": info.ID.String(),
			"link_kind":  info.LinkKind,
			"error":      err.Error(),
		},
		Timestamp: time.Now(),
		Source:    "session-service",
		Severity:  model.SeverityError,
	})
}
