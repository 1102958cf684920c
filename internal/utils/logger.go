// internal/utils/logger.go
package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"telemetry-service/internal/config"
	"telemetry-service/internal/model"
)

// LoggerManager manages application logging
type LoggerManager struct {
	logger *zap.Logger
	config *config.LoggingConfig
}

// NewLogger creates a new logger instance based on configuration
func NewLogger(cfg *config.LoggingConfig) (*zap.Logger, error) {
	manager := &LoggerManager{
		config: cfg,
	}

	logger, err := manager.createLogger()
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	manager.logger = logger
	return logger, nil
}

// createLogger creates the zap logger with proper configuration
func (lm *LoggerManager) createLogger() (*zap.Logger, error) {
	// Create encoder configuration
	encoderConfig := lm.getEncoderConfig()

	// Create encoder
	var encoder zapcore.Encoder
	switch lm.config.Format {
	case "json":
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	case "console":
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	default:
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	}

	// Create write syncer
	writeSyncer, err := lm.getWriteSyncer()
	if err != nil {
		return nil, fmt.Errorf("failed to create write syncer: %w", err)
	}

	// Get log level
	level, err := lm.getLogLevel()
	if err != nil {
		return nil, fmt.Errorf("failed to parse log level: %w", err)
	}

	// Create core
	core := zapcore.NewCore(encoder, writeSyncer, level)

	// Create logger with options
	logger := zap.New(core, lm.getLoggerOptions()...)

	return logger, nil
}

// getEncoderConfig returns encoder configuration based on format
func (lm *LoggerManager) getEncoderConfig() zapcore.EncoderConfig {
	config := zap.NewProductionEncoderConfig()

	// Customize time format
	config.TimeKey = "timestamp"
	config.EncodeTime = zapcore.TimeEncoderOfLayout(time.RFC3339)

	// Customize level format
	config.LevelKey = "level"
	config.EncodeLevel = zapcore.LowercaseLevelEncoder

	// Customize caller format
	config.CallerKey = "caller"
	config.EncodeCaller = zapcore.ShortCallerEncoder

	// Message key
	config.MessageKey = "message"

	// Stack trace key
	config.StacktraceKey = "stacktrace"

	// Console format customizations
	if lm.config.Format == "console" {
		config.EncodeLevel = zapcore.CapitalColorLevelEncoder
		config.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05")
	}

	return config
}

// getWriteSyncer returns write syncer based on output configuration
func (lm *LoggerManager) getWriteSyncer() (zapcore.WriteSyncer, error) {
	switch lm.config.Output {
	case "stdout":
		return zapcore.AddSync(os.Stdout), nil
	case "stderr":
		return zapcore.AddSync(os.Stderr), nil
	default:
		// File output with rotation
		if lm.config.Output == "" {
			lm.config.Output = "./logs/telemetry-service.log"
		}

		// Ensure log directory exists
		logDir := filepath.Dir(lm.config.Output)
		if err := os.MkdirAll(logDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}

		// Create lumberjack logger for rotation
		lumber := &lumberjack.Logger{
			Filename:   lm.config.Output,
			MaxSize:    lm.config.MaxSize, // MB
			MaxBackups: lm.config.MaxBackups,
			MaxAge:     lm.config.MaxAge, // days
			Compress:   lm.config.Compress,
		}

		return zapcore.AddSync(lumber), nil
	}
}

// getLogLevel parses and returns log level
func (lm *LoggerManager) getLogLevel() (zapcore.Level, error) {
	switch lm.config.Level {
	case "debug":
		return zapcore.DebugLevel, nil
	case "info":
		return zapcore.InfoLevel, nil
	case "warn":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	case "fatal":
		return zapcore.FatalLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("invalid log level: %s", lm.config.Level)
	}
}

// getLoggerOptions returns logger options
func (lm *LoggerManager) getLoggerOptions() []zap.Option {
	options := []zap.Option{
		zap.AddCaller(),
		zap.AddCallerSkip(1),
	}

	// Add stack trace for error level and above
	options = append(options, zap.AddStacktrace(zapcore.ErrorLevel))

	return options
}

// SensorLogger wraps zap.Logger with sensor-specific context
type SensorLogger struct {
	*zap.Logger
	sensorID string
	tag      string
}

// NewSensorLogger creates a sensor-specific logger
func NewSensorLogger(baseLogger *zap.Logger, sensorID, tag, name string) *SensorLogger {
	logger := baseLogger.With(
		zap.String("sensor_id", sensorID),
		zap.String("tag", tag),
		zap.String("sensor_name", name),
		zap.String("component", "sensor"),
	)

	return &SensorLogger{
		Logger:   logger,
		sensorID: sensorID,
		tag:      tag,
	}
}

// LogLossReport logs the current loss accounting for the sensor
func (sl *SensorLogger) LogLossReport(received, lost uint64, lossRatePercent float64) {
	sl.Info("Sensor loss report",
		zap.Uint64("received", received),
		zap.Uint64("lost", lost),
		zap.Float64("loss_rate_percent", lossRatePercent),
	)
}

// LogSequenceGap logs a detected sequence gap
func (sl *SensorLogger) LogSequenceGap(expected, received uint8, lost uint64) {
	sl.Warn("Sequence gap detected",
		zap.Uint8("expected", expected),
		zap.Uint8("received", received),
		zap.Uint64("lost", lost),
	)
}

// SessionLogger provides structured logging over one acquisition run
type SessionLogger struct {
	logger    *zap.Logger
	sessionID string
	startTime time.Time
}

// NewSessionLogger creates a session-specific logger
func NewSessionLogger(baseLogger *zap.Logger, sessionID, linkKind string) *SessionLogger {
	logger := baseLogger.With(
		zap.String("session_id", sessionID),
		zap.String("link_kind", linkKind),
		zap.String("component", "session"),
	)

	return &SessionLogger{
		logger:    logger,
		sessionID: sessionID,
		startTime: time.Now(),
	}
}

// Start logs session start
func (sl *SessionLogger) Start(fields ...zap.Field) {
	allFields := append([]zap.Field{
		zap.Time("start_time", sl.startTime),
	}, fields...)

	sl.logger.Info("Session started", allFields...)
}

// Running logs the transition into the running state
func (sl *SessionLogger) Running(fields ...zap.Field) {
	sl.logger.Info("Session running", fields...)
}

// Stopped logs session stop with its reason
func (sl *SessionLogger) Stopped(reason string, fields ...zap.Field) {
	duration := time.Since(sl.startTime)
	allFields := append([]zap.Field{
		zap.String("stop_reason", reason),
		zap.Duration("duration", duration),
	}, fields...)

	sl.logger.Info("Session stopped", allFields...)
}

// Error logs a session-level failure
func (sl *SessionLogger) Error(err error, fields ...zap.Field) {
	duration := time.Since(sl.startTime)
	allFields := append([]zap.Field{
		zap.Duration("elapsed", duration),
		zap.Error(err),
	}, fields...)

	sl.logger.Error("Session error", allFields...)
}

// ServiceLogger provides service-level logging functionality
type ServiceLogger struct {
	*zap.Logger
	serviceName string
}

// NewServiceLogger creates a service-specific logger
func NewServiceLogger(baseLogger *zap.Logger, serviceName string) *ServiceLogger {
	logger := baseLogger.With(
		zap.String("service", serviceName),
		zap.String("component", "service"),
	)

	return &ServiceLogger{
		Logger:      logger,
		serviceName: serviceName,
	}
}

// LogServiceStart logs service startup
func (sl *ServiceLogger) LogServiceStart(version string, config interface{}) {
	sl.Info("Service starting",
		zap.String("version", version),
		zap.Any("config", config),
	)
}

// LogServiceStop logs service shutdown
func (sl *ServiceLogger) LogServiceStop(reason string) {
	sl.Info("Service stopping",
		zap.String("reason", reason),
	)
}

// LogAPIRequest logs HTTP API requests
func (sl *ServiceLogger) LogAPIRequest(method, path, userAgent, clientIP string, statusCode int, duration time.Duration) {
	level := zapcore.InfoLevel
	if statusCode >= 400 {
		level = zapcore.WarnLevel
	}
	if statusCode >= 500 {
		level = zapcore.ErrorLevel
	}

	if ce := sl.Check(level, "API request"); ce != nil {
		ce.Write(
			zap.String("method", method),
			zap.String("path", path),
			zap.String("user_agent", userAgent),
			zap.String("client_ip", clientIP),
			zap.Int("status_code", statusCode),
			zap.Duration("duration", duration),
		)
	}
}

// ReportLogger writes end-of-run and discovery reports
type ReportLogger struct {
	logger *zap.Logger
}

// NewReportLogger creates a report-specific logger
func NewReportLogger(baseLogger *zap.Logger) *ReportLogger {
	logger := baseLogger.With(
		zap.String("component", "report"),
	)

	return &ReportLogger{
		logger: logger,
	}
}

// LogSessionSummary writes the loss accounting report for a finished session
func (rl *ReportLogger) LogSessionSummary(summary *model.SessionSummary) {
	rl.logger.Info("Session summary",
		zap.String("session_id", summary.Session.ID.String()),
		zap.String("link_kind", summary.Session.LinkKind),
		zap.String("stop_reason", summary.Session.StopReason),
		zap.Float64("duration_seconds", summary.DurationSeconds),
		zap.Uint64("frames_delivered", summary.FramesDelivered),
		zap.Uint64("rejected_malformed", summary.Rejected.Malformed),
		zap.Uint64("rejected_unknown_sensor", summary.Rejected.UnknownSensor),
		zap.Uint64("rejected_link_noise", summary.Rejected.LinkNoise),
	)

	for _, sensor := range summary.Sensors {
		rl.logger.Info("Sensor summary",
			zap.String("sensor_id", string(sensor.ID)),
			zap.String("tag", sensor.Tag),
			zap.Uint64("received", sensor.Received),
			zap.Uint64("lost", sensor.Lost),
			zap.Float64("loss_rate_percent", sensor.LossRatePercent),
		)
	}
}

// LogScanReport writes discovery scan results
func (rl *ReportLogger) LogScanReport(kind string, found int, duration time.Duration) {
	rl.logger.Info("Discovery scan completed",
		zap.String("kind", kind),
		zap.Int("found", found),
		zap.Duration("duration", duration),
	)
}

// Helper functions for common logging patterns

// LoggerWithRequestID adds request ID to logger
func LoggerWithRequestID(logger *zap.Logger, requestID string) *zap.Logger {
	return logger.With(zap.String("request_id", requestID))
}

// LogError is a helper function for consistent error logging
func LogError(logger *zap.Logger, message string, err error, fields ...zap.Field) {
	allFields := append([]zap.Field{zap.Error(err)}, fields...)
	logger.Error(message, allFields...)
}

// LogPanic logs and recovers from panics
func LogPanic(logger *zap.Logger) {
	if r := recover(); r != nil {
		logger.Fatal("Application panic",
			zap.Any("panic", r),
			zap.Stack("stacktrace"),
		)
	}
}

func CloseLogger(logger *zap.Logger) error {
	return logger.Sync()
}
