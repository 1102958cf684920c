// internal/console/view.go
package console

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/term"

	"telemetry-service/internal/model"
	"telemetry-service/internal/service"
	"telemetry-service/internal/utils"
)

const (
	colorRed    = "\033[0;31m"
	colorYellow = "\033[1;33m"
	colorGreen  = "\033[0;32m"
	colorCyan   = "\033[0;36m"
	colorBold   = "\033[1m"
	colorDim    = "\033[2m"
	colorReset  = "\033[0m"
)

const sparkWidth = 72

var sparkLevels = []rune("▁▂▃▄▅▆▇█")

// View renders live sensor windows and loss stats in the terminal.
// Everything it draws comes from snapshots; it never touches pipeline
// state directly.
type View struct {
	sessionService *service.SessionService
	interval       time.Duration
	logger         *utils.ServiceLogger
}

// NewView creates a terminal view refreshing at the given frame rate
func NewView(sessionService *service.SessionService, fps int, logger *zap.Logger) *View {
	if fps < 1 {
		fps = 10
	}
	return &View{
		sessionService: sessionService,
		interval:       time.Second / time.Duration(fps),
		logger:         utils.NewServiceLogger(logger, "console-view"),
	}
}

// Run drives the view until the context ends, the session stops, or the
// user quits with q or Ctrl-C. Stdin must be a terminal.
func (v *View) Run(ctx context.Context) error {
	v.logger.Info("Console view started", zap.Duration("interval", v.interval))
	defer v.logger.Info("Console view stopped")

	// Set terminal to raw mode
	oldState, err := term.MakeRaw(int(os.Stdin.Fd()))
	if err != nil {
		return fmt.Errorf("failed to enter raw mode: %w", err)
	}
	defer term.Restore(int(os.Stdin.Fd()), oldState)

	// Hide cursor
	fmt.Print("\033[?25l")
	defer fmt.Print("\033[?25h")

	// Clear screen
	fmt.Print("\033[2J")

	// Key input channel. In raw mode Ctrl-C arrives as a byte, not a signal.
	keyCh := make(chan byte, 10)
	go func() {
		buf := make([]byte, 3)
		for {
			n, err := os.Stdin.Read(buf)
			if err != nil {
				return
			}
			for i := 0; i < n; i++ {
				keyCh <- buf[i]
			}
		}
	}()

	done, err := v.sessionService.Done()
	if err != nil {
		done = nil
	}

	ticker := time.NewTicker(v.interval)
	defer ticker.Stop()

	v.render()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-done:
			// One last frame so the stopped state is visible
			v.render()
			return nil
		case key := <-keyCh:
			if key == 'q' || key == 'Q' || key == 0x03 {
				return nil
			}
		case <-ticker.C:
			if done == nil {
				if d, err := v.sessionService.Done(); err == nil {
					done = d
				}
			}
			v.render()
		}
	}
}

func (v *View) render() {
	var sb strings.Builder

	// Move cursor home
	sb.WriteString("\033[H")

	v.writeHeader(&sb)

	stats, err := v.sessionService.AllStats()
	if err != nil {
		sb.WriteString(fmt.Sprintf("%sNo session. Start one with POST /api/v1/session/start%s\r\n",
			colorDim, colorReset))
	} else {
		for i := range stats {
			v.writeSensor(&sb, &stats[i])
		}
	}

	// Clear to end of screen
	sb.WriteString("\033[J")

	fmt.Print(sb.String())
}

func (v *View) writeHeader(sb *strings.Builder) {
	sb.WriteString(fmt.Sprintf("%sEMG Telemetry%s %s(refresh: %v)%s",
		colorBold, colorReset, colorDim, v.interval, colorReset))

	if info, err := v.sessionService.Status(); err == nil {
		stateColor := colorGreen
		if info.State == model.SessionStopped {
			stateColor = colorRed
		}
		sb.WriteString(fmt.Sprintf("  %s%s%s %slink=%s session=%s%s",
			stateColor, info.State, colorReset, colorDim, info.LinkKind, info.ID, colorReset))
	}
	sb.WriteString("\r\n")
	sb.WriteString(fmt.Sprintf("%s[q] quit%s\r\n\r\n", colorDim, colorReset))
}

func (v *View) writeSensor(sb *strings.Builder, stats *model.SensorStats) {
	rate := 0.0
	if stats.ElapsedSeconds > 0 {
		rate = float64(stats.Received) / stats.ElapsedSeconds
	}

	lossColor := colorGreen
	switch {
	case stats.LossRatePercent >= 5:
		lossColor = colorRed
	case stats.LossRatePercent > 0:
		lossColor = colorYellow
	}

	sb.WriteString(fmt.Sprintf("%s%s%s%s %s(%s)%s  recv=%d  lost=%s%d (%.2f%%)%s  rate=%.0f/s\r\n",
		colorBold, colorCyan, stats.ID, colorReset, colorDim, stats.Name, colorReset,
		stats.Received, lossColor, stats.Lost, stats.LossRatePercent, colorReset, rate))

	for _, channel := range model.Channels {
		window, err := v.sessionService.Window(stats.ID, channel)
		if err != nil {
			continue
		}
		sb.WriteString(fmt.Sprintf("  %sch %s%s %s\r\n",
			colorDim, channel, colorReset, sparkline(window, sparkWidth)))
	}

	if a := stats.Arrival; a != nil {
		sb.WriteString(fmt.Sprintf("  %sarrival p50=%.1fms p95=%.1fms p99=%.1fms max=%.1fms%s\r\n",
			colorDim, a.P50Ms, a.P95Ms, a.P99Ms, a.MaxMs, colorReset))
	}
	sb.WriteString("\r\n")
}

// sparkline downsamples the window to width columns and maps each column
// mean onto eight block glyphs, normalized to the window's own range
func sparkline(samples []float64, width int) string {
	if len(samples) == 0 {
		return ""
	}
	if width > len(samples) {
		width = len(samples)
	}

	columns := make([]float64, width)
	per := float64(len(samples)) / float64(width)
	for i := 0; i < width; i++ {
		start := int(float64(i) * per)
		end := int(float64(i+1) * per)
		if end <= start {
			end = start + 1
		}
		if end > len(samples) {
			end = len(samples)
		}
		sum := 0.0
		for _, s := range samples[start:end] {
			sum += s
		}
		columns[i] = sum / float64(end-start)
	}

	low, high := columns[0], columns[0]
	for _, c := range columns[1:] {
		if c < low {
			low = c
		}
		if c > high {
			high = c
		}
	}

	var sb strings.Builder
	span := high - low
	for _, c := range columns {
		level := 0
		if span > 0 {
			level = int((c - low) / span * float64(len(sparkLevels)-1))
		}
		sb.WriteRune(sparkLevels[level])
	}
	return sb.String()
}
