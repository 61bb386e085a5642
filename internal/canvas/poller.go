package canvas

import (
	"context"
	"time"

	"go.uber.org/zap"
)

const DefaultPollInterval = 2 * time.Second

// Poller refreshes a canvas on a fixed interval until its context ends.
// Failures are logged and kept on the canvas; the next tick tries again.
type Poller struct {
	canvas   *Canvas
	interval time.Duration
	logger   *zap.SugaredLogger
}

func NewPoller(canvas *Canvas, interval time.Duration, logger *zap.SugaredLogger) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Poller{
		canvas:   canvas,
		interval: interval,
		logger:   logger,
	}
}

func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			applied, err := p.canvas.Refresh(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				p.logger.Warnw("refresh failed", "error", err)
				continue
			}
			if !applied {
				p.logger.Debug("refresh skipped")
			}
		}
	}
}
