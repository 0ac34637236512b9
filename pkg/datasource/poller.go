package datasource

import (
	"context"
	"time"
)

// poller runs the poll loop of one datasource. It polls once immediately so
// rules see data as soon as the datasource is added, then on the interval.
type poller struct {
	manager  *Manager
	name     string
	driver   Driver
	config   map[string]string
	interval time.Duration
	cancel   context.CancelFunc
	done     chan struct{}
}

func (p *poller) run(ctx context.Context) {
	defer close(p.done)

	_ = p.manager.pollOnce(ctx, p.name, p.driver, p.config)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = p.manager.pollOnce(ctx, p.name, p.driver, p.config)
		}
	}
}

// stop cancels the loop and waits for it to exit.
func (p *poller) stop() {
	p.cancel()
	<-p.done
}
