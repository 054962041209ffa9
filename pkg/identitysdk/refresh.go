package identitysdk

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/aussiebroadwan/askbar/pkg/slogx"
)

// StartAutoRefresh checks the session every interval and refreshes it when
// it is within RefreshMargin of expiry. The returned stop function blocks
// until the background goroutine has exited.
func (c *Client) StartAutoRefresh(ctx context.Context, interval time.Duration) (stop func()) {
	stopCh := make(chan struct{})
	doneCh := make(chan struct{})
	log := slogx.FromContext(ctx).With(slog.String("component", "identitysdk.refresh"))

	go func() {
		defer close(doneCh)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-stopCh:
				return
			case <-ticker.C:
				if _, err := c.GetSession(ctx); err != nil {
					log.Warn("session refresh failed", "err", err)
				}
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() { close(stopCh) })
		<-doneCh
	}
}
