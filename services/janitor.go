package services

import (
	"context"
	"time"

	"github.com/bellapacxx/live-bingo/utils/logger"
)

// RunJanitor purges expired rooms every interval until ctx is done. It is
// a backstop for rooms whose host never came back.
func (s *RoomService) RunJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logger.Infof("[Janitor] sweeping expired rooms every %s", interval)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.PurgeExpired(ctx)
			if err != nil {
				logger.Errorf("[Janitor] purge failed: %v", err)
				continue
			}
			if n > 0 {
				logger.Infof("[Janitor] purged %d expired rooms", n)
			}
		}
	}
}
