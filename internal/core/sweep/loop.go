package sweep

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Run invokes SweepAll on a fixed interval until the context is cancelled.
// There is no overlap protection between passes; the status guard in the
// expire update makes overlapping passes harmless.
func Run(ctx context.Context, s *Sweeper, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Info().Dur("interval", interval).Msg("timeout sweep loop started")

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			expired, err := s.SweepAll(ctx)
			if err != nil {
				log.Error().Err(err).Msg("timeout sweep failed")
			}
			if len(expired) > 0 {
				log.Info().Int("expired", len(expired)).Msg("timeout sweep expired jobs")
			}
		}
	}
}
