package jobs

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/taskdeck/server-go/internal/repository"
)

// CleanupJob sweeps expired reset tokens. Expiry is also enforced at read
// time, so the sweep only bounds table growth.
type CleanupJob struct {
	resetTokenRepo repository.ResetTokenRepository
	resetTokenTTL  time.Duration
	interval       time.Duration
	done           chan struct{}
}

func NewCleanupJob(resetTokenRepo repository.ResetTokenRepository, resetTokenTTL, interval time.Duration) *CleanupJob {
	return &CleanupJob{
		resetTokenRepo: resetTokenRepo,
		resetTokenTTL:  resetTokenTTL,
		interval:       interval,
		done:           make(chan struct{}),
	}
}

func (j *CleanupJob) Start() {
	go j.run()
	log.Info().Dur("interval", j.interval).Msg("cleanup job started")
}

func (j *CleanupJob) Stop() {
	close(j.done)
	log.Info().Msg("cleanup job stopped")
}

func (j *CleanupJob) run() {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.cleanup()

	for {
		select {
		case <-j.done:
			return
		case <-ticker.C:
			j.cleanup()
		}
	}
}

func (j *CleanupJob) cleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	count, err := j.resetTokenRepo.DeleteExpired(ctx, j.resetTokenTTL)
	if err != nil {
		log.Error().Err(err).Msg("failed to cleanup expired reset tokens")
	} else if count > 0 {
		log.Info().Int64("count", count).Msg("cleaned up expired reset tokens")
	}
}
