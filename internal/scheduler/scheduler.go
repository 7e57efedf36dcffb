// internal/scheduler/scheduler.go
package scheduler

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/qrneighbor/sms-dispatch/internal/logger"
	"github.com/qrneighbor/sms-dispatch/internal/queue"
	"github.com/qrneighbor/sms-dispatch/internal/repository"
)

// Topic is the queue carrying claimed due jobs to the worker.
const Topic = "campaign_runs"

// JobPayload is the wire format between tick and worker. The claim token
// lets the consumer reject deliveries published under a claim that has
// since been released and re-taken.
type JobPayload struct {
	JobID      int    `json:"job_id"`
	ClaimToken string `json:"claim_token"`
}

// Scheduler periodically scans for due jobs, claims each one, and hands
// it to the worker over the queue. Claiming before publishing means a
// second tick (or a second scheduler instance) observing the same due job
// loses the compare-and-set and skips it.
//
// A claim is a lease, not a tombstone: each tick first returns running
// jobs older than Lease to the pending pool, so a tick or worker that
// died between claim and completion cannot strand a job forever.
type Scheduler struct {
	Jobs  repository.JobRepositoryInterface
	Queue queue.Queue

	Interval  time.Duration
	BatchSize int
	Lease     time.Duration

	// now is swappable in tests.
	now func() time.Time

	log zerolog.Logger
}

func New(jobs repository.JobRepositoryInterface, q queue.Queue, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Scheduler{
		Jobs:      jobs,
		Queue:     q,
		Interval:  interval,
		BatchSize: 100,
		Lease:     15 * time.Minute,
		now:       time.Now,
		log:       logger.WithComponent("scheduler"),
	}
}

// Run ticks until the context is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.Tick(); err != nil {
				s.log.Error().Err(err).Msg("tick failed")
			}
		}
	}
}

// Tick processes one scan of due jobs.
func (s *Scheduler) Tick() error {
	released, err := s.Jobs.ReleaseStale(s.now().Add(-s.Lease))
	if err != nil {
		return err
	}
	if released > 0 {
		s.log.Warn().Int("jobs", released).Msg("returned stale claims to the pending pool")
	}

	due, err := s.Jobs.ListDue(s.now(), s.BatchSize)
	if err != nil {
		return err
	}

	for _, j := range due {
		token := uuid.NewString()
		claimed, err := s.Jobs.Claim(j.ID, token)
		if err != nil {
			s.log.Error().Err(err).Int("job_id", j.ID).Msg("claim failed")
			continue
		}
		if !claimed {
			// Raced a cancel or another tick; not ours to run.
			continue
		}

		payload, _ := json.Marshal(JobPayload{JobID: j.ID, ClaimToken: token})
		if err := s.Queue.Publish(Topic, payload); err != nil {
			// Claimed but never handed off: put it back for the next tick.
			s.log.Error().Err(err).Int("job_id", j.ID).Msg("publish failed, releasing claim")
			if relErr := s.Jobs.Release(j.ID); relErr != nil {
				s.log.Error().Err(relErr).Int("job_id", j.ID).Msg("release failed")
			}
			continue
		}
		s.log.Info().Int("job_id", j.ID).Int("campaign_id", j.CampaignID).Msg("due job dispatched to worker")
	}
	return nil
}
