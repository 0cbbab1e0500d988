package captions

import (
	"context"
	"time"
)

const DefaultPollInterval = time.Second

type JobGetter interface {
	GetJob(ctx context.Context, jobID string) (*Job, error)
}

// Poller reads a job on a fixed interval until it reaches a terminal status.
type Poller struct {
	Jobs     JobGetter
	Interval time.Duration
	// OnUpdate, if set, sees every snapshot read, including the final one.
	OnUpdate func(*Job)
}

func NewPoller(jobs JobGetter, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Poller{Jobs: jobs, Interval: interval}
}

// Wait returns the first terminal snapshot of jobID. It stops at the first
// read error and returns it unchanged.
func (p *Poller) Wait(ctx context.Context, jobID string) (*Job, error) {
	interval := p.Interval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		job, err := p.Jobs.GetJob(ctx, jobID)
		if err != nil {
			return nil, err
		}
		if p.OnUpdate != nil {
			p.OnUpdate(job)
		}
		if job.Status.Terminal() {
			return job, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
