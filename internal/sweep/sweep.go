// Package sweep runs the periodic maintenance jobs: demoting stale
// presence and expiring old invitations. Each job carries its own cron
// cadence; the admin API can also trigger a job by hand through Run.
package sweep

import (
	"context"
	"fmt"
	"time"

	"github.com/adhocore/gronx"

	"parlor/pkg/invites"
	"parlor/pkg/logger"
	"parlor/pkg/presence"
)

// Job is one scheduled maintenance task. Fn receives the sweep cut
// timestamp (ns) and reports how many rows it touched.
type Job struct {
	Name string
	Cron string
	Fn   func(nowTS int64) (int, error)
}

// Jobs builds the job set from the configured cron expressions.
func Jobs(presenceCron, inviteCron string) []Job {
	return []Job{
		{Name: "presence", Cron: presenceCron, Fn: presence.SweepStale},
		{Name: "invites", Cron: inviteCron, Fn: invites.SweepExpired},
	}
}

// Run executes one named job immediately, outside its schedule.
func Run(jobs []Job, name string) (int, error) {
	for _, j := range jobs {
		if j.Name == name {
			return j.Fn(time.Now().UTC().UnixNano())
		}
	}
	return 0, fmt.Errorf("unknown sweep job %q", name)
}

// Start launches one scheduler goroutine per job and returns a cancel
// func stopping all of them. Invalid cron expressions fail startup;
// config validation should have caught them earlier.
func Start(ctx context.Context, jobs []Job) (context.CancelFunc, error) {
	for _, j := range jobs {
		if !gronx.IsValid(j.Cron) {
			return nil, fmt.Errorf("invalid cron expression %q for sweep job %s", j.Cron, j.Name)
		}
	}
	ctx2, cancel := context.WithCancel(ctx)
	for _, j := range jobs {
		logger.Info("sweep_scheduled", "job", j.Name, "cron", j.Cron)
		go schedule(ctx2, j)
	}
	return cancel, nil
}

// schedule sleeps until each next cron tick and runs the job. gronx
// computes exact ticks, so cadence stays sharp across long sleeps.
func schedule(ctx context.Context, j Job) {
	for {
		select {
		case <-ctx.Done():
			logger.Info("sweep_stopping", "job", j.Name)
			return
		default:
		}

		now := time.Now().UTC()
		next, err := gronx.NextTickAfter(j.Cron, now, false)
		if err != nil {
			logger.Error("sweep_nexttick_failed", "job", j.Name, "cron", j.Cron, "error", err)
			select {
			case <-time.After(30 * time.Second):
			case <-ctx.Done():
				return
			}
			continue
		}

		wait := time.Until(next)
		if wait <= 0 {
			runJob(j)
			// avoid a tight loop when the tick is due now-ish
			select {
			case <-time.After(time.Second):
			case <-ctx.Done():
				return
			}
			continue
		}

		select {
		case <-time.After(wait):
			runJob(j)
		case <-ctx.Done():
			logger.Info("sweep_stopping", "job", j.Name)
			return
		}
	}
}

func runJob(j Job) {
	n, err := j.Fn(time.Now().UTC().UnixNano())
	if err != nil {
		logger.Error("sweep_run_failed", "job", j.Name, "error", err)
		return
	}
	if n > 0 {
		logger.Info("sweep_run", "job", j.Name, "affected", n)
	}
}
