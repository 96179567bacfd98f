package dispatch

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler fires the daily job on a cron schedule, evaluated in the
// reference timezone.
type Scheduler struct {
	cron *cron.Cron
	job  *Job
	spec string
}

// NewScheduler creates a new scheduler for the job.
func NewScheduler(job *Job, spec string, loc *time.Location) *Scheduler {
	return &Scheduler{
		cron: cron.New(cron.WithLocation(loc)),
		job:  job,
		spec: spec,
	}
}

// Start registers the schedule and begins firing. The invocation timeout
// bounds a hung provider call; a failed run is logged, not retried.
func (s *Scheduler) Start() error {
	_, err := s.cron.AddFunc(s.spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()

		msg, err := s.job.Run(ctx)
		if err != nil {
			log.Printf("[Dispatch] Daily dispatch failed: %v", err)
			return
		}
		log.Printf("[Dispatch] %s", msg)
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	log.Printf("[Dispatch] Scheduler started (spec: %q)", s.spec)
	return nil
}

// Stop stops the cron without interrupting a running job.
func (s *Scheduler) Stop() {
	s.cron.Stop()
}
