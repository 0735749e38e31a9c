// Package scheduler runs periodic jobs around the card ledger.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/Dan9191/card-ledger/internal/models"
)

// DigestSource lists the block requests still waiting for an administrator
type DigestSource interface {
	PendingDigest(ctx context.Context) (models.Page[models.BlockRequestResponse], error)
}

// DigestMailer delivers the digest
type DigestMailer interface {
	SendBlockRequestDigest(to []string, pending models.Page[models.BlockRequestResponse], at time.Time) error
}

// DigestJob mails administrators the pending block requests
type DigestJob struct {
	Source     DigestSource
	Mailer     DigestMailer
	Recipients []string
	Timeout    time.Duration
	Log        *logrus.Logger
	Now        func() time.Time
}

// Run implements cron.Job
func (j *DigestJob) Run() {
	timeout := j.Timeout
	if timeout <= 0 {
		timeout = time.Minute
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	j.Log.Info("Running pending block request digest")
	if err := j.RunContext(ctx); err != nil {
		j.Log.WithError(err).Error("Block request digest failed")
	}
}

// RunContext sends one digest. Nothing is sent when no request is pending.
func (j *DigestJob) RunContext(ctx context.Context) error {
	pending, err := j.Source.PendingDigest(ctx)
	if err != nil {
		return fmt.Errorf("failed to load pending block requests: %w", err)
	}
	if pending.Total == 0 {
		j.Log.Debug("No pending block requests, digest skipped")
		return nil
	}

	now := time.Now
	if j.Now != nil {
		now = j.Now
	}
	if err := j.Mailer.SendBlockRequestDigest(j.Recipients, pending, now()); err != nil {
		return err
	}
	j.Log.WithField("pending", pending.Total).Info("Block request digest sent")
	return nil
}

// Scheduler wraps a cron runner using standard five-field specs
type Scheduler struct {
	cron *cron.Cron
	log  *logrus.Logger
}

func New(log *logrus.Logger) *Scheduler {
	return &Scheduler{cron: cron.New(), log: log}
}

// Add registers job under spec
func (s *Scheduler) Add(spec string, job cron.Job) error {
	if _, err := s.cron.AddJob(spec, job); err != nil {
		return fmt.Errorf("failed to schedule job %q: %w", spec, err)
	}
	s.log.WithField("schedule", spec).Info("Job scheduled")
	return nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop prevents new runs and waits for running jobs until ctx is done
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
		s.log.Warn("Scheduler stopped before running jobs finished")
	}
}

// Entries returns how many jobs are registered
func (s *Scheduler) Entries() int {
	return len(s.cron.Entries())
}
