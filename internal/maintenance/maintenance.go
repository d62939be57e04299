// Package maintenance runs periodic housekeeping: the broadcast history purge
// that keeps the audit table from growing forever.
package maintenance

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"supportbot/internal/broadcast"
	"supportbot/pkg/logx"
)

type Config struct {
	// Schedule is a standard 5-field cron spec.
	Schedule string
	// Retention is how long history records are kept.
	Retention time.Duration
}

type Service struct {
	mu sync.Mutex

	cfg Config
	rec *broadcast.Recorder
	log logx.Logger
	c   *cron.Cron
}

func New(cfg Config, rec *broadcast.Recorder, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{cfg: cfg, rec: rec, log: log}
}

func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c != nil {
		return nil
	}
	c := cron.New()
	_, err := c.AddFunc(s.cfg.Schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if _, err := s.rec.PurgeOlderThan(ctx, s.cfg.Retention); err != nil {
			s.log.Warn("history purge failed", logx.Err(err))
		}
	})
	if err != nil {
		return err
	}
	s.c = c
	c.Start()
	s.log.Info("maintenance started",
		logx.String("schedule", s.cfg.Schedule),
		logx.Duration("retention", s.cfg.Retention))
	return nil
}

func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	c := s.c
	s.c = nil
	s.mu.Unlock()
	if c == nil {
		return
	}
	stopCtx := c.Stop()
	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
	}
	s.log.Info("maintenance stopped")
}
