package scheduler

import (
	"fmt"
	"time"

	"github.com/communitypress/dispatch-bot/internal/config"
	"github.com/communitypress/dispatch-bot/internal/pipeline"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Service handles scheduling of newsletter generation and retry sweeps
type Service struct {
	config          *config.Config
	pipelineService *pipeline.Service
	cron            *cron.Cron
}

// NewService creates a new scheduler service
func NewService(cfg *config.Config, pipelineService *pipeline.Service) (*Service, error) {
	location, err := time.LoadLocation(cfg.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", cfg.TimeZone, err)
	}

	return &Service{
		config:          cfg,
		pipelineService: pipelineService,
		cron:            cron.New(cron.WithLocation(location)),
	}, nil
}

// Start begins the scheduled newsletter runs
func (s *Service) Start() error {
	_, err := s.cron.AddFunc(s.config.NewsletterSchedule, func() {
		logrus.Info("Starting scheduled newsletter run")
		if err := s.pipelineService.RunDaily(); err != nil {
			logrus.Errorf("Scheduled newsletter run failed: %v", err)
		}
	})
	if err != nil {
		return fmt.Errorf("invalid newsletter schedule %q: %w", s.config.NewsletterSchedule, err)
	}

	// Failed newsletters become retry-eligible after their cooldown; sweep
	// hourly so they are picked up the same day.
	_, err = s.cron.AddFunc(s.config.RetrySweepSchedule, func() {
		if err := s.pipelineService.RetrySweep(); err != nil {
			logrus.Errorf("Retry sweep failed: %v", err)
		}
	})
	if err != nil {
		return fmt.Errorf("invalid retry sweep schedule %q: %w", s.config.RetrySweepSchedule, err)
	}

	s.cron.Start()
	logrus.Infof("Scheduler started (newsletters: %q, retry sweep: %q, timezone: %s)",
		s.config.NewsletterSchedule, s.config.RetrySweepSchedule, s.config.TimeZone)
	return nil
}

// Stop stops the scheduler
func (s *Service) Stop() {
	if s.cron != nil {
		s.cron.Stop()
		logrus.Info("Scheduler stopped")
	}
}
