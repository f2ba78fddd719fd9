// Package alerting manages price alerts: CRUD over persistent storage, a
// single evaluation pass against current prices and a background monitor
// loop that delivers notifications.
package alerting

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/mfigueiredo/crypto-dca-backend/internal/domain"
)

const (
	defaultPollInterval = 2 * time.Minute
	defaultErrorBackoff = 1 * time.Minute
)

// Notifier delivers alert notifications to the alert's recipient
type Notifier interface {
	Send(ctx context.Context, alert *domain.PriceAlert, price decimal.Decimal) error
	SendTest(ctx context.Context, recipient string) error
}

// PriceSource supplies the current prices alerts are evaluated against
type PriceSource interface {
	SpotPrices(ctx context.Context) domain.SpotPrices
}

// Service owns the alert lifecycle
type Service struct {
	repo     domain.AlertRepository
	prices   PriceSource
	notifier Notifier
	logger   zerolog.Logger

	pollInterval time.Duration
	errorBackoff time.Duration
}

// NewService creates an alerting service with the default monitor cadence
func NewService(repo domain.AlertRepository, prices PriceSource, notifier Notifier, logger zerolog.Logger) *Service {
	return &Service{
		repo:         repo,
		prices:       prices,
		notifier:     notifier,
		logger:       logger,
		pollInterval: defaultPollInterval,
		errorBackoff: defaultErrorBackoff,
	}
}

// WithIntervals overrides the monitor cadence; tests shrink it
func (s *Service) WithIntervals(poll, backoff time.Duration) *Service {
	s.pollInterval = poll
	s.errorBackoff = backoff
	return s
}

// CreateInput carries the client-supplied alert fields
type CreateInput struct {
	Asset       domain.Asset
	TargetPrice decimal.Decimal
	Condition   domain.AlertCondition
	Email       string
	Description string
}

// Create validates and stores a new alert
func (s *Service) Create(ctx context.Context, input CreateInput) (*domain.PriceAlert, error) {
	alert := &domain.PriceAlert{
		ID:          uuid.New(),
		Asset:       input.Asset,
		TargetPrice: input.TargetPrice,
		Condition:   input.Condition,
		Email:       input.Email,
		Description: input.Description,
		Enabled:     true,
		CreatedAt:   time.Now().UTC(),
	}
	if alert.Description == "" {
		alert.Description = alert.DefaultDescription()
	}

	if err := alert.Validate(); err != nil {
		return nil, err
	}

	if err := s.repo.Append(ctx, alert); err != nil {
		return nil, fmt.Errorf("store alert: %w", err)
	}

	s.logger.Info().
		Str("alert_id", alert.ID.String()).
		Str("asset", string(alert.Asset)).
		Str("condition", string(alert.Condition)).
		Str("target", alert.TargetPrice.String()).
		Msg("price alert created")

	return alert, nil
}

// List returns all stored alerts
func (s *Service) List(ctx context.Context) ([]*domain.PriceAlert, error) {
	return s.repo.List(ctx)
}

// Delete removes an alert by id
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id)
}

// CheckOnce evaluates every enabled alert against current prices. A
// triggered alert is removed only after its notification was delivered;
// delivery failures keep the alert armed for the next pass.
func (s *Service) CheckOnce(ctx context.Context) (int, error) {
	alerts, err := s.repo.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("list alerts: %w", err)
	}
	if len(alerts) == 0 {
		return 0, nil
	}

	prices := s.prices.SpotPrices(ctx)

	triggered := 0
	for _, alert := range alerts {
		if !alert.Enabled {
			continue
		}

		price, ok := prices[alert.Asset]
		if !ok {
			continue
		}
		if !alert.Triggered(price) {
			continue
		}
		triggered++

		if err := s.notifier.Send(ctx, alert, price); err != nil {
			s.logger.Warn().
				Err(err).
				Str("alert_id", alert.ID.String()).
				Msg("alert notification failed, keeping alert armed")
			continue
		}

		if err := s.repo.Delete(ctx, alert.ID); err != nil {
			s.logger.Error().
				Err(err).
				Str("alert_id", alert.ID.String()).
				Msg("failed to remove delivered alert")
			continue
		}

		s.logger.Info().
			Str("alert_id", alert.ID.String()).
			Str("asset", string(alert.Asset)).
			Str("price", price.String()).
			Msg("price alert triggered and delivered")
	}

	return triggered, nil
}

// Monitor runs the evaluation loop until the context is cancelled. Failed
// passes retry on a shorter backoff.
func (s *Service) Monitor(ctx context.Context) {
	s.logger.Info().
		Dur("poll_interval", s.pollInterval).
		Msg("alert monitor started")

	for {
		delay := s.pollInterval
		if _, err := s.CheckOnce(ctx); err != nil {
			s.logger.Error().Err(err).Msg("alert check failed")
			delay = s.errorBackoff
		}

		select {
		case <-ctx.Done():
			s.logger.Info().Msg("alert monitor stopped")
			return
		case <-time.After(delay):
		}
	}
}

// SendTest delivers a test notification to verify the mail configuration
func (s *Service) SendTest(ctx context.Context, recipient string) error {
	if err := s.notifier.SendTest(ctx, recipient); err != nil {
		return fmt.Errorf("send test notification: %w", err)
	}
	return nil
}
