package depositservice

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/tuncanbit/ledger/internal/domain"
)

func (s *depositService) StartVerification(ctx context.Context) error {
	if !s.reconciler.Enabled {
		s.logger.Info().Msg("Deposit verification disabled")
		<-ctx.Done()
		return ctx.Err()
	}

	interval := s.reconciler.Interval
	if interval <= 0 {
		interval = time.Minute
	}

	s.logger.Info().Dur("interval", interval).Msg("Starting deposit verification")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("Deposit verification stopped")
			return ctx.Err()
		case <-ticker.C:
			if err := s.processPendingDeposits(ctx); err != nil {
				s.logger.Error().Err(err).Msg("Failed to process pending deposits")
			}
		}
	}
}

func (s *depositService) processPendingDeposits(ctx context.Context) error {
	limit := s.reconciler.BatchSize
	if limit <= 0 {
		limit = 100
	}
	maxWorkers := s.reconciler.Workers
	if maxWorkers <= 0 {
		maxWorkers = 10
	}

	deposits, err := s.transactionRepo.ListPendingDeposits(ctx, s.now().Add(-s.reconciler.MinAge), limit)
	if err != nil {
		return fmt.Errorf("failed to load pending deposits: %w", err)
	}
	if len(deposits) == 0 {
		return nil
	}

	s.logger.Debug().Int("count", len(deposits)).Msg("Verifying pending deposits")

	semaphore := make(chan struct{}, maxWorkers)
	for _, deposit := range deposits {
		semaphore <- struct{}{}
		go func(deposit domain.Transaction) {
			defer func() { <-semaphore }()
			s.verifyDeposit(ctx, deposit)
		}(deposit)
	}

	for i := 0; i < cap(semaphore); i++ {
		semaphore <- struct{}{}
	}

	return nil
}

func (s *depositService) verifyDeposit(ctx context.Context, deposit domain.Transaction) {
	gwCtx, cancel := context.WithTimeout(ctx, s.gatewayTimeout)
	defer cancel()

	charge, err := s.gateway.Verify(gwCtx, deposit.Reference)
	if err != nil {
		s.logger.Warn().Err(err).Str("reference", deposit.Reference).Msg("Failed to verify deposit with gateway")
		return
	}
	if charge.Reference == "" {
		charge.Reference = deposit.Reference
	}

	metadata, err := json.Marshal(charge)
	if err != nil {
		s.logger.Error().Err(err).Str("reference", deposit.Reference).Msg("Failed to encode charge")
		return
	}

	switch charge.Status {
	case domain.GatewayStatusSuccess:
		if _, err := s.settle(ctx, charge, metadata); err != nil {
			s.logger.Error().Err(err).Str("reference", deposit.Reference).Msg("Failed to settle verified deposit")
		}
	case domain.GatewayStatusFailed, domain.GatewayStatusAbandoned:
		if s.reconciler.ExpireAfter > 0 && s.now().Sub(deposit.CreatedAt) > s.reconciler.ExpireAfter {
			if err := s.markFailed(ctx, deposit, metadata); err != nil {
				s.logger.Error().Err(err).Str("reference", deposit.Reference).Msg("Failed to expire deposit")
			}
		}
	default:
		s.logger.Debug().Str("reference", deposit.Reference).Str("status", charge.Status).Msg("Deposit still in progress")
	}
}
