package service

import (
	"context"
	"fmt"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ReconciliationServiceImpl implements ports.ReconciliationService. It is a
// read-only consumer of the balance store and the ledger: it takes no locks
// and reads committed state only.
type ReconciliationServiceImpl struct {
	walletRepo  ports.WalletRepository
	balanceRepo ports.BalanceRepository
	txRepo      ports.TransactionRepository
	log         zerolog.Logger
}

// NewReconciliationService creates a new ReconciliationServiceImpl.
func NewReconciliationService(
	walletRepo ports.WalletRepository,
	balanceRepo ports.BalanceRepository,
	txRepo ports.TransactionRepository,
	log zerolog.Logger,
) *ReconciliationServiceImpl {
	return &ReconciliationServiceImpl{
		walletRepo:  walletRepo,
		balanceRepo: balanceRepo,
		txRepo:      txRepo,
		log:         log,
	}
}

// Check recomputes the expected balance of every currency the wallet holds
// purely from the ledger and compares it against the stored amount using
// exact decimal equality:
//
//	expected = Σ plain funds + Σ conversions in (amount × rate)
//	         − Σ plain withdrawals − Σ conversions out
//
// Plain sums exclude the redundant fund/withdraw legs a conversion appends;
// those flows are counted once, through the convert entries.
func (s *ReconciliationServiceImpl) Check(ctx context.Context, userID uuid.UUID) (domain.ReconciliationReport, error) {
	wallet, err := s.walletRepo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("find wallet: %w", err))
	}
	if wallet == nil {
		return nil, apperror.ErrWalletNotFound()
	}

	balances, err := s.balanceRepo.ListByWallet(ctx, wallet.ID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("list balances: %w", err))
	}

	report := make(domain.ReconciliationReport, len(balances))
	for _, balance := range balances {
		funds, err := s.txRepo.SumFunds(ctx, wallet.ID, balance.Currency)
		if err != nil {
			return nil, apperror.InternalError(fmt.Errorf("sum funds: %w", err))
		}
		conversionsIn, err := s.txRepo.SumConversionsIn(ctx, wallet.ID, balance.Currency)
		if err != nil {
			return nil, apperror.InternalError(fmt.Errorf("sum conversions in: %w", err))
		}
		withdrawals, err := s.txRepo.SumWithdrawals(ctx, wallet.ID, balance.Currency)
		if err != nil {
			return nil, apperror.InternalError(fmt.Errorf("sum withdrawals: %w", err))
		}
		conversionsOut, err := s.txRepo.SumConversionsOut(ctx, wallet.ID, balance.Currency)
		if err != nil {
			return nil, apperror.InternalError(fmt.Errorf("sum conversions out: %w", err))
		}

		expected := funds.Add(conversionsIn).Sub(withdrawals).Sub(conversionsOut)
		if balance.Amount.Equal(expected) {
			report[balance.Currency] = domain.ReconciliationOK
			continue
		}

		report[balance.Currency] = domain.ReconciliationMismatch
		s.log.Warn().
			Str("wallet_id", wallet.ID.String()).
			Str("currency", string(balance.Currency)).
			Str("stored", balance.Amount.String()).
			Str("expected", expected.String()).
			Msg("balance mismatch detected")
	}

	return report, nil
}
