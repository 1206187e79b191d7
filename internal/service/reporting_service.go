package service

import (
	"context"
	"fmt"
	"time"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// createdAtLayout is the timestamp format of serialized ledger history.
const createdAtLayout = "2006-01-02 15:04:05"

// ReportingServiceImpl implements ports.ReportingService: the serialized
// read views consumed by the request-handling layer.
type ReportingServiceImpl struct {
	walletRepo  ports.WalletRepository
	balanceRepo ports.BalanceRepository
	txRepo      ports.TransactionRepository
	cache       ports.BalanceCache
	cacheTTL    time.Duration
	log         zerolog.Logger
}

// NewReportingService creates a new ReportingServiceImpl. cache may be nil to
// disable the balances view cache.
func NewReportingService(
	walletRepo ports.WalletRepository,
	balanceRepo ports.BalanceRepository,
	txRepo ports.TransactionRepository,
	cache ports.BalanceCache,
	cacheTTL time.Duration,
	log zerolog.Logger,
) *ReportingServiceImpl {
	return &ReportingServiceImpl{
		walletRepo:  walletRepo,
		balanceRepo: balanceRepo,
		txRepo:      txRepo,
		cache:       cache,
		cacheTTL:    cacheTTL,
		log:         log,
	}
}

// GetBalances returns the wallet's balances as a currency -> amount mapping.
// The view is served from cache when fresh; mutations invalidate it.
func (s *ReportingServiceImpl) GetBalances(ctx context.Context, userID uuid.UUID) (map[string]float64, error) {
	wallet, err := s.walletRepo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("find wallet: %w", err))
	}
	if wallet == nil {
		return nil, apperror.ErrWalletNotFound()
	}

	if s.cache != nil {
		cached, err := s.cache.Get(ctx, wallet.ID)
		if err != nil {
			s.log.Warn().Err(err).Str("wallet_id", wallet.ID.String()).Msg("balance cache read failed, falling through to storage")
		}
		if cached != nil {
			return cached, nil
		}
	}

	balances, err := s.balanceRepo.ListByWallet(ctx, wallet.ID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("list balances: %w", err))
	}

	view := make(map[string]float64, len(balances))
	for _, b := range balances {
		view[string(b.Currency)] = b.Amount.InexactFloat64()
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, wallet.ID, view, s.cacheTTL); err != nil {
			s.log.Warn().Err(err).Str("wallet_id", wallet.ID.String()).Msg("failed to cache balances view")
		}
	}

	return view, nil
}

// GetTransactions returns the wallet's ledger history grouped by kind. The
// fund and withdraw lists include the legs appended by conversions, matching
// what the ledger actually stores.
func (s *ReportingServiceImpl) GetTransactions(ctx context.Context, userID uuid.UUID) (*ports.TransactionHistory, error) {
	wallet, err := s.walletRepo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("find wallet: %w", err))
	}
	if wallet == nil {
		return nil, apperror.ErrWalletNotFound()
	}

	history := &ports.TransactionHistory{
		Funds:       []ports.TransactionRecord{},
		Withdrawals: []ports.TransactionRecord{},
		Conversions: []ports.ConversionRecord{},
	}

	funds, err := s.txRepo.ListByKind(ctx, wallet.ID, domain.TransactionKindFund)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("list fund entries: %w", err))
	}
	for _, t := range funds {
		history.Funds = append(history.Funds, toRecord(t))
	}

	withdrawals, err := s.txRepo.ListByKind(ctx, wallet.ID, domain.TransactionKindWithdraw)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("list withdraw entries: %w", err))
	}
	for _, t := range withdrawals {
		history.Withdrawals = append(history.Withdrawals, toRecord(t))
	}

	conversions, err := s.txRepo.ListByKind(ctx, wallet.ID, domain.TransactionKindConvert)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("list convert entries: %w", err))
	}
	for _, t := range conversions {
		record := ports.ConversionRecord{
			Amount:    t.Amount.InexactFloat64(),
			Currency:  string(t.Currency),
			CreatedAt: t.CreatedAt.Format(createdAtLayout),
		}
		if t.ToCurrency != nil {
			record.ToCurrency = string(*t.ToCurrency)
		}
		if t.ExchangeRate != nil {
			record.ExchangeRate = t.ExchangeRate.InexactFloat64()
		}
		history.Conversions = append(history.Conversions, record)
	}

	return history, nil
}

func toRecord(t domain.Transaction) ports.TransactionRecord {
	return ports.TransactionRecord{
		Amount:    t.Amount.InexactFloat64(),
		Currency:  string(t.Currency),
		CreatedAt: t.CreatedAt.Format(createdAtLayout),
	}
}
