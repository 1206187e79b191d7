package service

import (
	"context"
	"fmt"
	"time"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// WalletServiceImpl implements ports.WalletService: the balance-mutation
// engine. Every operation validates its preconditions in a fixed order,
// applies balance deltas under row-level locks, and appends ledger entries in
// the same database transaction, so a committed mutation is always fully
// visible or not at all.
type WalletServiceImpl struct {
	walletRepo  ports.WalletRepository
	balanceRepo ports.BalanceRepository
	txRepo      ports.TransactionRepository
	transactor  ports.DBTransactor
	cache       ports.BalanceCache
	log         zerolog.Logger
}

// NewWalletService creates a new WalletServiceImpl. cache may be nil to
// disable balance-view invalidation.
func NewWalletService(
	walletRepo ports.WalletRepository,
	balanceRepo ports.BalanceRepository,
	txRepo ports.TransactionRepository,
	transactor ports.DBTransactor,
	cache ports.BalanceCache,
	log zerolog.Logger,
) *WalletServiceImpl {
	return &WalletServiceImpl{
		walletRepo:  walletRepo,
		balanceRepo: balanceRepo,
		txRepo:      txRepo,
		transactor:  transactor,
		cache:       cache,
		log:         log,
	}
}

// Fund adds amount to the (wallet, currency) balance, creating the balance
// row on first touch. Precondition order: wallet, amount, currency.
func (s *WalletServiceImpl) Fund(ctx context.Context, req ports.FundRequest) (*domain.Transaction, error) {
	wallet, err := s.lookupWallet(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	if err := validateAmount(req.Amount); err != nil {
		return nil, err
	}
	currency := domain.NormalizeCurrency(req.Currency)
	if !currency.IsSupported() {
		return nil, apperror.ErrInvalidCurrency()
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	balance, err := s.balanceRepo.GetOrCreateForUpdate(ctx, dbTx, wallet.ID, currency)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock balance: %w", err))
	}

	newAmount := balance.Amount.Add(req.Amount)
	if err := s.balanceRepo.UpdateAmount(ctx, dbTx, balance.ID, newAmount); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("update balance: %w", err))
	}

	txn := &domain.Transaction{
		ID:        uuid.New(),
		WalletID:  wallet.ID,
		Kind:      domain.TransactionKindFund,
		Currency:  currency,
		Amount:    req.Amount,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.txRepo.Create(ctx, dbTx, txn); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("append fund entry: %w", err))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.invalidateBalances(ctx, wallet.ID)
	s.log.Info().
		Str("wallet_id", wallet.ID.String()).
		Str("currency", string(currency)).
		Str("amount", req.Amount.String()).
		Msg("wallet funded")

	return txn, nil
}

// Withdraw subtracts amount from an existing (wallet, currency) balance.
// Precondition order: wallet, currency, balance row, amount, funds.
func (s *WalletServiceImpl) Withdraw(ctx context.Context, req ports.WithdrawRequest) (*domain.Transaction, error) {
	wallet, err := s.lookupWallet(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	currency := domain.NormalizeCurrency(req.Currency)
	if !currency.IsSupported() {
		return nil, apperror.ErrInvalidCurrency()
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	// No implicit zero-balance withdrawal: absence of the row is its own
	// error, distinct from insufficient funds.
	balance, err := s.balanceRepo.GetForUpdate(ctx, dbTx, wallet.ID, currency)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock balance: %w", err))
	}
	if balance == nil {
		return nil, apperror.ErrNoBalanceForCurrency()
	}
	if err := validateAmount(req.Amount); err != nil {
		return nil, err
	}
	if req.Amount.GreaterThan(balance.Amount) {
		return nil, apperror.ErrInsufficientFunds()
	}

	newAmount := balance.Amount.Sub(req.Amount)
	if err := s.balanceRepo.UpdateAmount(ctx, dbTx, balance.ID, newAmount); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("update balance: %w", err))
	}

	txn := &domain.Transaction{
		ID:        uuid.New(),
		WalletID:  wallet.ID,
		Kind:      domain.TransactionKindWithdraw,
		Currency:  currency,
		Amount:    req.Amount,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.txRepo.Create(ctx, dbTx, txn); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("append withdraw entry: %w", err))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.invalidateBalances(ctx, wallet.ID)
	s.log.Info().
		Str("wallet_id", wallet.ID.String()).
		Str("currency", string(currency)).
		Str("amount", req.Amount.String()).
		Msg("wallet withdrawn")

	return txn, nil
}

// Convert moves amount from the source currency balance into the destination
// currency balance at the resolved exchange rate. Both balance rows are
// locked in lexical currency-code order so two conversions running in
// opposite directions cannot deadlock. Three ledger entries are appended:
// the destination-leg fund, the source-leg withdraw, and the convert record.
// Precondition order: wallet, currencies, source row, amount, funds, rate.
func (s *WalletServiceImpl) Convert(ctx context.Context, req ports.ConvertRequest) (*domain.Transaction, error) {
	wallet, err := s.lookupWallet(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	from := domain.NormalizeCurrency(req.FromCurrency)
	to := domain.NormalizeCurrency(req.ToCurrency)
	if !from.IsSupported() || !to.IsSupported() {
		return nil, apperror.ErrUnsupportedConversion()
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	source, dest, err := s.lockConversionBalances(ctx, dbTx, wallet.ID, from, to)
	if err != nil {
		return nil, err
	}
	if err := validateAmount(req.Amount); err != nil {
		return nil, err
	}
	if req.Amount.GreaterThan(source.Amount) {
		return nil, apperror.ErrInsufficientFunds()
	}
	rate, ok := domain.ResolveRate(from, to, req.CustomRate)
	if !ok || rate.Sign() <= 0 {
		return nil, apperror.ErrInvalidExchangeRate()
	}

	// Quantize the credited amount to the ledger's scale before it is
	// persisted: the balance column stores scale-3 values, and reconciliation
	// recomputes the credit at the same scale.
	credited := req.Amount.Mul(rate).Round(domain.MoneyScale)

	if source.ID == dest.ID {
		// Same-currency conversion touches a single row once.
		net := source.Amount.Sub(req.Amount).Add(credited)
		if err := s.balanceRepo.UpdateAmount(ctx, dbTx, source.ID, net); err != nil {
			return nil, apperror.InternalError(fmt.Errorf("update balance: %w", err))
		}
	} else {
		if err := s.balanceRepo.UpdateAmount(ctx, dbTx, source.ID, source.Amount.Sub(req.Amount)); err != nil {
			return nil, apperror.InternalError(fmt.Errorf("update source balance: %w", err))
		}
		if err := s.balanceRepo.UpdateAmount(ctx, dbTx, dest.ID, dest.Amount.Add(credited)); err != nil {
			return nil, apperror.InternalError(fmt.Errorf("update destination balance: %w", err))
		}
	}

	now := time.Now().UTC()
	convert := &domain.Transaction{
		ID:           uuid.New(),
		WalletID:     wallet.ID,
		Kind:         domain.TransactionKindConvert,
		Currency:     from,
		ToCurrency:   &to,
		Amount:       req.Amount,
		ExchangeRate: &rate,
		CreatedAt:    now,
	}
	fundLeg := &domain.Transaction{
		ID:           uuid.New(),
		WalletID:     wallet.ID,
		Kind:         domain.TransactionKindFund,
		Currency:     to,
		Amount:       credited,
		ConversionID: &convert.ID,
		CreatedAt:    now,
	}
	withdrawLeg := &domain.Transaction{
		ID:           uuid.New(),
		WalletID:     wallet.ID,
		Kind:         domain.TransactionKindWithdraw,
		Currency:     from,
		Amount:       req.Amount,
		ConversionID: &convert.ID,
		CreatedAt:    now,
	}
	for _, txn := range []*domain.Transaction{convert, fundLeg, withdrawLeg} {
		if err := s.txRepo.Create(ctx, dbTx, txn); err != nil {
			return nil, apperror.InternalError(fmt.Errorf("append %s entry: %w", txn.Kind, err))
		}
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.invalidateBalances(ctx, wallet.ID)
	s.log.Info().
		Str("wallet_id", wallet.ID.String()).
		Str("from", string(from)).
		Str("to", string(to)).
		Str("amount", req.Amount.String()).
		Str("rate", rate.String()).
		Msg("funds converted")

	return convert, nil
}

// lockConversionBalances locks the source and destination balance rows in
// lexical currency order. The source row must already exist; the destination
// row is created lazily. When both currencies are equal a single row is
// locked and returned twice.
func (s *WalletServiceImpl) lockConversionBalances(
	ctx context.Context,
	dbTx pgx.Tx,
	walletID uuid.UUID,
	from, to domain.Currency,
) (source, dest *domain.Balance, err error) {
	lock := func(c domain.Currency) (*domain.Balance, error) {
		if c == from {
			b, err := s.balanceRepo.GetForUpdate(ctx, dbTx, walletID, c)
			if err != nil {
				return nil, apperror.InternalError(fmt.Errorf("lock source balance: %w", err))
			}
			if b == nil {
				return nil, apperror.ErrNoBalanceForCurrency()
			}
			return b, nil
		}
		b, err := s.balanceRepo.GetOrCreateForUpdate(ctx, dbTx, walletID, c)
		if err != nil {
			return nil, apperror.InternalError(fmt.Errorf("lock destination balance: %w", err))
		}
		return b, nil
	}

	if from == to {
		source, err = lock(from)
		return source, source, err
	}

	first, second := from, to
	if second < first {
		first, second = second, first
	}
	balances := map[domain.Currency]*domain.Balance{}
	for _, c := range []domain.Currency{first, second} {
		balances[c], err = lock(c)
		if err != nil {
			return nil, nil, err
		}
	}
	return balances[from], balances[to], nil
}

func (s *WalletServiceImpl) lookupWallet(ctx context.Context, userID uuid.UUID) (*domain.Wallet, error) {
	wallet, err := s.walletRepo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("find wallet: %w", err))
	}
	if wallet == nil {
		return nil, apperror.ErrWalletNotFound()
	}
	return wallet, nil
}

// invalidateBalances drops the cached balances view after a committed
// mutation. Best-effort: a cache fault never fails the operation.
func (s *WalletServiceImpl) invalidateBalances(ctx context.Context, walletID uuid.UUID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, walletID); err != nil {
		s.log.Warn().Err(err).Str("wallet_id", walletID.String()).Msg("failed to invalidate balance cache")
	}
}

func validateAmount(amount decimal.Decimal) error {
	if amount.IsNegative() {
		return apperror.ErrNegativeAmount()
	}
	if amount.IsZero() {
		return apperror.ErrZeroAmount()
	}
	return nil
}
