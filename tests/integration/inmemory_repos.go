package integration

import (
	"context"
	"sort"
	"sync"
	"time"

	"wallet-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

// memStore is a single in-memory database shared by the in-memory repos. A
// transaction holds the store mutex from Begin until Commit or Rollback, so
// concurrent mutations serialize exactly like row-locked transactions do
// against PostgreSQL. Writes are journaled on the transaction and applied
// only on Commit; Rollback discards them.
type memStore struct {
	mu           sync.Mutex
	users        map[uuid.UUID]domain.User
	usersByEmail map[string]uuid.UUID
	wallets      map[uuid.UUID]domain.Wallet
	walletByUser map[uuid.UUID]uuid.UUID
	balances     map[uuid.UUID]domain.Balance
	balanceIDs   map[balanceKey]uuid.UUID
	ledger       []domain.Transaction
}

type balanceKey struct {
	walletID uuid.UUID
	currency domain.Currency
}

func newMemStore() *memStore {
	return &memStore{
		users:        make(map[uuid.UUID]domain.User),
		usersByEmail: make(map[string]uuid.UUID),
		wallets:      make(map[uuid.UUID]domain.Wallet),
		walletByUser: make(map[uuid.UUID]uuid.UUID),
		balances:     make(map[uuid.UUID]domain.Balance),
		balanceIDs:   make(map[balanceKey]uuid.UUID),
	}
}

// --- Transactor ---

type inMemoryTransactor struct {
	store *memStore
}

func newInMemoryTransactor(store *memStore) *inMemoryTransactor {
	return &inMemoryTransactor{store: store}
}

func (t *inMemoryTransactor) Begin(ctx context.Context) (pgx.Tx, error) {
	t.store.mu.Lock()
	return &memTx{store: t.store}, nil
}

// memTx implements pgx.Tx over the in-memory store. It owns the store mutex
// for its whole lifetime; repo methods called with this tx read the store
// directly and journal their writes.
type memTx struct {
	store  *memStore
	staged []func(*memStore)
	done   bool
}

func (t *memTx) stage(fn func(*memStore)) {
	t.staged = append(t.staged, fn)
}

func (t *memTx) Commit(ctx context.Context) error {
	if t.done {
		return pgx.ErrTxClosed
	}
	for _, apply := range t.staged {
		apply(t.store)
	}
	t.done = true
	t.store.mu.Unlock()
	return nil
}

func (t *memTx) Rollback(ctx context.Context) error {
	if t.done {
		return pgx.ErrTxClosed
	}
	t.staged = nil
	t.done = true
	t.store.mu.Unlock()
	return nil
}

func (t *memTx) Begin(ctx context.Context) (pgx.Tx, error) { return t, nil }
func (t *memTx) Conn() *pgx.Conn                           { return nil }
func (t *memTx) LargeObjects() pgx.LargeObjects            { return pgx.LargeObjects{} }

func (t *memTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	return 0, nil
}

func (t *memTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults { return nil }

func (t *memTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	return nil, nil
}

func (t *memTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	return pgconn.NewCommandTag(""), nil
}

func (t *memTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, nil
}

func (t *memTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row { return nil }

// --- UserRepository ---

type inMemoryUserRepo struct {
	store *memStore
}

func newInMemoryUserRepo(store *memStore) *inMemoryUserRepo {
	return &inMemoryUserRepo{store: store}
}

func (r *inMemoryUserRepo) Create(ctx context.Context, tx pgx.Tx, user *domain.User) error {
	u := *user
	tx.(*memTx).stage(func(s *memStore) {
		s.users[u.ID] = u
		s.usersByEmail[u.Email] = u.ID
	})
	return nil
}

func (r *inMemoryUserRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	u, ok := r.store.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (r *inMemoryUserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	id, ok := r.store.usersByEmail[email]
	if !ok {
		return nil, nil
	}
	u := r.store.users[id]
	return &u, nil
}

// --- WalletRepository ---

type inMemoryWalletRepo struct {
	store *memStore
}

func newInMemoryWalletRepo(store *memStore) *inMemoryWalletRepo {
	return &inMemoryWalletRepo{store: store}
}

func (r *inMemoryWalletRepo) Create(ctx context.Context, tx pgx.Tx, wallet *domain.Wallet) error {
	w := *wallet
	tx.(*memTx).stage(func(s *memStore) {
		s.wallets[w.ID] = w
		s.walletByUser[w.UserID] = w.ID
	})
	return nil
}

func (r *inMemoryWalletRepo) GetByUserID(ctx context.Context, userID uuid.UUID) (*domain.Wallet, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	id, ok := r.store.walletByUser[userID]
	if !ok {
		return nil, nil
	}
	w := r.store.wallets[id]
	return &w, nil
}

// --- BalanceRepository ---

type inMemoryBalanceRepo struct {
	store *memStore
}

func newInMemoryBalanceRepo(store *memStore) *inMemoryBalanceRepo {
	return &inMemoryBalanceRepo{store: store}
}

func (r *inMemoryBalanceRepo) ListByWallet(ctx context.Context, walletID uuid.UUID) ([]domain.Balance, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var out []domain.Balance
	for _, b := range r.store.balances {
		if b.WalletID == walletID {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Currency < out[j].Currency })
	return out, nil
}

func (r *inMemoryBalanceRepo) GetForUpdate(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, currency domain.Currency) (*domain.Balance, error) {
	store := tx.(*memTx).store
	id, ok := store.balanceIDs[balanceKey{walletID, currency}]
	if !ok {
		return nil, nil
	}
	b := store.balances[id]
	return &b, nil
}

func (r *inMemoryBalanceRepo) GetOrCreateForUpdate(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, currency domain.Currency) (*domain.Balance, error) {
	mt := tx.(*memTx)
	if existing, err := r.GetForUpdate(ctx, tx, walletID, currency); err != nil || existing != nil {
		return existing, err
	}

	now := time.Now().UTC()
	b := domain.Balance{
		ID:        uuid.New(),
		WalletID:  walletID,
		Currency:  currency,
		Amount:    decimal.Zero,
		CreatedAt: now,
		UpdatedAt: now,
	}
	mt.stage(func(s *memStore) {
		s.balances[b.ID] = b
		s.balanceIDs[balanceKey{walletID, currency}] = b.ID
	})
	return &b, nil
}

func (r *inMemoryBalanceRepo) UpdateAmount(ctx context.Context, tx pgx.Tx, balanceID uuid.UUID, amount decimal.Decimal) error {
	tx.(*memTx).stage(func(s *memStore) {
		b := s.balances[balanceID]
		b.Amount = amount
		b.UpdatedAt = time.Now().UTC()
		s.balances[balanceID] = b
	})
	return nil
}

// --- TransactionRepository ---

type inMemoryTransactionRepo struct {
	store *memStore

	// failCreate, when non-nil, makes the next Create call fail once. Used
	// to verify a mutation rolls back as a unit.
	failCreate error
}

func newInMemoryTransactionRepo(store *memStore) *inMemoryTransactionRepo {
	return &inMemoryTransactionRepo{store: store}
}

func (r *inMemoryTransactionRepo) Create(ctx context.Context, tx pgx.Tx, txn *domain.Transaction) error {
	if r.failCreate != nil {
		err := r.failCreate
		r.failCreate = nil
		return err
	}
	t := *txn
	tx.(*memTx).stage(func(s *memStore) {
		s.ledger = append(s.ledger, t)
	})
	return nil
}

func (r *inMemoryTransactionRepo) ListByKind(ctx context.Context, walletID uuid.UUID, kind domain.TransactionKind) ([]domain.Transaction, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var out []domain.Transaction
	for _, t := range r.store.ledger {
		if t.WalletID == walletID && t.Kind == kind {
			out = append(out, t)
		}
	}
	return out, nil
}

func (r *inMemoryTransactionRepo) SumFunds(ctx context.Context, walletID uuid.UUID, currency domain.Currency) (decimal.Decimal, error) {
	return r.sum(walletID, func(t *domain.Transaction) decimal.Decimal {
		if t.Kind == domain.TransactionKindFund && t.Currency == currency && !t.IsConversionLeg() {
			return t.Amount
		}
		return decimal.Zero
	}), nil
}

func (r *inMemoryTransactionRepo) SumWithdrawals(ctx context.Context, walletID uuid.UUID, currency domain.Currency) (decimal.Decimal, error) {
	return r.sum(walletID, func(t *domain.Transaction) decimal.Decimal {
		if t.Kind == domain.TransactionKindWithdraw && t.Currency == currency && !t.IsConversionLeg() {
			return t.Amount
		}
		return decimal.Zero
	}), nil
}

func (r *inMemoryTransactionRepo) SumConversionsIn(ctx context.Context, walletID uuid.UUID, currency domain.Currency) (decimal.Decimal, error) {
	return r.sum(walletID, func(t *domain.Transaction) decimal.Decimal {
		if t.Kind == domain.TransactionKindConvert && t.ToCurrency != nil && *t.ToCurrency == currency {
			return t.Amount.Mul(*t.ExchangeRate).Round(domain.MoneyScale)
		}
		return decimal.Zero
	}), nil
}

func (r *inMemoryTransactionRepo) SumConversionsOut(ctx context.Context, walletID uuid.UUID, currency domain.Currency) (decimal.Decimal, error) {
	return r.sum(walletID, func(t *domain.Transaction) decimal.Decimal {
		if t.Kind == domain.TransactionKindConvert && t.Currency == currency {
			return t.Amount
		}
		return decimal.Zero
	}), nil
}

func (r *inMemoryTransactionRepo) sum(walletID uuid.UUID, pick func(*domain.Transaction) decimal.Decimal) decimal.Decimal {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	total := decimal.Zero
	for i := range r.store.ledger {
		t := &r.store.ledger[i]
		if t.WalletID == walletID {
			total = total.Add(pick(t))
		}
	}
	return total
}
