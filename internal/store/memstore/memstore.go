// Package memstore keeps commerce ledgers in process memory.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/MarkoPoloResearchLab/commerce/pkg/commerce"
)

const (
	errorOperationStore = "store"
	errorSubjectLedger  = "ledger"
	errorSubjectProduct = "product"
	errorCodeMissing    = "missing"
	errorCodeDuplicate  = "duplicate"
	errorCodeIndex      = "index"
)

type ledgerState struct {
	ledger   commerce.Ledger
	products []commerce.Product
}

type state struct {
	ledgers   map[string]*ledgerState
	transfers []commerce.Transfer
}

func newState() *state {
	return &state{ledgers: map[string]*ledgerState{}}
}

func (current *state) clone() *state {
	cloned := &state{
		ledgers:   make(map[string]*ledgerState, len(current.ledgers)),
		transfers: make([]commerce.Transfer, len(current.transfers)),
	}
	for key, ledger := range current.ledgers {
		products := make([]commerce.Product, len(ledger.products))
		copy(products, ledger.products)
		cloned.ledgers[key] = &ledgerState{ledger: ledger.ledger, products: products}
	}
	copy(cloned.transfers, current.transfers)
	return cloned
}

// Store implements commerce.Store in memory. Writers are serialized by a single lock
// and see a private copy of the state that is published only when the transaction succeeds.
type Store struct {
	mutex   sync.RWMutex
	current *state
}

// New returns an empty store.
func New() *Store {
	return &Store{current: newState()}
}

// WithTx runs fn against a snapshot and commits it when fn returns nil.
func (store *Store) WithTx(ctx context.Context, fn func(ctx context.Context, txStore commerce.Store) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	store.mutex.Lock()
	defer store.mutex.Unlock()
	transaction := &txStore{working: store.current.clone()}
	if err := fn(ctx, transaction); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	store.current = transaction.working
	return nil
}

func (store *Store) read(fn func(current *state) error) error {
	store.mutex.RLock()
	defer store.mutex.RUnlock()
	return fn(store.current)
}

func (store *Store) write(ctx context.Context, fn func(txStore commerce.Store) error) error {
	return store.WithTx(ctx, func(_ context.Context, txStore commerce.Store) error {
		return fn(txStore)
	})
}

// CreateLedger stores a new ledger.
func (store *Store) CreateLedger(ctx context.Context, ledger commerce.Ledger) error {
	return store.write(ctx, func(txStore commerce.Store) error {
		return txStore.CreateLedger(ctx, ledger)
	})
}

// GetLedger returns a ledger by id.
func (store *Store) GetLedger(_ context.Context, ledgerID commerce.LedgerID) (commerce.Ledger, error) {
	var ledger commerce.Ledger
	err := store.read(func(current *state) error {
		found, err := current.ledger(ledgerID)
		if err != nil {
			return err
		}
		ledger = found.ledger
		return nil
	})
	return ledger, err
}

// AppendProduct adds a product at the end of the catalog.
func (store *Store) AppendProduct(ctx context.Context, ledgerID commerce.LedgerID, product commerce.Product) (commerce.ProductIndex, error) {
	var index commerce.ProductIndex
	err := store.write(ctx, func(txStore commerce.Store) error {
		appended, err := txStore.AppendProduct(ctx, ledgerID, product)
		index = appended
		return err
	})
	return index, err
}

// GetProduct returns the product at index.
func (store *Store) GetProduct(_ context.Context, ledgerID commerce.LedgerID, index commerce.ProductIndex) (commerce.Product, error) {
	var product commerce.Product
	err := store.read(func(current *state) error {
		found, err := current.product(ledgerID, index)
		product = found
		return err
	})
	return product, err
}

// UpdateProduct replaces the product at index.
func (store *Store) UpdateProduct(ctx context.Context, ledgerID commerce.LedgerID, index commerce.ProductIndex, product commerce.Product) error {
	return store.write(ctx, func(txStore commerce.Store) error {
		return txStore.UpdateProduct(ctx, ledgerID, index, product)
	})
}

// ListProducts returns the catalog in index order.
func (store *Store) ListProducts(_ context.Context, ledgerID commerce.LedgerID) ([]commerce.Product, error) {
	var products []commerce.Product
	err := store.read(func(current *state) error {
		listed, err := current.listProducts(ledgerID)
		products = listed
		return err
	})
	return products, err
}

// InsertTransfer records a transfer.
func (store *Store) InsertTransfer(ctx context.Context, transfer commerce.Transfer) error {
	return store.write(ctx, func(txStore commerce.Store) error {
		return txStore.InsertTransfer(ctx, transfer)
	})
}

// SumTransfers totals the amounts received and paid by caller.
func (store *Store) SumTransfers(_ context.Context, ledgerID commerce.LedgerID, caller commerce.CallerID) (commerce.Amount, commerce.Amount, error) {
	var received, paid commerce.Amount
	err := store.read(func(current *state) error {
		var err error
		received, paid, err = current.sumTransfers(ledgerID, caller)
		return err
	})
	return received, paid, err
}

// ListTransfers lists the caller's transfers created before the cutoff, newest first.
func (store *Store) ListTransfers(_ context.Context, ledgerID commerce.LedgerID, caller commerce.CallerID, beforeUnixUTC int64, limit int) ([]commerce.Transfer, error) {
	var transfers []commerce.Transfer
	err := store.read(func(current *state) error {
		transfers = current.listTransfers(ledgerID, caller, beforeUnixUTC, limit)
		return nil
	})
	return transfers, err
}

type txStore struct {
	working *state
}

func (transaction *txStore) WithTx(ctx context.Context, fn func(ctx context.Context, txStore commerce.Store) error) error {
	return fn(ctx, transaction)
}

func (transaction *txStore) CreateLedger(_ context.Context, ledger commerce.Ledger) error {
	key := ledger.LedgerID().String()
	if _, exists := transaction.working.ledgers[key]; exists {
		return commerce.WrapError(errorOperationStore, errorSubjectLedger, errorCodeDuplicate, commerce.ErrLedgerExists)
	}
	transaction.working.ledgers[key] = &ledgerState{ledger: ledger}
	return nil
}

func (transaction *txStore) GetLedger(_ context.Context, ledgerID commerce.LedgerID) (commerce.Ledger, error) {
	found, err := transaction.working.ledger(ledgerID)
	if err != nil {
		return commerce.Ledger{}, err
	}
	return found.ledger, nil
}

func (transaction *txStore) AppendProduct(_ context.Context, ledgerID commerce.LedgerID, product commerce.Product) (commerce.ProductIndex, error) {
	found, err := transaction.working.ledger(ledgerID)
	if err != nil {
		return 0, err
	}
	found.products = append(found.products, product)
	return commerce.ProductIndex(len(found.products) - 1), nil
}

func (transaction *txStore) GetProduct(_ context.Context, ledgerID commerce.LedgerID, index commerce.ProductIndex) (commerce.Product, error) {
	return transaction.working.product(ledgerID, index)
}

func (transaction *txStore) UpdateProduct(_ context.Context, ledgerID commerce.LedgerID, index commerce.ProductIndex, product commerce.Product) error {
	if _, err := transaction.working.product(ledgerID, index); err != nil {
		return err
	}
	transaction.working.ledgers[ledgerID.String()].products[index] = product
	return nil
}

func (transaction *txStore) ListProducts(_ context.Context, ledgerID commerce.LedgerID) ([]commerce.Product, error) {
	return transaction.working.listProducts(ledgerID)
}

func (transaction *txStore) InsertTransfer(_ context.Context, transfer commerce.Transfer) error {
	if _, err := transaction.working.ledger(transfer.LedgerID()); err != nil {
		return err
	}
	transaction.working.transfers = append(transaction.working.transfers, transfer)
	return nil
}

func (transaction *txStore) SumTransfers(_ context.Context, ledgerID commerce.LedgerID, caller commerce.CallerID) (commerce.Amount, commerce.Amount, error) {
	return transaction.working.sumTransfers(ledgerID, caller)
}

func (transaction *txStore) ListTransfers(_ context.Context, ledgerID commerce.LedgerID, caller commerce.CallerID, beforeUnixUTC int64, limit int) ([]commerce.Transfer, error) {
	return transaction.working.listTransfers(ledgerID, caller, beforeUnixUTC, limit), nil
}

func (current *state) ledger(ledgerID commerce.LedgerID) (*ledgerState, error) {
	found, ok := current.ledgers[ledgerID.String()]
	if !ok {
		return nil, commerce.WrapError(errorOperationStore, errorSubjectLedger, errorCodeMissing, commerce.ErrUnknownLedger)
	}
	return found, nil
}

func (current *state) product(ledgerID commerce.LedgerID, index commerce.ProductIndex) (commerce.Product, error) {
	found, err := current.ledger(ledgerID)
	if err != nil {
		return commerce.Product{}, err
	}
	if index < 0 || index.Int64() >= int64(len(found.products)) {
		return commerce.Product{}, commerce.WrapError(errorOperationStore, errorSubjectProduct, errorCodeIndex, fmt.Errorf("%w: %d of %d", commerce.ErrIndexOutOfRange, index, len(found.products)))
	}
	return found.products[index], nil
}

func (current *state) listProducts(ledgerID commerce.LedgerID) ([]commerce.Product, error) {
	found, err := current.ledger(ledgerID)
	if err != nil {
		return nil, err
	}
	products := make([]commerce.Product, len(found.products))
	copy(products, found.products)
	return products, nil
}

func (current *state) sumTransfers(ledgerID commerce.LedgerID, caller commerce.CallerID) (commerce.Amount, commerce.Amount, error) {
	var received, paid int64
	for _, transfer := range current.transfers {
		if transfer.LedgerID() != ledgerID {
			continue
		}
		if transfer.To() == caller {
			received += transfer.Amount().Int64()
		}
		if transfer.From() == caller {
			paid += transfer.Amount().Int64()
		}
		if received < 0 || paid < 0 {
			return 0, 0, fmt.Errorf("%w: transfer totals", commerce.ErrArithmeticOverflow)
		}
	}
	return commerce.Amount(received), commerce.Amount(paid), nil
}

func (current *state) listTransfers(ledgerID commerce.LedgerID, caller commerce.CallerID, beforeUnixUTC int64, limit int) []commerce.Transfer {
	matched := make([]commerce.Transfer, 0)
	for position := len(current.transfers) - 1; position >= 0; position-- {
		transfer := current.transfers[position]
		if transfer.LedgerID() != ledgerID || transfer.CreatedUnixUTC() >= beforeUnixUTC {
			continue
		}
		if transfer.From() == caller || transfer.To() == caller {
			matched = append(matched, transfer)
		}
	}
	sort.SliceStable(matched, func(left, right int) bool {
		return matched[left].CreatedUnixUTC() > matched[right].CreatedUnixUTC()
	})
	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}
	return matched
}
