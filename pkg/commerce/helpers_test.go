package commerce

import (
	"context"
	"fmt"
	"sort"
	"testing"
)

const (
	ownerIDValue   = "owner-1"
	buyerIDValue   = "buyer-1"
	strangerValue  = "stranger-1"
	ownerNameValue = "Alice"
	metadataValue  = `{"source":"test"}`
	fixedNowUnix   = int64(1700000000)
)

type stubLedgerState struct {
	ledger   Ledger
	products []Product
}

type stubStore struct {
	ledgers   map[string]*stubLedgerState
	transfers []Transfer

	createLedgerError   error
	getLedgerError      error
	appendProductError  error
	getProductError     error
	updateProductError  error
	listProductsError   error
	insertTransferError error
	sumTransfersError   error
	listTransfersError  error
}

func newStubStore(test *testing.T) *stubStore {
	test.Helper()
	return &stubStore{ledgers: map[string]*stubLedgerState{}}
}

func (store *stubStore) snapshot() (map[string]*stubLedgerState, []Transfer) {
	ledgers := make(map[string]*stubLedgerState, len(store.ledgers))
	for key, state := range store.ledgers {
		products := make([]Product, len(state.products))
		copy(products, state.products)
		ledgers[key] = &stubLedgerState{ledger: state.ledger, products: products}
	}
	transfers := make([]Transfer, len(store.transfers))
	copy(transfers, store.transfers)
	return ledgers, transfers
}

func (store *stubStore) WithTx(ctx context.Context, fn func(ctx context.Context, txStore Store) error) error {
	ledgers, transfers := store.snapshot()
	if err := fn(ctx, store); err != nil {
		store.ledgers = ledgers
		store.transfers = transfers
		return err
	}
	return nil
}

func (store *stubStore) CreateLedger(_ context.Context, ledger Ledger) error {
	if store.createLedgerError != nil {
		return store.createLedgerError
	}
	if _, exists := store.ledgers[ledger.LedgerID().String()]; exists {
		return ErrLedgerExists
	}
	store.ledgers[ledger.LedgerID().String()] = &stubLedgerState{ledger: ledger}
	return nil
}

func (store *stubStore) state(ledgerID LedgerID) (*stubLedgerState, error) {
	state, ok := store.ledgers[ledgerID.String()]
	if !ok {
		return nil, ErrUnknownLedger
	}
	return state, nil
}

func (store *stubStore) GetLedger(_ context.Context, ledgerID LedgerID) (Ledger, error) {
	if store.getLedgerError != nil {
		return Ledger{}, store.getLedgerError
	}
	state, err := store.state(ledgerID)
	if err != nil {
		return Ledger{}, err
	}
	return state.ledger, nil
}

func (store *stubStore) AppendProduct(_ context.Context, ledgerID LedgerID, product Product) (ProductIndex, error) {
	if store.appendProductError != nil {
		return 0, store.appendProductError
	}
	state, err := store.state(ledgerID)
	if err != nil {
		return 0, err
	}
	state.products = append(state.products, product)
	return ProductIndex(len(state.products) - 1), nil
}

func (store *stubStore) GetProduct(_ context.Context, ledgerID LedgerID, index ProductIndex) (Product, error) {
	if store.getProductError != nil {
		return Product{}, store.getProductError
	}
	state, err := store.state(ledgerID)
	if err != nil {
		return Product{}, err
	}
	if index < 0 || int(index) >= len(state.products) {
		return Product{}, fmt.Errorf("%w: %d", ErrIndexOutOfRange, index)
	}
	return state.products[index], nil
}

func (store *stubStore) UpdateProduct(_ context.Context, ledgerID LedgerID, index ProductIndex, product Product) error {
	if store.updateProductError != nil {
		return store.updateProductError
	}
	state, err := store.state(ledgerID)
	if err != nil {
		return err
	}
	if index < 0 || int(index) >= len(state.products) {
		return fmt.Errorf("%w: %d", ErrIndexOutOfRange, index)
	}
	state.products[index] = product
	return nil
}

func (store *stubStore) ListProducts(_ context.Context, ledgerID LedgerID) ([]Product, error) {
	if store.listProductsError != nil {
		return nil, store.listProductsError
	}
	state, err := store.state(ledgerID)
	if err != nil {
		return nil, err
	}
	products := make([]Product, len(state.products))
	copy(products, state.products)
	return products, nil
}

func (store *stubStore) InsertTransfer(_ context.Context, transfer Transfer) error {
	if store.insertTransferError != nil {
		return store.insertTransferError
	}
	store.transfers = append(store.transfers, transfer)
	return nil
}

func (store *stubStore) SumTransfers(_ context.Context, ledgerID LedgerID, caller CallerID) (Amount, Amount, error) {
	if store.sumTransfersError != nil {
		return 0, 0, store.sumTransfersError
	}
	var received, paid Amount
	for _, transfer := range store.transfers {
		if transfer.LedgerID() != ledgerID {
			continue
		}
		if transfer.To() == caller {
			received += transfer.Amount()
		}
		if transfer.From() == caller {
			paid += transfer.Amount()
		}
	}
	return received, paid, nil
}

func (store *stubStore) ListTransfers(_ context.Context, ledgerID LedgerID, caller CallerID, beforeUnixUTC int64, limit int) ([]Transfer, error) {
	if store.listTransfersError != nil {
		return nil, store.listTransfersError
	}
	var matched []Transfer
	for _, transfer := range store.transfers {
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
	if len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

type sequenceIDs struct {
	next int
}

func (ids *sequenceIDs) generate() string {
	ids.next++
	return fmt.Sprintf("id-%d", ids.next)
}

func mustNewService(test *testing.T, store Store, options ...ServiceOption) *Service {
	test.Helper()
	ids := &sequenceIDs{}
	allOptions := append([]ServiceOption{WithIDGenerator(ids.generate)}, options...)
	service, err := NewService(store, func() int64 { return fixedNowUnix }, allOptions...)
	if err != nil {
		test.Fatalf("service init failed: %v", err)
	}
	return service
}

func mustCallerID(test *testing.T, raw string) CallerID {
	test.Helper()
	caller, err := NewCallerID(raw)
	if err != nil {
		test.Fatalf("caller id: %v", err)
	}
	return caller
}

func mustProductName(test *testing.T, raw string) ProductName {
	test.Helper()
	name, err := NewProductName(raw)
	if err != nil {
		test.Fatalf("product name: %v", err)
	}
	return name
}

func mustQuantity(test *testing.T, raw int64) Quantity {
	test.Helper()
	quantity, err := NewQuantity(raw)
	if err != nil {
		test.Fatalf("quantity: %v", err)
	}
	return quantity
}

func mustPositiveQuantity(test *testing.T, raw int64) PositiveQuantity {
	test.Helper()
	quantity, err := NewPositiveQuantity(raw)
	if err != nil {
		test.Fatalf("positive quantity: %v", err)
	}
	return quantity
}

func mustUnitPrice(test *testing.T, raw int64) UnitPrice {
	test.Helper()
	price, err := NewUnitPrice(raw)
	if err != nil {
		test.Fatalf("unit price: %v", err)
	}
	return price
}

func mustAmount(test *testing.T, raw int64) Amount {
	test.Helper()
	amount, err := NewAmount(raw)
	if err != nil {
		test.Fatalf("amount: %v", err)
	}
	return amount
}

func mustMetadata(test *testing.T, raw string) MetadataJSON {
	test.Helper()
	metadata, err := NewMetadataJSON(raw)
	if err != nil {
		test.Fatalf("metadata: %v", err)
	}
	return metadata
}

func mustDeploy(test *testing.T, service *Service, owner CallerID) LedgerID {
	test.Helper()
	ledgerID, err := service.Deploy(context.Background(), owner, ownerNameValue)
	if err != nil {
		test.Fatalf("deploy failed: %v", err)
	}
	return ledgerID
}

func mustAddProduct(test *testing.T, service *Service, ledgerID LedgerID, owner CallerID, name string, stock int64, price int64) ProductIndex {
	test.Helper()
	index, err := service.AddProduct(context.Background(), ledgerID, owner, mustProductName(test, name), mustQuantity(test, stock), mustUnitPrice(test, price))
	if err != nil {
		test.Fatalf("add product failed: %v", err)
	}
	return index
}

func mustPurchase(test *testing.T, service *Service, ledgerID LedgerID, buyer CallerID, index ProductIndex, quantity int64, payment int64) Product {
	test.Helper()
	product, err := service.Purchase(context.Background(), ledgerID, buyer, index, mustPositiveQuantity(test, quantity), mustAmount(test, payment), mustMetadata(test, metadataValue))
	if err != nil {
		test.Fatalf("purchase failed: %v", err)
	}
	return product
}
