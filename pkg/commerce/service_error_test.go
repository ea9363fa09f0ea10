package commerce

import (
	"context"
	"errors"
	"testing"
)

const (
	errStoreMessage        = "store error"
	caseGetLedgerError     = "get ledger error"
	caseGetProductError    = "get product error"
	caseUpdateProductError = "update product error"
	caseInsertTransfer     = "insert transfer error"
	caseAppendProduct      = "append product error"
	caseListProductsError  = "list products error"
	caseSumTransfersError  = "sum transfers error"
	caseListTransfersError = "list transfers error"
	errorMismatchMessage   = "expected %v, got %v"
)

var errStoreFailure = errors.New(errStoreMessage)

func TestDeployReturnsStoreErrors(test *testing.T) {
	test.Parallel()
	store := newStubStore(test)
	store.createLedgerError = errStoreFailure
	service := mustNewService(test, store)
	_, err := service.Deploy(context.Background(), mustCallerID(test, ownerIDValue), ownerNameValue)
	if !errors.Is(err, errStoreFailure) {
		test.Fatalf(errorMismatchMessage, errStoreFailure, err)
	}
	if len(store.ledgers) != 0 {
		test.Fatalf("expected no ledgers after failed deploy")
	}
}

func TestMutationsReturnStoreErrors(test *testing.T) {
	test.Parallel()
	testCases := []struct {
		name      string
		configure func(store *stubStore)
		call      func(test *testing.T, fixture catalogFixture) error
	}{
		{
			name:      caseGetLedgerError,
			configure: func(store *stubStore) { store.getLedgerError = errStoreFailure },
			call: func(test *testing.T, fixture catalogFixture) error {
				_, err := fixture.service.AddItem(context.Background(), fixture.ledgerID, fixture.owner, 0, 1)
				return err
			},
		},
		{
			name:      caseAppendProduct,
			configure: func(store *stubStore) { store.appendProductError = errStoreFailure },
			call: func(test *testing.T, fixture catalogFixture) error {
				_, err := fixture.service.AddProduct(context.Background(), fixture.ledgerID, fixture.owner, mustProductName(test, "Dog"), 1, 1)
				return err
			},
		},
		{
			name:      caseGetProductError,
			configure: func(store *stubStore) { store.getProductError = errStoreFailure },
			call: func(test *testing.T, fixture catalogFixture) error {
				_, err := fixture.service.ChangePrice(context.Background(), fixture.ledgerID, fixture.owner, 0, 1)
				return err
			},
		},
		{
			name:      caseUpdateProductError,
			configure: func(store *stubStore) { store.updateProductError = errStoreFailure },
			call: func(test *testing.T, fixture catalogFixture) error {
				_, err := fixture.service.Purchase(context.Background(), fixture.ledgerID, fixture.buyer, 0, 1, 60, MetadataJSON{})
				return err
			},
		},
		{
			name:      caseInsertTransfer,
			configure: func(store *stubStore) { store.insertTransferError = errStoreFailure },
			call: func(test *testing.T, fixture catalogFixture) error {
				_, err := fixture.service.Purchase(context.Background(), fixture.ledgerID, fixture.buyer, 0, 1, 60, MetadataJSON{})
				return err
			},
		},
	}

	for _, testCase := range testCases {
		testCase := testCase
		test.Run(testCase.name, func(test *testing.T) {
			test.Parallel()
			fixture := newCatalogFixture(test)
			testCase.configure(fixture.store)
			err := testCase.call(test, fixture)
			if !errors.Is(err, errStoreFailure) {
				test.Fatalf(errorMismatchMessage, errStoreFailure, err)
			}
		})
	}
}

func TestRefundRollsBackWhenTransferFails(test *testing.T) {
	test.Parallel()
	fixture := newCatalogFixture(test)
	mustPurchase(test, fixture.service, fixture.ledgerID, fixture.buyer, 0, 5, 300)
	fixture.store.insertTransferError = errStoreFailure
	_, err := fixture.service.ProductRefund(context.Background(), fixture.ledgerID, fixture.owner, 0, 300, MetadataJSON{})
	if !errors.Is(err, errStoreFailure) {
		test.Fatalf(errorMismatchMessage, errStoreFailure, err)
	}
	fixture.store.insertTransferError = nil
	product := fixture.product(test, 0)
	if product.Stock() != 15 || product.TotalPurchased() != 5 {
		test.Fatalf("refund not rolled back: %+v", product)
	}
	if _, refundable := product.LastPurchase(); !refundable {
		test.Fatalf("refund rollback must keep the purchase refundable")
	}
}

func TestQueriesReturnStoreErrors(test *testing.T) {
	test.Parallel()
	testCases := []struct {
		name      string
		configure func(store *stubStore)
		call      func(fixture catalogFixture) error
	}{
		{
			name:      caseListProductsError,
			configure: func(store *stubStore) { store.listProductsError = errStoreFailure },
			call: func(fixture catalogFixture) error {
				_, err := fixture.service.MostPopularProduct(context.Background(), fixture.ledgerID)
				return err
			},
		},
		{
			name:      caseSumTransfersError,
			configure: func(store *stubStore) { store.sumTransfersError = errStoreFailure },
			call: func(fixture catalogFixture) error {
				_, err := fixture.service.Balance(context.Background(), fixture.ledgerID, fixture.owner)
				return err
			},
		},
		{
			name:      caseListTransfersError,
			configure: func(store *stubStore) { store.listTransfersError = errStoreFailure },
			call: func(fixture catalogFixture) error {
				_, err := fixture.service.ListTransfers(context.Background(), fixture.ledgerID, fixture.owner, 0, 10)
				return err
			},
		},
	}

	for _, testCase := range testCases {
		testCase := testCase
		test.Run(testCase.name, func(test *testing.T) {
			test.Parallel()
			fixture := newCatalogFixture(test)
			testCase.configure(fixture.store)
			if err := testCase.call(fixture); !errors.Is(err, errStoreFailure) {
				test.Fatalf(errorMismatchMessage, errStoreFailure, err)
			}
		})
	}
}

func TestNormalizeTransfersLimit(test *testing.T) {
	test.Parallel()
	testCases := []struct {
		input int
		want  int
	}{
		{input: 0, want: defaultListTransfersLimit},
		{input: -3, want: defaultListTransfersLimit},
		{input: 7, want: 7},
		{input: maxListTransfersLimit + 1, want: maxListTransfersLimit},
	}
	for _, testCase := range testCases {
		if got := normalizeTransfersLimit(testCase.input); got != testCase.want {
			test.Fatalf("limit %d: expected %d, got %d", testCase.input, testCase.want, got)
		}
	}
}
