// Package storetest holds behavior checks shared by every commerce.Store implementation.
package storetest

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/MarkoPoloResearchLab/commerce/pkg/commerce"
)

var errAbort = errors.New("abort")

// Factory builds an empty store for one subtest.
type Factory func(t *testing.T) commerce.Store

// Run exercises the commerce.Store contract against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Helper()
	t.Run("ledger lifecycle", func(t *testing.T) {
		testLedgerLifecycle(t, newStore(t))
	})
	t.Run("product catalog", func(t *testing.T) {
		testProductCatalog(t, newStore(t))
	})
	t.Run("transfers", func(t *testing.T) {
		testTransfers(t, newStore(t))
	})
	t.Run("rollback", func(t *testing.T) {
		testRollback(t, newStore(t))
	})
}

// MustLedger builds a ledger record for tests.
func MustLedger(t *testing.T, rawID string, rawOwner string) commerce.Ledger {
	t.Helper()
	ledgerID, err := commerce.NewLedgerID(rawID)
	require.NoError(t, err)
	owner, err := commerce.NewCallerID(rawOwner)
	require.NoError(t, err)
	ledger, err := commerce.NewLedger(ledgerID, "Owner "+rawOwner, owner, 1700000000)
	require.NoError(t, err)
	return ledger
}

// MustProduct builds a fresh product for tests.
func MustProduct(t *testing.T, rawName string, stock int64, price int64) commerce.Product {
	t.Helper()
	name, err := commerce.NewProductName(rawName)
	require.NoError(t, err)
	product, err := commerce.NewProduct(name, commerce.Quantity(stock), commerce.UnitPrice(price))
	require.NoError(t, err)
	return product
}

// MustTransfer builds a transfer record for tests.
func MustTransfer(t *testing.T, rawID string, ledgerID commerce.LedgerID, kind commerce.TransferKind, rawFrom string, rawTo string, amount int64, createdUnixUTC int64) commerce.Transfer {
	t.Helper()
	transferID, err := commerce.NewTransferID(rawID)
	require.NoError(t, err)
	from, err := commerce.NewCallerID(rawFrom)
	require.NoError(t, err)
	to, err := commerce.NewCallerID(rawTo)
	require.NoError(t, err)
	metadata, err := commerce.NewMetadataJSON(`{"id":"` + rawID + `"}`)
	require.NoError(t, err)
	transfer, err := commerce.NewTransfer(transferID, ledgerID, kind, from, to, commerce.Amount(amount), 0, 1, metadata, createdUnixUTC)
	require.NoError(t, err)
	return transfer
}

func testLedgerLifecycle(t *testing.T, store commerce.Store) {
	ctx := context.Background()
	ledger := MustLedger(t, "ledger-a", "owner-a")

	require.NoError(t, store.CreateLedger(ctx, ledger))
	require.ErrorIs(t, store.CreateLedger(ctx, ledger), commerce.ErrLedgerExists)

	loaded, err := store.GetLedger(ctx, ledger.LedgerID())
	require.NoError(t, err)
	require.Equal(t, ledger.OwnerID(), loaded.OwnerID())
	require.Equal(t, ledger.OwnerName(), loaded.OwnerName())
	require.Equal(t, ledger.CreatedUnixUTC(), loaded.CreatedUnixUTC())

	missing, err := commerce.NewLedgerID("ledger-missing")
	require.NoError(t, err)
	_, err = store.GetLedger(ctx, missing)
	require.ErrorIs(t, err, commerce.ErrUnknownLedger)
	_, err = store.ListProducts(ctx, missing)
	require.ErrorIs(t, err, commerce.ErrUnknownLedger)
}

func testProductCatalog(t *testing.T, store commerce.Store) {
	ctx := context.Background()
	ledger := MustLedger(t, "ledger-b", "owner-b")
	other := MustLedger(t, "ledger-c", "owner-c")
	require.NoError(t, store.CreateLedger(ctx, ledger))
	require.NoError(t, store.CreateLedger(ctx, other))

	first, err := store.AppendProduct(ctx, ledger.LedgerID(), MustProduct(t, "Cat", 20, 60))
	require.NoError(t, err)
	require.Equal(t, commerce.ProductIndex(0), first)
	second, err := store.AppendProduct(ctx, ledger.LedgerID(), MustProduct(t, "Fish", 40, 10))
	require.NoError(t, err)
	require.Equal(t, commerce.ProductIndex(1), second)
	otherIndex, err := store.AppendProduct(ctx, other.LedgerID(), MustProduct(t, "Dog", 1, 1))
	require.NoError(t, err)
	require.Equal(t, commerce.ProductIndex(0), otherIndex)

	buyer, err := commerce.NewCallerID("buyer-b")
	require.NoError(t, err)
	cat, err := store.GetProduct(ctx, ledger.LedgerID(), first)
	require.NoError(t, err)
	purchased, err := cat.Purchase(buyer, 5, 300)
	require.NoError(t, err)
	require.NoError(t, store.UpdateProduct(ctx, ledger.LedgerID(), first, purchased))

	reloaded, err := store.GetProduct(ctx, ledger.LedgerID(), first)
	require.NoError(t, err)
	require.Equal(t, commerce.Quantity(15), reloaded.Stock())
	require.Equal(t, commerce.Quantity(5), reloaded.TotalPurchased())
	record, refundable := reloaded.LastPurchase()
	require.True(t, refundable)
	require.Equal(t, buyer, record.Buyer())
	require.Equal(t, commerce.Amount(300), record.AmountPaid())

	products, err := store.ListProducts(ctx, ledger.LedgerID())
	require.NoError(t, err)
	require.Len(t, products, 2)
	require.Equal(t, "Cat", products[0].Name().String())
	require.Equal(t, "Fish", products[1].Name().String())
	_, refundable = products[1].LastPurchase()
	require.False(t, refundable)

	_, err = store.GetProduct(ctx, ledger.LedgerID(), 2)
	require.ErrorIs(t, err, commerce.ErrIndexOutOfRange)
	require.ErrorIs(t, store.UpdateProduct(ctx, ledger.LedgerID(), 9, purchased), commerce.ErrIndexOutOfRange)
}

func testTransfers(t *testing.T, store commerce.Store) {
	ctx := context.Background()
	ledger := MustLedger(t, "ledger-d", "owner-d")
	require.NoError(t, store.CreateLedger(ctx, ledger))
	ledgerID := ledger.LedgerID()

	require.NoError(t, store.InsertTransfer(ctx, MustTransfer(t, "t-1", ledgerID, commerce.TransferPurchase, "buyer-d", "owner-d", 300, 10)))
	require.NoError(t, store.InsertTransfer(ctx, MustTransfer(t, "t-2", ledgerID, commerce.TransferPurchase, "buyer-d", "owner-d", 120, 20)))
	require.NoError(t, store.InsertTransfer(ctx, MustTransfer(t, "t-3", ledgerID, commerce.TransferRefund, "owner-d", "buyer-d", 120, 30)))
	require.NoError(t, store.InsertTransfer(ctx, MustTransfer(t, "t-4", ledgerID, commerce.TransferPurchase, "someone", "owner-d", 7, 40)))

	buyer, err := commerce.NewCallerID("buyer-d")
	require.NoError(t, err)
	received, paid, err := store.SumTransfers(ctx, ledgerID, buyer)
	require.NoError(t, err)
	require.Equal(t, commerce.Amount(120), received)
	require.Equal(t, commerce.Amount(420), paid)

	transfers, err := store.ListTransfers(ctx, ledgerID, buyer, 1<<62, 10)
	require.NoError(t, err)
	require.Len(t, transfers, 3)
	require.Equal(t, "t-3", transfers[0].TransferID().String())
	require.Equal(t, commerce.TransferRefund, transfers[0].Kind())
	require.Equal(t, "t-1", transfers[2].TransferID().String())
	require.JSONEq(t, `{"id":"t-1"}`, transfers[2].MetadataJSON().String())

	paged, err := store.ListTransfers(ctx, ledgerID, buyer, 30, 1)
	require.NoError(t, err)
	require.Len(t, paged, 1)
	require.Equal(t, "t-2", paged[0].TransferID().String())
}

func testRollback(t *testing.T, store commerce.Store) {
	ctx := context.Background()
	ledger := MustLedger(t, "ledger-e", "owner-e")
	require.NoError(t, store.CreateLedger(ctx, ledger))
	ledgerID := ledger.LedgerID()

	err := store.WithTx(ctx, func(ctx context.Context, txStore commerce.Store) error {
		if _, err := txStore.GetLedger(ctx, ledgerID); err != nil {
			return err
		}
		if _, err := txStore.AppendProduct(ctx, ledgerID, MustProduct(t, "Ghost", 1, 1)); err != nil {
			return err
		}
		if err := txStore.InsertTransfer(ctx, MustTransfer(t, "t-ghost", ledgerID, commerce.TransferPurchase, "buyer-e", "owner-e", 1, 5)); err != nil {
			return err
		}
		return errAbort
	})
	require.ErrorIs(t, err, errAbort)

	products, err := store.ListProducts(ctx, ledgerID)
	require.NoError(t, err)
	require.Empty(t, products)
	owner, err := commerce.NewCallerID("owner-e")
	require.NoError(t, err)
	received, _, err := store.SumTransfers(ctx, ledgerID, owner)
	require.NoError(t, err)
	require.Zero(t, received)

	err = store.WithTx(ctx, func(ctx context.Context, txStore commerce.Store) error {
		_, err := txStore.AppendProduct(ctx, ledgerID, MustProduct(t, "Kept", 1, 1))
		return err
	})
	require.NoError(t, err)
	products, err = store.ListProducts(ctx, ledgerID)
	require.NoError(t, err)
	require.Len(t, products, 1)
}
