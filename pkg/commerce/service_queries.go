package commerce

import (
	"context"
	"fmt"
	"math"
)

// Ledger returns the owner record of a ledger.
func (service *Service) Ledger(ctx context.Context, ledgerID LedgerID) (Ledger, error) {
	return service.store.GetLedger(ctx, ledgerID)
}

// Product returns the full record of the product at index.
func (service *Service) Product(ctx context.Context, ledgerID LedgerID, index ProductIndex) (Product, error) {
	return service.store.GetProduct(ctx, ledgerID, index)
}

// Products returns the catalog in index order.
func (service *Service) Products(ctx context.Context, ledgerID LedgerID) ([]Product, error) {
	return service.store.ListProducts(ctx, ledgerID)
}

// MostPopularProduct returns the first product with the highest total purchased.
// An empty or never-purchased catalog yields index 0 with a total of 0.
func (service *Service) MostPopularProduct(ctx context.Context, ledgerID LedgerID) (Popularity, error) {
	products, err := service.store.ListProducts(ctx, ledgerID)
	if err != nil {
		return Popularity{}, err
	}
	return mostPopular(products), nil
}

// Balance sums the transfers the caller received and paid within a ledger.
func (service *Service) Balance(ctx context.Context, ledgerID LedgerID, caller CallerID) (Balance, error) {
	if _, err := service.store.GetLedger(ctx, ledgerID); err != nil {
		return Balance{}, err
	}
	received, paid, err := service.store.SumTransfers(ctx, ledgerID, caller)
	if err != nil {
		return Balance{}, err
	}
	net, ok := addChecked(received.Int64(), -paid.Int64())
	if !ok {
		return Balance{}, fmt.Errorf("%w: net balance", ErrArithmeticOverflow)
	}
	return Balance{
		Received: received,
		Paid:     paid,
		Net:      SignedAmount(net),
	}, nil
}

// ListTransfers lists transfers the caller sent or received, newest first, created before the cutoff.
// A non-positive cutoff lists from the newest transfer.
func (service *Service) ListTransfers(ctx context.Context, ledgerID LedgerID, caller CallerID, beforeUnixUTC int64, limit int) ([]Transfer, error) {
	if _, err := service.store.GetLedger(ctx, ledgerID); err != nil {
		return nil, err
	}
	if beforeUnixUTC <= 0 {
		beforeUnixUTC = math.MaxInt64
	}
	return service.store.ListTransfers(ctx, ledgerID, caller, beforeUnixUTC, normalizeTransfersLimit(limit))
}

func mostPopular(products []Product) Popularity {
	popularity := Popularity{}
	for position, product := range products {
		if product.TotalPurchased() > popularity.TotalPurchased {
			popularity = Popularity{Index: ProductIndex(position), TotalPurchased: product.TotalPurchased()}
		}
	}
	return popularity
}

func normalizeTransfersLimit(limit int) int {
	if limit <= 0 {
		return defaultListTransfersLimit
	}
	if limit > maxListTransfersLimit {
		return maxListTransfersLimit
	}
	return limit
}
