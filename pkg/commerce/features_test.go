package commerce_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/cucumber/godog"

	"github.com/MarkoPoloResearchLab/commerce/internal/store/memstore"
	"github.com/MarkoPoloResearchLab/commerce/pkg/commerce"
)

const featureClockUnix int64 = 1700000000

var featureErrors = map[string]error{
	"unauthorized":         commerce.ErrUnauthorized,
	"index out of range":   commerce.ErrIndexOutOfRange,
	"insufficient stock":   commerce.ErrInsufficientStock,
	"insufficient payment": commerce.ErrInsufficientPayment,
	"invalid price":        commerce.ErrInvalidPrice,
	"nothing to refund":    commerce.ErrNothingToRefund,
}

type commerceTestContext struct {
	service  *commerce.Service
	ledgerID commerce.LedgerID
	err      error
}

func (c *commerceTestContext) reset() error {
	service, err := commerce.NewService(memstore.New(), func() int64 { return featureClockUnix })
	if err != nil {
		return err
	}
	c.service = service
	c.ledgerID = commerce.LedgerID{}
	c.err = nil
	return nil
}

func (c *commerceTestContext) aLedgerDeployedByNamed(owner string, ownerName string) error {
	caller, err := commerce.NewCallerID(owner)
	if err != nil {
		return err
	}
	ledgerID, err := c.service.Deploy(context.Background(), caller, ownerName)
	if err != nil {
		return err
	}
	c.ledgerID = ledgerID
	return nil
}

func (c *commerceTestContext) addsProductWithStockAndPrice(who string, name string, stock int64, price int64) error {
	caller, err := commerce.NewCallerID(who)
	if err != nil {
		return err
	}
	productName, err := commerce.NewProductName(name)
	if err != nil {
		return err
	}
	initialStock, err := commerce.NewQuantity(stock)
	if err != nil {
		return err
	}
	unitPrice, err := commerce.NewUnitPrice(price)
	if err != nil {
		return err
	}
	_, c.err = c.service.AddProduct(context.Background(), c.ledgerID, caller, productName, initialStock, unitPrice)
	return nil
}

func (c *commerceTestContext) addsItemsToProduct(who string, delta int64, index int64) error {
	caller, err := commerce.NewCallerID(who)
	if err != nil {
		return err
	}
	quantity, err := commerce.NewQuantity(delta)
	if err != nil {
		return err
	}
	_, c.err = c.service.AddItem(context.Background(), c.ledgerID, caller, commerce.ProductIndex(index), quantity)
	return nil
}

func (c *commerceTestContext) changesThePriceOfProductBy(who string, index int64, delta int64) error {
	caller, err := commerce.NewCallerID(who)
	if err != nil {
		return err
	}
	_, c.err = c.service.ChangePrice(context.Background(), c.ledgerID, caller, commerce.ProductIndex(index), commerce.NewPriceDelta(delta))
	return nil
}

func (c *commerceTestContext) buysOfProductPaying(who string, quantity int64, index int64, payment int64) error {
	caller, err := commerce.NewCallerID(who)
	if err != nil {
		return err
	}
	purchaseQuantity, err := commerce.NewPositiveQuantity(quantity)
	if err != nil {
		return err
	}
	amount, err := commerce.NewAmount(payment)
	if err != nil {
		return err
	}
	metadata, err := commerce.NewMetadataJSON("")
	if err != nil {
		return err
	}
	_, c.err = c.service.Purchase(context.Background(), c.ledgerID, caller, commerce.ProductIndex(index), purchaseQuantity, amount, metadata)
	return nil
}

func (c *commerceTestContext) refundsProductPaying(who string, index int64, payment int64) error {
	caller, err := commerce.NewCallerID(who)
	if err != nil {
		return err
	}
	amount, err := commerce.NewAmount(payment)
	if err != nil {
		return err
	}
	metadata, err := commerce.NewMetadataJSON("")
	if err != nil {
		return err
	}
	_, c.err = c.service.ProductRefund(context.Background(), c.ledgerID, caller, commerce.ProductIndex(index), amount, metadata)
	return nil
}

func (c *commerceTestContext) theOperationFailsWith(kind string) error {
	expected, ok := featureErrors[kind]
	if !ok {
		return fmt.Errorf("unknown error kind %q", kind)
	}
	if !errors.Is(c.err, expected) {
		return fmt.Errorf("expected %v, got %v", expected, c.err)
	}
	c.err = nil
	return nil
}

// product loads a product after making sure no earlier operation failed unexpectedly.
func (c *commerceTestContext) product(index int64) (commerce.Product, error) {
	if c.err != nil {
		return commerce.Product{}, fmt.Errorf("unexpected operation error: %w", c.err)
	}
	return c.service.Product(context.Background(), c.ledgerID, commerce.ProductIndex(index))
}

func (c *commerceTestContext) productIsWithStockAndPrice(index int64, name string, stock int64, price int64) error {
	product, err := c.product(index)
	if err != nil {
		return err
	}
	if product.Name().String() != name || product.Stock().Int64() != stock || product.UnitPrice().Int64() != price {
		return fmt.Errorf("expected {%s %d %d}, got {%s %d %d}", name, stock, price, product.Name(), product.Stock(), product.UnitPrice())
	}
	return nil
}

func (c *commerceTestContext) productHasStock(index int64, stock int64) error {
	product, err := c.product(index)
	if err != nil {
		return err
	}
	if product.Stock().Int64() != stock {
		return fmt.Errorf("expected stock %d, got %d", stock, product.Stock())
	}
	return nil
}

func (c *commerceTestContext) productHasPrice(index int64, price int64) error {
	product, err := c.product(index)
	if err != nil {
		return err
	}
	if product.UnitPrice().Int64() != price {
		return fmt.Errorf("expected price %d, got %d", price, product.UnitPrice())
	}
	return nil
}

func (c *commerceTestContext) productHasTotalPurchased(index int64, total int64) error {
	product, err := c.product(index)
	if err != nil {
		return err
	}
	if product.TotalPurchased().Int64() != total {
		return fmt.Errorf("expected total purchased %d, got %d", total, product.TotalPurchased())
	}
	return nil
}

func (c *commerceTestContext) theMostPopularProductIsWithPurchased(index int64, total int64) error {
	if c.err != nil {
		return fmt.Errorf("unexpected operation error: %w", c.err)
	}
	popularity, err := c.service.MostPopularProduct(context.Background(), c.ledgerID)
	if err != nil {
		return err
	}
	if popularity.Index.Int64() != index || popularity.TotalPurchased.Int64() != total {
		return fmt.Errorf("expected (%d, %d), got (%d, %d)", index, total, popularity.Index, popularity.TotalPurchased)
	}
	return nil
}

func (c *commerceTestContext) theNetBalanceOfIs(who string, net int64) error {
	if c.err != nil {
		return fmt.Errorf("unexpected operation error: %w", c.err)
	}
	caller, err := commerce.NewCallerID(who)
	if err != nil {
		return err
	}
	balance, err := c.service.Balance(context.Background(), c.ledgerID, caller)
	if err != nil {
		return err
	}
	if balance.Net.Int64() != net {
		return fmt.Errorf("expected net balance %d for %s, got %d", net, who, balance.Net)
	}
	return nil
}

func (c *commerceTestContext) theLedgerIsOwnedByNamed(owner string, ownerName string) error {
	ledger, err := c.service.Ledger(context.Background(), c.ledgerID)
	if err != nil {
		return err
	}
	if ledger.OwnerID().String() != owner || ledger.OwnerName() != ownerName {
		return fmt.Errorf("expected owner %s (%s), got %s (%s)", owner, ownerName, ledger.OwnerID(), ledger.OwnerName())
	}
	return nil
}

func InitializeScenario(ctx *godog.ScenarioContext) {
	tc := &commerceTestContext{}

	ctx.Before(func(ctx context.Context, sc *godog.Scenario) (context.Context, error) {
		return ctx, tc.reset()
	})

	// Given steps
	ctx.Step(`^a ledger deployed by "([^"]*)" named "([^"]*)"$`, tc.aLedgerDeployedByNamed)

	// When steps
	ctx.Step(`^"([^"]*)" adds product "([^"]*)" with stock (\d+) and price (\d+)$`, tc.addsProductWithStockAndPrice)
	ctx.Step(`^"([^"]*)" adds (\d+) items to product (\d+)$`, tc.addsItemsToProduct)
	ctx.Step(`^"([^"]*)" changes the price of product (\d+) by (-?\d+)$`, tc.changesThePriceOfProductBy)
	ctx.Step(`^"([^"]*)" buys (\d+) of product (\d+) paying (\d+)$`, tc.buysOfProductPaying)
	ctx.Step(`^"([^"]*)" refunds product (\d+) paying (\d+)$`, tc.refundsProductPaying)

	// Then steps
	ctx.Step(`^the operation fails with "([^"]*)"$`, tc.theOperationFailsWith)
	ctx.Step(`^product (\d+) is "([^"]*)" with stock (\d+) and price (\d+)$`, tc.productIsWithStockAndPrice)
	ctx.Step(`^product (\d+) has stock (\d+)$`, tc.productHasStock)
	ctx.Step(`^product (\d+) has price (\d+)$`, tc.productHasPrice)
	ctx.Step(`^product (\d+) has total purchased (\d+)$`, tc.productHasTotalPurchased)
	ctx.Step(`^the most popular product is (\d+) with (\d+) purchased$`, tc.theMostPopularProductIsWithPurchased)
	ctx.Step(`^the net balance of "([^"]*)" is (-?\d+)$`, tc.theNetBalanceOfIs)
	ctx.Step(`^the ledger is owned by "([^"]*)" named "([^"]*)"$`, tc.theLedgerIsOwnedByNamed)
}

func TestFeatures(t *testing.T) {
	suite := godog.TestSuite{
		ScenarioInitializer: InitializeScenario,
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"features/commerce.feature"},
			TestingT: t,
		},
	}

	if suite.Run() != 0 {
		t.Fatal("non-zero status returned, failed to run feature tests")
	}
}
