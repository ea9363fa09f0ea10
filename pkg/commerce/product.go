package commerce

import "fmt"

// PurchaseRecord remembers the most recent refundable purchase of a product.
type PurchaseRecord struct {
	buyer      CallerID
	quantity   PositiveQuantity
	amountPaid Amount
}

// NewPurchaseRecord validates a purchase record.
func NewPurchaseRecord(buyer CallerID, quantity PositiveQuantity, amountPaid Amount) (PurchaseRecord, error) {
	if buyer.IsZero() {
		return PurchaseRecord{}, fmt.Errorf("%w: buyer is empty", ErrInvalidCallerID)
	}
	if quantity <= 0 {
		return PurchaseRecord{}, fmt.Errorf("%w: must be greater than zero", ErrInvalidQuantity)
	}
	if amountPaid < 0 {
		return PurchaseRecord{}, fmt.Errorf("%w: must not be negative", ErrInvalidAmount)
	}
	return PurchaseRecord{buyer: buyer, quantity: quantity, amountPaid: amountPaid}, nil
}

// Buyer returns the purchasing caller.
func (record PurchaseRecord) Buyer() CallerID {
	return record.buyer
}

// Quantity returns the purchased units.
func (record PurchaseRecord) Quantity() PositiveQuantity {
	return record.quantity
}

// AmountPaid returns the payment attached to the purchase.
func (record PurchaseRecord) AmountPaid() Amount {
	return record.amountPaid
}

// Product is an immutable snapshot of a catalog entry. State changes return a new value.
type Product struct {
	name           ProductName
	stock          Quantity
	unitPrice      UnitPrice
	totalPurchased Quantity
	lastPurchase   PurchaseRecord
	refundable     bool
}

// NewProduct builds a freshly listed product with no purchase history.
func NewProduct(name ProductName, stock Quantity, unitPrice UnitPrice) (Product, error) {
	return RestoreProduct(name, stock, unitPrice, 0, nil)
}

// RestoreProduct rebuilds a product from persisted state.
func RestoreProduct(name ProductName, stock Quantity, unitPrice UnitPrice, totalPurchased Quantity, lastPurchase *PurchaseRecord) (Product, error) {
	if name.String() == "" {
		return Product{}, fmt.Errorf("%w: empty value", ErrInvalidProductName)
	}
	if stock < 0 || totalPurchased < 0 {
		return Product{}, fmt.Errorf("%w: must not be negative", ErrInvalidQuantity)
	}
	if unitPrice < 0 {
		return Product{}, fmt.Errorf("%w: must not be negative", ErrInvalidPrice)
	}
	product := Product{
		name:           name,
		stock:          stock,
		unitPrice:      unitPrice,
		totalPurchased: totalPurchased,
	}
	if lastPurchase != nil {
		product.lastPurchase = *lastPurchase
		product.refundable = true
	}
	return product, nil
}

// Name returns the product name.
func (product Product) Name() ProductName {
	return product.name
}

// Stock returns the units available for purchase.
func (product Product) Stock() Quantity {
	return product.stock
}

// UnitPrice returns the current unit price.
func (product Product) UnitPrice() UnitPrice {
	return product.unitPrice
}

// TotalPurchased returns units sold net of refunds.
func (product Product) TotalPurchased() Quantity {
	return product.totalPurchased
}

// LastPurchase returns the refundable purchase, if any.
func (product Product) LastPurchase() (PurchaseRecord, bool) {
	return product.lastPurchase, product.refundable
}

// Restock adds delta units to the stock.
func (product Product) Restock(delta Quantity) (Product, error) {
	stock, ok := addChecked(product.stock.Int64(), delta.Int64())
	if !ok {
		return Product{}, fmt.Errorf("%w: stock", ErrArithmeticOverflow)
	}
	product.stock = Quantity(stock)
	return product, nil
}

// Reprice shifts the unit price by delta. A result below zero is rejected.
func (product Product) Reprice(delta PriceDelta) (Product, error) {
	price, ok := addChecked(product.unitPrice.Int64(), delta.Int64())
	if !ok {
		return Product{}, fmt.Errorf("%w: unit price", ErrArithmeticOverflow)
	}
	if price < 0 {
		return Product{}, fmt.Errorf("%w: price %d below zero", ErrInvalidPrice, price)
	}
	product.unitPrice = UnitPrice(price)
	return product, nil
}

// Purchase sells quantity units to buyer for payment, replacing any previous refundable purchase.
func (product Product) Purchase(buyer CallerID, quantity PositiveQuantity, payment Amount) (Product, error) {
	if quantity.ToQuantity() > product.stock {
		return Product{}, fmt.Errorf("%w: requested %d, available %d", ErrInsufficientStock, quantity, product.stock)
	}
	cost, ok := PurchaseCost(quantity, product.unitPrice)
	if !ok {
		return Product{}, fmt.Errorf("%w: purchase cost", ErrArithmeticOverflow)
	}
	if payment < cost {
		return Product{}, fmt.Errorf("%w: paid %d, cost %d", ErrInsufficientPayment, payment, cost)
	}
	totalPurchased, ok := addChecked(product.totalPurchased.Int64(), quantity.Int64())
	if !ok {
		return Product{}, fmt.Errorf("%w: total purchased", ErrArithmeticOverflow)
	}
	record, err := NewPurchaseRecord(buyer, quantity, payment)
	if err != nil {
		return Product{}, err
	}
	product.stock -= quantity.ToQuantity()
	product.totalPurchased = Quantity(totalPurchased)
	product.lastPurchase = record
	product.refundable = true
	return product, nil
}

// Refund reverses the last purchase. payment must cover the recorded amount paid.
func (product Product) Refund(payment Amount) (Product, PurchaseRecord, error) {
	if !product.refundable {
		return Product{}, PurchaseRecord{}, ErrNothingToRefund
	}
	record := product.lastPurchase
	if payment < record.AmountPaid() {
		return Product{}, PurchaseRecord{}, fmt.Errorf("%w: refund %d, paid %d", ErrInsufficientPayment, payment, record.AmountPaid())
	}
	if product.totalPurchased < record.Quantity().ToQuantity() {
		return Product{}, PurchaseRecord{}, fmt.Errorf("%w: total purchased below refunded quantity", ErrInconsistentState)
	}
	stock, ok := addChecked(product.stock.Int64(), record.Quantity().Int64())
	if !ok {
		return Product{}, PurchaseRecord{}, fmt.Errorf("%w: stock", ErrArithmeticOverflow)
	}
	product.stock = Quantity(stock)
	product.totalPurchased -= record.Quantity().ToQuantity()
	product.lastPurchase = PurchaseRecord{}
	product.refundable = false
	return product, record, nil
}
