package commerce

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// CallerID identifies the account that initiated an operation.
type CallerID struct {
	value string
}

// LedgerID identifies a deployed ledger.
type LedgerID struct {
	value string
}

// TransferID identifies a recorded payment movement.
type TransferID struct {
	value string
}

// ProductName is the immutable display name of a product.
type ProductName struct {
	value string
}

// MetadataJSON stores arbitrary request metadata.
type MetadataJSON struct {
	value string
}

// ProductIndex is the insertion-order position of a product in its ledger.
type ProductIndex int64

// Quantity counts product units; never negative.
type Quantity int64

// PositiveQuantity is a unit count of at least one.
type PositiveQuantity int64

// UnitPrice is the current price per unit in minimal currency units.
type UnitPrice int64

// PriceDelta is a signed adjustment applied to a unit price.
type PriceDelta int64

// Amount is a non-negative payment in minimal currency units.
type Amount int64

// SignedAmount is a payment total that may be negative.
type SignedAmount int64

// NewCallerID validates and normalizes a caller identity.
func NewCallerID(raw string) (CallerID, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return CallerID{}, fmt.Errorf("%w: empty value", ErrInvalidCallerID)
	}
	return CallerID{value: trimmed}, nil
}

// String returns the normalized identifier.
func (id CallerID) String() string {
	return id.value
}

// IsZero reports whether the identifier was never set.
func (id CallerID) IsZero() bool {
	return id.value == ""
}

// NewLedgerID validates and normalizes a ledger id.
func NewLedgerID(raw string) (LedgerID, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return LedgerID{}, fmt.Errorf("%w: empty value", ErrInvalidLedgerID)
	}
	return LedgerID{value: trimmed}, nil
}

// String returns the normalized identifier.
func (id LedgerID) String() string {
	return id.value
}

// NewTransferID validates and normalizes a transfer id.
func NewTransferID(raw string) (TransferID, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return TransferID{}, fmt.Errorf("%w: empty value", ErrInvalidTransferID)
	}
	return TransferID{value: trimmed}, nil
}

// String returns the normalized identifier.
func (id TransferID) String() string {
	return id.value
}

// NewProductName validates and normalizes a product name.
func NewProductName(raw string) (ProductName, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ProductName{}, fmt.Errorf("%w: empty value", ErrInvalidProductName)
	}
	return ProductName{value: trimmed}, nil
}

// String returns the normalized name.
func (name ProductName) String() string {
	return name.value
}

// NewMetadataJSON validates metadata string (defaulting to "{}" for empty inputs).
func NewMetadataJSON(raw string) (MetadataJSON, error) {
	normalized := strings.TrimSpace(raw)
	if normalized == "" {
		normalized = "{}"
	}
	if !json.Valid([]byte(normalized)) {
		return MetadataJSON{}, fmt.Errorf("%w: must be valid json", ErrInvalidMetadataJSON)
	}
	return MetadataJSON{value: normalized}, nil
}

// String returns the normalized JSON blob.
func (metadata MetadataJSON) String() string {
	if metadata.value == "" {
		return "{}"
	}
	return metadata.value
}

// NewProductIndex validates a product index; negative values can never reference a product.
func NewProductIndex(raw int64) (ProductIndex, error) {
	if raw < 0 {
		return 0, fmt.Errorf("%w: negative index %d", ErrIndexOutOfRange, raw)
	}
	return ProductIndex(raw), nil
}

// Int64 exposes the raw index.
func (index ProductIndex) Int64() int64 {
	return int64(index)
}

// NewQuantity validates a unit count that may be zero.
func NewQuantity(raw int64) (Quantity, error) {
	if raw < 0 {
		return 0, fmt.Errorf("%w: must not be negative", ErrInvalidQuantity)
	}
	return Quantity(raw), nil
}

// Int64 exposes the raw count.
func (quantity Quantity) Int64() int64 {
	return int64(quantity)
}

// NewPositiveQuantity validates a unit count of at least one.
func NewPositiveQuantity(raw int64) (PositiveQuantity, error) {
	if raw <= 0 {
		return 0, fmt.Errorf("%w: must be greater than zero", ErrInvalidQuantity)
	}
	return PositiveQuantity(raw), nil
}

// Int64 exposes the raw count.
func (quantity PositiveQuantity) Int64() int64 {
	return int64(quantity)
}

// ToQuantity widens the positive count.
func (quantity PositiveQuantity) ToQuantity() Quantity {
	return Quantity(quantity)
}

// NewUnitPrice validates a unit price.
func NewUnitPrice(raw int64) (UnitPrice, error) {
	if raw < 0 {
		return 0, fmt.Errorf("%w: must not be negative", ErrInvalidPrice)
	}
	return UnitPrice(raw), nil
}

// Int64 exposes the raw price.
func (price UnitPrice) Int64() int64 {
	return int64(price)
}

// NewPriceDelta wraps a signed price adjustment.
func NewPriceDelta(raw int64) PriceDelta {
	return PriceDelta(raw)
}

// Int64 exposes the raw delta.
func (delta PriceDelta) Int64() int64 {
	return int64(delta)
}

// NewAmount validates a payment amount.
func NewAmount(raw int64) (Amount, error) {
	if raw < 0 {
		return 0, fmt.Errorf("%w: must not be negative", ErrInvalidAmount)
	}
	return Amount(raw), nil
}

// Int64 exposes the raw amount.
func (amount Amount) Int64() int64 {
	return int64(amount)
}

// Int64 exposes the raw amount.
func (amount SignedAmount) Int64() int64 {
	return int64(amount)
}

// PurchaseCost multiplies quantity by price, reporting false when the result overflows.
func PurchaseCost(quantity PositiveQuantity, price UnitPrice) (Amount, bool) {
	if price == 0 {
		return 0, true
	}
	if quantity.Int64() > math.MaxInt64/price.Int64() {
		return 0, false
	}
	return Amount(quantity.Int64() * price.Int64()), true
}

func addChecked(left int64, right int64) (int64, bool) {
	if right > 0 && left > math.MaxInt64-right {
		return 0, false
	}
	if right < 0 && left < math.MinInt64-right {
		return 0, false
	}
	return left + right, true
}

// TransferKind enumerates the payment movements a ledger performs.
type TransferKind string

const (
	TransferPurchase TransferKind = "purchase"
	TransferRefund   TransferKind = "refund"
)

// ParseTransferKind validates a stored transfer kind.
func ParseTransferKind(raw string) (TransferKind, error) {
	switch TransferKind(strings.TrimSpace(raw)) {
	case TransferPurchase:
		return TransferPurchase, nil
	case TransferRefund:
		return TransferRefund, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidTransferKind, raw)
	}
}

// String returns the stored representation.
func (kind TransferKind) String() string {
	return string(kind)
}

// Ledger is the owner record of a deployed ledger.
type Ledger struct {
	ledgerID       LedgerID
	ownerName      string
	ownerID        CallerID
	createdUnixUTC int64
}

// NewLedger validates a ledger record.
func NewLedger(ledgerID LedgerID, ownerName string, ownerID CallerID, createdUnixUTC int64) (Ledger, error) {
	if ledgerID.String() == "" {
		return Ledger{}, fmt.Errorf("%w: empty value", ErrInvalidLedgerID)
	}
	if ownerID.IsZero() {
		return Ledger{}, fmt.Errorf("%w: owner is empty", ErrInvalidCallerID)
	}
	return Ledger{
		ledgerID:       ledgerID,
		ownerName:      ownerName,
		ownerID:        ownerID,
		createdUnixUTC: createdUnixUTC,
	}, nil
}

// LedgerID returns the ledger identifier.
func (ledger Ledger) LedgerID() LedgerID {
	return ledger.ledgerID
}

// OwnerName returns the name supplied at deployment.
func (ledger Ledger) OwnerName() string {
	return ledger.ownerName
}

// OwnerID returns the deployer identity.
func (ledger Ledger) OwnerID() CallerID {
	return ledger.ownerID
}

// CreatedUnixUTC returns the deployment time.
func (ledger Ledger) CreatedUnixUTC() int64 {
	return ledger.createdUnixUTC
}

// IsOwner reports whether caller holds the owner identity.
func (ledger Ledger) IsOwner(caller CallerID) bool {
	return !caller.IsZero() && caller == ledger.ownerID
}

// Transfer is a single immutable payment movement.
type Transfer struct {
	transferID     TransferID
	ledgerID       LedgerID
	kind           TransferKind
	from           CallerID
	to             CallerID
	amount         Amount
	productIndex   ProductIndex
	quantity       PositiveQuantity
	metadata       MetadataJSON
	createdUnixUTC int64
}

// NewTransfer validates a transfer record.
func NewTransfer(transferID TransferID, ledgerID LedgerID, kind TransferKind, from CallerID, to CallerID, amount Amount, productIndex ProductIndex, quantity PositiveQuantity, metadata MetadataJSON, createdUnixUTC int64) (Transfer, error) {
	if transferID.String() == "" {
		return Transfer{}, fmt.Errorf("%w: empty value", ErrInvalidTransferID)
	}
	if ledgerID.String() == "" {
		return Transfer{}, fmt.Errorf("%w: empty value", ErrInvalidLedgerID)
	}
	if _, err := ParseTransferKind(kind.String()); err != nil {
		return Transfer{}, err
	}
	if from.IsZero() || to.IsZero() {
		return Transfer{}, fmt.Errorf("%w: transfer party is empty", ErrInvalidCallerID)
	}
	if amount < 0 {
		return Transfer{}, fmt.Errorf("%w: must not be negative", ErrInvalidAmount)
	}
	if productIndex < 0 {
		return Transfer{}, fmt.Errorf("%w: negative index %d", ErrIndexOutOfRange, productIndex)
	}
	if quantity <= 0 {
		return Transfer{}, fmt.Errorf("%w: must be greater than zero", ErrInvalidQuantity)
	}
	return Transfer{
		transferID:     transferID,
		ledgerID:       ledgerID,
		kind:           kind,
		from:           from,
		to:             to,
		amount:         amount,
		productIndex:   productIndex,
		quantity:       quantity,
		metadata:       metadata,
		createdUnixUTC: createdUnixUTC,
	}, nil
}

// TransferID returns the transfer identifier.
func (transfer Transfer) TransferID() TransferID {
	return transfer.transferID
}

// LedgerID returns the owning ledger.
func (transfer Transfer) LedgerID() LedgerID {
	return transfer.ledgerID
}

// Kind returns whether the transfer paid for or refunded a purchase.
func (transfer Transfer) Kind() TransferKind {
	return transfer.kind
}

// From returns the paying party.
func (transfer Transfer) From() CallerID {
	return transfer.from
}

// To returns the receiving party.
func (transfer Transfer) To() CallerID {
	return transfer.to
}

// Amount returns the moved amount.
func (transfer Transfer) Amount() Amount {
	return transfer.amount
}

// ProductIndex returns the product the transfer settled.
func (transfer Transfer) ProductIndex() ProductIndex {
	return transfer.productIndex
}

// Quantity returns the units the transfer settled.
func (transfer Transfer) Quantity() PositiveQuantity {
	return transfer.quantity
}

// MetadataJSON returns the request metadata.
func (transfer Transfer) MetadataJSON() MetadataJSON {
	return transfer.metadata
}

// CreatedUnixUTC returns the transfer time.
func (transfer Transfer) CreatedUnixUTC() int64 {
	return transfer.createdUnixUTC
}

// Popularity is the answer of the most-popular-product query.
type Popularity struct {
	Index          ProductIndex
	TotalPurchased Quantity
}

// Balance summarizes the transfers a caller took part in within one ledger.
type Balance struct {
	Received Amount
	Paid     Amount
	Net      SignedAmount
}

// Store is the persistence contract used by Service.
type Store interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, txStore Store) error) error
	CreateLedger(ctx context.Context, ledger Ledger) error
	GetLedger(ctx context.Context, ledgerID LedgerID) (Ledger, error)
	AppendProduct(ctx context.Context, ledgerID LedgerID, product Product) (ProductIndex, error)
	GetProduct(ctx context.Context, ledgerID LedgerID, index ProductIndex) (Product, error)
	UpdateProduct(ctx context.Context, ledgerID LedgerID, index ProductIndex, product Product) error
	ListProducts(ctx context.Context, ledgerID LedgerID) ([]Product, error)
	InsertTransfer(ctx context.Context, transfer Transfer) error
	SumTransfers(ctx context.Context, ledgerID LedgerID, caller CallerID) (received Amount, paid Amount, err error)
	ListTransfers(ctx context.Context, ledgerID LedgerID, caller CallerID, beforeUnixUTC int64, limit int) ([]Transfer, error)
}
