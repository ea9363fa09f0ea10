// Package commercev1 is the wire contract of commerce.v1.CommerceService.
// Messages travel as JSON through the codec registered in codec.go.
package commercev1

// DeployRequest creates a ledger owned by the calling identity.
type DeployRequest struct {
	OwnerName string `json:"owner_name"`
}

// DeployResponse returns the id of the new ledger.
type DeployResponse struct {
	LedgerID string `json:"ledger_id"`
}

// GetLedgerRequest names a ledger.
type GetLedgerRequest struct {
	LedgerID string `json:"ledger_id"`
}

// LedgerResponse describes a ledger owner record.
type LedgerResponse struct {
	LedgerID       string `json:"ledger_id"`
	OwnerName      string `json:"owner_name"`
	OwnerID        string `json:"owner_id"`
	CreatedUnixUTC int64  `json:"created_unix_utc"`
}

// AddProductRequest lists a new product.
type AddProductRequest struct {
	LedgerID     string `json:"ledger_id"`
	Name         string `json:"name"`
	InitialStock int64  `json:"initial_stock"`
	UnitPrice    int64  `json:"unit_price"`
}

// AddProductResponse returns the index of the new product.
type AddProductResponse struct {
	Index int64 `json:"index"`
}

// AddItemRequest adds stock to a product.
type AddItemRequest struct {
	LedgerID string `json:"ledger_id"`
	Index    int64  `json:"index"`
	Delta    int64  `json:"delta"`
}

// ChangePriceRequest shifts the unit price of a product.
type ChangePriceRequest struct {
	LedgerID string `json:"ledger_id"`
	Index    int64  `json:"index"`
	Delta    int64  `json:"delta"`
}

// PurchaseRequest buys units of a product with an attached payment.
type PurchaseRequest struct {
	LedgerID     string `json:"ledger_id"`
	Index        int64  `json:"index"`
	Quantity     int64  `json:"quantity"`
	Payment      int64  `json:"payment"`
	MetadataJSON string `json:"metadata_json,omitempty"`
}

// ProductRefundRequest reverses the last purchase of a product with an attached payment.
type ProductRefundRequest struct {
	LedgerID     string `json:"ledger_id"`
	Index        int64  `json:"index"`
	Payment      int64  `json:"payment"`
	MetadataJSON string `json:"metadata_json,omitempty"`
}

// GetProductRequest names one product.
type GetProductRequest struct {
	LedgerID string `json:"ledger_id"`
	Index    int64  `json:"index"`
}

// ProductResponse wraps a product snapshot.
type ProductResponse struct {
	Product *Product `json:"product"`
}

// ListProductsRequest names a ledger catalog.
type ListProductsRequest struct {
	LedgerID string `json:"ledger_id"`
}

// ListProductsResponse returns the catalog in index order.
type ListProductsResponse struct {
	Products []*Product `json:"products"`
}

// MostPopularProductRequest names a ledger.
type MostPopularProductRequest struct {
	LedgerID string `json:"ledger_id"`
}

// MostPopularProductResponse returns the best selling product.
type MostPopularProductResponse struct {
	Index          int64 `json:"index"`
	TotalPurchased int64 `json:"total_purchased"`
}

// GetBalanceRequest names a ledger; the caller comes from metadata.
type GetBalanceRequest struct {
	LedgerID string `json:"ledger_id"`
}

// BalanceResponse summarizes the caller's transfers.
type BalanceResponse struct {
	Received int64 `json:"received"`
	Paid     int64 `json:"paid"`
	Net      int64 `json:"net"`
}

// ListTransfersRequest pages through the caller's transfers.
type ListTransfersRequest struct {
	LedgerID      string `json:"ledger_id"`
	BeforeUnixUTC int64  `json:"before_unix_utc,omitempty"`
	Limit         int32  `json:"limit,omitempty"`
}

// ListTransfersResponse returns transfers newest first.
type ListTransfersResponse struct {
	Transfers []*Transfer `json:"transfers"`
}

// Product is a catalog entry.
type Product struct {
	Index          int64           `json:"index"`
	Name           string          `json:"name"`
	Stock          int64           `json:"stock"`
	UnitPrice      int64           `json:"unit_price"`
	TotalPurchased int64           `json:"total_purchased"`
	LastPurchase   *PurchaseRecord `json:"last_purchase,omitempty"`
}

// PurchaseRecord is the refundable purchase of a product.
type PurchaseRecord struct {
	Buyer      string `json:"buyer"`
	Quantity   int64  `json:"quantity"`
	AmountPaid int64  `json:"amount_paid"`
}

// Transfer is a recorded payment movement.
type Transfer struct {
	TransferID     string `json:"transfer_id"`
	LedgerID       string `json:"ledger_id"`
	Kind           string `json:"kind"`
	From           string `json:"from"`
	To             string `json:"to"`
	Amount         int64  `json:"amount"`
	ProductIndex   int64  `json:"product_index"`
	Quantity       int64  `json:"quantity"`
	MetadataJSON   string `json:"metadata_json"`
	CreatedUnixUTC int64  `json:"created_unix_utc"`
}
