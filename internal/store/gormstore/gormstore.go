// Package gormstore persists commerce ledgers through GORM on SQLite or PostgreSQL.
package gormstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	gosqlite "github.com/glebarez/go-sqlite"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/MarkoPoloResearchLab/commerce/pkg/commerce"
)

const (
	defaultMetadataJSON   = "{}"
	pgUniqueViolationCode = "23505"
	sqliteConstraintCode  = 19
	errorOperationStore   = "store"
	errorSubjectLedger    = "ledger"
	errorSubjectProduct   = "product"
	errorSubjectTransfer  = "transfer"
	errorSubjectSchema    = "schema"
	errorCodeCreate       = "create"
	errorCodeDuplicate    = "duplicate"
	errorCodeGet          = "get"
	errorCodeInsert       = "insert"
	errorCodeInvalid      = "invalid"
	errorCodeList         = "list"
	errorCodeMigrate      = "migrate"
	errorCodeSum          = "sum"
	errorCodeUpdate       = "update"
)

// Store implements commerce.Store using GORM.
type Store struct {
	db   *gorm.DB
	inTx bool
}

// New returns a Store backed by gorm.DB.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Migrate creates or updates the tables the store needs.
func (store *Store) Migrate(ctx context.Context) error {
	if err := store.db.WithContext(ctx).AutoMigrate(&Ledger{}, &Product{}, &Transfer{}); err != nil {
		return wrapStoreError(errorSubjectSchema, errorCodeMigrate, err)
	}
	return nil
}

// WithTx executes fn within a transaction.
func (store *Store) WithTx(ctx context.Context, fn func(ctx context.Context, txStore commerce.Store) error) error {
	if store.inTx {
		return fn(ctx, store)
	}
	return store.db.WithContext(ctx).Transaction(func(transaction *gorm.DB) error {
		return fn(ctx, &Store{db: transaction, inTx: true})
	})
}

// CreateLedger inserts a ledger row.
func (store *Store) CreateLedger(ctx context.Context, ledger commerce.Ledger) error {
	model := Ledger{
		LedgerID:  ledger.LedgerID().String(),
		OwnerName: ledger.OwnerName(),
		OwnerID:   ledger.OwnerID().String(),
		CreatedAt: time.Unix(ledger.CreatedUnixUTC(), 0).UTC(),
	}
	err := store.db.WithContext(ctx).Create(&model).Error
	if isUniqueViolation(err) {
		return wrapStoreError(errorSubjectLedger, errorCodeDuplicate, commerce.ErrLedgerExists)
	}
	if err != nil {
		return wrapStoreError(errorSubjectLedger, errorCodeCreate, err)
	}
	return nil
}

// GetLedger loads a ledger, locking its row when called inside a transaction.
func (store *Store) GetLedger(ctx context.Context, ledgerID commerce.LedgerID) (commerce.Ledger, error) {
	query := store.db.WithContext(ctx)
	if store.inTx {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var model Ledger
	err := query.Where("ledger_id = ?", ledgerID.String()).Take(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return commerce.Ledger{}, wrapStoreError(errorSubjectLedger, errorCodeGet, commerce.ErrUnknownLedger)
		}
		return commerce.Ledger{}, wrapStoreError(errorSubjectLedger, errorCodeGet, err)
	}
	ledger, err := mapLedger(model)
	if err != nil {
		return commerce.Ledger{}, wrapStoreError(errorSubjectLedger, errorCodeInvalid, err)
	}
	return ledger, nil
}

// AppendProduct inserts a product at the next free index.
func (store *Store) AppendProduct(ctx context.Context, ledgerID commerce.LedgerID, product commerce.Product) (commerce.ProductIndex, error) {
	if err := store.requireLedger(ctx, ledgerID); err != nil {
		return 0, err
	}
	var count int64
	err := store.db.WithContext(ctx).
		Model(&Product{}).
		Where("ledger_id = ?", ledgerID.String()).
		Count(&count).Error
	if err != nil {
		return 0, wrapStoreError(errorSubjectProduct, errorCodeInsert, err)
	}
	model := productModel(ledgerID, commerce.ProductIndex(count), product)
	if err := store.db.WithContext(ctx).Create(&model).Error; err != nil {
		return 0, wrapStoreError(errorSubjectProduct, errorCodeInsert, err)
	}
	return commerce.ProductIndex(count), nil
}

// GetProduct loads the product at index.
func (store *Store) GetProduct(ctx context.Context, ledgerID commerce.LedgerID, index commerce.ProductIndex) (commerce.Product, error) {
	var model Product
	err := store.db.WithContext(ctx).
		Where("ledger_id = ? AND product_index = ?", ledgerID.String(), index.Int64()).
		Take(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			if ledgerErr := store.requireLedger(ctx, ledgerID); ledgerErr != nil {
				return commerce.Product{}, ledgerErr
			}
			return commerce.Product{}, wrapStoreError(errorSubjectProduct, errorCodeGet, fmt.Errorf("%w: %d", commerce.ErrIndexOutOfRange, index))
		}
		return commerce.Product{}, wrapStoreError(errorSubjectProduct, errorCodeGet, err)
	}
	product, err := mapProduct(model)
	if err != nil {
		return commerce.Product{}, wrapStoreError(errorSubjectProduct, errorCodeInvalid, err)
	}
	return product, nil
}

// UpdateProduct overwrites the mutable columns of the product at index.
func (store *Store) UpdateProduct(ctx context.Context, ledgerID commerce.LedgerID, index commerce.ProductIndex, product commerce.Product) error {
	model := productModel(ledgerID, index, product)
	result := store.db.WithContext(ctx).
		Model(&Product{}).
		Where("ledger_id = ? AND product_index = ?", ledgerID.String(), index.Int64()).
		Updates(map[string]interface{}{
			"stock":            model.Stock,
			"unit_price":       model.UnitPrice,
			"total_purchased":  model.TotalPurchased,
			"last_buyer":       model.LastBuyer,
			"last_quantity":    model.LastQuantity,
			"last_amount_paid": model.LastAmountPaid,
			"updated_at":       model.UpdatedAt,
		})
	if result.Error != nil {
		return wrapStoreError(errorSubjectProduct, errorCodeUpdate, result.Error)
	}
	if result.RowsAffected == 0 {
		return wrapStoreError(errorSubjectProduct, errorCodeUpdate, fmt.Errorf("%w: %d", commerce.ErrIndexOutOfRange, index))
	}
	return nil
}

// ListProducts returns the catalog in index order.
func (store *Store) ListProducts(ctx context.Context, ledgerID commerce.LedgerID) ([]commerce.Product, error) {
	if err := store.requireLedger(ctx, ledgerID); err != nil {
		return nil, err
	}
	var rows []Product
	err := store.db.WithContext(ctx).
		Where("ledger_id = ?", ledgerID.String()).
		Order("product_index ASC").
		Find(&rows).Error
	if err != nil {
		return nil, wrapStoreError(errorSubjectProduct, errorCodeList, err)
	}
	products := make([]commerce.Product, 0, len(rows))
	for _, row := range rows {
		product, err := mapProduct(row)
		if err != nil {
			return nil, wrapStoreError(errorSubjectProduct, errorCodeInvalid, err)
		}
		products = append(products, product)
	}
	return products, nil
}

// InsertTransfer records a payment movement.
func (store *Store) InsertTransfer(ctx context.Context, transfer commerce.Transfer) error {
	model := Transfer{
		TransferID:     transfer.TransferID().String(),
		LedgerID:       transfer.LedgerID().String(),
		Kind:           transfer.Kind().String(),
		FromCaller:     transfer.From().String(),
		ToCaller:       transfer.To().String(),
		Amount:         transfer.Amount().Int64(),
		ProductIndex:   transfer.ProductIndex().Int64(),
		Quantity:       transfer.Quantity().Int64(),
		Metadata:       datatypesJSON(transfer.MetadataJSON().String()),
		CreatedUnixUTC: transfer.CreatedUnixUTC(),
	}
	err := store.db.WithContext(ctx).Create(&model).Error
	if isUniqueViolation(err) {
		return wrapStoreError(errorSubjectTransfer, errorCodeDuplicate, err)
	}
	if err != nil {
		return wrapStoreError(errorSubjectTransfer, errorCodeInsert, err)
	}
	return nil
}

// SumTransfers totals the amounts received and paid by caller.
func (store *Store) SumTransfers(ctx context.Context, ledgerID commerce.LedgerID, caller commerce.CallerID) (commerce.Amount, commerce.Amount, error) {
	received, err := store.sumTransfers(ctx, ledgerID, "to_caller", caller)
	if err != nil {
		return 0, 0, err
	}
	paid, err := store.sumTransfers(ctx, ledgerID, "from_caller", caller)
	if err != nil {
		return 0, 0, err
	}
	return received, paid, nil
}

func (store *Store) sumTransfers(ctx context.Context, ledgerID commerce.LedgerID, column string, caller commerce.CallerID) (commerce.Amount, error) {
	var sum sqlSum
	err := store.db.WithContext(ctx).
		Model(&Transfer{}).
		Select("coalesce(sum(amount),0) as total").
		Where("ledger_id = ?", ledgerID.String()).
		Where(column+" = ?", caller.String()).
		Scan(&sum).Error
	if err != nil {
		return 0, wrapStoreError(errorSubjectTransfer, errorCodeSum, err)
	}
	total, err := commerce.NewAmount(sum.Total)
	if err != nil {
		return 0, wrapStoreError(errorSubjectTransfer, errorCodeInvalid, err)
	}
	return total, nil
}

// ListTransfers lists the caller's transfers created before the cutoff, newest first.
func (store *Store) ListTransfers(ctx context.Context, ledgerID commerce.LedgerID, caller commerce.CallerID, beforeUnixUTC int64, limit int) ([]commerce.Transfer, error) {
	var rows []Transfer
	err := store.db.WithContext(ctx).
		Where("ledger_id = ? AND created_unix_utc < ?", ledgerID.String(), beforeUnixUTC).
		Where("(from_caller = ? OR to_caller = ?)", caller.String(), caller.String()).
		Order("created_unix_utc DESC").
		Order("transfer_id DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, wrapStoreError(errorSubjectTransfer, errorCodeList, err)
	}
	transfers := make([]commerce.Transfer, 0, len(rows))
	for _, row := range rows {
		transfer, err := mapTransfer(row)
		if err != nil {
			return nil, wrapStoreError(errorSubjectTransfer, errorCodeInvalid, err)
		}
		transfers = append(transfers, transfer)
	}
	return transfers, nil
}

func (store *Store) requireLedger(ctx context.Context, ledgerID commerce.LedgerID) error {
	var count int64
	err := store.db.WithContext(ctx).
		Model(&Ledger{}).
		Where("ledger_id = ?", ledgerID.String()).
		Count(&count).Error
	if err != nil {
		return wrapStoreError(errorSubjectLedger, errorCodeGet, err)
	}
	if count == 0 {
		return wrapStoreError(errorSubjectLedger, errorCodeGet, commerce.ErrUnknownLedger)
	}
	return nil
}

func wrapStoreError(subject string, code string, err error) error {
	return commerce.WrapError(errorOperationStore, subject, code, err)
}

func productModel(ledgerID commerce.LedgerID, index commerce.ProductIndex, product commerce.Product) Product {
	model := Product{
		LedgerID:       ledgerID.String(),
		ProductIndex:   index.Int64(),
		Name:           product.Name().String(),
		Stock:          product.Stock().Int64(),
		UnitPrice:      product.UnitPrice().Int64(),
		TotalPurchased: product.TotalPurchased().Int64(),
		UpdatedAt:      time.Now().UTC(),
	}
	if record, refundable := product.LastPurchase(); refundable {
		buyer := record.Buyer().String()
		quantity := record.Quantity().Int64()
		amountPaid := record.AmountPaid().Int64()
		model.LastBuyer = &buyer
		model.LastQuantity = &quantity
		model.LastAmountPaid = &amountPaid
	}
	return model
}

func mapLedger(row Ledger) (commerce.Ledger, error) {
	ledgerID, err := commerce.NewLedgerID(row.LedgerID)
	if err != nil {
		return commerce.Ledger{}, err
	}
	ownerID, err := commerce.NewCallerID(row.OwnerID)
	if err != nil {
		return commerce.Ledger{}, err
	}
	return commerce.NewLedger(ledgerID, row.OwnerName, ownerID, row.CreatedAt.Unix())
}

func mapProduct(row Product) (commerce.Product, error) {
	name, err := commerce.NewProductName(row.Name)
	if err != nil {
		return commerce.Product{}, err
	}
	stock, err := commerce.NewQuantity(row.Stock)
	if err != nil {
		return commerce.Product{}, err
	}
	unitPrice, err := commerce.NewUnitPrice(row.UnitPrice)
	if err != nil {
		return commerce.Product{}, err
	}
	totalPurchased, err := commerce.NewQuantity(row.TotalPurchased)
	if err != nil {
		return commerce.Product{}, err
	}
	var lastPurchase *commerce.PurchaseRecord
	if row.LastBuyer != nil && row.LastQuantity != nil && row.LastAmountPaid != nil {
		record, err := mapPurchaseRecord(*row.LastBuyer, *row.LastQuantity, *row.LastAmountPaid)
		if err != nil {
			return commerce.Product{}, err
		}
		lastPurchase = &record
	}
	return commerce.RestoreProduct(name, stock, unitPrice, totalPurchased, lastPurchase)
}

func mapPurchaseRecord(rawBuyer string, rawQuantity int64, rawAmountPaid int64) (commerce.PurchaseRecord, error) {
	buyer, err := commerce.NewCallerID(rawBuyer)
	if err != nil {
		return commerce.PurchaseRecord{}, err
	}
	quantity, err := commerce.NewPositiveQuantity(rawQuantity)
	if err != nil {
		return commerce.PurchaseRecord{}, err
	}
	amountPaid, err := commerce.NewAmount(rawAmountPaid)
	if err != nil {
		return commerce.PurchaseRecord{}, err
	}
	return commerce.NewPurchaseRecord(buyer, quantity, amountPaid)
}

func mapTransfer(row Transfer) (commerce.Transfer, error) {
	transferID, err := commerce.NewTransferID(row.TransferID)
	if err != nil {
		return commerce.Transfer{}, err
	}
	ledgerID, err := commerce.NewLedgerID(row.LedgerID)
	if err != nil {
		return commerce.Transfer{}, err
	}
	kind, err := commerce.ParseTransferKind(row.Kind)
	if err != nil {
		return commerce.Transfer{}, err
	}
	from, err := commerce.NewCallerID(row.FromCaller)
	if err != nil {
		return commerce.Transfer{}, err
	}
	to, err := commerce.NewCallerID(row.ToCaller)
	if err != nil {
		return commerce.Transfer{}, err
	}
	amount, err := commerce.NewAmount(row.Amount)
	if err != nil {
		return commerce.Transfer{}, err
	}
	index, err := commerce.NewProductIndex(row.ProductIndex)
	if err != nil {
		return commerce.Transfer{}, err
	}
	quantity, err := commerce.NewPositiveQuantity(row.Quantity)
	if err != nil {
		return commerce.Transfer{}, err
	}
	metadata, err := commerce.NewMetadataJSON(string(row.Metadata))
	if err != nil {
		return commerce.Transfer{}, err
	}
	return commerce.NewTransfer(transferID, ledgerID, kind, from, to, amount, index, quantity, metadata, row.CreatedUnixUTC)
}

func datatypesJSON(raw string) datatypes.JSON {
	if raw == "" {
		return datatypes.JSON([]byte(defaultMetadataJSON))
	}
	return datatypes.JSON([]byte(raw))
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolationCode
	}
	var sqliteErr *gosqlite.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code()&0xFF == sqliteConstraintCode
	}
	return false
}
