// Package pgstore persists commerce ledgers in PostgreSQL through a pgx pool.
package pgstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MarkoPoloResearchLab/commerce/pkg/commerce"
)

const (
	pgUniqueViolationCode   = "23505"
	errorOperationStore     = "store"
	errorSubjectLedger      = "ledger"
	errorSubjectProduct     = "product"
	errorSubjectTransfer    = "transfer"
	errorSubjectTransaction = "transaction"
	errorSubjectSchema      = "schema"
	errorCodeBegin          = "begin"
	errorCodeCommit         = "commit"
	errorCodeCreate         = "create"
	errorCodeDuplicate      = "duplicate"
	errorCodeGet            = "get"
	errorCodeInsert         = "insert"
	errorCodeInvalid        = "invalid"
	errorCodeList           = "list"
	errorCodeMigrate        = "migrate"
	errorCodeSum            = "sum"
	errorCodeUpdate         = "update"

	sqlSchema = `
		create table if not exists ledgers (
			ledger_id text primary key,
			owner_name text not null,
			owner_id text not null,
			created_at timestamptz not null
		);
		create table if not exists products (
			ledger_id text not null references ledgers(ledger_id),
			product_index bigint not null,
			name text not null,
			stock bigint not null check (stock >= 0),
			unit_price bigint not null check (unit_price >= 0),
			total_purchased bigint not null check (total_purchased >= 0),
			last_buyer text,
			last_quantity bigint,
			last_amount_paid bigint,
			updated_at timestamptz not null default now(),
			primary key (ledger_id, product_index)
		);
		create table if not exists transfers (
			transfer_id text primary key,
			ledger_id text not null references ledgers(ledger_id),
			kind text not null,
			from_caller text not null,
			to_caller text not null,
			amount bigint not null check (amount >= 0),
			product_index bigint not null,
			quantity bigint not null,
			metadata jsonb not null default '{}'::jsonb,
			created_unix_utc bigint not null
		);
		create index if not exists idx_transfers_ledger_created on transfers(ledger_id, created_unix_utc);
	`

	sqlInsertLedger = `
		insert into ledgers(ledger_id, owner_name, owner_id, created_at)
		values ($1, $2, $3, to_timestamp($4))
	`

	sqlSelectLedger = `
		select ledger_id, owner_name, owner_id, extract(epoch from created_at)::bigint
		from ledgers
		where ledger_id = $1
	`

	sqlSelectLedgerForUpdate = sqlSelectLedger + ` for update`

	sqlLedgerExists = `select exists(select 1 from ledgers where ledger_id = $1)`

	sqlAppendProduct = `
		insert into products(ledger_id, product_index, name, stock, unit_price, total_purchased)
		select $1, count(*), $2, $3, $4, $5 from products where ledger_id = $1
		returning product_index
	`

	sqlSelectProduct = `
		select name, stock, unit_price, total_purchased, last_buyer, last_quantity, last_amount_paid
		from products
		where ledger_id = $1 and product_index = $2
	`

	sqlUpdateProduct = `
		update products
		set stock = $3, unit_price = $4, total_purchased = $5,
			last_buyer = $6, last_quantity = $7, last_amount_paid = $8, updated_at = now()
		where ledger_id = $1 and product_index = $2
	`

	sqlListProducts = `
		select name, stock, unit_price, total_purchased, last_buyer, last_quantity, last_amount_paid
		from products
		where ledger_id = $1
		order by product_index
	`

	sqlInsertTransfer = `
		insert into transfers(
			transfer_id, ledger_id, kind, from_caller, to_caller, amount, product_index, quantity, metadata, created_unix_utc
		)
		values ($1, $2, $3, $4, $5, $6, $7, $8, coalesce(nullif($9,''),'{}')::jsonb, $10)
	`

	sqlSumTransfers = `
		select
			coalesce(sum(amount) filter (where to_caller = $2), 0),
			coalesce(sum(amount) filter (where from_caller = $2), 0)
		from transfers
		where ledger_id = $1
	`

	sqlListTransfersBefore = `
		select transfer_id, ledger_id, kind, from_caller, to_caller, amount, product_index, quantity,
			coalesce(metadata::text,'{}'), created_unix_utc
		from transfers
		where ledger_id = $1 and (from_caller = $2 or to_caller = $2) and created_unix_utc < $3
		order by created_unix_utc desc, transfer_id desc
		limit $4
	`
)

type querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type queries struct {
	db          querier
	lockLedgers bool
}

// Store implements commerce.Store using a pgx connection pool (autocommit).
type Store struct {
	queries
	pool *pgxpool.Pool
}

// TxStore implements commerce.Store for an active transaction.
type TxStore struct {
	queries
	tx pgx.Tx
}

// New returns a Store backed by a pgx pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{queries: queries{db: pool}, pool: pool}
}

// EnsureSchema creates the tables when they do not exist.
func (store *Store) EnsureSchema(ctx context.Context) error {
	if _, err := store.pool.Exec(ctx, sqlSchema); err != nil {
		return wrapStoreError(errorSubjectSchema, errorCodeMigrate, err)
	}
	return nil
}

// WithTx executes fn within a transaction.
func (store *Store) WithTx(ctx context.Context, fn func(ctx context.Context, txStore commerce.Store) error) error {
	tx, err := store.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return wrapStoreError(errorSubjectTransaction, errorCodeBegin, err)
	}
	transactionStore := &TxStore{queries: queries{db: tx, lockLedgers: true}, tx: tx}
	if err := fn(ctx, transactionStore); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return wrapStoreError(errorSubjectTransaction, errorCodeCommit, err)
	}
	return nil
}

// WithTx runs fn in the already open transaction.
func (transactionStore *TxStore) WithTx(ctx context.Context, fn func(ctx context.Context, txStore commerce.Store) error) error {
	return fn(ctx, transactionStore)
}

func (store queries) CreateLedger(ctx context.Context, ledger commerce.Ledger) error {
	_, err := store.db.Exec(ctx, sqlInsertLedger, ledger.LedgerID().String(), ledger.OwnerName(), ledger.OwnerID().String(), ledger.CreatedUnixUTC())
	if isUniqueViolation(err) {
		return wrapStoreError(errorSubjectLedger, errorCodeDuplicate, commerce.ErrLedgerExists)
	}
	if err != nil {
		return wrapStoreError(errorSubjectLedger, errorCodeCreate, err)
	}
	return nil
}

func (store queries) GetLedger(ctx context.Context, ledgerID commerce.LedgerID) (commerce.Ledger, error) {
	query := sqlSelectLedger
	if store.lockLedgers {
		query = sqlSelectLedgerForUpdate
	}
	var (
		rawLedgerID    string
		ownerName      string
		rawOwnerID     string
		createdUnixUTC int64
	)
	err := store.db.QueryRow(ctx, query, ledgerID.String()).Scan(&rawLedgerID, &ownerName, &rawOwnerID, &createdUnixUTC)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return commerce.Ledger{}, wrapStoreError(errorSubjectLedger, errorCodeGet, commerce.ErrUnknownLedger)
		}
		return commerce.Ledger{}, wrapStoreError(errorSubjectLedger, errorCodeGet, err)
	}
	parsedLedgerID, err := commerce.NewLedgerID(rawLedgerID)
	if err != nil {
		return commerce.Ledger{}, wrapStoreError(errorSubjectLedger, errorCodeInvalid, err)
	}
	ownerID, err := commerce.NewCallerID(rawOwnerID)
	if err != nil {
		return commerce.Ledger{}, wrapStoreError(errorSubjectLedger, errorCodeInvalid, err)
	}
	ledger, err := commerce.NewLedger(parsedLedgerID, ownerName, ownerID, createdUnixUTC)
	if err != nil {
		return commerce.Ledger{}, wrapStoreError(errorSubjectLedger, errorCodeInvalid, err)
	}
	return ledger, nil
}

func (store queries) AppendProduct(ctx context.Context, ledgerID commerce.LedgerID, product commerce.Product) (commerce.ProductIndex, error) {
	if err := store.requireLedger(ctx, ledgerID); err != nil {
		return 0, err
	}
	var index int64
	err := store.db.QueryRow(ctx, sqlAppendProduct,
		ledgerID.String(),
		product.Name().String(),
		product.Stock().Int64(),
		product.UnitPrice().Int64(),
		product.TotalPurchased().Int64(),
	).Scan(&index)
	if err != nil {
		return 0, wrapStoreError(errorSubjectProduct, errorCodeInsert, err)
	}
	return commerce.ProductIndex(index), nil
}

func (store queries) GetProduct(ctx context.Context, ledgerID commerce.LedgerID, index commerce.ProductIndex) (commerce.Product, error) {
	product, err := scanProduct(store.db.QueryRow(ctx, sqlSelectProduct, ledgerID.String(), index.Int64()))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			if ledgerErr := store.requireLedger(ctx, ledgerID); ledgerErr != nil {
				return commerce.Product{}, ledgerErr
			}
			return commerce.Product{}, wrapStoreError(errorSubjectProduct, errorCodeGet, fmt.Errorf("%w: %d", commerce.ErrIndexOutOfRange, index))
		}
		return commerce.Product{}, wrapStoreError(errorSubjectProduct, errorCodeGet, err)
	}
	return product, nil
}

func (store queries) UpdateProduct(ctx context.Context, ledgerID commerce.LedgerID, index commerce.ProductIndex, product commerce.Product) error {
	var (
		lastBuyer      *string
		lastQuantity   *int64
		lastAmountPaid *int64
	)
	if record, refundable := product.LastPurchase(); refundable {
		buyer := record.Buyer().String()
		quantity := record.Quantity().Int64()
		amountPaid := record.AmountPaid().Int64()
		lastBuyer, lastQuantity, lastAmountPaid = &buyer, &quantity, &amountPaid
	}
	tag, err := store.db.Exec(ctx, sqlUpdateProduct,
		ledgerID.String(),
		index.Int64(),
		product.Stock().Int64(),
		product.UnitPrice().Int64(),
		product.TotalPurchased().Int64(),
		lastBuyer,
		lastQuantity,
		lastAmountPaid,
	)
	if err != nil {
		return wrapStoreError(errorSubjectProduct, errorCodeUpdate, err)
	}
	if tag.RowsAffected() == 0 {
		return wrapStoreError(errorSubjectProduct, errorCodeUpdate, fmt.Errorf("%w: %d", commerce.ErrIndexOutOfRange, index))
	}
	return nil
}

func (store queries) ListProducts(ctx context.Context, ledgerID commerce.LedgerID) ([]commerce.Product, error) {
	if err := store.requireLedger(ctx, ledgerID); err != nil {
		return nil, err
	}
	rows, err := store.db.Query(ctx, sqlListProducts, ledgerID.String())
	if err != nil {
		return nil, wrapStoreError(errorSubjectProduct, errorCodeList, err)
	}
	defer rows.Close()

	products := make([]commerce.Product, 0)
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, wrapStoreError(errorSubjectProduct, errorCodeInvalid, err)
		}
		products = append(products, product)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapStoreError(errorSubjectProduct, errorCodeList, err)
	}
	return products, nil
}

func (store queries) InsertTransfer(ctx context.Context, transfer commerce.Transfer) error {
	_, err := store.db.Exec(ctx, sqlInsertTransfer,
		transfer.TransferID().String(),
		transfer.LedgerID().String(),
		transfer.Kind().String(),
		transfer.From().String(),
		transfer.To().String(),
		transfer.Amount().Int64(),
		transfer.ProductIndex().Int64(),
		transfer.Quantity().Int64(),
		transfer.MetadataJSON().String(),
		transfer.CreatedUnixUTC(),
	)
	if isUniqueViolation(err) {
		return wrapStoreError(errorSubjectTransfer, errorCodeDuplicate, err)
	}
	if err != nil {
		return wrapStoreError(errorSubjectTransfer, errorCodeInsert, err)
	}
	return nil
}

func (store queries) SumTransfers(ctx context.Context, ledgerID commerce.LedgerID, caller commerce.CallerID) (commerce.Amount, commerce.Amount, error) {
	var receivedRaw, paidRaw int64
	if err := store.db.QueryRow(ctx, sqlSumTransfers, ledgerID.String(), caller.String()).Scan(&receivedRaw, &paidRaw); err != nil {
		return 0, 0, wrapStoreError(errorSubjectTransfer, errorCodeSum, err)
	}
	received, err := commerce.NewAmount(receivedRaw)
	if err != nil {
		return 0, 0, wrapStoreError(errorSubjectTransfer, errorCodeInvalid, err)
	}
	paid, err := commerce.NewAmount(paidRaw)
	if err != nil {
		return 0, 0, wrapStoreError(errorSubjectTransfer, errorCodeInvalid, err)
	}
	return received, paid, nil
}

func (store queries) ListTransfers(ctx context.Context, ledgerID commerce.LedgerID, caller commerce.CallerID, beforeUnixUTC int64, limit int) ([]commerce.Transfer, error) {
	rows, err := store.db.Query(ctx, sqlListTransfersBefore, ledgerID.String(), caller.String(), beforeUnixUTC, limit)
	if err != nil {
		return nil, wrapStoreError(errorSubjectTransfer, errorCodeList, err)
	}
	defer rows.Close()

	transfers := make([]commerce.Transfer, 0)
	for rows.Next() {
		var (
			rawTransferID  string
			rawLedgerID    string
			rawKind        string
			rawFrom        string
			rawTo          string
			amount         int64
			productIndex   int64
			quantity       int64
			rawMetadata    string
			createdUnixUTC int64
		)
		if err := rows.Scan(&rawTransferID, &rawLedgerID, &rawKind, &rawFrom, &rawTo, &amount, &productIndex, &quantity, &rawMetadata, &createdUnixUTC); err != nil {
			return nil, wrapStoreError(errorSubjectTransfer, errorCodeList, err)
		}
		transfer, err := mapTransfer(rawTransferID, rawLedgerID, rawKind, rawFrom, rawTo, amount, productIndex, quantity, rawMetadata, createdUnixUTC)
		if err != nil {
			return nil, wrapStoreError(errorSubjectTransfer, errorCodeInvalid, err)
		}
		transfers = append(transfers, transfer)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapStoreError(errorSubjectTransfer, errorCodeList, err)
	}
	return transfers, nil
}

func (store queries) requireLedger(ctx context.Context, ledgerID commerce.LedgerID) error {
	var exists bool
	if err := store.db.QueryRow(ctx, sqlLedgerExists, ledgerID.String()).Scan(&exists); err != nil {
		return wrapStoreError(errorSubjectLedger, errorCodeGet, err)
	}
	if !exists {
		return wrapStoreError(errorSubjectLedger, errorCodeGet, commerce.ErrUnknownLedger)
	}
	return nil
}

func scanProduct(row pgx.Row) (commerce.Product, error) {
	var (
		rawName        string
		stock          int64
		unitPrice      int64
		totalPurchased int64
		lastBuyer      *string
		lastQuantity   *int64
		lastAmountPaid *int64
	)
	if err := row.Scan(&rawName, &stock, &unitPrice, &totalPurchased, &lastBuyer, &lastQuantity, &lastAmountPaid); err != nil {
		return commerce.Product{}, err
	}
	name, err := commerce.NewProductName(rawName)
	if err != nil {
		return commerce.Product{}, err
	}
	var lastPurchase *commerce.PurchaseRecord
	if lastBuyer != nil && lastQuantity != nil && lastAmountPaid != nil {
		buyer, err := commerce.NewCallerID(*lastBuyer)
		if err != nil {
			return commerce.Product{}, err
		}
		quantity, err := commerce.NewPositiveQuantity(*lastQuantity)
		if err != nil {
			return commerce.Product{}, err
		}
		amountPaid, err := commerce.NewAmount(*lastAmountPaid)
		if err != nil {
			return commerce.Product{}, err
		}
		record, err := commerce.NewPurchaseRecord(buyer, quantity, amountPaid)
		if err != nil {
			return commerce.Product{}, err
		}
		lastPurchase = &record
	}
	return commerce.RestoreProduct(name, commerce.Quantity(stock), commerce.UnitPrice(unitPrice), commerce.Quantity(totalPurchased), lastPurchase)
}

func mapTransfer(rawTransferID string, rawLedgerID string, rawKind string, rawFrom string, rawTo string, rawAmount int64, rawIndex int64, rawQuantity int64, rawMetadata string, createdUnixUTC int64) (commerce.Transfer, error) {
	transferID, err := commerce.NewTransferID(rawTransferID)
	if err != nil {
		return commerce.Transfer{}, err
	}
	ledgerID, err := commerce.NewLedgerID(rawLedgerID)
	if err != nil {
		return commerce.Transfer{}, err
	}
	kind, err := commerce.ParseTransferKind(rawKind)
	if err != nil {
		return commerce.Transfer{}, err
	}
	from, err := commerce.NewCallerID(rawFrom)
	if err != nil {
		return commerce.Transfer{}, err
	}
	to, err := commerce.NewCallerID(rawTo)
	if err != nil {
		return commerce.Transfer{}, err
	}
	amount, err := commerce.NewAmount(rawAmount)
	if err != nil {
		return commerce.Transfer{}, err
	}
	index, err := commerce.NewProductIndex(rawIndex)
	if err != nil {
		return commerce.Transfer{}, err
	}
	quantity, err := commerce.NewPositiveQuantity(rawQuantity)
	if err != nil {
		return commerce.Transfer{}, err
	}
	metadata, err := commerce.NewMetadataJSON(rawMetadata)
	if err != nil {
		return commerce.Transfer{}, err
	}
	return commerce.NewTransfer(transferID, ledgerID, kind, from, to, amount, index, quantity, metadata, createdUnixUTC)
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolationCode
	}
	return false
}

func wrapStoreError(subject string, code string, err error) error {
	return commerce.WrapError(errorOperationStore, subject, code, err)
}
