package commerce

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// Service contains the commerce ledger logic over a Store.
type Service struct {
	store   Store
	nowFn   func() int64
	newID   func() string
	loggers []OperationLogger
}

// NewService wires a Service.
func NewService(store Store, now func() int64, options ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store dependency is nil", ErrInvalidServiceConfig)
	}
	if now == nil {
		return nil, fmt.Errorf("%w: clock dependency is nil", ErrInvalidServiceConfig)
	}
	service := &Service{store: store, nowFn: now, newID: uuid.NewString}
	for _, option := range options {
		if option != nil {
			option(service)
		}
	}
	return service, nil
}

// Deploy creates a ledger owned by caller and returns its id.
func (service *Service) Deploy(ctx context.Context, caller CallerID, ownerName string) (LedgerID, error) {
	var ledgerID LedgerID
	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		generatedID, err := NewLedgerID(service.newID())
		if err != nil {
			return WrapError(OperationDeploy, errorSubjectLedger, errorCodeGenerateID, err)
		}
		ledger, err := NewLedger(generatedID, ownerName, caller, service.nowFn())
		if err != nil {
			return err
		}
		if err := transactionStore.CreateLedger(ctx, ledger); err != nil {
			return err
		}
		ledgerID = generatedID
		return nil
	})
	service.logOperation(ctx, OperationLog{
		Operation: OperationDeploy,
		LedgerID:  ledgerID,
		Caller:    caller,
		Error:     operationError,
	})
	if operationError != nil {
		return LedgerID{}, operationError
	}
	return ledgerID, nil
}

// AddProduct lists a new product and returns its index. Owner only.
func (service *Service) AddProduct(ctx context.Context, ledgerID LedgerID, caller CallerID, name ProductName, initialStock Quantity, unitPrice UnitPrice) (ProductIndex, error) {
	var index ProductIndex
	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		if _, err := service.requireOwner(ctx, transactionStore, OperationAddProduct, ledgerID, caller); err != nil {
			return err
		}
		product, err := NewProduct(name, initialStock, unitPrice)
		if err != nil {
			return err
		}
		appendedIndex, err := transactionStore.AppendProduct(ctx, ledgerID, product)
		if err != nil {
			return err
		}
		index = appendedIndex
		return nil
	})
	indexRef := index
	service.logOperation(ctx, OperationLog{
		Operation:    OperationAddProduct,
		LedgerID:     ledgerID,
		Caller:       caller,
		ProductIndex: &indexRef,
		Quantity:     initialStock,
		Error:        operationError,
	})
	if operationError != nil {
		return 0, operationError
	}
	return index, nil
}

// AddItem increases the stock of a product by delta. Owner only.
func (service *Service) AddItem(ctx context.Context, ledgerID LedgerID, caller CallerID, index ProductIndex, delta Quantity) (Product, error) {
	var updated Product
	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		if _, err := service.requireOwner(ctx, transactionStore, OperationAddItem, ledgerID, caller); err != nil {
			return err
		}
		product, err := transactionStore.GetProduct(ctx, ledgerID, index)
		if err != nil {
			return err
		}
		restocked, err := product.Restock(delta)
		if err != nil {
			return err
		}
		if err := transactionStore.UpdateProduct(ctx, ledgerID, index, restocked); err != nil {
			return err
		}
		updated = restocked
		return nil
	})
	indexRef := index
	service.logOperation(ctx, OperationLog{
		Operation:    OperationAddItem,
		LedgerID:     ledgerID,
		Caller:       caller,
		ProductIndex: &indexRef,
		Quantity:     delta,
		Error:        operationError,
	})
	if operationError != nil {
		return Product{}, operationError
	}
	return updated, nil
}

// ChangePrice shifts the unit price of a product by delta. Owner only.
func (service *Service) ChangePrice(ctx context.Context, ledgerID LedgerID, caller CallerID, index ProductIndex, delta PriceDelta) (Product, error) {
	var updated Product
	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		if _, err := service.requireOwner(ctx, transactionStore, OperationChangePrice, ledgerID, caller); err != nil {
			return err
		}
		product, err := transactionStore.GetProduct(ctx, ledgerID, index)
		if err != nil {
			return err
		}
		repriced, err := product.Reprice(delta)
		if err != nil {
			return err
		}
		if err := transactionStore.UpdateProduct(ctx, ledgerID, index, repriced); err != nil {
			return err
		}
		updated = repriced
		return nil
	})
	indexRef := index
	service.logOperation(ctx, OperationLog{
		Operation:    OperationChangePrice,
		LedgerID:     ledgerID,
		Caller:       caller,
		ProductIndex: &indexRef,
		Error:        operationError,
	})
	if operationError != nil {
		return Product{}, operationError
	}
	return updated, nil
}

// Purchase sells quantity units to caller and forwards the whole payment to the owner.
func (service *Service) Purchase(ctx context.Context, ledgerID LedgerID, caller CallerID, index ProductIndex, quantity PositiveQuantity, payment Amount, metadata MetadataJSON) (Product, error) {
	var updated Product
	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		ledger, err := transactionStore.GetLedger(ctx, ledgerID)
		if err != nil {
			return err
		}
		product, err := transactionStore.GetProduct(ctx, ledgerID, index)
		if err != nil {
			return err
		}
		purchased, err := product.Purchase(caller, quantity, payment)
		if err != nil {
			return err
		}
		if err := transactionStore.UpdateProduct(ctx, ledgerID, index, purchased); err != nil {
			return err
		}
		transfer, err := service.newTransfer(ledgerID, TransferPurchase, caller, ledger.OwnerID(), payment, index, quantity, metadata)
		if err != nil {
			return err
		}
		if err := transactionStore.InsertTransfer(ctx, transfer); err != nil {
			return err
		}
		updated = purchased
		return nil
	})
	indexRef := index
	service.logOperation(ctx, OperationLog{
		Operation:    OperationPurchase,
		LedgerID:     ledgerID,
		Caller:       caller,
		ProductIndex: &indexRef,
		Quantity:     quantity.ToQuantity(),
		Amount:       payment,
		Metadata:     metadata,
		Error:        operationError,
	})
	if operationError != nil {
		return Product{}, operationError
	}
	return updated, nil
}

// ProductRefund reverses the last purchase of a product and forwards the payment to its buyer. Owner only.
func (service *Service) ProductRefund(ctx context.Context, ledgerID LedgerID, caller CallerID, index ProductIndex, payment Amount, metadata MetadataJSON) (Product, error) {
	var updated Product
	var refundedQuantity Quantity
	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		ledger, err := service.requireOwner(ctx, transactionStore, OperationProductRefund, ledgerID, caller)
		if err != nil {
			return err
		}
		product, err := transactionStore.GetProduct(ctx, ledgerID, index)
		if err != nil {
			return err
		}
		refunded, record, err := product.Refund(payment)
		if err != nil {
			return err
		}
		if err := transactionStore.UpdateProduct(ctx, ledgerID, index, refunded); err != nil {
			return err
		}
		transfer, err := service.newTransfer(ledgerID, TransferRefund, ledger.OwnerID(), record.Buyer(), payment, index, record.Quantity(), metadata)
		if err != nil {
			return err
		}
		if err := transactionStore.InsertTransfer(ctx, transfer); err != nil {
			return err
		}
		updated = refunded
		refundedQuantity = record.Quantity().ToQuantity()
		return nil
	})
	indexRef := index
	service.logOperation(ctx, OperationLog{
		Operation:    OperationProductRefund,
		LedgerID:     ledgerID,
		Caller:       caller,
		ProductIndex: &indexRef,
		Quantity:     refundedQuantity,
		Amount:       payment,
		Metadata:     metadata,
		Error:        operationError,
	})
	if operationError != nil {
		return Product{}, operationError
	}
	return updated, nil
}

func (service *Service) requireOwner(ctx context.Context, transactionStore Store, operation string, ledgerID LedgerID, caller CallerID) (Ledger, error) {
	ledger, err := transactionStore.GetLedger(ctx, ledgerID)
	if err != nil {
		return Ledger{}, err
	}
	if !ledger.IsOwner(caller) {
		return Ledger{}, WrapError(operation, errorSubjectCaller, errorCodeNotOwner, ErrUnauthorized)
	}
	return ledger, nil
}

func (service *Service) newTransfer(ledgerID LedgerID, kind TransferKind, from CallerID, to CallerID, amount Amount, index ProductIndex, quantity PositiveQuantity, metadata MetadataJSON) (Transfer, error) {
	transferID, err := NewTransferID(service.newID())
	if err != nil {
		return Transfer{}, WrapError(kind.String(), "transfer", errorCodeGenerateID, err)
	}
	return NewTransfer(transferID, ledgerID, kind, from, to, amount, index, quantity, metadata, service.nowFn())
}

func (service *Service) logOperation(ctx context.Context, entry OperationLog) {
	if len(service.loggers) == 0 {
		return
	}
	if entry.Status == "" {
		if entry.Error != nil {
			entry.Status = OperationStatusError
		} else {
			entry.Status = OperationStatusOK
		}
	}
	for _, logger := range service.loggers {
		logger.LogOperation(ctx, entry)
	}
}
