package commerce

import (
	"errors"
	"math"
	"testing"
)

func TestNewCallerID(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name    string
		input   string
		wantErr error
		wantVal string
	}{
		{name: "valid", input: " 0xabc ", wantVal: "0xabc"},
		{name: "empty", input: "   ", wantErr: ErrInvalidCallerID},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			result, err := NewCallerID(tc.input)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("expected error %v, got %v", tc.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if result.String() != tc.wantVal {
				t.Fatalf("expected %q, got %q", tc.wantVal, result.String())
			}
		})
	}
}

func TestIdentifierConstructorsRejectBlank(t *testing.T) {
	t.Parallel()
	if _, err := NewLedgerID(" "); !errors.Is(err, ErrInvalidLedgerID) {
		t.Fatalf("expected ErrInvalidLedgerID, got %v", err)
	}
	if _, err := NewTransferID(""); !errors.Is(err, ErrInvalidTransferID) {
		t.Fatalf("expected ErrInvalidTransferID, got %v", err)
	}
	if _, err := NewProductName("\t"); !errors.Is(err, ErrInvalidProductName) {
		t.Fatalf("expected ErrInvalidProductName, got %v", err)
	}
}

func TestNumericConstructors(t *testing.T) {
	t.Parallel()
	if _, err := NewQuantity(-1); !errors.Is(err, ErrInvalidQuantity) {
		t.Fatalf("expected ErrInvalidQuantity, got %v", err)
	}
	if quantity, err := NewQuantity(0); err != nil || quantity != 0 {
		t.Fatalf("zero quantity should be valid: %v", err)
	}
	if _, err := NewPositiveQuantity(0); !errors.Is(err, ErrInvalidQuantity) {
		t.Fatalf("expected ErrInvalidQuantity, got %v", err)
	}
	if _, err := NewUnitPrice(-1); !errors.Is(err, ErrInvalidPrice) {
		t.Fatalf("expected ErrInvalidPrice, got %v", err)
	}
	if _, err := NewAmount(-1); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
	if _, err := NewProductIndex(-1); !errors.Is(err, ErrIndexOutOfRange) {
		t.Fatalf("expected ErrIndexOutOfRange, got %v", err)
	}
}

func TestNewMetadataJSON(t *testing.T) {
	t.Parallel()
	metadata, err := NewMetadataJSON("  ")
	if err != nil || metadata.String() != "{}" {
		t.Fatalf("expected default metadata, got %q (%v)", metadata.String(), err)
	}
	if _, err := NewMetadataJSON("{"); !errors.Is(err, ErrInvalidMetadataJSON) {
		t.Fatalf("expected ErrInvalidMetadataJSON, got %v", err)
	}
	if (MetadataJSON{}).String() != "{}" {
		t.Fatalf("zero metadata should render as {}")
	}
}

func TestPurchaseCost(t *testing.T) {
	t.Parallel()
	cost, ok := PurchaseCost(5, 60)
	if !ok || cost != 300 {
		t.Fatalf("expected 300, got %d (%t)", cost, ok)
	}
	if _, ok := PurchaseCost(2, UnitPrice(math.MaxInt64)); ok {
		t.Fatalf("expected overflow")
	}
	if cost, ok := PurchaseCost(PositiveQuantity(math.MaxInt64), 0); !ok || cost != 0 {
		t.Fatalf("free products never overflow")
	}
}

func TestParseTransferKind(t *testing.T) {
	t.Parallel()
	kind, err := ParseTransferKind(" refund ")
	if err != nil || kind != TransferRefund {
		t.Fatalf("expected refund kind, got %q (%v)", kind, err)
	}
	if _, err := ParseTransferKind("grant"); !errors.Is(err, ErrInvalidTransferKind) {
		t.Fatalf("expected ErrInvalidTransferKind, got %v", err)
	}
}

func TestNewTransferValidation(t *testing.T) {
	t.Parallel()
	transferID, _ := NewTransferID("transfer-1")
	ledgerID, _ := NewLedgerID("ledger-1")
	from, _ := NewCallerID("buyer")
	to, _ := NewCallerID("owner")
	if _, err := NewTransfer(transferID, ledgerID, TransferPurchase, from, CallerID{}, 1, 0, 1, MetadataJSON{}, 1); !errors.Is(err, ErrInvalidCallerID) {
		t.Fatalf("expected ErrInvalidCallerID, got %v", err)
	}
	if _, err := NewTransfer(transferID, ledgerID, TransferKind("gift"), from, to, 1, 0, 1, MetadataJSON{}, 1); !errors.Is(err, ErrInvalidTransferKind) {
		t.Fatalf("expected ErrInvalidTransferKind, got %v", err)
	}
	if _, err := NewTransfer(transferID, ledgerID, TransferPurchase, from, to, 1, 0, 0, MetadataJSON{}, 1); !errors.Is(err, ErrInvalidQuantity) {
		t.Fatalf("expected ErrInvalidQuantity, got %v", err)
	}
	transfer, err := NewTransfer(transferID, ledgerID, TransferPurchase, from, to, 300, 0, 5, MetadataJSON{}, 9)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if transfer.Amount() != 300 || transfer.Quantity() != 5 || transfer.CreatedUnixUTC() != 9 || transfer.MetadataJSON().String() != "{}" {
		t.Fatalf("unexpected transfer: %+v", transfer)
	}
}

func TestOperationErrorFormatting(t *testing.T) {
	t.Parallel()
	err := WrapError(OperationPurchase, "product", "missing", ErrIndexOutOfRange)
	if err.Error() != "purchase.product.missing: index out of range" {
		t.Fatalf("unexpected message %q", err.Error())
	}
	if !errors.Is(err, ErrIndexOutOfRange) {
		t.Fatalf("expected wrapped sentinel")
	}
	var operationError OperationError
	if !errors.As(err, &operationError) || operationError.Subject() != "product" || operationError.Code() != "missing" {
		t.Fatalf("unexpected operation error %+v", operationError)
	}
	if WrapError(OperationPurchase, "product", "missing", nil) != nil {
		t.Fatalf("wrapping nil must return nil")
	}
}
