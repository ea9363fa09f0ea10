// Package grpcserver exposes commerce.Service over gRPC.
package grpcserver

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	commercev1 "github.com/MarkoPoloResearchLab/commerce/api/commerce/v1"
	"github.com/MarkoPoloResearchLab/commerce/pkg/commerce"
)

const (
	errorMissingCaller       = "missing_caller"
	errorUnauthorized        = "unauthorized"
	errorIndexOutOfRange     = "index_out_of_range"
	errorInsufficientStock   = "insufficient_stock"
	errorInsufficientPayment = "insufficient_payment"
	errorInvalidPrice        = "invalid_price"
	errorNothingToRefund     = "nothing_to_refund"
	errorUnknownLedger       = "unknown_ledger"
	errorLedgerExists        = "ledger_exists"
	errorArithmeticOverflow  = "arithmetic_overflow"
	errorInvalidCallerID     = "invalid_caller_id"
	errorInvalidLedgerID     = "invalid_ledger_id"
	errorInvalidProductName  = "invalid_product_name"
	errorInvalidQuantity     = "invalid_quantity"
	errorInvalidAmount       = "invalid_amount"
	errorInvalidMetadata     = "invalid_metadata_json"
	errorInvalidListLimit    = "invalid_list_limit"

	maxListTransfersLimit = 200
)

// CommerceServiceServer exposes the commerce ledger over gRPC.
type CommerceServiceServer struct {
	commercev1.UnimplementedCommerceServiceServer
	commerceService *commerce.Service
}

// NewCommerceServiceServer constructs a gRPC server for the commerce service.
func NewCommerceServiceServer(commerceService *commerce.Service) *CommerceServiceServer {
	return &CommerceServiceServer{commerceService: commerceService}
}

func (service *CommerceServiceServer) Deploy(ctx context.Context, request *commercev1.DeployRequest) (*commercev1.DeployResponse, error) {
	caller, err := callerFromContext(ctx)
	if err != nil {
		return nil, err
	}
	ledgerID, operationError := service.commerceService.Deploy(ctx, caller, request.OwnerName)
	if operationError != nil {
		return nil, mapToGRPCError(operationError)
	}
	return &commercev1.DeployResponse{LedgerID: ledgerID.String()}, nil
}

func (service *CommerceServiceServer) GetLedger(ctx context.Context, request *commercev1.GetLedgerRequest) (*commercev1.LedgerResponse, error) {
	ledgerID, err := commerce.NewLedgerID(request.LedgerID)
	if err != nil {
		return nil, mapToGRPCError(err)
	}
	ledger, operationError := service.commerceService.Ledger(ctx, ledgerID)
	if operationError != nil {
		return nil, mapToGRPCError(operationError)
	}
	return &commercev1.LedgerResponse{
		LedgerID:       ledger.LedgerID().String(),
		OwnerName:      ledger.OwnerName(),
		OwnerID:        ledger.OwnerID().String(),
		CreatedUnixUTC: ledger.CreatedUnixUTC(),
	}, nil
}

func (service *CommerceServiceServer) AddProduct(ctx context.Context, request *commercev1.AddProductRequest) (*commercev1.AddProductResponse, error) {
	caller, err := callerFromContext(ctx)
	if err != nil {
		return nil, err
	}
	ledgerID, err := commerce.NewLedgerID(request.LedgerID)
	if err != nil {
		return nil, mapToGRPCError(err)
	}
	name, err := commerce.NewProductName(request.Name)
	if err != nil {
		return nil, mapToGRPCError(err)
	}
	initialStock, err := commerce.NewQuantity(request.InitialStock)
	if err != nil {
		return nil, mapToGRPCError(err)
	}
	unitPrice, err := commerce.NewUnitPrice(request.UnitPrice)
	if err != nil {
		return nil, mapToGRPCError(err)
	}
	index, operationError := service.commerceService.AddProduct(ctx, ledgerID, caller, name, initialStock, unitPrice)
	if operationError != nil {
		return nil, mapToGRPCError(operationError)
	}
	return &commercev1.AddProductResponse{Index: index.Int64()}, nil
}

func (service *CommerceServiceServer) AddItem(ctx context.Context, request *commercev1.AddItemRequest) (*commercev1.ProductResponse, error) {
	caller, err := callerFromContext(ctx)
	if err != nil {
		return nil, err
	}
	ledgerID, index, err := productAddress(request.LedgerID, request.Index)
	if err != nil {
		return nil, mapToGRPCError(err)
	}
	delta, err := commerce.NewQuantity(request.Delta)
	if err != nil {
		return nil, mapToGRPCError(err)
	}
	product, operationError := service.commerceService.AddItem(ctx, ledgerID, caller, index, delta)
	if operationError != nil {
		return nil, mapToGRPCError(operationError)
	}
	return &commercev1.ProductResponse{Product: toWireProduct(index, product)}, nil
}

func (service *CommerceServiceServer) ChangePrice(ctx context.Context, request *commercev1.ChangePriceRequest) (*commercev1.ProductResponse, error) {
	caller, err := callerFromContext(ctx)
	if err != nil {
		return nil, err
	}
	ledgerID, index, err := productAddress(request.LedgerID, request.Index)
	if err != nil {
		return nil, mapToGRPCError(err)
	}
	product, operationError := service.commerceService.ChangePrice(ctx, ledgerID, caller, index, commerce.NewPriceDelta(request.Delta))
	if operationError != nil {
		return nil, mapToGRPCError(operationError)
	}
	return &commercev1.ProductResponse{Product: toWireProduct(index, product)}, nil
}

func (service *CommerceServiceServer) Purchase(ctx context.Context, request *commercev1.PurchaseRequest) (*commercev1.ProductResponse, error) {
	caller, err := callerFromContext(ctx)
	if err != nil {
		return nil, err
	}
	ledgerID, index, err := productAddress(request.LedgerID, request.Index)
	if err != nil {
		return nil, mapToGRPCError(err)
	}
	quantity, err := commerce.NewPositiveQuantity(request.Quantity)
	if err != nil {
		return nil, mapToGRPCError(err)
	}
	payment, err := commerce.NewAmount(request.Payment)
	if err != nil {
		return nil, mapToGRPCError(err)
	}
	metadataJSON, err := commerce.NewMetadataJSON(request.MetadataJSON)
	if err != nil {
		return nil, mapToGRPCError(err)
	}
	product, operationError := service.commerceService.Purchase(ctx, ledgerID, caller, index, quantity, payment, metadataJSON)
	if operationError != nil {
		return nil, mapToGRPCError(operationError)
	}
	return &commercev1.ProductResponse{Product: toWireProduct(index, product)}, nil
}

func (service *CommerceServiceServer) ProductRefund(ctx context.Context, request *commercev1.ProductRefundRequest) (*commercev1.ProductResponse, error) {
	caller, err := callerFromContext(ctx)
	if err != nil {
		return nil, err
	}
	ledgerID, index, err := productAddress(request.LedgerID, request.Index)
	if err != nil {
		return nil, mapToGRPCError(err)
	}
	payment, err := commerce.NewAmount(request.Payment)
	if err != nil {
		return nil, mapToGRPCError(err)
	}
	metadataJSON, err := commerce.NewMetadataJSON(request.MetadataJSON)
	if err != nil {
		return nil, mapToGRPCError(err)
	}
	product, operationError := service.commerceService.ProductRefund(ctx, ledgerID, caller, index, payment, metadataJSON)
	if operationError != nil {
		return nil, mapToGRPCError(operationError)
	}
	return &commercev1.ProductResponse{Product: toWireProduct(index, product)}, nil
}

func (service *CommerceServiceServer) GetProduct(ctx context.Context, request *commercev1.GetProductRequest) (*commercev1.ProductResponse, error) {
	ledgerID, index, err := productAddress(request.LedgerID, request.Index)
	if err != nil {
		return nil, mapToGRPCError(err)
	}
	product, operationError := service.commerceService.Product(ctx, ledgerID, index)
	if operationError != nil {
		return nil, mapToGRPCError(operationError)
	}
	return &commercev1.ProductResponse{Product: toWireProduct(index, product)}, nil
}

func (service *CommerceServiceServer) ListProducts(ctx context.Context, request *commercev1.ListProductsRequest) (*commercev1.ListProductsResponse, error) {
	ledgerID, err := commerce.NewLedgerID(request.LedgerID)
	if err != nil {
		return nil, mapToGRPCError(err)
	}
	products, operationError := service.commerceService.Products(ctx, ledgerID)
	if operationError != nil {
		return nil, mapToGRPCError(operationError)
	}
	response := &commercev1.ListProductsResponse{Products: make([]*commercev1.Product, 0, len(products))}
	for position, product := range products {
		response.Products = append(response.Products, toWireProduct(commerce.ProductIndex(position), product))
	}
	return response, nil
}

func (service *CommerceServiceServer) MostPopularProduct(ctx context.Context, request *commercev1.MostPopularProductRequest) (*commercev1.MostPopularProductResponse, error) {
	ledgerID, err := commerce.NewLedgerID(request.LedgerID)
	if err != nil {
		return nil, mapToGRPCError(err)
	}
	popularity, operationError := service.commerceService.MostPopularProduct(ctx, ledgerID)
	if operationError != nil {
		return nil, mapToGRPCError(operationError)
	}
	return &commercev1.MostPopularProductResponse{
		Index:          popularity.Index.Int64(),
		TotalPurchased: popularity.TotalPurchased.Int64(),
	}, nil
}

func (service *CommerceServiceServer) GetBalance(ctx context.Context, request *commercev1.GetBalanceRequest) (*commercev1.BalanceResponse, error) {
	caller, err := callerFromContext(ctx)
	if err != nil {
		return nil, err
	}
	ledgerID, err := commerce.NewLedgerID(request.LedgerID)
	if err != nil {
		return nil, mapToGRPCError(err)
	}
	balance, operationError := service.commerceService.Balance(ctx, ledgerID, caller)
	if operationError != nil {
		return nil, mapToGRPCError(operationError)
	}
	return &commercev1.BalanceResponse{
		Received: balance.Received.Int64(),
		Paid:     balance.Paid.Int64(),
		Net:      balance.Net.Int64(),
	}, nil
}

func (service *CommerceServiceServer) ListTransfers(ctx context.Context, request *commercev1.ListTransfersRequest) (*commercev1.ListTransfersResponse, error) {
	caller, err := callerFromContext(ctx)
	if err != nil {
		return nil, err
	}
	ledgerID, err := commerce.NewLedgerID(request.LedgerID)
	if err != nil {
		return nil, mapToGRPCError(err)
	}
	limit, err := normalizeListLimit(request.Limit)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, errorInvalidListLimit)
	}
	transfers, operationError := service.commerceService.ListTransfers(ctx, ledgerID, caller, request.BeforeUnixUTC, int(limit))
	if operationError != nil {
		return nil, mapToGRPCError(operationError)
	}
	response := &commercev1.ListTransfersResponse{Transfers: make([]*commercev1.Transfer, 0, len(transfers))}
	for _, transfer := range transfers {
		response.Transfers = append(response.Transfers, &commercev1.Transfer{
			TransferID:     transfer.TransferID().String(),
			LedgerID:       transfer.LedgerID().String(),
			Kind:           transfer.Kind().String(),
			From:           transfer.From().String(),
			To:             transfer.To().String(),
			Amount:         transfer.Amount().Int64(),
			ProductIndex:   transfer.ProductIndex().Int64(),
			Quantity:       transfer.Quantity().Int64(),
			MetadataJSON:   transfer.MetadataJSON().String(),
			CreatedUnixUTC: transfer.CreatedUnixUTC(),
		})
	}
	return response, nil
}

func callerFromContext(ctx context.Context) (commerce.CallerID, error) {
	incoming, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return commerce.CallerID{}, status.Error(codes.Unauthenticated, errorMissingCaller)
	}
	values := incoming.Get(commercev1.CallerMetadataKey)
	if len(values) == 0 || strings.TrimSpace(values[0]) == "" {
		return commerce.CallerID{}, status.Error(codes.Unauthenticated, errorMissingCaller)
	}
	caller, err := commerce.NewCallerID(values[0])
	if err != nil {
		return commerce.CallerID{}, mapToGRPCError(err)
	}
	return caller, nil
}

func productAddress(rawLedgerID string, rawIndex int64) (commerce.LedgerID, commerce.ProductIndex, error) {
	ledgerID, err := commerce.NewLedgerID(rawLedgerID)
	if err != nil {
		return commerce.LedgerID{}, 0, err
	}
	index, err := commerce.NewProductIndex(rawIndex)
	if err != nil {
		return commerce.LedgerID{}, 0, err
	}
	return ledgerID, index, nil
}

func toWireProduct(index commerce.ProductIndex, product commerce.Product) *commercev1.Product {
	wireProduct := &commercev1.Product{
		Index:          index.Int64(),
		Name:           product.Name().String(),
		Stock:          product.Stock().Int64(),
		UnitPrice:      product.UnitPrice().Int64(),
		TotalPurchased: product.TotalPurchased().Int64(),
	}
	if record, refundable := product.LastPurchase(); refundable {
		wireProduct.LastPurchase = &commercev1.PurchaseRecord{
			Buyer:      record.Buyer().String(),
			Quantity:   record.Quantity().Int64(),
			AmountPaid: record.AmountPaid().Int64(),
		}
	}
	return wireProduct
}

func normalizeListLimit(limit int32) (int32, error) {
	if limit <= 0 {
		return 0, nil
	}
	if limit > maxListTransfersLimit {
		return 0, fmt.Errorf("limit exceeds maximum: %d > %d", limit, maxListTransfersLimit)
	}
	return limit, nil
}

func mapToGRPCError(source error) error {
	if errors.Is(source, commerce.ErrUnauthorized) {
		return status.Error(codes.PermissionDenied, errorUnauthorized)
	}
	if errors.Is(source, commerce.ErrIndexOutOfRange) {
		return status.Error(codes.OutOfRange, errorIndexOutOfRange)
	}
	if errors.Is(source, commerce.ErrInsufficientStock) {
		return status.Error(codes.FailedPrecondition, errorInsufficientStock)
	}
	if errors.Is(source, commerce.ErrInsufficientPayment) {
		return status.Error(codes.FailedPrecondition, errorInsufficientPayment)
	}
	if errors.Is(source, commerce.ErrInvalidPrice) {
		return status.Error(codes.FailedPrecondition, errorInvalidPrice)
	}
	if errors.Is(source, commerce.ErrNothingToRefund) {
		return status.Error(codes.FailedPrecondition, errorNothingToRefund)
	}
	if errors.Is(source, commerce.ErrUnknownLedger) {
		return status.Error(codes.NotFound, errorUnknownLedger)
	}
	if errors.Is(source, commerce.ErrLedgerExists) {
		return status.Error(codes.AlreadyExists, errorLedgerExists)
	}
	if errors.Is(source, commerce.ErrArithmeticOverflow) {
		return status.Error(codes.OutOfRange, errorArithmeticOverflow)
	}
	if errors.Is(source, commerce.ErrInvalidCallerID) {
		return status.Error(codes.InvalidArgument, errorInvalidCallerID)
	}
	if errors.Is(source, commerce.ErrInvalidLedgerID) {
		return status.Error(codes.InvalidArgument, errorInvalidLedgerID)
	}
	if errors.Is(source, commerce.ErrInvalidProductName) {
		return status.Error(codes.InvalidArgument, errorInvalidProductName)
	}
	if errors.Is(source, commerce.ErrInvalidQuantity) {
		return status.Error(codes.InvalidArgument, errorInvalidQuantity)
	}
	if errors.Is(source, commerce.ErrInvalidAmount) {
		return status.Error(codes.InvalidArgument, errorInvalidAmount)
	}
	if errors.Is(source, commerce.ErrInvalidMetadataJSON) {
		return status.Error(codes.InvalidArgument, errorInvalidMetadata)
	}
	if errors.Is(source, context.Canceled) {
		return status.Error(codes.Canceled, source.Error())
	}
	if errors.Is(source, context.DeadlineExceeded) {
		return status.Error(codes.DeadlineExceeded, source.Error())
	}
	return status.Error(codes.Internal, source.Error())
}

// Options wires the optional interceptors of a commerce gRPC server.
type Options struct {
	UnaryInterceptors []grpc.UnaryServerInterceptor
}

// NewGRPCServer builds a grpc.Server with the commerce and health services registered.
func NewGRPCServer(commerceService *commerce.Service, options Options) *grpc.Server {
	grpcServer := grpc.NewServer(grpc.ChainUnaryInterceptor(options.UnaryInterceptors...))
	commercev1.RegisterCommerceServiceServer(grpcServer, NewCommerceServiceServer(commerceService))
	healthServer := health.NewServer()
	healthServer.SetServingStatus(commercev1.ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	return grpcServer
}
