package commercev1

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "commerce.v1.CommerceService"

// CallerMetadataKey carries the caller identity of every call.
const CallerMetadataKey = "x-commerce-caller"

const (
	CommerceService_Deploy_FullMethodName             = "/commerce.v1.CommerceService/Deploy"
	CommerceService_GetLedger_FullMethodName          = "/commerce.v1.CommerceService/GetLedger"
	CommerceService_AddProduct_FullMethodName         = "/commerce.v1.CommerceService/AddProduct"
	CommerceService_AddItem_FullMethodName            = "/commerce.v1.CommerceService/AddItem"
	CommerceService_ChangePrice_FullMethodName        = "/commerce.v1.CommerceService/ChangePrice"
	CommerceService_Purchase_FullMethodName           = "/commerce.v1.CommerceService/Purchase"
	CommerceService_ProductRefund_FullMethodName      = "/commerce.v1.CommerceService/ProductRefund"
	CommerceService_GetProduct_FullMethodName         = "/commerce.v1.CommerceService/GetProduct"
	CommerceService_ListProducts_FullMethodName       = "/commerce.v1.CommerceService/ListProducts"
	CommerceService_MostPopularProduct_FullMethodName = "/commerce.v1.CommerceService/MostPopularProduct"
	CommerceService_GetBalance_FullMethodName         = "/commerce.v1.CommerceService/GetBalance"
	CommerceService_ListTransfers_FullMethodName      = "/commerce.v1.CommerceService/ListTransfers"
)

// CommerceServiceServer is the server API for CommerceService.
type CommerceServiceServer interface {
	Deploy(context.Context, *DeployRequest) (*DeployResponse, error)
	GetLedger(context.Context, *GetLedgerRequest) (*LedgerResponse, error)
	AddProduct(context.Context, *AddProductRequest) (*AddProductResponse, error)
	AddItem(context.Context, *AddItemRequest) (*ProductResponse, error)
	ChangePrice(context.Context, *ChangePriceRequest) (*ProductResponse, error)
	Purchase(context.Context, *PurchaseRequest) (*ProductResponse, error)
	ProductRefund(context.Context, *ProductRefundRequest) (*ProductResponse, error)
	GetProduct(context.Context, *GetProductRequest) (*ProductResponse, error)
	ListProducts(context.Context, *ListProductsRequest) (*ListProductsResponse, error)
	MostPopularProduct(context.Context, *MostPopularProductRequest) (*MostPopularProductResponse, error)
	GetBalance(context.Context, *GetBalanceRequest) (*BalanceResponse, error)
	ListTransfers(context.Context, *ListTransfersRequest) (*ListTransfersResponse, error)
}

// UnimplementedCommerceServiceServer answers every method with codes.Unimplemented.
type UnimplementedCommerceServiceServer struct{}

func (UnimplementedCommerceServiceServer) Deploy(context.Context, *DeployRequest) (*DeployResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Deploy not implemented")
}

func (UnimplementedCommerceServiceServer) GetLedger(context.Context, *GetLedgerRequest) (*LedgerResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method GetLedger not implemented")
}

func (UnimplementedCommerceServiceServer) AddProduct(context.Context, *AddProductRequest) (*AddProductResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method AddProduct not implemented")
}

func (UnimplementedCommerceServiceServer) AddItem(context.Context, *AddItemRequest) (*ProductResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method AddItem not implemented")
}

func (UnimplementedCommerceServiceServer) ChangePrice(context.Context, *ChangePriceRequest) (*ProductResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method ChangePrice not implemented")
}

func (UnimplementedCommerceServiceServer) Purchase(context.Context, *PurchaseRequest) (*ProductResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Purchase not implemented")
}

func (UnimplementedCommerceServiceServer) ProductRefund(context.Context, *ProductRefundRequest) (*ProductResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method ProductRefund not implemented")
}

func (UnimplementedCommerceServiceServer) GetProduct(context.Context, *GetProductRequest) (*ProductResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method GetProduct not implemented")
}

func (UnimplementedCommerceServiceServer) ListProducts(context.Context, *ListProductsRequest) (*ListProductsResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method ListProducts not implemented")
}

func (UnimplementedCommerceServiceServer) MostPopularProduct(context.Context, *MostPopularProductRequest) (*MostPopularProductResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method MostPopularProduct not implemented")
}

func (UnimplementedCommerceServiceServer) GetBalance(context.Context, *GetBalanceRequest) (*BalanceResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method GetBalance not implemented")
}

func (UnimplementedCommerceServiceServer) ListTransfers(context.Context, *ListTransfersRequest) (*ListTransfersResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method ListTransfers not implemented")
}

// RegisterCommerceServiceServer registers srv on registrar.
func RegisterCommerceServiceServer(registrar grpc.ServiceRegistrar, srv CommerceServiceServer) {
	registrar.RegisterService(&CommerceService_ServiceDesc, srv)
}

func unaryHandler[Request any, Response any](fullMethod string, call func(CommerceServiceServer, context.Context, *Request) (*Response, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Request)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(CommerceServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, request any) (any, error) {
			return call(srv.(CommerceServiceServer), ctx, request.(*Request))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// CommerceService_ServiceDesc is the grpc.ServiceDesc for CommerceService.
var CommerceService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*CommerceServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Deploy", Handler: unaryHandler(CommerceService_Deploy_FullMethodName, CommerceServiceServer.Deploy)},
		{MethodName: "GetLedger", Handler: unaryHandler(CommerceService_GetLedger_FullMethodName, CommerceServiceServer.GetLedger)},
		{MethodName: "AddProduct", Handler: unaryHandler(CommerceService_AddProduct_FullMethodName, CommerceServiceServer.AddProduct)},
		{MethodName: "AddItem", Handler: unaryHandler(CommerceService_AddItem_FullMethodName, CommerceServiceServer.AddItem)},
		{MethodName: "ChangePrice", Handler: unaryHandler(CommerceService_ChangePrice_FullMethodName, CommerceServiceServer.ChangePrice)},
		{MethodName: "Purchase", Handler: unaryHandler(CommerceService_Purchase_FullMethodName, CommerceServiceServer.Purchase)},
		{MethodName: "ProductRefund", Handler: unaryHandler(CommerceService_ProductRefund_FullMethodName, CommerceServiceServer.ProductRefund)},
		{MethodName: "GetProduct", Handler: unaryHandler(CommerceService_GetProduct_FullMethodName, CommerceServiceServer.GetProduct)},
		{MethodName: "ListProducts", Handler: unaryHandler(CommerceService_ListProducts_FullMethodName, CommerceServiceServer.ListProducts)},
		{MethodName: "MostPopularProduct", Handler: unaryHandler(CommerceService_MostPopularProduct_FullMethodName, CommerceServiceServer.MostPopularProduct)},
		{MethodName: "GetBalance", Handler: unaryHandler(CommerceService_GetBalance_FullMethodName, CommerceServiceServer.GetBalance)},
		{MethodName: "ListTransfers", Handler: unaryHandler(CommerceService_ListTransfers_FullMethodName, CommerceServiceServer.ListTransfers)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "commerce/v1/commerce.proto",
}

// CommerceServiceClient is the client API for CommerceService.
type CommerceServiceClient interface {
	Deploy(ctx context.Context, in *DeployRequest, opts ...grpc.CallOption) (*DeployResponse, error)
	GetLedger(ctx context.Context, in *GetLedgerRequest, opts ...grpc.CallOption) (*LedgerResponse, error)
	AddProduct(ctx context.Context, in *AddProductRequest, opts ...grpc.CallOption) (*AddProductResponse, error)
	AddItem(ctx context.Context, in *AddItemRequest, opts ...grpc.CallOption) (*ProductResponse, error)
	ChangePrice(ctx context.Context, in *ChangePriceRequest, opts ...grpc.CallOption) (*ProductResponse, error)
	Purchase(ctx context.Context, in *PurchaseRequest, opts ...grpc.CallOption) (*ProductResponse, error)
	ProductRefund(ctx context.Context, in *ProductRefundRequest, opts ...grpc.CallOption) (*ProductResponse, error)
	GetProduct(ctx context.Context, in *GetProductRequest, opts ...grpc.CallOption) (*ProductResponse, error)
	ListProducts(ctx context.Context, in *ListProductsRequest, opts ...grpc.CallOption) (*ListProductsResponse, error)
	MostPopularProduct(ctx context.Context, in *MostPopularProductRequest, opts ...grpc.CallOption) (*MostPopularProductResponse, error)
	GetBalance(ctx context.Context, in *GetBalanceRequest, opts ...grpc.CallOption) (*BalanceResponse, error)
	ListTransfers(ctx context.Context, in *ListTransfersRequest, opts ...grpc.CallOption) (*ListTransfersResponse, error)
}

type commerceServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewCommerceServiceClient returns a client that encodes every call with the JSON codec.
func NewCommerceServiceClient(cc grpc.ClientConnInterface) CommerceServiceClient {
	return &commerceServiceClient{cc: cc}
}

// WithCaller attaches the caller identity to an outgoing context.
func WithCaller(ctx context.Context, caller string) context.Context {
	return metadata.AppendToOutgoingContext(ctx, CallerMetadataKey, caller)
}

func invoke[Response any](ctx context.Context, cc grpc.ClientConnInterface, method string, in any, opts []grpc.CallOption) (*Response, error) {
	out := new(Response)
	callOptions := append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := cc.Invoke(ctx, method, in, out, callOptions...); err != nil {
		return nil, err
	}
	return out, nil
}

func (client *commerceServiceClient) Deploy(ctx context.Context, in *DeployRequest, opts ...grpc.CallOption) (*DeployResponse, error) {
	return invoke[DeployResponse](ctx, client.cc, CommerceService_Deploy_FullMethodName, in, opts)
}

func (client *commerceServiceClient) GetLedger(ctx context.Context, in *GetLedgerRequest, opts ...grpc.CallOption) (*LedgerResponse, error) {
	return invoke[LedgerResponse](ctx, client.cc, CommerceService_GetLedger_FullMethodName, in, opts)
}

func (client *commerceServiceClient) AddProduct(ctx context.Context, in *AddProductRequest, opts ...grpc.CallOption) (*AddProductResponse, error) {
	return invoke[AddProductResponse](ctx, client.cc, CommerceService_AddProduct_FullMethodName, in, opts)
}

func (client *commerceServiceClient) AddItem(ctx context.Context, in *AddItemRequest, opts ...grpc.CallOption) (*ProductResponse, error) {
	return invoke[ProductResponse](ctx, client.cc, CommerceService_AddItem_FullMethodName, in, opts)
}

func (client *commerceServiceClient) ChangePrice(ctx context.Context, in *ChangePriceRequest, opts ...grpc.CallOption) (*ProductResponse, error) {
	return invoke[ProductResponse](ctx, client.cc, CommerceService_ChangePrice_FullMethodName, in, opts)
}

func (client *commerceServiceClient) Purchase(ctx context.Context, in *PurchaseRequest, opts ...grpc.CallOption) (*ProductResponse, error) {
	return invoke[ProductResponse](ctx, client.cc, CommerceService_Purchase_FullMethodName, in, opts)
}

func (client *commerceServiceClient) ProductRefund(ctx context.Context, in *ProductRefundRequest, opts ...grpc.CallOption) (*ProductResponse, error) {
	return invoke[ProductResponse](ctx, client.cc, CommerceService_ProductRefund_FullMethodName, in, opts)
}

func (client *commerceServiceClient) GetProduct(ctx context.Context, in *GetProductRequest, opts ...grpc.CallOption) (*ProductResponse, error) {
	return invoke[ProductResponse](ctx, client.cc, CommerceService_GetProduct_FullMethodName, in, opts)
}

func (client *commerceServiceClient) ListProducts(ctx context.Context, in *ListProductsRequest, opts ...grpc.CallOption) (*ListProductsResponse, error) {
	return invoke[ListProductsResponse](ctx, client.cc, CommerceService_ListProducts_FullMethodName, in, opts)
}

func (client *commerceServiceClient) MostPopularProduct(ctx context.Context, in *MostPopularProductRequest, opts ...grpc.CallOption) (*MostPopularProductResponse, error) {
	return invoke[MostPopularProductResponse](ctx, client.cc, CommerceService_MostPopularProduct_FullMethodName, in, opts)
}

func (client *commerceServiceClient) GetBalance(ctx context.Context, in *GetBalanceRequest, opts ...grpc.CallOption) (*BalanceResponse, error) {
	return invoke[BalanceResponse](ctx, client.cc, CommerceService_GetBalance_FullMethodName, in, opts)
}

func (client *commerceServiceClient) ListTransfers(ctx context.Context, in *ListTransfersRequest, opts ...grpc.CallOption) (*ListTransfersResponse, error) {
	return invoke[ListTransfersResponse](ctx, client.cc, CommerceService_ListTransfers_FullMethodName, in, opts)
}
