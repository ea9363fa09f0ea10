// Package storefront serves the commerce ledger as a session-authenticated HTTP API.
package storefront

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tyemirov/tauth/pkg/sessionvalidator"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	commercev1 "github.com/MarkoPoloResearchLab/commerce/api/commerce/v1"
)

const (
	claimsContextKey   = "auth_claims"
	paramLedgerID      = "ledger_id"
	paramIndex         = "index"
	queryBefore        = "before"
	queryLimit         = "limit"
	errorCodeInvalid   = "invalid_payload"
	errorCodeIndex     = "invalid_index"
	errorCodeQuery     = "invalid_query"
	errorCodeLedger    = "ledger_error"
	errorCodeNoSession = "unauthorized"
)

// Run boots the HTTP façade using the supplied configuration.
func Run(ctx context.Context, cfg Config) error {
	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("zap init: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	dialOptions := []grpc.DialOption{}
	if cfg.LedgerInsecure {
		dialOptions = append(dialOptions, grpc.WithTransportCredentials(insecure.NewCredentials()))
	} else {
		dialOptions = append(dialOptions, grpc.WithTransportCredentials(credentials.NewClientTLSFromCert(nil, "")))
	}
	conn, err := grpc.NewClient(cfg.LedgerAddress, dialOptions...)
	if err != nil {
		return fmt.Errorf("connect ledger: %w", err)
	}
	conn.Connect()
	if err := waitForClientReady(ctx, conn); err != nil {
		_ = conn.Close()
		return fmt.Errorf("connect ledger: %w", err)
	}
	defer conn.Close()

	sessionValidator, err := sessionvalidator.New(sessionvalidator.Config{
		SigningKey: []byte(cfg.SessionSigningKey),
		Issuer:     cfg.SessionIssuer,
		CookieName: cfg.SessionCookieName,
	})
	if err != nil {
		return fmt.Errorf("session validator: %w", err)
	}

	handler := &httpHandler{
		logger:         logger,
		commerceClient: commercev1.NewCommerceServiceClient(conn),
		cfg:            cfg,
	}
	server := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: setupRouter(cfg, handler, sessionValidator),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("storefront listening", zap.String("addr", cfg.ListenAddr))
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := server.Shutdown(shutdownCtx); shutdownErr != nil {
			logger.Warn("server shutdown error", zap.Error(shutdownErr))
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func setupRouter(cfg Config, handler *httpHandler, validator *sessionvalidator.Validator) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Origin", "Accept"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/healthz", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api")
	api.Use(validator.GinMiddleware(claimsContextKey))

	api.POST("/ledgers", handler.handleDeploy)
	ledger := api.Group("/ledgers/:" + paramLedgerID)
	ledger.GET("", handler.handleLedger)
	ledger.GET("/products", handler.handleProducts)
	ledger.POST("/products", handler.handleAddProduct)
	ledger.GET("/products/:"+paramIndex, handler.handleProduct)
	ledger.POST("/products/:"+paramIndex+"/stock", handler.handleAddItem)
	ledger.POST("/products/:"+paramIndex+"/price", handler.handleChangePrice)
	ledger.POST("/products/:"+paramIndex+"/purchases", handler.handlePurchase)
	ledger.POST("/products/:"+paramIndex+"/refunds", handler.handleRefund)
	ledger.GET("/popular", handler.handleMostPopular)
	ledger.GET("/balance", handler.handleBalance)
	ledger.GET("/transfers", handler.handleTransfers)

	return router
}

type httpHandler struct {
	logger         *zap.Logger
	commerceClient commercev1.CommerceServiceClient
	cfg            Config
}

type deployRequest struct {
	OwnerName string `json:"owner_name"`
}

type addProductRequest struct {
	Name         string `json:"name"`
	InitialStock int64  `json:"initial_stock"`
	UnitPrice    int64  `json:"unit_price"`
}

type deltaRequest struct {
	Delta int64 `json:"delta"`
}

type purchaseRequest struct {
	Quantity int64          `json:"quantity"`
	Payment  int64          `json:"payment"`
	Metadata map[string]any `json:"metadata"`
}

type refundRequest struct {
	Payment  int64          `json:"payment"`
	Metadata map[string]any `json:"metadata"`
}

type transferPayload struct {
	TransferID     string          `json:"transfer_id"`
	Kind           string          `json:"kind"`
	From           string          `json:"from"`
	To             string          `json:"to"`
	Amount         int64           `json:"amount"`
	ProductIndex   int64           `json:"product_index"`
	Quantity       int64           `json:"quantity"`
	Metadata       json.RawMessage `json:"metadata"`
	CreatedUnixUTC int64           `json:"created_unix_utc"`
}

func (handler *httpHandler) handleDeploy(ctx *gin.Context) {
	requestCtx, cancel, ok := handler.callerContext(ctx)
	if !ok {
		return
	}
	defer cancel()
	var request deployRequest
	if err := ctx.ShouldBindJSON(&request); err != nil && !errors.Is(err, io.EOF) {
		ctx.JSON(http.StatusBadRequest, errorResponse(errorCodeInvalid, "expected JSON body"))
		return
	}
	response, err := handler.commerceClient.Deploy(requestCtx, &commercev1.DeployRequest{OwnerName: request.OwnerName})
	if err != nil {
		handler.respondLedgerError(ctx, "deploy", err)
		return
	}
	ctx.JSON(http.StatusCreated, gin.H{"ledger_id": response.LedgerID})
}

func (handler *httpHandler) handleLedger(ctx *gin.Context) {
	requestCtx, cancel, ok := handler.callerContext(ctx)
	if !ok {
		return
	}
	defer cancel()
	response, err := handler.commerceClient.GetLedger(requestCtx, &commercev1.GetLedgerRequest{LedgerID: ctx.Param(paramLedgerID)})
	if err != nil {
		handler.respondLedgerError(ctx, "get ledger", err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"ledger": response})
}

func (handler *httpHandler) handleProducts(ctx *gin.Context) {
	requestCtx, cancel, ok := handler.callerContext(ctx)
	if !ok {
		return
	}
	defer cancel()
	response, err := handler.commerceClient.ListProducts(requestCtx, &commercev1.ListProductsRequest{LedgerID: ctx.Param(paramLedgerID)})
	if err != nil {
		handler.respondLedgerError(ctx, "list products", err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"products": response.Products})
}

func (handler *httpHandler) handleAddProduct(ctx *gin.Context) {
	requestCtx, cancel, ok := handler.callerContext(ctx)
	if !ok {
		return
	}
	defer cancel()
	var request addProductRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse(errorCodeInvalid, "expected JSON body"))
		return
	}
	response, err := handler.commerceClient.AddProduct(requestCtx, &commercev1.AddProductRequest{
		LedgerID:     ctx.Param(paramLedgerID),
		Name:         request.Name,
		InitialStock: request.InitialStock,
		UnitPrice:    request.UnitPrice,
	})
	if err != nil {
		handler.respondLedgerError(ctx, "add product", err)
		return
	}
	ctx.JSON(http.StatusCreated, gin.H{"index": response.Index})
}

func (handler *httpHandler) handleProduct(ctx *gin.Context) {
	index, ok := indexParam(ctx)
	if !ok {
		return
	}
	requestCtx, cancel, ok := handler.callerContext(ctx)
	if !ok {
		return
	}
	defer cancel()
	response, err := handler.commerceClient.GetProduct(requestCtx, &commercev1.GetProductRequest{LedgerID: ctx.Param(paramLedgerID), Index: index})
	if err != nil {
		handler.respondLedgerError(ctx, "get product", err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"product": response.Product})
}

func (handler *httpHandler) handleAddItem(ctx *gin.Context) {
	index, ok := indexParam(ctx)
	if !ok {
		return
	}
	requestCtx, cancel, ok := handler.callerContext(ctx)
	if !ok {
		return
	}
	defer cancel()
	var request deltaRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse(errorCodeInvalid, "expected JSON body"))
		return
	}
	response, err := handler.commerceClient.AddItem(requestCtx, &commercev1.AddItemRequest{LedgerID: ctx.Param(paramLedgerID), Index: index, Delta: request.Delta})
	if err != nil {
		handler.respondLedgerError(ctx, "add item", err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"product": response.Product})
}

func (handler *httpHandler) handleChangePrice(ctx *gin.Context) {
	index, ok := indexParam(ctx)
	if !ok {
		return
	}
	requestCtx, cancel, ok := handler.callerContext(ctx)
	if !ok {
		return
	}
	defer cancel()
	var request deltaRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse(errorCodeInvalid, "expected JSON body"))
		return
	}
	response, err := handler.commerceClient.ChangePrice(requestCtx, &commercev1.ChangePriceRequest{LedgerID: ctx.Param(paramLedgerID), Index: index, Delta: request.Delta})
	if err != nil {
		handler.respondLedgerError(ctx, "change price", err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"product": response.Product})
}

func (handler *httpHandler) handlePurchase(ctx *gin.Context) {
	index, ok := indexParam(ctx)
	if !ok {
		return
	}
	requestCtx, cancel, ok := handler.callerContext(ctx)
	if !ok {
		return
	}
	defer cancel()
	var request purchaseRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse(errorCodeInvalid, "expected JSON body"))
		return
	}
	metadata := request.Metadata
	if metadata == nil {
		metadata = map[string]any{"action": "purchase"}
	}
	response, err := handler.commerceClient.Purchase(requestCtx, &commercev1.PurchaseRequest{
		LedgerID:     ctx.Param(paramLedgerID),
		Index:        index,
		Quantity:     request.Quantity,
		Payment:      request.Payment,
		MetadataJSON: marshalMetadata(metadata),
	})
	if err != nil {
		handler.respondLedgerError(ctx, "purchase", err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"product": response.Product})
}

func (handler *httpHandler) handleRefund(ctx *gin.Context) {
	index, ok := indexParam(ctx)
	if !ok {
		return
	}
	requestCtx, cancel, ok := handler.callerContext(ctx)
	if !ok {
		return
	}
	defer cancel()
	var request refundRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse(errorCodeInvalid, "expected JSON body"))
		return
	}
	metadata := request.Metadata
	if metadata == nil {
		metadata = map[string]any{"action": "refund"}
	}
	response, err := handler.commerceClient.ProductRefund(requestCtx, &commercev1.ProductRefundRequest{
		LedgerID:     ctx.Param(paramLedgerID),
		Index:        index,
		Payment:      request.Payment,
		MetadataJSON: marshalMetadata(metadata),
	})
	if err != nil {
		handler.respondLedgerError(ctx, "refund", err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"product": response.Product})
}

func (handler *httpHandler) handleMostPopular(ctx *gin.Context) {
	requestCtx, cancel, ok := handler.callerContext(ctx)
	if !ok {
		return
	}
	defer cancel()
	response, err := handler.commerceClient.MostPopularProduct(requestCtx, &commercev1.MostPopularProductRequest{LedgerID: ctx.Param(paramLedgerID)})
	if err != nil {
		handler.respondLedgerError(ctx, "most popular", err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"index": response.Index, "total_purchased": response.TotalPurchased})
}

func (handler *httpHandler) handleBalance(ctx *gin.Context) {
	requestCtx, cancel, ok := handler.callerContext(ctx)
	if !ok {
		return
	}
	defer cancel()
	response, err := handler.commerceClient.GetBalance(requestCtx, &commercev1.GetBalanceRequest{LedgerID: ctx.Param(paramLedgerID)})
	if err != nil {
		handler.respondLedgerError(ctx, "balance", err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"balance": response})
}

func (handler *httpHandler) handleTransfers(ctx *gin.Context) {
	before, err := optionalInt64Query(ctx, queryBefore)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse(errorCodeQuery, "before must be an integer"))
		return
	}
	limit, err := optionalInt64Query(ctx, queryLimit)
	if err != nil || limit < 0 {
		ctx.JSON(http.StatusBadRequest, errorResponse(errorCodeQuery, "limit must be a non-negative integer"))
		return
	}
	if limit == 0 {
		limit = int64(handler.cfg.TransfersLimit)
	}
	requestCtx, cancel, ok := handler.callerContext(ctx)
	if !ok {
		return
	}
	defer cancel()
	response, err := handler.commerceClient.ListTransfers(requestCtx, &commercev1.ListTransfersRequest{
		LedgerID:      ctx.Param(paramLedgerID),
		BeforeUnixUTC: before,
		Limit:         int32(limit),
	})
	if err != nil {
		handler.respondLedgerError(ctx, "list transfers", err)
		return
	}
	transfers := make([]transferPayload, 0, len(response.Transfers))
	for _, transfer := range response.Transfers {
		transfers = append(transfers, transferPayload{
			TransferID:     transfer.TransferID,
			Kind:           transfer.Kind,
			From:           transfer.From,
			To:             transfer.To,
			Amount:         transfer.Amount,
			ProductIndex:   transfer.ProductIndex,
			Quantity:       transfer.Quantity,
			Metadata:       json.RawMessage(transfer.MetadataJSON),
			CreatedUnixUTC: transfer.CreatedUnixUTC,
		})
	}
	ctx.JSON(http.StatusOK, gin.H{"transfers": transfers})
}

// callerContext bounds the ledger call and forwards the session user as the caller.
func (handler *httpHandler) callerContext(ctx *gin.Context) (context.Context, context.CancelFunc, bool) {
	claims := getClaims(ctx)
	if claims == nil {
		ctx.JSON(http.StatusUnauthorized, errorResponse(errorCodeNoSession, "missing session"))
		return nil, nil, false
	}
	requestCtx, cancel := context.WithTimeout(ctx.Request.Context(), handler.cfg.LedgerTimeout)
	return commercev1.WithCaller(requestCtx, claims.GetUserID()), cancel, true
}

func (handler *httpHandler) respondLedgerError(ctx *gin.Context, action string, err error) {
	statusInfo, ok := status.FromError(err)
	if !ok {
		handler.logger.Error(action+" failed", zap.Error(err))
		ctx.JSON(http.StatusBadGateway, errorResponse(errorCodeLedger, action+" failed"))
		return
	}
	httpStatus := httpStatusFromCode(statusInfo.Code())
	if httpStatus == http.StatusBadGateway {
		handler.logger.Error(action+" failed", zap.Error(err))
		ctx.JSON(httpStatus, errorResponse(errorCodeLedger, action+" failed"))
		return
	}
	ctx.JSON(httpStatus, errorResponse(statusInfo.Message(), action+" rejected"))
}

func httpStatusFromCode(code codes.Code) int {
	switch code {
	case codes.Unauthenticated:
		return http.StatusUnauthorized
	case codes.PermissionDenied:
		return http.StatusForbidden
	case codes.NotFound:
		return http.StatusNotFound
	case codes.AlreadyExists:
		return http.StatusConflict
	case codes.InvalidArgument, codes.OutOfRange:
		return http.StatusBadRequest
	case codes.FailedPrecondition:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusBadGateway
	}
}

func indexParam(ctx *gin.Context) (int64, bool) {
	index, err := strconv.ParseInt(ctx.Param(paramIndex), 10, 64)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse(errorCodeIndex, "index must be an integer"))
		return 0, false
	}
	return index, true
}

func optionalInt64Query(ctx *gin.Context, name string) (int64, error) {
	raw := ctx.Query(name)
	if raw == "" {
		return 0, nil
	}
	return strconv.ParseInt(raw, 10, 64)
}

func marshalMetadata(metadata any) string {
	raw, err := json.Marshal(metadata)
	if err != nil {
		return "{}"
	}
	return string(raw)
}

func getClaims(ctx *gin.Context) *sessionvalidator.Claims {
	claimsValue, ok := ctx.Get(claimsContextKey)
	if !ok {
		return nil
	}
	claims, _ := claimsValue.(*sessionvalidator.Claims)
	return claims
}

func errorResponse(code string, message string) gin.H {
	return gin.H{
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	}
}

func waitForClientReady(ctx context.Context, conn *grpc.ClientConn) error {
	for {
		state := conn.GetState()
		if state == connectivity.Ready {
			return nil
		}
		if state == connectivity.Shutdown {
			return errors.New("grpc connection shutdown before ready")
		}
		if !conn.WaitForStateChange(ctx, state) {
			if err := ctx.Err(); err != nil {
				return err
			}
			return errors.New("grpc connection failed to reach ready state")
		}
	}
}
