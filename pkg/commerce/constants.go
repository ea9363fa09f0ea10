package commerce

const (
	OperationDeploy        = "deploy"
	OperationAddProduct    = "add_product"
	OperationAddItem       = "add_item"
	OperationChangePrice   = "change_price"
	OperationPurchase      = "purchase"
	OperationProductRefund = "product_refund"

	OperationStatusOK    = "ok"
	OperationStatusError = "error"

	errorSubjectCaller  = "caller"
	errorSubjectLedger  = "ledger"
	errorCodeNotOwner   = "not_owner"
	errorCodeGenerateID = "generate_id"

	defaultListTransfersLimit = 50
	maxListTransfersLimit     = 500
)
