package nwc

// Methods are the text of the value of the Method field of Request and the
// ResultType of Response, in a form that allows more convenient reference than
// using a map or package scoped variables.
var Methods = struct {
	PayInvoice,
	ListTransactions,
	GetBalance by
}{
	by("pay_invoice"),
	by("list_transactions"),
	by("get_balance"),
}

// Keys are the JSON object keys of the request params.
var Keys = struct {
	Method,
	Params,
	Invoice,
	Amount,
	From,
	Until,
	Limit,
	Offset,
	Unpaid,
	Type by
}{
	by("method"),
	by("params"),
	by("invoice"),
	by("amount"),
	by("from"),
	by("until"),
	by("limit"),
	by("offset"),
	by("unpaid"),
	by("type"),
}

// Errors are the codes a wallet service puts in a response error.
var Errors = struct {
	// RateLimited - The client is sending commands too fast. It should retry in a few seconds.
	RateLimited,
	// NotImplemented - The command is not known or is intentionally not implemented.
	NotImplemented,
	// InsufficientBalance - The wallet does not have enough funds to cover a fee reserve or the payment amount.
	InsufficientBalance,
	// QuotaExceeded - The wallet has exceeded its spending quota.
	QuotaExceeded,
	// Restricted - This public key is not allowed to do this operation.
	Restricted,
	// Unauthorized - This public key has no wallet connected.
	Unauthorized,
	// Internal - An internal error.
	Internal,
	// Other - Other error.
	Other string
}{
	"RATE_LIMITED",
	"NOT_IMPLEMENTED",
	"INSUFFICIENT_BALANCE",
	"QUOTA_EXCEEDED",
	"RESTRICTED",
	"UNAUTHORIZED",
	"INTERNAL",
	"OTHER",
}
