package nwc

import (
	"fmt"
)

// WalletError is the error object of a failed wallet response.
type WalletError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *WalletError) Error() string { return fmt.Sprintf("%s: %s", e.Code, e.Message) }

var humanMessages = map[string]string{
	Errors.RateLimited:         "Your wallet is temporarily being rate limited.",
	Errors.NotImplemented:      "This feature is not implemented by your wallet.",
	Errors.InsufficientBalance: "Your wallet does not have sufficient balance for this transaction.",
	Errors.QuotaExceeded:       "Your transaction quota has been exceeded.",
	Errors.Restricted:          "This operation is restricted by your wallet.",
	Errors.Unauthorized:        "You are not authorized to perform this action with your wallet.",
	Errors.Internal:            "An internal error occurred in your wallet.",
	Errors.Other:               "An unspecified error occurred in your wallet.",
}

// Human is a sentence describing the error to the wallet's owner.
func (e *WalletError) Human() string {
	if m, ok := humanMessages[e.Code]; ok {
		return m
	}
	return fmt.Sprintf("Your connected wallet raised an unknown error. Message: %s", e.Message)
}
