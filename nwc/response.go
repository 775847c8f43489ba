package nwc

import (
	"bytes"
	"encoding/json"
	"errors"

	"zapbox.lol/encryption"
	"zapbox.lol/errorf"
	"zapbox.lol/event"
	"zapbox.lol/hex"
	"zapbox.lol/kind"
)

var (
	ErrNotResponse      = errors.New("not a wallet response event")
	ErrIncorrectAuthor  = errors.New("response not authored by the wallet service")
	ErrMissingRequestID = errors.New("response does not reference a request")
	ErrDecrypt          = errors.New("failed to decrypt wallet response")
	ErrDecodeJSON       = errors.New("failed to decode wallet response")
)

type PayInvoiceResult struct {
	Preimage string `json:"preimage"`
	FeesPaid Msat   `json:"fees_paid,omitempty"`
}

type GetBalanceResult struct {
	Balance Msat `json:"balance"`
}

// Transaction is an entry of a transaction listing.
type Transaction struct {
	Type            string          `json:"type"` // incoming or outgoing
	Invoice         string          `json:"invoice,omitempty"`
	Description     string          `json:"description,omitempty"`
	DescriptionHash string          `json:"description_hash,omitempty"`
	Preimage        string          `json:"preimage,omitempty"`
	PaymentHash     string          `json:"payment_hash"`
	Amount          Msat            `json:"amount"`
	FeesPaid        Msat            `json:"fees_paid"`
	CreatedAt       int64           `json:"created_at"`
	ExpiresAt       int64           `json:"expires_at,omitempty"`
	SettledAt       int64           `json:"settled_at,omitempty"`
	Metadata        json.RawMessage `json:"metadata,omitempty"`
}

type ListTransactionsResult struct {
	Transactions []Transaction `json:"transactions"`
}

// Response is a decoded wallet response. Exactly one of Error and Result is
// set; Result is one of *PayInvoiceResult, *GetBalanceResult and
// *ListTransactionsResult, following ResultType.
type Response struct {
	RequestID  []byte
	ResultType string
	Error      *WalletError
	Result     any
}

type wireResponse struct {
	ResultType string          `json:"result_type"`
	Error      *WalletError    `json:"error"`
	Result     json.RawMessage `json:"result"`
}

// ParseResponse authenticates, decrypts and decodes a wallet response event.
func ParseResponse(ev *event.T, u *URL) (r *Response, err error) {
	if !ev.Kind.Equal(kind.WalletResponse) {
		return nil, ErrNotResponse
	}
	if !bytes.Equal(ev.Pubkey, u.ServicePubkey) {
		return nil, ErrIncorrectAuthor
	}
	r = &Response{}
	e := ev.Tags.GetFirst([]byte("e"))
	if e == nil {
		return nil, ErrMissingRequestID
	}
	if r.RequestID, err = hex.DecFixed(string(e.Value()), 32); err != nil {
		return nil, errorf.T("%w: %w", ErrMissingRequestID, err)
	}
	var ck, plain []byte
	if ck, err = encryption.ConversationKey(u.Keypair, u.ServicePubkey); err != nil {
		return nil, errorf.T("%w: %w", ErrDecrypt, err)
	}
	if plain, err = encryption.Decrypt(string(ev.Content), ck); err != nil {
		return nil, errorf.T("%w: %w", ErrDecrypt, err)
	}
	var w wireResponse
	if err = json.Unmarshal(plain, &w); err != nil {
		return nil, errorf.T("%w: %w", ErrDecodeJSON, err)
	}
	r.ResultType = w.ResultType
	if w.Error != nil {
		r.Error = w.Error
		return
	}
	switch w.ResultType {
	case string(Methods.PayInvoice):
		r.Result = &PayInvoiceResult{}
	case string(Methods.GetBalance):
		r.Result = &GetBalanceResult{}
	case string(Methods.ListTransactions):
		r.Result = &ListTransactionsResult{}
	default:
		return nil, errorf.T("%w: unknown result type '%s'", ErrDecodeJSON, w.ResultType)
	}
	if err = json.Unmarshal(w.Result, r.Result); err != nil {
		return nil, errorf.T("%w: %w", ErrDecodeJSON, err)
	}
	return
}
