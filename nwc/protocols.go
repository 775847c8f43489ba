package nwc

import (
	"strconv"

	"zapbox.lol/text"
)

type by = []byte

// Requester is a wallet method call that can be encoded as the JSON request
// body. Each request type embeds Request so the method is known without
// reflection.
type Requester interface {
	RequestType() []byte
	Marshal(dst []byte) (b []byte)
}

type Request struct {
	Method by
}

func (r Request) RequestType() []byte { return r.Method }

// Msat is milli-sat, max possible value is 1000 x 21 x 100 000 000 (well, under
// 19 places of 64 bits in base 10)
type Msat uint64

func (m Msat) Bytes(dst []byte) (b []byte) { return strconv.AppendUint(dst, uint64(m), 10) }

// open writes the method and the key of the params, leaving the params value
// to the caller.
func open(dst []byte, r Requester) []byte {
	dst = append(dst, '{')
	dst = text.JSONKey(dst, Keys.Method)
	dst = text.Quote(dst, r.RequestType())
	dst = append(dst, ',')
	return text.JSONKey(dst, Keys.Params)
}

type PayInvoiceRequest struct {
	Request
	Invoice by
	Amount  Msat // optional, omitted if zero
}

func NewPayInvoiceRequest[V string | []byte](invoice V, amount Msat) PayInvoiceRequest {
	return PayInvoiceRequest{Request{Methods.PayInvoice}, []byte(invoice), amount}
}

func (p PayInvoiceRequest) Marshal(dst []byte) (b []byte) {
	dst = open(dst, p)
	dst = append(dst, '{')
	dst = text.JSONKey(dst, Keys.Invoice)
	dst = text.AppendQuote(dst, p.Invoice, text.NostrEscape)
	if p.Amount > 0 {
		dst = append(dst, ',')
		dst = text.JSONKey(dst, Keys.Amount)
		dst = p.Amount.Bytes(dst)
	}
	b = append(dst, '}', '}')
	return
}

type GetBalanceRequest struct {
	Request
	// nothing to see here, move along
}

func NewGetBalanceRequest() GetBalanceRequest { return GetBalanceRequest{Request{Methods.GetBalance}} }

func (g GetBalanceRequest) Marshal(dst []byte) (b []byte) {
	dst = open(dst, g)
	b = append(dst, "null}"...)
	return
}

// ListTransactions are the optional filters of a transaction listing. Nil
// fields are left out of the request.
type ListTransactions struct {
	From   *int64
	Until  *int64
	Limit  *int
	Offset *int
	Unpaid *bool
	Type   *string // incoming, outgoing or nil for both
}

type ListTransactionsRequest struct {
	Request
	ListTransactions
}

func NewListTransactionsRequest(lt ListTransactions) ListTransactionsRequest {
	return ListTransactionsRequest{Request{Methods.ListTransactions}, lt}
}

func (l ListTransactionsRequest) Marshal(dst []byte) (b []byte) {
	dst = open(dst, l)
	dst = append(dst, '{')
	first := true
	key := func(k []byte) {
		if !first {
			dst = append(dst, ',')
		}
		first = false
		dst = text.JSONKey(dst, k)
	}
	if l.From != nil {
		key(Keys.From)
		dst = strconv.AppendInt(dst, *l.From, 10)
	}
	if l.Until != nil {
		key(Keys.Until)
		dst = strconv.AppendInt(dst, *l.Until, 10)
	}
	if l.Limit != nil {
		key(Keys.Limit)
		dst = strconv.AppendInt(dst, int64(*l.Limit), 10)
	}
	if l.Offset != nil {
		key(Keys.Offset)
		dst = strconv.AppendInt(dst, int64(*l.Offset), 10)
	}
	if l.Unpaid != nil {
		key(Keys.Unpaid)
		dst = strconv.AppendBool(dst, *l.Unpaid)
	}
	if l.Type != nil {
		key(Keys.Type)
		dst = text.AppendQuote(dst, []byte(*l.Type), text.NostrEscape)
	}
	b = append(dst, '}', '}')
	return
}
