package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/skip2/go-qrcode"

	"zapbox.lol/bolt11"
	"zapbox.lol/chk"
)

// printInvoice shows an invoice for an external wallet to scan, as a QR code
// drawn in the terminal followed by the text of the invoice.
func printInvoice(w io.Writer, inv *bolt11.Invoice) {
	uri := "lightning:" + strings.ToUpper(inv.Raw)
	if q, err := qrcode.New(uri, qrcode.Low); !chk.E(err) {
		_, _ = fmt.Fprintln(w, q.ToString(false))
	}
	if msat, ok := inv.Msat(); ok {
		_, _ = fmt.Fprintf(w, "%d sats\n", msat/1000)
	}
	_, _ = fmt.Fprintf(w, "%s\n\n", inv.Raw)
}
