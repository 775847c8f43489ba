// Package lnurl resolves LNURL-pay endpoints (LUD-06, LUD-16) and fetches zap
// invoices from them.
package lnurl

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
	"golang.org/x/time/rate"

	"zapbox.lol/bech32encoding"
	"zapbox.lol/bolt11"
	"zapbox.lol/chk"
	"zapbox.lol/context"
	"zapbox.lol/errorf"
	"zapbox.lol/event"
	"zapbox.lol/hex"
	"zapbox.lol/log"
)

var (
	ErrRateLimited    = errors.New("lnurl: rate limited")
	ErrAmountMismatch = errors.New("lnurl: invoice amount does not match request")
	ErrNotZappable    = errors.New("lnurl: endpoint does not accept zaps")
)

// PayRequest is the static LNURL-pay response.
type PayRequest struct {
	Callback       string `json:"callback"`
	MinSendable    int64  `json:"minSendable"`
	MaxSendable    int64  `json:"maxSendable"`
	Metadata       string `json:"metadata"`
	Tag            string `json:"tag"`
	AllowsNostr    bool   `json:"allowsNostr"`
	NostrPubkey    string `json:"nostrPubkey"`
	CommentAllowed int    `json:"commentAllowed"`
}

// Zapper returns the key the endpoint signs zap receipts with.
func (pr *PayRequest) Zapper() (pk []byte, err error) {
	if !pr.AllowsNostr {
		err = ErrNotZappable
		return
	}
	return hex.DecFixed(pr.NostrPubkey, 32)
}

type payResponse struct {
	PR string `json:"pr"`
}

type errorResponse struct {
	Status string `json:"status"`
	Reason string `json:"reason"`
}

// AddressToURL turns a lightning address user@domain into its LNURL-pay URL.
func AddressToURL(lud16 string) (u string, err error) {
	user, domain, ok := strings.Cut(strings.TrimSpace(lud16), "@")
	if !ok || user == "" || domain == "" || strings.ContainsAny(domain, "/@") {
		err = errorf.D("invalid lightning address '%s'", lud16)
		return
	}
	u = "https://" + strings.ToLower(domain) + "/.well-known/lnurlp/" + strings.ToLower(user)
	return
}

// FromProfile returns the bech32 lnurl of a profile, preferring lud06 and
// otherwise encoding the lud16 address.
func FromProfile(lud06, lud16 string) (lnurl string, err error) {
	if lud06 = strings.TrimSpace(lud06); lud06 != "" {
		return lud06, nil
	}
	if lud16 == "" {
		err = errorf.D("profile has no lightning address")
		return
	}
	var u string
	if u, err = AddressToURL(lud16); err != nil {
		return
	}
	return bech32encoding.EncodeLNURL(u)
}

// InvoiceRequest is one callback to an LNURL-pay endpoint. ZapRequest is nil
// for a plain payment, and Private suppresses the comment.
type InvoiceRequest struct {
	AmountMsat uint64
	ZapRequest *event.T
	Private    bool
	Comment    string
	LNURL      string
}

// Client talks to LNURL-pay endpoints and caches them per nostr pubkey.
type Client struct {
	HTTP       *http.Client
	Decoder    bolt11.Decoder
	Limiter    *rate.Limiter
	MaxRetries int
	// Backoff is the wait before retry number attempt, starting from 1.
	Backoff func(attempt int) time.Duration
	// AllowInternal permits endpoints on loopback and private addresses.
	AllowInternal bool
	cache         *xsync.MapOf[string, *PayRequest]
}

// NewClient creates a Client making at most perSecond requests per second. A
// perSecond of zero or less leaves requests unpaced.
func NewClient(dec bolt11.Decoder, perSecond float64) (cl *Client) {
	lim := rate.NewLimiter(rate.Inf, 1)
	if perSecond > 0 {
		lim = rate.NewLimiter(rate.Limit(perSecond), 1)
	}
	return &Client{
		HTTP:       &http.Client{Timeout: 10 * time.Second},
		Decoder:    dec,
		Limiter:    lim,
		MaxRetries: 3,
		Backoff:    func(attempt int) time.Duration { return time.Duration(1<<attempt) * time.Second },
		cache:      xsync.NewMapOf[string, *PayRequest](),
	}
}

func (cl *Client) checkURL(raw string) (u *url.URL, err error) {
	if u, err = url.Parse(raw); err != nil {
		err = errorf.D("invalid lnurl endpoint '%s': %w", raw, err)
		return
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		err = errorf.D("invalid lnurl scheme '%s'", u.Scheme)
		return
	}
	if cl.AllowInternal {
		return
	}
	host := strings.ToLower(u.Hostname())
	if host == "localhost" || host == "::1" || strings.HasSuffix(host, ".local") ||
		strings.HasSuffix(host, ".internal") {
		err = errorf.D("internal host '%s' not allowed", host)
		return
	}
	for _, p := range []string{"127.", "10.", "192.168.", "169.254.", "0."} {
		if strings.HasPrefix(host, p) {
			err = errorf.D("private address '%s' not allowed", host)
			return
		}
	}
	if strings.HasPrefix(host, "172.") {
		parts := strings.SplitN(host, ".", 3)
		if n, e := strconv.Atoi(parts[1]); e == nil && n >= 16 && n <= 31 {
			err = errorf.D("private address '%s' not allowed", host)
		}
	}
	return
}

// get fetches a JSON endpoint. A 429 status or a body mentioning too many
// requests is reported as ErrRateLimited.
func (cl *Client) get(c context.T, u string) (body []byte, err error) {
	if err = cl.Limiter.Wait(c); err != nil {
		return
	}
	var req *http.Request
	if req, err = http.NewRequestWithContext(c, http.MethodGet, u, nil); chk.E(err) {
		return
	}
	req.Header.Set("Accept", "application/json")
	var resp *http.Response
	if resp, err = cl.HTTP.Do(req); err != nil {
		err = errorf.D("lnurl request failed: %w", err)
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusTooManyRequests {
		err = ErrRateLimited
		return
	}
	if body, err = io.ReadAll(io.LimitReader(resp.Body, 1<<20)); err != nil {
		return
	}
	if strings.Contains(strings.ToLower(string(body)), "too many requests") {
		err = ErrRateLimited
		return
	}
	if resp.StatusCode != http.StatusOK {
		err = errorf.D("lnurl endpoint returned status %d", resp.StatusCode)
		return
	}
	var e errorResponse
	if json.Unmarshal(body, &e) == nil && strings.EqualFold(e.Status, "ERROR") {
		err = errorf.D("lnurl endpoint error: %s", e.Reason)
	}
	return
}

// FetchPayRequest decodes a bech32 lnurl and fetches its pay request.
func (cl *Client) FetchPayRequest(c context.T, lnurl string) (pr *PayRequest, err error) {
	var u string
	if u, err = bech32encoding.DecodeLNURL(lnurl); err != nil {
		return
	}
	if _, err = cl.checkURL(u); err != nil {
		return
	}
	var body []byte
	if body, err = cl.get(c, u); err != nil {
		return
	}
	pr = &PayRequest{}
	if err = json.Unmarshal(body, pr); err != nil {
		err = errorf.D("invalid pay request from %s: %w", u, err)
		return nil, err
	}
	if pr.Callback == "" {
		err = errorf.D("pay request from %s has no callback", u)
		return nil, err
	}
	if pr.Tag != "" && pr.Tag != "payRequest" {
		err = errorf.D("unexpected lnurl tag '%s'", pr.Tag)
		return nil, err
	}
	return
}

// Lookup returns the cached pay request for a pubkey, fetching it on a miss.
func (cl *Client) Lookup(c context.T, pubkey []byte, lnurl string) (pr *PayRequest, err error) {
	key := hex.Enc(pubkey)
	var ok bool
	if pr, ok = cl.cache.Load(key); ok {
		return
	}
	if pr, err = cl.FetchPayRequest(c, lnurl); err != nil {
		return
	}
	cl.cache.Store(key, pr)
	return
}

// Forget drops a cached pay request, after a profile changes its address.
func (cl *Client) Forget(pubkey []byte) { cl.cache.Delete(hex.Enc(pubkey)) }

// FetchZapper resolves the zapper key a pubkey's endpoint signs receipts
// with.
func (cl *Client) FetchZapper(c context.T, pubkey []byte, lnurl string) (zapper []byte, err error) {
	var pr *PayRequest
	if pr, err = cl.Lookup(c, pubkey, lnurl); err != nil {
		return
	}
	return pr.Zapper()
}

// callbackURL builds the invoice request URL. The zap request is only sent to
// endpoints that allow nostr, and the comment is cut to the allowed length.
func (cl *Client) callbackURL(pr *PayRequest, ir *InvoiceRequest) (s string, err error) {
	var u *url.URL
	if u, err = cl.checkURL(pr.Callback); err != nil {
		return
	}
	q := u.Query()
	q.Set("amount", strconv.FormatUint(ir.AmountMsat, 10))
	if pr.AllowsNostr && ir.ZapRequest != nil {
		q.Set("nostr", string(ir.ZapRequest.Serialize()))
	}
	if ir.LNURL != "" {
		q.Set("lnurl", ir.LNURL)
	}
	if !ir.Private && ir.Comment != "" && pr.CommentAllowed > 0 {
		comment := []rune(ir.Comment)
		if len(comment) > pr.CommentAllowed {
			comment = comment[:pr.CommentAllowed]
		}
		q.Set("comment", string(comment))
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// FetchInvoice makes a single callback request. The invoice must be for
// exactly the requested amount.
func (cl *Client) FetchInvoice(c context.T, pr *PayRequest,
	ir *InvoiceRequest) (inv *bolt11.Invoice, err error) {

	if pr.MinSendable > 0 && int64(ir.AmountMsat) < pr.MinSendable ||
		pr.MaxSendable > 0 && int64(ir.AmountMsat) > pr.MaxSendable {
		err = errorf.D("amount %d msat outside %d..%d", ir.AmountMsat,
			pr.MinSendable, pr.MaxSendable)
		return
	}
	var u string
	if u, err = cl.callbackURL(pr, ir); err != nil {
		return
	}
	log.T.F("lnurl callback %s", u)
	var body []byte
	if body, err = cl.get(c, u); err != nil {
		return
	}
	var res payResponse
	if err = json.Unmarshal(body, &res); err != nil || res.PR == "" {
		err = errorf.D("invalid callback response: %s", body)
		return
	}
	if inv, err = cl.Decoder.Decode(res.PR); err != nil {
		return
	}
	if msat, ok := inv.Msat(); !ok || msat != ir.AmountMsat {
		return nil, ErrAmountMismatch
	}
	return
}

// FetchInvoiceWithRetry retries FetchInvoice while the endpoint reports rate
// limiting, up to MaxRetries attempts in total. Other errors end it at once.
// There is always at least one attempt.
func (cl *Client) FetchInvoiceWithRetry(c context.T, pr *PayRequest,
	ir *InvoiceRequest) (inv *bolt11.Invoice, err error) {

	attempts := max(cl.MaxRetries, 1)
	for attempt := 1; ; attempt++ {
		if inv, err = cl.FetchInvoice(c, pr, ir); !errors.Is(err, ErrRateLimited) {
			return
		}
		if attempt >= attempts {
			return
		}
		wait := cl.Backoff(attempt)
		log.D.F("rate limited by %s, retry %d/%d in %v", pr.Callback, attempt,
			attempts, wait)
		select {
		case <-time.After(wait):
		case <-c.Done():
			return nil, c.Err()
		}
	}
	return
}
