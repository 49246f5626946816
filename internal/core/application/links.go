package application

import (
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"

	"github.com/Da-devs/dPay/internal/core/domain"
)

const (
	DefaultPaymentLinkBaseURL = "https://dpay.app/pay"
	DefaultExplorerBaseURL    = "https://polygonscan.com/address"
)

var ErrInvalidAmount = fmt.Errorf("amount must be a positive number")

// QueryEscape escapes a few characters that browsers leave as they are when
// encoding a URI component, and encodes spaces as +.
var uriComponentReplacer = strings.NewReplacer(
	"+", "%20", "%21", "!", "%27", "'", "%28", "(", "%29", ")", "%2A", "*",
)

// LinkBuilder renders the links shared from the receive view.
type LinkBuilder struct {
	PaymentBaseURL  string
	ExplorerBaseURL string
}

func NewLinkBuilder(paymentBaseURL, explorerBaseURL string) LinkBuilder {
	if len(paymentBaseURL) <= 0 {
		paymentBaseURL = DefaultPaymentLinkBaseURL
	}
	if len(explorerBaseURL) <= 0 {
		explorerBaseURL = DefaultExplorerBaseURL
	}
	return LinkBuilder{
		PaymentBaseURL:  strings.TrimRight(paymentBaseURL, "?"),
		ExplorerBaseURL: strings.TrimRight(explorerBaseURL, "/"),
	}
}

// PaymentLink returns <base>?to=<address>[&amount=<amount>][&note=<note>].
// Parameters keep this order so links stay stable for QR encoding. The amount
// is validated and kept as typed, the note is encoded as a URI component.
func (b LinkBuilder) PaymentLink(address, amount, note string) (string, error) {
	if len(address) <= 0 {
		return "", domain.ErrNotConnected
	}

	amount = strings.TrimSpace(amount)
	if len(amount) > 0 {
		value, err := strconv.ParseFloat(amount, 64)
		if err != nil || math.IsNaN(value) || math.IsInf(value, 0) || value <= 0 {
			return "", ErrInvalidAmount
		}
	}

	var sb strings.Builder
	sb.WriteString(b.PaymentBaseURL)
	sb.WriteString("?to=")
	sb.WriteString(url.QueryEscape(address))
	if len(amount) > 0 {
		sb.WriteString("&amount=")
		sb.WriteString(amount)
	}
	if len(note) > 0 {
		sb.WriteString("&note=")
		sb.WriteString(encodeURIComponent(note))
	}
	return sb.String(), nil
}

func (b LinkBuilder) ExplorerLink(address string) string {
	return fmt.Sprintf("%s/%s", b.ExplorerBaseURL, address)
}

func encodeURIComponent(s string) string {
	return uriComponentReplacer.Replace(url.QueryEscape(s))
}
