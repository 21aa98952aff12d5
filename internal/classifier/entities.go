// ABOUTME: Pattern-based entity extraction from inbound message text
// ABOUTME: Regex matching only; the model is never consulted for entities

package classifier

import (
	"regexp"
	"strconv"
	"strings"
)

// Amount is a monetary value detected in text.
type Amount struct {
	Value    float64 `json:"value"`
	Currency string  `json:"currency"`
}

// Entities holds everything extracted from one message.
type Entities struct {
	TransactionIDs []string `json:"transaction_ids,omitempty"`
	OrderIDs       []string `json:"order_ids,omitempty"`
	ErrorCodes     []string `json:"error_codes,omitempty"`
	AccountIDs     []string `json:"account_ids,omitempty"`
	Emails         []string `json:"emails,omitempty"`
	Phones         []string `json:"phones,omitempty"`
	URLs           []string `json:"urls,omitempty"`
	Amounts        []Amount `json:"amounts,omitempty"`
}

var (
	transactionIDRe = regexp.MustCompile(`(?i)\b(?:txn|transaction)[-_ #:]*([A-Za-z0-9][A-Za-z0-9-]{3,})`)
	orderIDRe       = regexp.MustCompile(`(?i)\b(?:order|ord)[-_ #:]*([A-Za-z0-9][A-Za-z0-9-]{3,})`)
	errorCodeRe     = regexp.MustCompile(`\b([A-Z]{1,4}-?\d{2,6})\b`)
	accountIDRe     = regexp.MustCompile(`(?i)\b(?:acct|account)[-_ #:]*([A-Za-z0-9][A-Za-z0-9-]{3,})`)
	emailRe         = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)
	phoneRe         = regexp.MustCompile(`\+?\d[\d\s().-]{7,}\d`)
	urlRe           = regexp.MustCompile(`https?://[^\s<>"]+`)
	symbolAmountRe  = regexp.MustCompile(`([$€£])\s?(\d+(?:[.,]\d{1,2})?)`)
	codeAmountRe    = regexp.MustCompile(`(?i)\b(\d+(?:\.\d{1,2})?)\s?(USD|EUR|GBP)\b`)
)

var currencyBySymbol = map[string]string{
	"$": "USD",
	"€": "EUR",
	"£": "GBP",
}

// ExtractEntities runs every extraction pattern over the content.
func ExtractEntities(content string) Entities {
	var e Entities

	for _, m := range transactionIDRe.FindAllStringSubmatch(content, -1) {
		e.TransactionIDs = appendUnique(e.TransactionIDs, m[1])
	}
	for _, m := range orderIDRe.FindAllStringSubmatch(content, -1) {
		e.OrderIDs = appendUnique(e.OrderIDs, m[1])
	}
	for _, m := range errorCodeRe.FindAllStringSubmatch(content, -1) {
		e.ErrorCodes = appendUnique(e.ErrorCodes, m[1])
	}
	for _, m := range accountIDRe.FindAllStringSubmatch(content, -1) {
		e.AccountIDs = appendUnique(e.AccountIDs, m[1])
	}
	for _, m := range emailRe.FindAllString(content, -1) {
		e.Emails = appendUnique(e.Emails, m)
	}
	// Emails contain phone-shaped digit runs rarely, but URLs do; strip
	// URLs before phone matching to avoid garbage
	stripped := urlRe.ReplaceAllString(content, " ")
	for _, m := range phoneRe.FindAllString(stripped, -1) {
		if digitCount(m) >= 8 {
			e.Phones = appendUnique(e.Phones, strings.TrimSpace(m))
		}
	}
	for _, m := range urlRe.FindAllString(content, -1) {
		e.URLs = appendUnique(e.URLs, strings.TrimRight(m, ".,;)"))
	}

	for _, m := range symbolAmountRe.FindAllStringSubmatch(content, -1) {
		if v, err := strconv.ParseFloat(strings.ReplaceAll(m[2], ",", "."), 64); err == nil {
			e.Amounts = append(e.Amounts, Amount{Value: v, Currency: currencyBySymbol[m[1]]})
		}
	}
	for _, m := range codeAmountRe.FindAllStringSubmatch(content, -1) {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			e.Amounts = append(e.Amounts, Amount{Value: v, Currency: strings.ToUpper(m[2])})
		}
	}

	return e
}

// appendUnique adds s if not already present.
func appendUnique(list []string, s string) []string {
	for _, existing := range list {
		if existing == s {
			return list
		}
	}
	return append(list, s)
}

// digitCount counts decimal digits in s.
func digitCount(s string) int {
	n := 0
	for _, r := range s {
		if r >= '0' && r <= '9' {
			n++
		}
	}
	return n
}
