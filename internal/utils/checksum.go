package utils

import (
	"crypto/md5"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrBadAmount is returned when a gateway amount is not a plain decimal with
// at most two fractional digits.
var ErrBadAmount = errors.New("malformed amount")

// upperMD5 returns the upper-case hex MD5 of s, the only digest format the
// gateway understands.
func upperMD5(s string) string {
	sum := md5.Sum([]byte(s))
	return strings.ToUpper(hex.EncodeToString(sum[:]))
}

// CheckoutHash is the integrity value sent with a checkout request:
// MD5(merchant + order + amount + currency + MD5(secret)), upper-cased.
func CheckoutHash(merchantID, orderID, amount, currency, secret string) string {
	return upperMD5(merchantID + orderID + amount + currency + upperMD5(secret))
}

// NotifyDigest is the digest the gateway attaches to a payment notification.
// It extends the checkout hash input with the status code.
func NotifyDigest(merchantID, orderID, amount, currency, statusCode, secret string) string {
	return upperMD5(merchantID + orderID + amount + currency + statusCode + upperMD5(secret))
}

// DigestEqual compares two hex digests ignoring case in constant time.
func DigestEqual(a, b string) bool {
	a, b = strings.ToUpper(a), strings.ToUpper(b)
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// FormatAmount renders cents with exactly two decimals, e.g. 1000 -> "10.00".
func FormatAmount(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}

// ParseAmount converts a decimal string such as "10", "10.5" or "10.50" to
// cents without going through floating point.
func ParseAmount(raw string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.HasPrefix(raw, "-") || strings.HasPrefix(raw, "+") {
		return 0, fmt.Errorf("%w: %q", ErrBadAmount, raw)
	}
	whole, frac, _ := strings.Cut(raw, ".")
	if whole == "" || len(frac) > 2 {
		return 0, fmt.Errorf("%w: %q", ErrBadAmount, raw)
	}
	units, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrBadAmount, raw)
	}
	var cents int64
	if frac != "" {
		for len(frac) < 2 {
			frac += "0"
		}
		c, err := strconv.ParseInt(frac, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrBadAmount, raw)
		}
		cents = c
	}
	return units*100 + cents, nil
}
