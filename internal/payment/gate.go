// Package payment validates client-side card input before any seat is touched.
package payment

import (
	"strings"
	"time"
)

const (
	cardDigits = 16
	ccvDigits  = 3
)

// ValidatePayment reports whether the card fields are well formed and the card
// is still valid at bookingDate. It never fails: malformed input yields false.
//
// The card expires at the last millisecond of the expiry month (UTC). A date-only
// bookingDate stands for the last millisecond of that day, so a card expiring in
// the booking's month is rejected on the last day of that month.
func ValidatePayment(cardNumber, expiry, ccv, bookingDate string) bool {
	if !digitsOnly(normalizeCard(cardNumber), cardDigits) {
		return false
	}
	if !digitsOnly(ccv, ccvDigits) {
		return false
	}
	expiresAt, ok := expiryInstant(expiry)
	if !ok {
		return false
	}
	bookedAt, ok := bookingInstant(bookingDate)
	if !ok {
		return false
	}
	return expiresAt.After(bookedAt)
}

func normalizeCard(s string) string {
	return strings.NewReplacer(" ", "", "-", "").Replace(s)
}

func digitsOnly(s string, n int) bool {
	if len(s) != n {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func expiryInstant(expiry string) (time.Time, bool) {
	if len(expiry) != len("2006-01") {
		return time.Time{}, false
	}
	month, err := time.ParseInLocation("2006-01", expiry, time.UTC)
	if err != nil {
		return time.Time{}, false
	}
	return month.AddDate(0, 1, 0).Add(-time.Millisecond), true
}

func bookingInstant(date string) (time.Time, bool) {
	if day, err := time.ParseInLocation(time.DateOnly, date, time.UTC); err == nil {
		return day.AddDate(0, 0, 1).Add(-time.Millisecond), true
	}
	if ts, err := time.Parse(time.RFC3339Nano, date); err == nil {
		return ts, true
	}
	return time.Time{}, false
}
