// Package billing turns elapsed parking time into money.  Amounts are
// integer cents throughout.
package billing

import (
	"time"

	"github.com/iliyamo/parking-reservation/internal/model"
)

// BillableHours rounds the time between start and now up to whole hours.
// Zero or negative spans bill nothing.
func BillableHours(start, now time.Time) int64 {
	d := now.Sub(start)
	if d <= 0 {
		return 0
	}
	hours := int64(d / time.Hour)
	if d%time.Hour != 0 {
		hours++
	}
	return hours
}

// ElapsedAmount is the charge for parking from start until now at the given
// hourly rate.  The caller supplies now; stored end times are never used.
func ElapsedAmount(start, now time.Time, hourlyRateCents int64) int64 {
	return BillableHours(start, now) * hourlyRateCents
}

// PaidTotal sums the amounts of PAID records.  Failed, pending and refunded
// records do not count, nor do soft-deleted ones.
func PaidTotal(payments []model.PaymentRecord) int64 {
	var total int64
	for _, p := range payments {
		if p.IsDeleted || p.Status != model.PaymentStatusPaid {
			continue
		}
		total += p.AmountCents
	}
	return total
}

// Quote is the preview returned to staff before checkout.
type Quote struct {
	Hours           int64 `json:"hours"`
	HourlyRateCents int64 `json:"hourly_rate_cents"`
	AmountCents     int64 `json:"amount_cents"`
	PaidCents       int64 `json:"paid_cents"`
	DueCents        int64 `json:"due_cents"`
}

// NewQuote prices a reservation as of now.
func NewQuote(r model.Reservation, payments []model.PaymentRecord, now time.Time) Quote {
	hours := BillableHours(r.StartAt, now)
	amount := hours * r.HourlyRateCents
	paid := PaidTotal(payments)
	return Quote{
		Hours:           hours,
		HourlyRateCents: r.HourlyRateCents,
		AmountCents:     amount,
		PaidCents:       paid,
		DueCents:        amount - paid,
	}
}
