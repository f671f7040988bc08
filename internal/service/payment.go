package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/iliyamo/parking-reservation/internal/model"
	"github.com/iliyamo/parking-reservation/internal/repository"
	"github.com/iliyamo/parking-reservation/internal/utils"
)

// gatewaySuccess is the status_code the gateway sends for a captured charge.
const gatewaySuccess = "2"

const deliveryLockTTL = 30 * time.Second

// GatewayConfig identifies this merchant to the payment gateway.
type GatewayConfig struct {
	MerchantID     string
	MerchantSecret string
	Currency       string
}

// CheckoutToken is handed to the client, which forwards it to the gateway
// when opening a payment session.
type CheckoutToken struct {
	MerchantID string `json:"merchant_id"`
	OrderID    string `json:"order_id"`
	Amount     string `json:"amount"`
	Currency   string `json:"currency"`
	Hash       string `json:"hash"`
}

// GatewayNotification is the body of a payment notification.  Field names
// follow the gateway's form keys.
type GatewayNotification struct {
	MerchantID     string `form:"merchant_id"`
	OrderID        string `form:"order_id"`
	PaymentID      string `form:"payment_id"`
	Amount         string `form:"payhere_amount"`
	Currency       string `form:"payhere_currency"`
	StatusCode     string `form:"status_code"`
	MD5Sig         string `form:"md5sig"`
	Method         string `form:"method"`
	StatusMessage  string `form:"status_message"`
	CardHolderName string `form:"card_holder_name"`
	CardNo         string `form:"card_no"`
	CardExpiry     string `form:"card_expiry"`
}

// ReconcileOutcome describes what a notification did.  UpdateError is set
// when the payment was stored but the reservation could not be updated.
type ReconcileOutcome struct {
	ReservationID string              `json:"reservation_id"`
	PaymentID     string              `json:"payment_id,omitempty"`
	PaymentStatus model.PaymentStatus `json:"payment_status,omitempty"`
	Verified      bool                `json:"verified"`
	Duplicate     bool                `json:"duplicate"`
	UpdateError   string              `json:"update_error,omitempty"`
}

// StaffPaymentRequest records money taken at the counter.
type StaffPaymentRequest struct {
	AmountCents int64
	Method      model.PaymentMethod
	PaidBy      uint64
	Reference   string
	BankName    string
	Evidence    []string
}

// PaymentService issues checkout tokens, reconciles gateway notifications
// and records staff-entered payments and refunds.
type PaymentService struct {
	store    repository.Store
	guard    DeliveryGuard
	gateway  GatewayConfig
	notifier Notifier
	log      *zap.Logger
	now      func() time.Time
}

func NewPaymentService(store repository.Store, guard DeliveryGuard, gateway GatewayConfig, notifier Notifier, log *zap.Logger) *PaymentService {
	if guard == nil {
		guard = noGuard{}
	}
	return &PaymentService{
		store:    store,
		guard:    guard,
		gateway:  gateway,
		notifier: notifier,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

type noGuard struct{}

func (noGuard) Acquire(context.Context, string, time.Duration) (bool, error) { return true, nil }
func (noGuard) Release(context.Context, string) error                        { return nil }

// IssueCheckoutToken signs a checkout request for an existing reservation.
// An empty currency falls back to the configured one.
func (s *PaymentService) IssueCheckoutToken(ctx context.Context, orderID string, amountCents int64, currency string) (CheckoutToken, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return CheckoutToken{}, validationErr("order_id is required")
	}
	if amountCents <= 0 {
		return CheckoutToken{}, validationErr("amount must be positive")
	}
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == "" {
		currency = s.gateway.Currency
	}
	res, err := s.store.Reservations().Get(ctx, orderID)
	if errors.Is(err, repository.ErrNotFound) || (err == nil && res.IsDeleted) {
		return CheckoutToken{}, ErrReservationNotFound
	}
	if err != nil {
		return CheckoutToken{}, err
	}
	amount := utils.FormatAmount(amountCents)
	return CheckoutToken{
		MerchantID: s.gateway.MerchantID,
		OrderID:    orderID,
		Amount:     amount,
		Currency:   currency,
		Hash:       utils.CheckoutHash(s.gateway.MerchantID, orderID, amount, currency, s.gateway.MerchantSecret),
	}, nil
}

// Reconcile applies a gateway notification.  The reservation is located by
// order_id only.  A verified success stores a PAID card payment and
// confirms the reservation; anything else stores a FAILED payment and marks
// the reservation's payment status failed.  Repeat deliveries of the same
// notification are acknowledged without effect.
//
// The payment row is written before the reservation is touched and is never
// rolled back; a reservation update failure is logged and reported in the
// outcome.
func (s *PaymentService) Reconcile(ctx context.Context, n GatewayNotification) (ReconcileOutcome, error) {
	orderID := strings.TrimSpace(n.OrderID)
	if orderID == "" {
		return ReconcileOutcome{}, validationErr("order_id is required")
	}
	digest := strings.ToUpper(strings.TrimSpace(n.MD5Sig))
	out := ReconcileOutcome{ReservationID: orderID}
	log := s.log.With(zap.String("order_id", orderID), zap.String("gateway_payment_id", n.PaymentID))

	lockKey := orderID + ":" + digest
	ok, err := s.guard.Acquire(ctx, lockKey, deliveryLockTTL)
	if err != nil {
		log.Warn("delivery lock unavailable, relying on database dedup", zap.Error(err))
	} else if !ok {
		out.Duplicate = true
		return out, nil
	} else {
		defer func() {
			if err := s.guard.Release(context.WithoutCancel(ctx), lockKey); err != nil {
				log.Warn("delivery lock release failed", zap.Error(err))
			}
		}()
	}

	res, err := s.store.Reservations().Get(ctx, orderID)
	if errors.Is(err, repository.ErrNotFound) {
		return out, ErrReservationNotFound
	}
	if err != nil {
		return out, err
	}

	if digest != "" {
		prev, err := s.store.Payments().FindByDigest(ctx, res.ID, digest)
		if err == nil {
			out.Duplicate = true
			out.PaymentID = prev.ID
			out.PaymentStatus = prev.Status
			out.Verified = prev.Status == model.PaymentStatusPaid
			return out, nil
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return out, err
		}
	}

	expected := utils.NotifyDigest(n.MerchantID, n.OrderID, n.Amount, n.Currency, n.StatusCode, s.gateway.MerchantSecret)
	out.Verified = digest != "" && utils.DigestEqual(expected, digest)
	amount, amountErr := utils.ParseAmount(n.Amount)
	if amountErr != nil {
		log.Warn("unparseable gateway amount", zap.String("amount", n.Amount))
		amount = 0
	}
	success := out.Verified && amountErr == nil && strings.TrimSpace(n.StatusCode) == gatewaySuccess

	now := s.now()
	rec := &model.PaymentRecord{
		ID:            uuid.NewString(),
		ReservationID: res.ID,
		CustomerID:    res.UserID,
		PaidBy:        res.UserID,
		AmountCents:   amount,
		PaidAt:        now,
		Method:        model.PaymentMethodCard,
		Status:        model.PaymentStatusFailed,
		GatewayRef:    n.PaymentID,
		CardHolder:    n.CardHolderName,
		CardNo:        n.CardNo,
		CardExpiry:    n.CardExpiry,
		Evidence:      model.StringList{},
		CreatedAt:     now,
	}
	if digest != "" {
		rec.GatewayDigest = &digest
	}
	if success {
		rec.Status = model.PaymentStatusPaid
	}
	if err := s.store.Payments().Insert(ctx, rec); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			out.Duplicate = true
			return out, nil
		}
		return out, fmt.Errorf("store gateway payment: %w", err)
	}
	out.PaymentID = rec.ID
	out.PaymentStatus = rec.Status

	if err := s.applyGatewayResult(ctx, res.ID, success); err != nil {
		log.Error("payment stored but reservation not updated",
			zap.String("payment_id", rec.ID), zap.Bool("success", success), zap.Error(err))
		out.UpdateError = err.Error()
	}

	if success {
		log.Info("gateway payment confirmed", zap.String("payment_id", rec.ID), zap.Int64("amount_cents", amount))
		sendNotification(ctx, s.notifier, s.log, res.UserID, TemplatePaymentReceived, map[string]any{
			"reservation_id": res.ID, "payment_id": rec.ID, "amount_cents": amount,
		})
	} else {
		log.Warn("gateway payment failed",
			zap.String("payment_id", rec.ID),
			zap.Bool("verified", out.Verified),
			zap.String("status_code", n.StatusCode),
			zap.String("status_message", n.StatusMessage),
		)
		sendNotification(ctx, s.notifier, s.log, res.UserID, TemplatePaymentFailed, map[string]any{
			"reservation_id": res.ID,
		})
	}
	return out, nil
}

func (s *PaymentService) applyGatewayResult(ctx context.Context, reservationID string, success bool) error {
	return s.store.WithTx(ctx, func(ctx context.Context, tx repository.Store) error {
		res, err := tx.Reservations().Get(ctx, reservationID)
		if err != nil {
			return err
		}
		if !success {
			return tx.Reservations().SetPaymentStatus(ctx, res.ID, model.PaymentStatusFailed)
		}
		next, err := res.Status.Transition(model.EventConfirm)
		if err != nil {
			return err
		}
		if next != res.Status {
			if err := tx.Reservations().UpdateStatus(ctx, res.ID, res.Status, next); err != nil {
				return err
			}
		}
		return tx.Reservations().SetPaymentStatus(ctx, res.ID, model.PaymentStatusPaid)
	})
}

// RecordPayment stores a payment taken by staff and confirms a pending
// reservation.
func (s *PaymentService) RecordPayment(ctx context.Context, reservationID string, req StaffPaymentRequest) (*model.PaymentRecord, error) {
	if req.AmountCents <= 0 {
		return nil, validationErr("amount must be positive")
	}
	switch req.Method {
	case model.PaymentMethodCash, model.PaymentMethodCard, model.PaymentMethodBankTransfer:
	default:
		return nil, validationErr("unknown payment method %q", req.Method)
	}
	if req.Method == model.PaymentMethodBankTransfer && strings.TrimSpace(req.BankName) == "" {
		return nil, validationErr("bank_name is required for bank transfers")
	}

	var rec *model.PaymentRecord
	err := s.store.WithTx(ctx, func(ctx context.Context, tx repository.Store) error {
		res, err := tx.Reservations().Get(ctx, reservationID)
		if errors.Is(err, repository.ErrNotFound) {
			return ErrReservationNotFound
		}
		if err != nil {
			return err
		}
		if res.IsDeleted {
			return ErrReservationDeleted
		}
		next, err := res.Status.Transition(model.EventConfirm)
		if err != nil {
			return err
		}
		now := s.now()
		paidBy := req.PaidBy
		if paidBy == 0 {
			paidBy = res.UserID
		}
		evidence := model.StringList(req.Evidence)
		if evidence == nil {
			evidence = model.StringList{}
		}
		rec = &model.PaymentRecord{
			ID:            uuid.NewString(),
			ReservationID: res.ID,
			CustomerID:    res.UserID,
			PaidBy:        paidBy,
			AmountCents:   req.AmountCents,
			PaidAt:        now,
			Method:        req.Method,
			Status:        model.PaymentStatusPaid,
			GatewayRef:    req.Reference,
			BankName:      req.BankName,
			Evidence:      evidence,
			CreatedAt:     now,
		}
		if err := tx.Payments().Insert(ctx, rec); err != nil {
			return err
		}
		if next != res.Status {
			if err := tx.Reservations().UpdateStatus(ctx, res.ID, res.Status, next); err != nil {
				if errors.Is(err, repository.ErrConflict) {
					return ErrConcurrentUpdate
				}
				return err
			}
		}
		return tx.Reservations().SetPaymentStatus(ctx, res.ID, model.PaymentStatusPaid)
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("staff payment recorded",
		zap.String("reservation_id", reservationID),
		zap.String("payment_id", rec.ID),
		zap.String("method", string(rec.Method)),
		zap.Int64("amount_cents", rec.AmountCents),
	)
	return rec, nil
}

// Refund marks a PAID payment refunded and flags the reservation.
func (s *PaymentService) Refund(ctx context.Context, paymentID string) (*model.PaymentRecord, error) {
	var rec *model.PaymentRecord
	err := s.store.WithTx(ctx, func(ctx context.Context, tx repository.Store) error {
		p, err := tx.Payments().Get(ctx, paymentID)
		if errors.Is(err, repository.ErrNotFound) {
			return ErrPaymentNotFound
		}
		if err != nil {
			return err
		}
		if p.Status != model.PaymentStatusPaid {
			return ErrPaymentNotRefundable
		}
		if err := tx.Payments().UpdateStatus(ctx, p.ID, model.PaymentStatusPaid, model.PaymentStatusRefunded); err != nil {
			if errors.Is(err, repository.ErrConflict) {
				return ErrPaymentNotRefundable
			}
			return err
		}
		if err := tx.Reservations().SetPaymentStatus(ctx, p.ReservationID, model.PaymentStatusRefunded); err != nil {
			return err
		}
		p.Status = model.PaymentStatusRefunded
		rec = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("payment refunded", zap.String("payment_id", rec.ID), zap.String("reservation_id", rec.ReservationID))
	return rec, nil
}

// ListPayments returns the reservation's payments in creation order.
func (s *PaymentService) ListPayments(ctx context.Context, reservationID string) ([]model.PaymentRecord, error) {
	if _, err := s.store.Reservations().Get(ctx, reservationID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrReservationNotFound
		}
		return nil, err
	}
	return s.store.Payments().ListByReservation(ctx, reservationID)
}
