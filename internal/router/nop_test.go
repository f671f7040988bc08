package router

import (
	"context"

	"github.com/iliyamo/parking-reservation/internal/billing"
	"github.com/iliyamo/parking-reservation/internal/model"
	"github.com/iliyamo/parking-reservation/internal/service"
)

type nopReservations struct{}

func (nopReservations) Create(context.Context, service.CreateReservationRequest) (*model.Reservation, error) {
	return &model.Reservation{}, nil
}
func (nopReservations) Get(context.Context, string) (*model.Reservation, error) {
	return &model.Reservation{}, nil
}
func (nopReservations) List(context.Context, model.ReservationFilter) ([]model.Reservation, int64, error) {
	return nil, 0, nil
}
func (nopReservations) FindActiveByVehicle(context.Context, string) (*model.Reservation, error) {
	return &model.Reservation{}, nil
}
func (nopReservations) Update(context.Context, string, model.ReservationPatch) (*model.Reservation, error) {
	return &model.Reservation{}, nil
}
func (nopReservations) Cancel(context.Context, string) (*model.Reservation, error) {
	return &model.Reservation{}, nil
}
func (nopReservations) Complete(context.Context, string) (*model.Reservation, error) {
	return &model.Reservation{}, nil
}
func (nopReservations) ChangeSlot(context.Context, string) (*model.Reservation, error) {
	return &model.Reservation{}, nil
}
func (nopReservations) UpdatePaymentStatus(context.Context, string, string) (*model.Reservation, error) {
	return &model.Reservation{}, nil
}
func (nopReservations) Quote(context.Context, string) (billing.Quote, error) {
	return billing.Quote{}, nil
}
func (nopReservations) Delete(context.Context, string) error { return nil }
func (nopReservations) Availability(context.Context, uint64, uint64, model.Window) (model.SlotAvailability, error) {
	return model.SlotAvailability{}, nil
}

type nopPayments struct{}

func (nopPayments) IssueCheckoutToken(context.Context, string, int64, string) (service.CheckoutToken, error) {
	return service.CheckoutToken{}, nil
}
func (nopPayments) Reconcile(context.Context, service.GatewayNotification) (service.ReconcileOutcome, error) {
	return service.ReconcileOutcome{}, nil
}
func (nopPayments) RecordPayment(context.Context, string, service.StaffPaymentRequest) (*model.PaymentRecord, error) {
	return &model.PaymentRecord{}, nil
}
func (nopPayments) Refund(context.Context, string) (*model.PaymentRecord, error) {
	return &model.PaymentRecord{}, nil
}
func (nopPayments) ListPayments(context.Context, string) ([]model.PaymentRecord, error) {
	return nil, nil
}
