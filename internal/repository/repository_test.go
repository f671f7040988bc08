package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/parking-reservation/internal/model"
)

func newMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	raw, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = raw.Close() })
	return sqlx.NewDb(raw, "mysql"), mock
}

func testWindow() model.Window {
	start := time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)
	end := start.Add(2 * time.Hour)
	return model.Window{Start: start, End: &end}
}

func TestSlotClaimBumpsVersionAndInsertsClaim(t *testing.T) {
	db, mock := newMock(t)
	repo := NewSlotRepo(db)

	mock.ExpectQuery(`SELECT claim_version FROM parking_slots`).
		WithArgs(101).
		WillReturnRows(sqlmock.NewRows([]string{"claim_version"}).AddRow(3))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM slot_claims`).
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(0))
	mock.ExpectExec(`UPDATE parking_slots SET claim_version = claim_version \+ 1`).
		WithArgs(101, 3).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO slot_claims`).
		WithArgs(101, "res-1", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`UPDATE parking_slots SET occupied_by = \?`).
		WithArgs("res-1", 101).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Claim(context.Background(), 101, "res-1", testWindow(), true))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSlotClaimOverlapIsConflict(t *testing.T) {
	db, mock := newMock(t)
	repo := NewSlotRepo(db)

	mock.ExpectQuery(`SELECT claim_version FROM parking_slots`).
		WillReturnRows(sqlmock.NewRows([]string{"claim_version"}).AddRow(1))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM slot_claims`).
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(1))

	err := repo.Claim(context.Background(), 101, "res-2", testWindow(), false)
	assert.ErrorIs(t, err, ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSlotClaimLostVersionRaceIsConflict(t *testing.T) {
	db, mock := newMock(t)
	repo := NewSlotRepo(db)

	mock.ExpectQuery(`SELECT claim_version FROM parking_slots`).
		WillReturnRows(sqlmock.NewRows([]string{"claim_version"}).AddRow(7))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM slot_claims`).
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(0))
	mock.ExpectExec(`UPDATE parking_slots SET claim_version`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Claim(context.Background(), 101, "res-3", testWindow(), false)
	assert.ErrorIs(t, err, ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSlotClaimUnknownSlot(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(`SELECT claim_version FROM parking_slots`).
		WillReturnRows(sqlmock.NewRows([]string{"claim_version"}))

	err := NewSlotRepo(db).Claim(context.Background(), 999, "res-4", testWindow(), false)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSlotReleaseClearsClaimAndOccupant(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectExec(`UPDATE slot_claims SET released_at`).
		WithArgs(101, "res-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE parking_slots SET occupied_by = NULL`).
		WithArgs(101, "res-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, NewSlotRepo(db).Release(context.Background(), 101, "res-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFreeSlotsOpenEndedWindowPassesNullEnd(t *testing.T) {
	db, mock := newMock(t)
	start := time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`SELECT s.id FROM parking_slots s`).
		WithArgs(1, 10, start, nil, nil).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(102).AddRow(103))

	ids, err := NewSlotRepo(db).FreeSlots(context.Background(), 1, 10, model.Window{Start: start})
	require.NoError(t, err)
	assert.Equal(t, []uint64{102, 103}, ids)
}

func TestReservationUpdateStatusConflict(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectExec(`UPDATE reservations SET status = \? WHERE id = \? AND status = \?`).
		WithArgs("CANCELLED", "res-1", "CONFIRMED").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := NewReservationRepo(db).UpdateStatus(context.Background(), "res-1",
		model.ReservationStatusConfirmed, model.ReservationStatusCancelled)
	assert.ErrorIs(t, err, ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReservationListBuildsFilterAndPage(t *testing.T) {
	db, mock := newMock(t)
	user := uint64(7)
	status := model.ReservationStatusConfirmed
	f := model.ReservationFilter{UserID: &user, Status: &status, VehicleNo: "WPCAB1234", Page: 2, PageSize: 10}

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM reservations WHERE is_deleted = 0 AND user_id = \? AND status = \? AND vehicle_no = \?`).
		WithArgs(7, "CONFIRMED", "WPCAB1234").
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(11))
	created := time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`ORDER BY created_at DESC, id ASC\s+LIMIT \? OFFSET \?`).
		WithArgs(7, "CONFIRMED", "WPCAB1234", 10, 10).
		WillReturnRows(sqlmock.NewRows([]string{"id", "status", "vehicle_no", "created_at"}).
			AddRow("res-11", "CONFIRMED", "WPCAB1234", created))

	out, total, err := NewReservationRepo(db).List(context.Background(), f)
	require.NoError(t, err)
	assert.Equal(t, int64(11), total)
	require.Len(t, out, 1)
	assert.Equal(t, "res-11", out[0].ID)
	assert.Equal(t, model.ReservationStatusConfirmed, out[0].Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReservationGetNotFound(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(`FROM reservations WHERE id = \?`).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := NewReservationRepo(db).Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestReservationUpdateDetailsEmptyPatchIsNoop(t *testing.T) {
	db, mock := newMock(t)
	require.NoError(t, NewReservationRepo(db).UpdateDetails(context.Background(), "res-1", model.ReservationPatch{}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentInsertDuplicateDigest(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectExec(`INSERT INTO payments`).
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry"})

	digest := "ABC"
	err := NewPaymentRepo(db).Insert(context.Background(), &model.PaymentRecord{
		ID:            "pay-1",
		ReservationID: "res-1",
		AmountCents:   1000,
		Method:        model.PaymentMethodCard,
		Status:        model.PaymentStatusPaid,
		GatewayDigest: &digest,
	})
	assert.ErrorIs(t, err, ErrDuplicate)
}

func TestPaymentInsertOtherErrorIsWrapped(t *testing.T) {
	db, mock := newMock(t)
	boom := errors.New("connection reset")
	mock.ExpectExec(`INSERT INTO payments`).WillReturnError(boom)

	err := NewPaymentRepo(db).Insert(context.Background(), &model.PaymentRecord{ID: "pay-2"})
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrDuplicate)
}

func TestStoreWithTxCommitsAndRollsBack(t *testing.T) {
	db, mock := newMock(t)
	store := NewSQLStore(db)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE reservations SET is_deleted = 1`).
		WithArgs("res-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	err := store.WithTx(context.Background(), func(ctx context.Context, tx Store) error {
		return tx.Reservations().SoftDelete(ctx, "res-1")
	})
	require.NoError(t, err)

	failure := errors.New("stop")
	mock.ExpectBegin()
	mock.ExpectRollback()
	err = store.WithTx(context.Background(), func(ctx context.Context, tx Store) error {
		// nested calls join the outer transaction
		return tx.WithTx(ctx, func(context.Context, Store) error { return failure })
	})
	assert.ErrorIs(t, err, failure)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeliveryGuardWithoutRedisAlwaysAcquires(t *testing.T) {
	g := NewDeliveryGuard(nil)
	ok, err := g.Acquire(context.Background(), "k", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, g.Release(context.Background(), "k"))
}
