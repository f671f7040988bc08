package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/parking-reservation/internal/model"
	"github.com/iliyamo/parking-reservation/internal/repository"
)

const (
	areaMain   = uint64(1)
	areaSingle = uint64(2)
	typeCar    = uint64(10)
	typeBike   = uint64(20) // rate set, no slots
	typeVan    = uint64(30) // no rate
	driverID   = uint64(7)
	staffID    = uint64(99)
	rateCar    = int64(100)
)

type fakeCatalog struct{}

func (fakeCatalog) GetParkingArea(_ context.Context, id uint64) (*model.ParkingArea, error) {
	switch id {
	case areaMain, areaSingle:
		return &model.ParkingArea{ID: id, Name: "Main", IsActive: true}, nil
	case 3:
		return &model.ParkingArea{ID: id, Name: "Closed", IsActive: false}, nil
	}
	return nil, repository.ErrNotFound
}

func (fakeCatalog) GetVehicleType(_ context.Context, id uint64) (*model.VehicleType, error) {
	switch id {
	case typeCar, typeBike, typeVan:
		return &model.VehicleType{ID: id}, nil
	}
	return nil, repository.ErrNotFound
}

func (fakeCatalog) GetAreaRate(_ context.Context, areaID, vehicleTypeID uint64) (*model.AreaRate, error) {
	switch vehicleTypeID {
	case typeCar:
		return &model.AreaRate{ParkingAreaID: areaID, VehicleTypeID: typeCar, HourlyRateCents: rateCar}, nil
	case typeBike:
		return &model.AreaRate{ParkingAreaID: areaID, VehicleTypeID: typeBike, HourlyRateCents: 50}, nil
	}
	return nil, repository.ErrNotFound
}

type fakeUsers struct{}

func (fakeUsers) GetByID(_ context.Context, id uint64) (*model.User, error) {
	if id == driverID || id == staffID {
		return &model.User{ID: id, Mobile: "0771234567", Role: model.RoleDriver}, nil
	}
	return nil, repository.ErrNotFound
}

type sentNotification struct {
	UserID   uint64
	Template string
	Data     map[string]any
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []sentNotification
}

func (n *fakeNotifier) Notify(_ context.Context, userID uint64, template string, data map[string]any) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentNotification{userID, template, data})
	return nil
}

func (n *fakeNotifier) templates() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, 0, len(n.sent))
	for _, s := range n.sent {
		out = append(out, s.Template)
	}
	return out
}

type fakeGuard struct {
	mu   sync.Mutex
	held map[string]bool
}

func (g *fakeGuard) Acquire(_ context.Context, key string, _ time.Duration) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.held == nil {
		g.held = map[string]bool{}
	}
	if g.held[key] {
		return false, nil
	}
	g.held[key] = true
	return true, nil
}

func (g *fakeGuard) Release(_ context.Context, key string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.held, key)
	return nil
}

var testGateway = GatewayConfig{MerchantID: "1211149", MerchantSecret: "s3cret", Currency: "LKR"}

type fixture struct {
	store    *memStore
	notifier *fakeNotifier
	guard    *fakeGuard
	alloc    *SlotAllocator
	res      *ReservationService
	pay      *PaymentService
	now      time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := newMemStore()
	st.addSlot(model.Slot{ID: 101, ParkingAreaID: areaMain, VehicleTypeID: typeCar, Code: "A-01"})
	st.addSlot(model.Slot{ID: 103, ParkingAreaID: areaMain, VehicleTypeID: typeCar, Code: "A-03"})
	st.addSlot(model.Slot{ID: 102, ParkingAreaID: areaMain, VehicleTypeID: typeCar, Code: "A-02"})
	st.addSlot(model.Slot{ID: 201, ParkingAreaID: areaSingle, VehicleTypeID: typeCar, Code: "B-01"})

	f := &fixture{
		store:    st,
		notifier: &fakeNotifier{},
		guard:    &fakeGuard{},
		alloc:    NewSlotAllocator(zap.NewNop()),
		now:      time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC),
	}
	f.res = NewReservationService(st, fakeCatalog{}, fakeUsers{}, f.alloc, f.notifier, zap.NewNop())
	f.res.now = func() time.Time { return f.now }
	f.pay = NewPaymentService(st, f.guard, testGateway, f.notifier, zap.NewNop())
	f.pay.now = func() time.Time { return f.now }
	return f
}

func (f *fixture) book(t *testing.T, area uint64, plate string) *model.Reservation {
	t.Helper()
	res, err := f.res.Create(context.Background(), CreateReservationRequest{
		Kind:          model.ReservationKindPreBooking,
		ParkingAreaID: area,
		VehicleTypeID: typeCar,
		UserID:        driverID,
		VehicleNo:     plate,
	})
	if err != nil {
		t.Fatalf("book %s: %v", plate, err)
	}
	return res
}
