package dispatch

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chowline/internal/auth"
	"chowline/internal/cart"
	"chowline/internal/domain"
	"chowline/internal/logger"
)

type fakeTransport struct {
	placeCalls  int
	updateCalls int

	placeResp  domain.Order
	placeErr   error
	updateResp domain.Order
	updateErr  error

	ownOrders []domain.Order
	allOrders []domain.Order
}

func (f *fakeTransport) PlaceOrder(_ context.Context, _ domain.PlacementRequest) (domain.Order, error) {
	f.placeCalls++
	return f.placeResp, f.placeErr
}

func (f *fakeTransport) UpdateStatus(_ context.Context, id string, status domain.Status) (domain.Order, error) {
	f.updateCalls++
	if f.updateErr != nil {
		return domain.Order{}, f.updateErr
	}
	if f.updateResp.ID != "" {
		return f.updateResp, nil
	}
	return domain.Order{ID: id, Status: status}, nil
}

func (f *fakeTransport) FetchOwnOrders(_ context.Context) ([]domain.Order, error) {
	return f.ownOrders, nil
}

func (f *fakeTransport) FetchAllOrders(_ context.Context) ([]domain.Order, error) {
	return f.allOrders, nil
}

type memStore struct{ saved map[string]domain.CartSnapshot }

func (m *memStore) Save(_ context.Context, u string, s domain.CartSnapshot) error {
	m.saved[u] = s
	return nil
}

func (m *memStore) Load(_ context.Context, u string) (domain.CartSnapshot, bool, error) {
	s, ok := m.saved[u]
	return s, ok, nil
}

func (m *memStore) Delete(_ context.Context, u string) error { delete(m.saved, u); return nil }

var (
	customer   = auth.Actor{UserID: "u1", Role: auth.RoleCustomer}
	admin      = auth.Actor{UserID: "adm", Role: auth.RoleAdmin}
	restaurant = &domain.Restaurant{ID: "2", Name: "Mama Put", DeliveryFee: decimal.NewFromInt(500)}
)

func filledCart(t *testing.T) *cart.Aggregator {
	t.Helper()
	c := cart.New("u1", &memStore{saved: map[string]domain.CartSnapshot{}}, logger.Nop())
	require.NoError(t, c.AddLine(context.Background(), domain.MenuItem{
		ID: "bb1", RestaurantID: "2", Name: "Burger", UnitPrice: decimal.NewFromInt(1099),
	}, 2, ""))
	return c
}

func TestPlaceOrderEmptyCartNoNetworkCall(t *testing.T) {
	tr := &fakeTransport{}
	d := New(tr, logger.Nop())
	c := cart.New("u1", &memStore{saved: map[string]domain.CartSnapshot{}}, logger.Nop())

	_, err := d.PlaceOrder(context.Background(), c, restaurant, "12 Market Rd", domain.PaymentCash, customer)
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, 0, tr.placeCalls)
}

func TestPlaceOrderInputValidation(t *testing.T) {
	tr := &fakeTransport{}
	d := New(tr, logger.Nop())

	_, err := d.PlaceOrder(context.Background(), filledCart(t), nil, "12 Market Rd", domain.PaymentCash, customer)
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)

	_, err = d.PlaceOrder(context.Background(), filledCart(t), restaurant, "   ", domain.PaymentCash, customer)
	require.ErrorAs(t, err, &verr)

	_, err = d.PlaceOrder(context.Background(), filledCart(t), restaurant, "12 Market Rd", "card", customer)
	require.ErrorAs(t, err, &verr)

	assert.Equal(t, 0, tr.placeCalls)
}

func TestPlaceOrderSuccessClearsCartAndPrepends(t *testing.T) {
	server := domain.Order{ID: "srv-1", UserID: "u1", Status: domain.StatusPending, Total: decimal.NewFromInt(2698)}
	tr := &fakeTransport{placeResp: server}
	d := New(tr, logger.Nop())
	c := filledCart(t)

	order, err := d.PlaceOrder(context.Background(), c, restaurant, "12 Market Rd", domain.PaymentMobileMoney, customer)
	require.NoError(t, err)
	assert.Equal(t, "srv-1", order.ID)
	assert.Equal(t, domain.StatusPending, order.Status)
	assert.True(t, c.IsEmpty())

	own := d.OwnOrders()
	require.Len(t, own, 1)
	assert.Equal(t, "srv-1", own[0].ID)
}

func TestPlaceOrderFailureLeavesEverythingUntouched(t *testing.T) {
	tr := &fakeTransport{placeErr: &domain.SubmissionError{Op: "place", Err: errors.New("boom")}}
	d := New(tr, logger.Nop())
	c := filledCart(t)
	before := c.Total()

	_, err := d.PlaceOrder(context.Background(), c, restaurant, "12 Market Rd", domain.PaymentCash, customer)
	var serr *domain.SubmissionError
	require.ErrorAs(t, err, &serr)

	assert.False(t, c.IsEmpty())
	assert.Equal(t, before.String(), c.Total().String())
	assert.Empty(t, d.OwnOrders())
	assert.Equal(t, 1, tr.placeCalls)
}

func seed(d *Dispatcher, orders ...domain.Order) {
	d.mu.Lock()
	d.own = append([]domain.Order(nil), orders...)
	d.all = append([]domain.Order(nil), orders...)
	d.mu.Unlock()
}

func TestOnOrderStatusUpdateIsIdempotent(t *testing.T) {
	d := New(&fakeTransport{}, logger.Nop())
	seed(d, domain.Order{ID: "42", Status: domain.StatusPending})

	d.OnOrderStatusUpdate("42", domain.StatusConfirmed)
	first := d.OwnOrders()[0]
	require.Equal(t, domain.StatusConfirmed, first.Status)

	d.OnOrderStatusUpdate("42", domain.StatusConfirmed)
	second := d.OwnOrders()[0]
	assert.Equal(t, first, second)
}

func TestOnOrderStatusUpdateSequenceAndUnknownID(t *testing.T) {
	d := New(&fakeTransport{}, logger.Nop())
	seed(d, domain.Order{ID: "42", Status: domain.StatusPending})

	d.OnOrderStatusUpdate("42", domain.StatusConfirmed)
	d.OnOrderStatusUpdate("42", domain.StatusPreparing)
	assert.Equal(t, domain.StatusPreparing, d.OwnOrders()[0].Status)
	assert.Equal(t, domain.StatusPreparing, d.AllOrders()[0].Status)

	before := d.OwnOrders()
	d.OnOrderStatusUpdate("99", domain.StatusConfirmed)
	assert.Equal(t, before, d.OwnOrders())
}

func TestOnNewOrderDedupes(t *testing.T) {
	d := New(&fakeTransport{}, logger.Nop())

	d.OnNewOrder(domain.Order{ID: "a", Status: domain.StatusPending})
	d.OnNewOrder(domain.Order{ID: "b", Status: domain.StatusPending})
	d.OnNewOrder(domain.Order{ID: "a", Status: domain.StatusPending})

	all := d.AllOrders()
	require.Len(t, all, 2)
	// newest first
	assert.Equal(t, "b", all[0].ID)
	assert.Equal(t, "a", all[1].ID)
}

func TestRequestStatusChangeRequiresAdmin(t *testing.T) {
	tr := &fakeTransport{}
	d := New(tr, logger.Nop())
	seed(d, domain.Order{ID: "42", Status: domain.StatusPending})

	err := d.RequestStatusChange(context.Background(), "42", domain.StatusConfirmed, customer)
	var aerr *domain.AuthorizationError
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, 0, tr.updateCalls)
}

func TestRequestStatusChangeRejectsIllegalTransitionLocally(t *testing.T) {
	tr := &fakeTransport{}
	d := New(tr, logger.Nop())
	seed(d, domain.Order{ID: "42", Status: domain.StatusPending})

	err := d.RequestStatusChange(context.Background(), "42", domain.StatusDelivered, admin)
	var terr *domain.TransitionError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, 0, tr.updateCalls)
	assert.Equal(t, domain.StatusPending, d.OwnOrders()[0].Status)
}

func TestRequestStatusChangeOptimisticApply(t *testing.T) {
	tr := &fakeTransport{}
	d := New(tr, logger.Nop())
	seed(d, domain.Order{ID: "42", Status: domain.StatusPending})

	require.NoError(t, d.RequestStatusChange(context.Background(), "42", domain.StatusConfirmed, admin))
	assert.Equal(t, domain.StatusConfirmed, d.OwnOrders()[0].Status)
	assert.Equal(t, 1, tr.updateCalls)
}

func TestRequestStatusChangeRollsBackOnRejection(t *testing.T) {
	tr := &fakeTransport{updateErr: &domain.SubmissionError{Op: "update", Err: errors.New("conflict")}}
	d := New(tr, logger.Nop())
	seed(d, domain.Order{ID: "42", Status: domain.StatusPending})

	err := d.RequestStatusChange(context.Background(), "42", domain.StatusConfirmed, admin)
	var serr *domain.SubmissionError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, domain.StatusPending, d.OwnOrders()[0].Status)
	assert.Equal(t, domain.StatusPending, d.AllOrders()[0].Status)
}

func TestFetchRepopulatesCaches(t *testing.T) {
	tr := &fakeTransport{
		ownOrders: []domain.Order{{ID: "1"}},
		allOrders: []domain.Order{{ID: "1"}, {ID: "2"}},
	}
	d := New(tr, logger.Nop())

	own, err := d.FetchOwnOrders(context.Background())
	require.NoError(t, err)
	assert.Len(t, own, 1)

	all, err := d.FetchAllOrders(context.Background())
	require.NoError(t, err)
	assert.Len(t, all, 2)
}
