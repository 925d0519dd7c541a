package services_test

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"checkout-service/models"
	"checkout-service/services"
	"checkout-service/wallet"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

// ---- mocks ----

type mockOrderRepo struct {
	mu      sync.Mutex
	errs    []error
	calls   int
	entered chan struct{}
	release chan struct{}
	created []*models.Order
}

func (r *mockOrderRepo) Create(_ context.Context, order *models.Order) error {
	r.mu.Lock()
	r.calls++
	var err error
	if len(r.errs) > 0 {
		err = r.errs[0]
		r.errs = r.errs[1:]
	}
	entered, release := r.entered, r.release
	r.mu.Unlock()

	if entered != nil {
		entered <- struct{}{}
		<-release
	}
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.created = append(r.created, order)
	r.mu.Unlock()
	return nil
}

func (r *mockOrderRepo) FindByID(_ context.Context, _ uuid.UUID) (*models.Order, error) {
	return nil, errors.New("not implemented")
}

func (r *mockOrderRepo) FindByUserID(_ context.Context, _ string, _, _ int) ([]models.Order, int64, error) {
	return nil, 0, errors.New("not implemented")
}

func (r *mockOrderRepo) createCalls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

type mockPublisher struct {
	mu     sync.Mutex
	err    error
	events []models.OrderPlacedEvent
}

func (p *mockPublisher) SendOrderPlaced(event models.OrderPlacedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, event)
	return nil
}

type mockSNS struct {
	mu       sync.Mutex
	err      error
	messages [][]byte
}

func (s *mockSNS) Publish(_ context.Context, _ string, message []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.messages = append(s.messages, message)
	return nil
}

type fakeStripe struct {
	err     error
	amounts []int64
}

func (s *fakeStripe) CreatePaymentIntent(amount int64, _ string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	s.amounts = append(s.amounts, amount)
	return "pi_test_123", nil
}

// ---- helpers ----

type finalizerFixture struct {
	finalizer *services.OrderFinalizer
	repo      *mockOrderRepo
	producer  *mockPublisher
	sns       *mockSNS
	stripe    *fakeStripe
}

func newFinalizer(carts services.CartStore) *finalizerFixture {
	f := &finalizerFixture{
		repo:     &mockOrderRepo{},
		producer: &mockPublisher{},
		sns:      &mockSNS{},
		stripe:   &fakeStripe{},
	}
	rails := []services.Rail{
		services.NewCardRail(f.stripe, "usd"),
		services.NewCryptoRail(),
	}
	f.finalizer = services.NewOrderFinalizer(
		f.repo,
		carts,
		rails,
		f.producer,
		f.sns,
		"arn:aws:sns:us-east-1:000000000000:order-confirmations",
		"usd",
		200*time.Millisecond,
		zap.NewNop(),
	)
	return f
}

// cardSessionAtConfirmation walks a card session through every gate.
func cardSessionAtConfirmation(t *testing.T) (*services.Session, *fakeCartStore) {
	t.Helper()
	svc, carts, _ := newCheckout(t)
	s, err := svc.Start(context.Background(), "user-1")
	assert.NoError(t, err)
	assert.NoError(t, svc.SetAddress(s.ID, validAddress()))
	assert.NoError(t, svc.SetPayment(s.ID, validCard()))
	for i := 0; i < 3; i++ {
		_, err := svc.Advance(s.ID)
		assert.NoError(t, err)
	}
	return s, carts
}

// cryptoSessionAtConfirmation additionally settles the on-chain transfer.
func cryptoSessionAtConfirmation(t *testing.T, confirm bool) (*services.Session, *fakeCartStore) {
	t.Helper()
	svc, carts, provider := newCheckout(t)
	provider.setStates(wallet.TxConfirmed)
	s, err := svc.Start(context.Background(), "user-1")
	assert.NoError(t, err)
	assert.NoError(t, svc.SetAddress(s.ID, validAddress()))
	assert.NoError(t, svc.SetPayment(s.ID, validCrypto()))
	_, err = svc.ConnectWallet(context.Background(), s.ID, wallet.ProviderMetaMask)
	assert.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err := svc.Advance(s.ID)
		assert.NoError(t, err)
	}
	if confirm {
		_, err = svc.SubmitTransaction(context.Background(), s.ID)
		assert.NoError(t, err)
		_, err = svc.AwaitTransaction(context.Background(), s.ID)
		assert.NoError(t, err)
	}
	return s, carts
}

// ---- tests ----

func TestPlaceOrder_Success(t *testing.T) {
	s, carts := cardSessionAtConfirmation(t)
	f := newFinalizer(carts)

	order, err := f.finalizer.PlaceOrder(context.Background(), s)
	assert.NoError(t, err)
	assert.Equal(t, int64(10800), order.Total)
	assert.Equal(t, models.OrderStatusPlaced, order.Status)
	assert.Contains(t, order.PaymentDescriptor, "4242")
	assert.NotContains(t, order.PaymentDescriptor, "4242424242424242")
	assert.Len(t, order.OrderItems, 2)

	assert.Equal(t, 1, carts.cleared())
	assert.True(t, s.Completed())
	assert.Equal(t, []int64{10800}, f.stripe.amounts)
	assert.Len(t, f.producer.events, 1)
	assert.Len(t, f.sns.messages, 1)
}

func TestPlaceOrder_StoreFailureLeavesCartAndSessionRetryable(t *testing.T) {
	s, carts := cardSessionAtConfirmation(t)
	f := newFinalizer(carts)
	f.repo.errs = []error{errors.New("duplicate key value")}

	_, err := f.finalizer.PlaceOrder(context.Background(), s)
	var oerr *services.OrderError
	assert.ErrorAs(t, err, &oerr)
	assert.Equal(t, services.OrderServerRejected, oerr.Code)
	assert.Equal(t, 0, carts.cleared())
	assert.False(t, s.Completed())

	// same session, next attempt goes through
	order, err := f.finalizer.PlaceOrder(context.Background(), s)
	assert.NoError(t, err)
	assert.NotNil(t, order)
	assert.Equal(t, 1, carts.cleared())
	assert.True(t, s.Completed())
}

func TestPlaceOrder_DialFailureRetriedOnce(t *testing.T) {
	s, carts := cardSessionAtConfirmation(t)
	f := newFinalizer(carts)
	f.repo.errs = []error{&net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}}

	order, err := f.finalizer.PlaceOrder(context.Background(), s)
	assert.NoError(t, err)
	assert.NotNil(t, order)
	assert.Equal(t, 2, f.repo.createCalls())
	assert.Equal(t, 1, carts.cleared())
}

func TestPlaceOrder_ServerRejectionNotRetried(t *testing.T) {
	s, carts := cardSessionAtConfirmation(t)
	f := newFinalizer(carts)
	f.repo.errs = []error{errors.New("invalid order payload")}

	_, err := f.finalizer.PlaceOrder(context.Background(), s)
	assert.Error(t, err)
	assert.Equal(t, 1, f.repo.createCalls())
}

func TestPlaceOrder_ConcurrentSecondSubmissionRejected(t *testing.T) {
	s, carts := cardSessionAtConfirmation(t)
	f := newFinalizer(carts)
	f.repo.entered = make(chan struct{}, 1)
	f.repo.release = make(chan struct{})

	done := make(chan error, 1)
	go func() {
		_, err := f.finalizer.PlaceOrder(context.Background(), s)
		done <- err
	}()

	// the first submission is inside the order store call
	<-f.repo.entered

	_, err := f.finalizer.PlaceOrder(context.Background(), s)
	var oerr *services.OrderError
	assert.ErrorAs(t, err, &oerr)
	assert.Equal(t, services.OrderAlreadySubmitting, oerr.Code)

	close(f.repo.release)
	assert.NoError(t, <-done)
	assert.Equal(t, 1, f.repo.createCalls())
	assert.Equal(t, 1, carts.cleared())
}

func TestPlaceOrder_SecondSubmissionAfterSuccessRejected(t *testing.T) {
	s, carts := cardSessionAtConfirmation(t)
	f := newFinalizer(carts)

	_, err := f.finalizer.PlaceOrder(context.Background(), s)
	assert.NoError(t, err)

	_, err = f.finalizer.PlaceOrder(context.Background(), s)
	var oerr *services.OrderError
	assert.ErrorAs(t, err, &oerr)
	assert.Equal(t, services.OrderAlreadyCompleted, oerr.Code)
	assert.Equal(t, 1, f.repo.createCalls())
}

func TestPlaceOrder_RequiresConfirmationStep(t *testing.T) {
	svc, carts, _ := newCheckout(t)
	s, err := svc.Start(context.Background(), "user-1")
	assert.NoError(t, err)
	f := newFinalizer(carts)

	_, err = f.finalizer.PlaceOrder(context.Background(), s)
	var oerr *services.OrderError
	assert.ErrorAs(t, err, &oerr)
	assert.Equal(t, services.OrderNotReady, oerr.Code)
	assert.Equal(t, 0, f.repo.createCalls())
}

func TestPlaceOrder_CryptoRequiresCompletedTransaction(t *testing.T) {
	s, carts := cryptoSessionAtConfirmation(t, false)
	f := newFinalizer(carts)

	_, err := f.finalizer.PlaceOrder(context.Background(), s)
	var oerr *services.OrderError
	assert.ErrorAs(t, err, &oerr)
	assert.Equal(t, services.OrderNotReady, oerr.Code)
}

func TestPlaceOrder_CryptoCarriesTransactionID(t *testing.T) {
	s, carts := cryptoSessionAtConfirmation(t, true)
	f := newFinalizer(carts)

	order, err := f.finalizer.PlaceOrder(context.Background(), s)
	assert.NoError(t, err)
	assert.Equal(t, string(models.PaymentCrypto), order.PaymentKind)
	assert.Equal(t, "0xfeed", order.TransactionID)
	// nothing to charge on the card rail
	assert.Empty(t, f.stripe.amounts)
}

func TestPlaceOrder_SettlementFailureLeavesEverythingIntact(t *testing.T) {
	s, carts := cardSessionAtConfirmation(t)
	f := newFinalizer(carts)
	f.stripe.err = errors.New("card declined")

	_, err := f.finalizer.PlaceOrder(context.Background(), s)
	var oerr *services.OrderError
	assert.ErrorAs(t, err, &oerr)
	assert.Equal(t, services.OrderPaymentFailed, oerr.Code)
	assert.Equal(t, 0, f.repo.createCalls())
	assert.Equal(t, 0, carts.cleared())
	assert.False(t, s.Completed())
}

func TestPlaceOrder_PublishFailuresDoNotRollBack(t *testing.T) {
	s, carts := cardSessionAtConfirmation(t)
	f := newFinalizer(carts)
	f.producer.err = errors.New("broker unavailable")
	f.sns.err = errors.New("sns unavailable")

	order, err := f.finalizer.PlaceOrder(context.Background(), s)
	assert.NoError(t, err)
	assert.NotNil(t, order)
	assert.Equal(t, 1, carts.cleared())
	assert.True(t, s.Completed())
}

func TestPlaceOrder_CartClearFailureDoesNotFailOrder(t *testing.T) {
	s, carts := cardSessionAtConfirmation(t)
	carts.clearErr = errors.New("redis down")
	f := newFinalizer(carts)

	order, err := f.finalizer.PlaceOrder(context.Background(), s)
	assert.NoError(t, err)
	assert.NotNil(t, order)
	assert.True(t, s.Completed())
}
