package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"checkout-service/models"
	"checkout-service/wallet"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrSessionNotFound  = errors.New("checkout session not found")
	ErrEmptyCart        = errors.New("cannot start checkout with an empty cart")
	ErrSessionCompleted = errors.New("checkout session already completed")
	ErrAtFirstStep      = errors.New("already at the first step")
	ErrAtLastStep       = errors.New("already at the confirmation step")
	ErrNotCryptoRail    = errors.New("session is not paying by crypto")
)

// CartStore is the cart collaborator: snapshot on session start, clear once
// after order success. Cart mutation belongs elsewhere.
type CartStore interface {
	Snapshot(ctx context.Context, userID string) (*models.CartSnapshot, error)
	Clear(ctx context.Context, userID string) error
}

// WalletFactory builds the per-session wallet lifecycle.
type WalletFactory func() *wallet.Lifecycle

// Session is one bounded checkout attempt. It is created from a non-empty
// cart snapshot and discarded on cancel or completion. All mutation goes
// through CheckoutService so the step gates cannot be bypassed.
type Session struct {
	ID     uuid.UUID
	UserID string

	mu        sync.Mutex
	step      models.Step
	completed bool
	cart      models.CartSnapshot
	summary   models.OrderSummary
	address   *models.ShippingAddress
	delivery  models.DeliveryOption
	payment   *models.PaymentMethod
	orderID   string
	wallet    *wallet.Lifecycle

	// submitting is the finalizer's single mutual-exclusion point.
	submitting atomic.Bool
}

func (s *Session) Wallet() *wallet.Lifecycle { return s.wallet }

func (s *Session) Step() models.Step {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.step
}

func (s *Session) Completed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.completed
}

func (s *Session) Summary() models.OrderSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.summary
}

func (s *Session) Cart() models.CartSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart
}

// View renders the session for clients, with payment secrets redacted.
func (s *Session) View() models.CheckoutSessionView {
	s.mu.Lock()
	defer s.mu.Unlock()

	view := models.CheckoutSessionView{
		ID:        s.ID.String(),
		UserID:    s.UserID,
		Step:      s.step.String(),
		Completed: s.completed,
		Cart:      s.cart,
		Summary:   s.summary,
		Address:   s.address,
		Delivery:  s.delivery,
		OrderID:   s.orderID,
	}
	if s.payment != nil {
		view.Payment = s.payment.View()
	}
	view.Wallet = s.wallet.Connection()
	view.Tx = s.wallet.Transaction()
	return view
}

// CheckoutService owns the live sessions and enforces the step ordering:
// review -> shipping -> payment -> confirmation, no skipping, each advance
// gated on the current step's validation.
type CheckoutService struct {
	carts           CartStore
	calc            *Calculator
	newWallet       WalletFactory
	merchantAddress string
	log             *zap.Logger

	mu       sync.RWMutex
	sessions map[uuid.UUID]*Session
}

func NewCheckoutService(carts CartStore, calc *Calculator, newWallet WalletFactory, merchantAddress string, log *zap.Logger) *CheckoutService {
	return &CheckoutService{
		carts:           carts,
		calc:            calc,
		newWallet:       newWallet,
		merchantAddress: merchantAddress,
		log:             log,
		sessions:        make(map[uuid.UUID]*Session),
	}
}

// Start snapshots the user's cart and opens a session at the review step.
func (c *CheckoutService) Start(ctx context.Context, userID string) (*Session, error) {
	snapshot, err := c.carts.Snapshot(ctx, userID)
	if err != nil {
		return nil, err
	}
	if snapshot.Empty() {
		return nil, ErrEmptyCart
	}

	s := &Session{
		ID:       uuid.New(),
		UserID:   userID,
		step:     models.StepReview,
		cart:     *snapshot,
		delivery: models.DeliveryStandard,
		wallet:   c.newWallet(),
	}
	s.summary = c.calc.ComputeSummary(s.cart, s.delivery)

	c.mu.Lock()
	c.sessions[s.ID] = s
	c.mu.Unlock()

	c.log.Info("Checkout session started",
		zap.String("session_id", s.ID.String()),
		zap.String("user_id", userID),
		zap.Int("items", len(s.cart.Items)),
	)
	return s, nil
}

func (c *CheckoutService) Get(id uuid.UUID) (*Session, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Advance moves to the next step iff the current step's gate passes. A
// failed gate leaves the step unchanged and returns the validation error.
func (c *CheckoutService) Advance(id uuid.UUID) (models.Step, error) {
	s, err := c.Get(id)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.completed {
		return s.step, ErrSessionCompleted
	}
	if s.step == models.StepConfirmation {
		return s.step, ErrAtLastStep
	}

	if err := c.gateLocked(s); err != nil {
		return s.step, err
	}

	s.step++
	return s.step, nil
}

// gateLocked validates the session's *current* step.
func (c *CheckoutService) gateLocked(s *Session) error {
	switch s.step {
	case models.StepReview:
		// cart non-empty is guaranteed by the entry precondition
		return nil
	case models.StepShipping:
		if s.address == nil {
			return &ValidationError{Message: "shipping address required"}
		}
		if missing := s.address.MissingFields(); len(missing) > 0 {
			return &ValidationError{Fields: missing, Message: "incomplete shipping address"}
		}
		return nil
	case models.StepPayment:
		return ValidatePaymentMethod(s.payment, s.wallet.Connected())
	default:
		return nil
	}
}

// Retreat steps back without clearing any user edits.
func (c *CheckoutService) Retreat(id uuid.UUID) (models.Step, error) {
	s, err := c.Get(id)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.completed {
		return s.step, ErrSessionCompleted
	}
	if s.step == models.StepReview {
		return s.step, ErrAtFirstStep
	}
	s.step--
	return s.step, nil
}

func (c *CheckoutService) SetAddress(id uuid.UUID, addr models.ShippingAddress) error {
	s, err := c.Get(id)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.completed {
		return ErrSessionCompleted
	}
	s.address = &addr
	return nil
}

func (c *CheckoutService) SetDelivery(id uuid.UUID, option models.DeliveryOption) error {
	s, err := c.Get(id)
	if err != nil {
		return err
	}
	if !option.Valid() {
		return &ValidationError{Message: "unknown delivery option"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.completed {
		return ErrSessionCompleted
	}
	s.delivery = option
	s.summary = c.calc.ComputeSummary(s.cart, s.delivery)
	return nil
}

func (c *CheckoutService) SetPayment(id uuid.UUID, method models.PaymentMethod) error {
	s, err := c.Get(id)
	if err != nil {
		return err
	}
	if method.Kind != models.PaymentCard && method.Kind != models.PaymentCrypto {
		return &ValidationError{Message: "unsupported payment method"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.completed {
		return ErrSessionCompleted
	}
	s.payment = &method
	s.summary = c.calc.ComputeSummary(s.cart, s.delivery)
	return nil
}

// RecomputeSummary reprices the session without touching the step position.
func (c *CheckoutService) RecomputeSummary(id uuid.UUID) (models.OrderSummary, error) {
	s, err := c.Get(id)
	if err != nil {
		return models.OrderSummary{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.summary = c.calc.ComputeSummary(s.cart, s.delivery)
	return s.summary, nil
}

func (c *CheckoutService) ConnectWallet(ctx context.Context, id uuid.UUID, kind wallet.ProviderKind) (*models.WalletConnection, error) {
	s, err := c.Get(id)
	if err != nil {
		return nil, err
	}
	if s.Completed() {
		return nil, ErrSessionCompleted
	}
	return s.wallet.Connect(ctx, kind)
}

func (c *CheckoutService) DisconnectWallet(id uuid.UUID) error {
	s, err := c.Get(id)
	if err != nil {
		return err
	}
	s.wallet.Disconnect()
	return nil
}

// QuoteCrypto converts the session's current total into the selected asset.
func (c *CheckoutService) QuoteCrypto(ctx context.Context, id uuid.UUID) (CryptoQuote, error) {
	s, err := c.Get(id)
	if err != nil {
		return CryptoQuote{}, err
	}

	s.mu.Lock()
	payment := s.payment
	total := s.summary.Total
	s.mu.Unlock()

	if payment == nil || payment.Kind != models.PaymentCrypto || payment.Crypto == nil {
		return CryptoQuote{}, ErrNotCryptoRail
	}
	return c.calc.ComputeCryptoAmount(ctx, total, payment.Crypto.Asset)
}

// SubmitTransaction prices the session in the selected asset and hands the
// transfer to the wallet. The caller then drives AwaitTransaction.
func (c *CheckoutService) SubmitTransaction(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	s, err := c.Get(id)
	if err != nil {
		return nil, err
	}
	if s.Completed() {
		return nil, ErrSessionCompleted
	}

	quote, err := c.QuoteCrypto(ctx, id)
	if err != nil {
		return nil, err
	}

	return s.wallet.Submit(ctx, models.TxRequest{
		Asset:       quote.Asset,
		Recipient:   c.merchantAddress,
		TokenAmount: quote.TokenAmount,
		NetworkFee:  quote.NetworkFee,
	})
}

// AwaitTransaction blocks until the in-flight transaction reaches a terminal
// state or the confirmation timeout elapses.
func (c *CheckoutService) AwaitTransaction(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	s, err := c.Get(id)
	if err != nil {
		return nil, err
	}
	return s.wallet.AwaitConfirmation(ctx)
}

// ReconcileTransaction re-queries an ambiguously failed transaction.
func (c *CheckoutService) ReconcileTransaction(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	s, err := c.Get(id)
	if err != nil {
		return nil, err
	}
	return s.wallet.Reconcile(ctx)
}

// Cancel discards a non-completed session. The cart is untouched, no order
// is created, and any outstanding confirmation poll is stopped.
func (c *CheckoutService) Cancel(id uuid.UUID) error {
	s, err := c.Get(id)
	if err != nil {
		return err
	}
	if s.Completed() {
		return ErrSessionCompleted
	}

	s.wallet.Stop()
	s.wallet.Disconnect()

	c.mu.Lock()
	delete(c.sessions, id)
	c.mu.Unlock()

	c.log.Info("Checkout session cancelled", zap.String("session_id", id.String()))
	return nil
}

// Dispose removes a completed session. The cart was already cleared by the
// finalizer; disposal is the only valid action after completion.
func (c *CheckoutService) Dispose(id uuid.UUID) error {
	s, err := c.Get(id)
	if err != nil {
		return err
	}

	s.wallet.Stop()
	s.wallet.Disconnect()

	c.mu.Lock()
	delete(c.sessions, id)
	c.mu.Unlock()
	return nil
}
