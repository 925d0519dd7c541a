package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"time"

	"checkout-service/models"
	"checkout-service/repository"

	awspkg "checkout-service/pkg/aws"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type OrderErrorCode string

const (
	OrderAlreadySubmitting OrderErrorCode = "already_submitting"
	OrderAlreadyCompleted  OrderErrorCode = "already_completed"
	OrderNotReady          OrderErrorCode = "not_ready"
	OrderPaymentFailed     OrderErrorCode = "payment_failed"
	OrderNetworkError      OrderErrorCode = "network_error"
	OrderServerRejected    OrderErrorCode = "server_rejected"
)

// OrderError is recoverable: the session stays at confirmation and the cart
// is untouched, so the caller may retry without re-entering earlier steps.
type OrderError struct {
	Code    OrderErrorCode
	Message string
}

func (e *OrderError) Error() string {
	return fmt.Sprintf("order: %s: %s", e.Code, e.Message)
}

// EventPublisher is the best-effort order event channel.
type EventPublisher interface {
	SendOrderPlaced(event models.OrderPlacedEvent) error
}

// OrderFinalizer owns the boundary between "nothing happened" and "order
// exists": it submits the priced, validated session to order storage exactly
// once and reconciles the cart with the result.
type OrderFinalizer struct {
	orders        repository.OrderRepository
	carts         CartStore
	rails         map[models.PaymentKind]Rail
	producer      EventPublisher
	sns           awspkg.SNSPublisher
	snsTopicARN   string
	currency      string
	submitTimeout time.Duration
	log           *zap.Logger
}

func NewOrderFinalizer(
	orders repository.OrderRepository,
	carts CartStore,
	rails []Rail,
	producer EventPublisher,
	sns awspkg.SNSPublisher,
	snsTopicARN string,
	currency string,
	submitTimeout time.Duration,
	log *zap.Logger,
) *OrderFinalizer {
	byKind := make(map[models.PaymentKind]Rail, len(rails))
	for _, r := range rails {
		byKind[r.Kind()] = r
	}
	return &OrderFinalizer{
		orders:        orders,
		carts:         carts,
		rails:         byKind,
		producer:      producer,
		sns:           sns,
		snsTopicARN:   snsTopicARN,
		currency:      currency,
		submitTimeout: submitTimeout,
		log:           log,
	}
}

// PlaceOrder settles the selected rail and creates the durable order record.
// The live cart is cleared only after the order store acknowledged success;
// on any failure the session and cart are untouched and the call may be
// retried.
func (f *OrderFinalizer) PlaceOrder(ctx context.Context, s *Session) (*models.Order, error) {
	if !s.submitting.CompareAndSwap(false, true) {
		return nil, &OrderError{Code: OrderAlreadySubmitting, Message: "an order submission is already in progress"}
	}
	defer s.submitting.Store(false)

	order, oerr := f.buildOrder(s)
	if oerr != nil {
		return nil, oerr
	}

	rail := f.rails[models.PaymentKind(order.PaymentKind)]
	settlementRef, err := rail.Settle(ctx, s)
	if err != nil {
		f.log.Error("Settlement failed",
			zap.String("session_id", s.ID.String()),
			zap.String("rail", order.PaymentKind),
			zap.Error(err),
		)
		return nil, &OrderError{Code: OrderPaymentFailed, Message: err.Error()}
	}
	if order.PaymentKind == string(models.PaymentCrypto) {
		order.TransactionID = settlementRef
	}

	if err := f.createOrder(ctx, order); err != nil {
		return nil, err
	}

	// The order is now the source of truth. Everything below is best-effort
	// and never reverses it.
	if err := f.carts.Clear(ctx, s.UserID); err != nil {
		f.log.Error("Failed to clear cart after order success",
			zap.String("order_id", order.ID.String()),
			zap.Error(err),
		)
	}

	s.mu.Lock()
	s.completed = true
	s.orderID = order.ID.String()
	s.mu.Unlock()

	f.log.Info("Order placed",
		zap.String("order_id", order.ID.String()),
		zap.String("order_number", order.OrderNumber),
		zap.String("user_id", order.UserID),
		zap.Int64("total", order.Total),
	)

	f.publishEvents(ctx, order)
	return order, nil
}

// buildOrder validates the finalizer preconditions and assembles the order
// record under the session lock.
func (f *OrderFinalizer) buildOrder(s *Session) (*models.Order, *OrderError) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.completed {
		return nil, &OrderError{Code: OrderAlreadyCompleted, Message: "order already placed for this session"}
	}
	if s.step != models.StepConfirmation {
		return nil, &OrderError{Code: OrderNotReady, Message: "session has not reached confirmation"}
	}
	if s.address == nil || !s.address.Valid() {
		return nil, &OrderError{Code: OrderNotReady, Message: "shipping address incomplete"}
	}
	if err := ValidatePaymentMethod(s.payment, s.wallet.Connected()); err != nil {
		return nil, &OrderError{Code: OrderNotReady, Message: err.Error()}
	}
	rail, ok := f.rails[s.payment.Kind]
	if !ok {
		return nil, &OrderError{Code: OrderNotReady, Message: fmt.Sprintf("no rail registered for %q", s.payment.Kind)}
	}
	if rail.Kind() == models.PaymentCrypto {
		tx := s.wallet.Transaction()
		if tx == nil || tx.Status != models.TxCompleted {
			return nil, &OrderError{Code: OrderNotReady, Message: "crypto transaction not completed"}
		}
	}

	addressJSON, err := json.Marshal(s.address)
	if err != nil {
		return nil, &OrderError{Code: OrderNotReady, Message: "invalid shipping address"}
	}

	items := make([]models.OrderItem, 0, len(s.cart.Items))
	for _, item := range s.cart.Items {
		items = append(items, models.OrderItem{
			ProductID: item.ProductID,
			Name:      item.Name,
			UnitPrice: item.UnitPrice,
			Quantity:  item.Quantity,
		})
	}

	return &models.Order{
		ID:                uuid.New(),
		OrderNumber:       fmt.Sprintf("ORD-%d-%s", time.Now().Unix(), s.ID.String()[:8]),
		UserID:            s.UserID,
		Subtotal:          s.summary.Subtotal,
		Tax:               s.summary.Tax,
		Shipping:          s.summary.Shipping,
		Total:             s.summary.Total,
		Currency:          f.currency,
		Status:            models.OrderStatusPlaced,
		DeliveryOption:    string(s.delivery),
		PaymentKind:       string(s.payment.Kind),
		PaymentDescriptor: s.payment.Descriptor(),
		AddressJSON:       string(addressJSON),
		OrderItems:        items,
	}, nil
}

// createOrder submits to the order store under a network timeout, with one
// automatic retry permitted only when the first attempt provably never
// reached the store. Ambiguous failures are never retried blindly: a retry
// there could create a duplicate order.
func (f *OrderFinalizer) createOrder(ctx context.Context, order *models.Order) error {
	createCtx, cancel := context.WithTimeout(ctx, f.submitTimeout)
	defer cancel()

	err := f.orders.Create(createCtx, order)
	if err != nil && isDialFailure(err) {
		f.log.Warn("Order store unreachable, retrying once",
			zap.String("order_number", order.OrderNumber),
			zap.Error(err),
		)
		retryCtx, retryCancel := context.WithTimeout(ctx, f.submitTimeout)
		defer retryCancel()
		err = f.orders.Create(retryCtx, order)
	}
	if err != nil {
		f.log.Error("Order creation failed",
			zap.String("order_number", order.OrderNumber),
			zap.Error(err),
		)
		if isDialFailure(err) || errors.Is(err, context.DeadlineExceeded) {
			return &OrderError{Code: OrderNetworkError, Message: "order store unavailable"}
		}
		return &OrderError{Code: OrderServerRejected, Message: err.Error()}
	}
	return nil
}

// isDialFailure reports whether the connection was never established, which
// guarantees the request did not reach the server.
func isDialFailure(err error) bool {
	var opErr *net.OpError
	return errors.As(err, &opErr) && opErr.Op == "dial"
}

// publishEvents triggers the confirmation notices. Failures are logged and
// never affect the order.
func (f *OrderFinalizer) publishEvents(ctx context.Context, order *models.Order) {
	now := time.Now().UTC()

	if f.producer != nil {
		event := models.OrderPlacedEvent{
			Event:          "order.placed",
			OrderID:        order.ID.String(),
			OrderNumber:    order.OrderNumber,
			UserID:         order.UserID,
			Total:          order.Total,
			Currency:       order.Currency,
			PaymentKind:    order.PaymentKind,
			DeliveryOption: order.DeliveryOption,
			Timestamp:      now,
		}
		if err := f.producer.SendOrderPlaced(event); err != nil {
			f.log.Error("Failed to publish order event", zap.Error(err))
		}
	}

	if f.sns != nil && f.snsTopicARN != "" {
		notice := models.ConfirmationNotice{
			EventType:   "order_confirmation",
			OrderID:     order.ID.String(),
			OrderNumber: order.OrderNumber,
			UserID:      order.UserID,
			Total:       order.Total,
			Currency:    order.Currency,
			Timestamp:   now,
		}
		b, err := json.Marshal(notice)
		if err != nil {
			f.log.Error("Failed to marshal confirmation notice", zap.Error(err))
			return
		}
		if err := f.sns.Publish(ctx, f.snsTopicARN, b); err != nil {
			f.log.Error("Failed to publish confirmation notice", zap.Error(err))
		}
	}
}
