package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"checkout-service/models"
)

// ErrWalletRequired gates the crypto rail: the method's fields may all be
// present, but settlement is impossible without a connected wallet.
var ErrWalletRequired = errors.New("crypto payment requires a connected wallet")

// ValidationError reports a step-gate failure. Recoverable: the user corrects
// input and retries; no session state changes.
type ValidationError struct {
	Fields  []string
	Message string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) > 0 {
		return fmt.Sprintf("%s: missing %s", e.Message, strings.Join(e.Fields, ", "))
	}
	return e.Message
}

// ValidatePaymentMethod is the pure, synchronous rail validation.
func ValidatePaymentMethod(m *models.PaymentMethod, walletConnected bool) error {
	if m == nil {
		return &ValidationError{Message: "no payment method selected"}
	}

	switch m.Kind {
	case models.PaymentCard:
		if m.Card == nil {
			return &ValidationError{Message: "card details required"}
		}
		if missing := m.Card.MissingFields(); len(missing) > 0 {
			return &ValidationError{Fields: missing, Message: "incomplete card details"}
		}
		return nil

	case models.PaymentCrypto:
		if m.Crypto == nil {
			return &ValidationError{Message: "crypto details required"}
		}
		if missing := m.Crypto.MissingFields(); len(missing) > 0 {
			return &ValidationError{Fields: missing, Message: "incomplete crypto details"}
		}
		if !walletConnected {
			return ErrWalletRequired
		}
		return nil

	default:
		return &ValidationError{Message: fmt.Sprintf("unsupported payment method %q", m.Kind)}
	}
}

// Rail is one of the mutually exclusive payment methods. Validate is pure;
// Settle completes the payment transfer and returns a settlement reference.
type Rail interface {
	Kind() models.PaymentKind
	Validate(m *models.PaymentMethod, walletConnected bool) error
	Settle(ctx context.Context, s *Session) (string, error)
}

// CardRail settles through a Stripe payment intent. The descriptor persisted
// with the order carries only the redacted method, never the PAN or CVV.
type CardRail struct {
	stripe   PaymentIntentCreator
	currency string
}

func NewCardRail(stripe PaymentIntentCreator, currency string) *CardRail {
	return &CardRail{stripe: stripe, currency: currency}
}

func (r *CardRail) Kind() models.PaymentKind { return models.PaymentCard }

func (r *CardRail) Validate(m *models.PaymentMethod, walletConnected bool) error {
	return ValidatePaymentMethod(m, walletConnected)
}

func (r *CardRail) Settle(ctx context.Context, s *Session) (string, error) {
	summary := s.Summary()
	return r.stripe.CreatePaymentIntent(summary.Total, r.currency)
}

// CryptoRail settles by observing the session's wallet transaction: payment
// already moved on-chain, so settlement is the completed transaction id.
type CryptoRail struct{}

func NewCryptoRail() *CryptoRail { return &CryptoRail{} }

func (r *CryptoRail) Kind() models.PaymentKind { return models.PaymentCrypto }

func (r *CryptoRail) Validate(m *models.PaymentMethod, walletConnected bool) error {
	return ValidatePaymentMethod(m, walletConnected)
}

func (r *CryptoRail) Settle(ctx context.Context, s *Session) (string, error) {
	tx := s.Wallet().Transaction()
	if tx == nil || tx.Status != models.TxCompleted {
		return "", errors.New("crypto settlement requires a completed transaction")
	}
	return tx.ID, nil
}
