package models

import "fmt"

type PaymentKind string

const (
	PaymentCard   PaymentKind = "card"
	PaymentCrypto PaymentKind = "crypto"
)

type CardDetails struct {
	CardNumber string `json:"card_number"`
	Expiry     string `json:"expiry"`
	CVV        string `json:"cvv"`
	HolderName string `json:"holder_name"`
}

// MissingFields reports which of the four required card fields are empty.
// Format validation (Luhn, expiry parsing) is the payment gateway's concern.
func (c CardDetails) MissingFields() []string {
	var missing []string
	if c.CardNumber == "" {
		missing = append(missing, "card_number")
	}
	if c.Expiry == "" {
		missing = append(missing, "expiry")
	}
	if c.CVV == "" {
		missing = append(missing, "cvv")
	}
	if c.HolderName == "" {
		missing = append(missing, "holder_name")
	}
	return missing
}

type CryptoDetails struct {
	Asset         string `json:"asset"`
	WalletAddress string `json:"wallet_address"`
}

func (c CryptoDetails) MissingFields() []string {
	var missing []string
	if c.Asset == "" {
		missing = append(missing, "asset")
	}
	if c.WalletAddress == "" {
		missing = append(missing, "wallet_address")
	}
	return missing
}

// PaymentMethod is a discriminated union over the supported rails. Exactly
// one of Card or Crypto is set, matching Kind.
type PaymentMethod struct {
	Kind   PaymentKind    `json:"kind"`
	Card   *CardDetails   `json:"card,omitempty"`
	Crypto *CryptoDetails `json:"crypto,omitempty"`
}

// Descriptor returns a redacted description safe to persist and display.
// Raw card numbers and CVVs never leave the settlement call.
func (m PaymentMethod) Descriptor() string {
	switch m.Kind {
	case PaymentCard:
		if m.Card == nil || len(m.Card.CardNumber) < 4 {
			return "card"
		}
		return "card ****" + m.Card.CardNumber[len(m.Card.CardNumber)-4:]
	case PaymentCrypto:
		if m.Crypto == nil {
			return "crypto"
		}
		return fmt.Sprintf("crypto %s %s", m.Crypto.Asset, m.Crypto.WalletAddress)
	default:
		return string(m.Kind)
	}
}

// PaymentView is the client-facing shape of a selected method, with card
// secrets stripped.
type PaymentView struct {
	Kind       PaymentKind `json:"kind"`
	Descriptor string      `json:"descriptor"`
}

func (m PaymentMethod) View() *PaymentView {
	return &PaymentView{Kind: m.Kind, Descriptor: m.Descriptor()}
}
