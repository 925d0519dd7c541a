package models

// Step is one of the ordered checkout steps. Advancing past a step requires
// that step's gate to pass; steps are never skipped.
type Step int

const (
	StepReview Step = iota
	StepShipping
	StepPayment
	StepConfirmation
)

func (s Step) String() string {
	switch s {
	case StepReview:
		return "review"
	case StepShipping:
		return "shipping"
	case StepPayment:
		return "payment"
	case StepConfirmation:
		return "confirmation"
	default:
		return "unknown"
	}
}

type DeliveryOption string

const (
	DeliveryStandard  DeliveryOption = "standard"
	DeliveryExpress   DeliveryOption = "express"
	DeliveryOvernight DeliveryOption = "overnight"
)

func (d DeliveryOption) Valid() bool {
	switch d {
	case DeliveryStandard, DeliveryExpress, DeliveryOvernight:
		return true
	}
	return false
}

// Estimate returns the user-facing delivery time estimate.
func (d DeliveryOption) Estimate() string {
	switch d {
	case DeliveryExpress:
		return "2-3 business days"
	case DeliveryOvernight:
		return "next business day"
	default:
		return "5-7 business days"
	}
}

// OrderSummary holds the priced totals for a session, all in cents.
// Total is always Subtotal + Tax + Shipping.
type OrderSummary struct {
	Subtotal int64 `json:"subtotal"`
	Tax      int64 `json:"tax"`
	Shipping int64 `json:"shipping"`
	Total    int64 `json:"total"`
}

type ShippingAddress struct {
	Name         string `json:"name"`
	AddressLine1 string `json:"address_line1"`
	AddressLine2 string `json:"address_line2,omitempty"`
	City         string `json:"city"`
	State        string `json:"state"`
	PostalCode   string `json:"postal_code"`
	Country      string `json:"country"`
	Phone        string `json:"phone,omitempty"`
}

// MissingFields returns the names of required fields that are empty.
func (a ShippingAddress) MissingFields() []string {
	var missing []string
	required := []struct {
		name  string
		value string
	}{
		{"name", a.Name},
		{"address_line1", a.AddressLine1},
		{"city", a.City},
		{"state", a.State},
		{"postal_code", a.PostalCode},
		{"country", a.Country},
	}
	for _, f := range required {
		if f.value == "" {
			missing = append(missing, f.name)
		}
	}
	return missing
}

func (a ShippingAddress) Valid() bool {
	return len(a.MissingFields()) == 0
}

// CheckoutSessionView is the JSON shape of a session returned to clients.
type CheckoutSessionView struct {
	ID        string           `json:"id"`
	UserID    string           `json:"user_id"`
	Step      string           `json:"step"`
	Completed bool             `json:"completed"`
	Cart      CartSnapshot     `json:"cart"`
	Summary   OrderSummary     `json:"summary"`
	Address   *ShippingAddress `json:"address,omitempty"`
	Delivery  DeliveryOption   `json:"delivery"`
	Payment   *PaymentView     `json:"payment,omitempty"`
	Wallet    *WalletConnection `json:"wallet,omitempty"`
	Tx        *Transaction     `json:"transaction,omitempty"`
	OrderID   string           `json:"order_id,omitempty"`
}
