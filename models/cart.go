package models

import "time"

type CartItem struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	UnitPrice int64  `json:"unit_price"` // cents
	Quantity  int    `json:"quantity"`
}

type Cart struct {
	UserID    string     `json:"user_id"`
	Items     []CartItem `json:"items"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// CartSnapshot is the cart as seen when a checkout session opened. The live
// cart may keep changing; the snapshot is what gets priced and ordered.
type CartSnapshot struct {
	UserID  string     `json:"user_id"`
	Items   []CartItem `json:"items"`
	TakenAt time.Time  `json:"taken_at"`
}

func (s CartSnapshot) Empty() bool {
	return len(s.Items) == 0
}

// Subtotal returns the sum of line extensions in cents.
func (s CartSnapshot) Subtotal() int64 {
	var total int64
	for _, item := range s.Items {
		total += item.UnitPrice * int64(item.Quantity)
	}
	return total
}
