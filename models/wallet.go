package models

// WalletConnection exists only while an external signer is connected.
type WalletConnection struct {
	Address   string `json:"address"`
	ChainID   int64  `json:"chain_id"`
	ChainName string `json:"chain_name"`
	Balance   string `json:"balance,omitempty"` // wei, decimal string
}

type TxStatus string

const (
	TxIdle       TxStatus = "idle"
	TxProcessing TxStatus = "processing"
	TxConfirming TxStatus = "confirming"
	TxCompleted  TxStatus = "completed"
	TxFailed     TxStatus = "failed"
)

func (s TxStatus) Terminal() bool {
	return s == TxCompleted || s == TxFailed
}

// InFlight reports whether a transaction occupies the session's single
// in-flight slot.
func (s TxStatus) InFlight() bool {
	return s == TxProcessing || s == TxConfirming
}

// TxRequest is what the session asks the wallet provider to sign and send.
type TxRequest struct {
	Asset       string  `json:"asset"`
	Recipient   string  `json:"recipient"`
	TokenAmount float64 `json:"token_amount"`
	NetworkFee  float64 `json:"network_fee"`
}

// Transaction tracks one on-chain payment. ID is assigned when the
// transaction enters processing and never changes afterwards.
type Transaction struct {
	ID          string   `json:"id,omitempty"`
	Status      TxStatus `json:"status"`
	TokenAmount float64  `json:"token_amount"`
	Asset       string   `json:"asset"`
	Recipient   string   `json:"recipient"`
	NetworkFee  float64  `json:"network_fee"`
	FailReason  string   `json:"fail_reason,omitempty"`

	// Ambiguous marks a failure that may still succeed on-chain (e.g. a
	// confirmation timeout). Such transactions must not be reported as
	// definitely failed.
	Ambiguous bool `json:"ambiguous,omitempty"`
}
