package wallet

import (
	"context"
	"fmt"

	"checkout-service/models"
)

// ProviderKind identifies which external signer the user chose.
type ProviderKind string

const (
	ProviderMetaMask      ProviderKind = "metamask"
	ProviderWalletConnect ProviderKind = "walletconnect"
	ProviderCoinbase      ProviderKind = "coinbase"
)

// TxState is the provider's view of a submitted transaction.
type TxState int

const (
	TxPending TxState = iota
	TxConfirmed
	TxRejected
)

// Provider is the opaque wallet capability the lifecycle drives.
// Chain-specific mechanics stay behind this interface.
type Provider interface {
	Connect(ctx context.Context, kind ProviderKind) (models.WalletConnection, error)
	SignAndSend(ctx context.Context, req models.TxRequest) (string, error)
	TransactionStatus(ctx context.Context, txID string) (TxState, error)
}

// WalletError codes. All of these are recoverable: the user may retry the
// connect or submit that produced them.
type WalletErrorCode string

const (
	ConnectionDenied    WalletErrorCode = "connection_denied"
	ConnectionTimeout   WalletErrorCode = "connection_timeout"
	UserRejected        WalletErrorCode = "user_rejected"
	NoWallet            WalletErrorCode = "no_wallet"
	TransactionInFlight WalletErrorCode = "transaction_in_flight"
	WalletDisconnected  WalletErrorCode = "wallet_disconnected"
)

type WalletError struct {
	Code    WalletErrorCode
	Message string
}

func (e *WalletError) Error() string {
	return fmt.Sprintf("wallet: %s: %s", e.Code, e.Message)
}

func NewWalletError(code WalletErrorCode, message string) *WalletError {
	return &WalletError{Code: code, Message: message}
}

// TransactionError covers failures of a submitted transaction. Ambiguous
// failures (confirmation timeout) may still succeed on-chain and must be
// surfaced distinctly from definite failures.
type TransactionError struct {
	Reason    string
	TxID      string
	Ambiguous bool
}

func (e *TransactionError) Error() string {
	if e.Ambiguous {
		return fmt.Sprintf("transaction %s unconfirmed: %s", e.TxID, e.Reason)
	}
	return fmt.Sprintf("transaction %s failed: %s", e.TxID, e.Reason)
}
