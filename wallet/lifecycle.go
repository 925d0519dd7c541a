package wallet

import (
	"context"
	"errors"
	"sync"
	"time"

	"checkout-service/models"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// Config bounds the lifecycle's external waits.
type Config struct {
	ConnectTimeout  time.Duration
	ConfirmTimeout  time.Duration
	PollInterval    time.Duration
	PollMaxInterval time.Duration
}

func DefaultConfig() Config {
	return Config{
		ConnectTimeout:  30 * time.Second,
		ConfirmTimeout:  2 * time.Minute,
		PollInterval:    2 * time.Second,
		PollMaxInterval: 15 * time.Second,
	}
}

var errStillPending = errors.New("transaction still pending")

// Lifecycle owns one session's wallet connection and its single in-flight
// transaction: Idle -> Processing -> Confirming -> Completed, with Failed
// reachable from Processing and Confirming. Connection is a precondition,
// not a transaction state.
type Lifecycle struct {
	provider Provider
	cfg      Config
	log      *zap.Logger

	mu         sync.Mutex
	conn       *models.WalletConnection
	tx         *models.Transaction
	cancelPoll context.CancelFunc
}

func NewLifecycle(provider Provider, cfg Config, log *zap.Logger) *Lifecycle {
	return &Lifecycle{provider: provider, cfg: cfg, log: log}
}

// Connect asks the external signer for a connection, bounded by the connect
// timeout. On failure the lifecycle stays disconnected.
func (l *Lifecycle) Connect(ctx context.Context, kind ProviderKind) (*models.WalletConnection, error) {
	l.mu.Lock()
	if l.conn != nil {
		conn := *l.conn
		l.mu.Unlock()
		return &conn, nil
	}
	l.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, l.cfg.ConnectTimeout)
	defer cancel()

	conn, err := l.provider.Connect(ctx, kind)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, NewWalletError(ConnectionTimeout, "wallet did not respond in time")
		}
		var werr *WalletError
		if errors.As(err, &werr) {
			return nil, werr
		}
		return nil, NewWalletError(ConnectionDenied, err.Error())
	}

	l.mu.Lock()
	l.conn = &conn
	l.mu.Unlock()

	l.log.Info("Wallet connected",
		zap.String("address", conn.Address),
		zap.String("chain", conn.ChainName),
	)
	return &conn, nil
}

// Disconnect clears the connection immediately. A transaction that is still
// processing or confirming cannot complete without the session's wallet, so
// it is driven to Failed rather than silently abandoned.
func (l *Lifecycle) Disconnect() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.conn = nil
	if l.tx != nil && l.tx.Status.InFlight() {
		l.tx.Status = models.TxFailed
		l.tx.FailReason = string(WalletDisconnected)
		l.log.Warn("Wallet disconnected with transaction in flight",
			zap.String("tx_id", l.tx.ID),
		)
	}
	l.stopPollLocked()
}

// Connected reports whether a wallet connection is active.
func (l *Lifecycle) Connected() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.conn != nil
}

// Connection returns a copy of the active connection, or nil.
func (l *Lifecycle) Connection() *models.WalletConnection {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.conn == nil {
		return nil
	}
	conn := *l.conn
	return &conn
}

// Transaction returns a copy of the current transaction, or nil.
func (l *Lifecycle) Transaction() *models.Transaction {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.tx == nil {
		return nil
	}
	tx := *l.tx
	return &tx
}

// Submit moves Idle -> Processing, asks the signer to sign and send, and on
// success records the immutable transaction id and moves to Confirming.
// At most one transaction is in flight per session.
func (l *Lifecycle) Submit(ctx context.Context, req models.TxRequest) (*models.Transaction, error) {
	l.mu.Lock()
	if l.conn == nil {
		l.mu.Unlock()
		return nil, NewWalletError(NoWallet, "connect a wallet before submitting")
	}
	if l.tx != nil && l.tx.Status.InFlight() {
		l.mu.Unlock()
		return nil, NewWalletError(TransactionInFlight, "a transaction is already in flight")
	}
	l.tx = &models.Transaction{
		Status:      models.TxProcessing,
		TokenAmount: req.TokenAmount,
		Asset:       req.Asset,
		Recipient:   req.Recipient,
		NetworkFee:  req.NetworkFee,
	}
	l.mu.Unlock()

	txID, err := l.provider.SignAndSend(ctx, req)

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.tx.Status == models.TxFailed {
		// disconnected while the signer was working
		return l.txCopyLocked(), &TransactionError{Reason: l.tx.FailReason}
	}

	if err != nil {
		l.tx.Status = models.TxFailed
		l.tx.FailReason = string(UserRejected)
		l.log.Warn("Signer rejected transaction", zap.Error(err))
		return l.txCopyLocked(), NewWalletError(UserRejected, err.Error())
	}

	l.tx.ID = txID
	l.tx.Status = models.TxConfirming
	l.log.Info("Transaction submitted",
		zap.String("tx_id", txID),
		zap.String("asset", req.Asset),
		zap.Float64("token_amount", req.TokenAmount),
	)
	return l.txCopyLocked(), nil
}

// AwaitConfirmation polls the provider for finality with exponential backoff
// under the confirmation timeout. A timeout is an ambiguous outcome: the
// transaction may still succeed on-chain, so the id is kept for Reconcile.
func (l *Lifecycle) AwaitConfirmation(ctx context.Context) (*models.Transaction, error) {
	l.mu.Lock()
	if l.tx == nil || l.tx.Status != models.TxConfirming {
		status := models.TxIdle
		if l.tx != nil {
			status = l.tx.Status
		}
		l.mu.Unlock()
		return nil, &TransactionError{Reason: "no transaction awaiting confirmation (status " + string(status) + ")"}
	}
	txID := l.tx.ID
	pollCtx, cancel := context.WithCancel(ctx)
	l.cancelPoll = cancel
	l.mu.Unlock()

	defer func() {
		l.mu.Lock()
		l.stopPollLocked()
		l.mu.Unlock()
	}()

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = l.cfg.PollInterval
	bo.MaxInterval = l.cfg.PollMaxInterval
	bo.MaxElapsedTime = l.cfg.ConfirmTimeout

	err := backoff.Retry(func() error {
		state, err := l.provider.TransactionStatus(pollCtx, txID)
		if err != nil {
			// transient RPC failure, keep polling
			return err
		}
		switch state {
		case TxConfirmed:
			return nil
		case TxRejected:
			return backoff.Permanent(&TransactionError{Reason: "rejected on-chain", TxID: txID})
		default:
			return errStillPending
		}
	}, backoff.WithContext(bo, pollCtx))

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.tx.Status == models.TxFailed {
		// disconnect or cancel forced a terminal state while polling
		return l.txCopyLocked(), &TransactionError{Reason: l.tx.FailReason, TxID: txID}
	}

	if err == nil {
		l.tx.Status = models.TxCompleted
		l.log.Info("Transaction confirmed", zap.String("tx_id", txID))
		return l.txCopyLocked(), nil
	}

	var txErr *TransactionError
	if errors.As(err, &txErr) {
		l.tx.Status = models.TxFailed
		l.tx.FailReason = txErr.Reason
		l.log.Warn("Transaction failed on-chain", zap.String("tx_id", txID))
		return l.txCopyLocked(), txErr
	}

	// Timed out or canceled: the transaction may still land on-chain.
	l.tx.Status = models.TxFailed
	l.tx.FailReason = "confirmation_timeout"
	l.tx.Ambiguous = true
	l.log.Warn("Confirmation timed out; outcome ambiguous", zap.String("tx_id", txID))
	return l.txCopyLocked(), &TransactionError{Reason: "confirmation_timeout", TxID: txID, Ambiguous: true}
}

// Reconcile re-queries an ambiguously failed transaction. A transaction that
// did land on-chain is upgraded to Completed; one the chain rejected becomes
// a definite failure; still-pending transactions stay ambiguous.
func (l *Lifecycle) Reconcile(ctx context.Context) (*models.Transaction, error) {
	l.mu.Lock()
	if l.tx == nil || !l.tx.Ambiguous || l.tx.ID == "" {
		tx := l.txCopyLocked()
		l.mu.Unlock()
		return tx, nil
	}
	txID := l.tx.ID
	l.mu.Unlock()

	state, err := l.provider.TransactionStatus(ctx, txID)
	if err != nil {
		return l.Transaction(), err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	switch state {
	case TxConfirmed:
		l.tx.Status = models.TxCompleted
		l.tx.FailReason = ""
		l.tx.Ambiguous = false
		l.log.Info("Ambiguous transaction confirmed on reconcile", zap.String("tx_id", txID))
	case TxRejected:
		l.tx.Ambiguous = false
		l.tx.FailReason = "rejected on-chain"
	}
	return l.txCopyLocked(), nil
}

// Stop cancels any outstanding confirmation poll. Used on session disposal
// so a stale poll cannot mutate a discarded session.
func (l *Lifecycle) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stopPollLocked()
}

func (l *Lifecycle) stopPollLocked() {
	if l.cancelPoll != nil {
		l.cancelPoll()
		l.cancelPoll = nil
	}
}

func (l *Lifecycle) txCopyLocked() *models.Transaction {
	if l.tx == nil {
		return nil
	}
	tx := *l.tx
	return &tx
}
