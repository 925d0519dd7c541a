package controllers

import (
	"errors"
	"net/http"

	"checkout-service/middleware"
	"checkout-service/models"
	"checkout-service/services"
	"checkout-service/wallet"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type CheckoutController struct {
	Checkout  *services.CheckoutService
	Finalizer *services.OrderFinalizer
	Logger    *zap.Logger
}

func NewCheckoutController(checkout *services.CheckoutService, finalizer *services.OrderFinalizer, logger *zap.Logger) *CheckoutController {
	return &CheckoutController{
		Checkout:  checkout,
		Finalizer: finalizer,
		Logger:    logger,
	}
}

// StartSession opens a checkout session from the user's current cart.
func (cc *CheckoutController) StartSession(c *gin.Context) {
	userID := middleware.GetUserID(c)

	session, err := cc.Checkout.Start(c.Request.Context(), userID)
	if err != nil {
		cc.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, session.View())
}

// GetSession returns the current session state.
func (cc *CheckoutController) GetSession(c *gin.Context) {
	session, ok := cc.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, session.View())
}

// Advance moves to the next step if the current step's gate passes.
func (cc *CheckoutController) Advance(c *gin.Context) {
	id, ok := cc.sessionID(c)
	if !ok {
		return
	}
	step, err := cc.Checkout.Advance(id)
	if err != nil {
		cc.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"step": step.String()})
}

// Retreat steps back, preserving all edits.
func (cc *CheckoutController) Retreat(c *gin.Context) {
	id, ok := cc.sessionID(c)
	if !ok {
		return
	}
	step, err := cc.Checkout.Retreat(id)
	if err != nil {
		cc.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"step": step.String()})
}

// SetAddress stores the shipping address.
func (cc *CheckoutController) SetAddress(c *gin.Context) {
	id, ok := cc.sessionID(c)
	if !ok {
		return
	}

	var addr models.ShippingAddress
	if err := c.ShouldBindJSON(&addr); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	if err := cc.Checkout.SetAddress(id, addr); err != nil {
		cc.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "address saved"})
}

// SetDelivery selects a delivery option and reprices the session.
func (cc *CheckoutController) SetDelivery(c *gin.Context) {
	id, ok := cc.sessionID(c)
	if !ok {
		return
	}

	var req struct {
		Option models.DeliveryOption `json:"option" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	if err := cc.Checkout.SetDelivery(id, req.Option); err != nil {
		cc.fail(c, err)
		return
	}

	summary, err := cc.Checkout.RecomputeSummary(id)
	if err != nil {
		cc.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"summary": summary, "estimate": req.Option.Estimate()})
}

// SetPayment selects the payment rail for the session.
func (cc *CheckoutController) SetPayment(c *gin.Context) {
	id, ok := cc.sessionID(c)
	if !ok {
		return
	}

	var method models.PaymentMethod
	if err := c.ShouldBindJSON(&method); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	if err := cc.Checkout.SetPayment(id, method); err != nil {
		cc.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "payment method saved", "descriptor": method.Descriptor()})
}

// ConnectWallet asks the external signer for a connection.
func (cc *CheckoutController) ConnectWallet(c *gin.Context) {
	id, ok := cc.sessionID(c)
	if !ok {
		return
	}

	var req struct {
		Provider wallet.ProviderKind `json:"provider" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	conn, err := cc.Checkout.ConnectWallet(c.Request.Context(), id, req.Provider)
	if err != nil {
		cc.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, conn)
}

// DisconnectWallet drops the wallet connection. An in-flight transaction is
// driven to failed, not silently abandoned.
func (cc *CheckoutController) DisconnectWallet(c *gin.Context) {
	id, ok := cc.sessionID(c)
	if !ok {
		return
	}
	if err := cc.Checkout.DisconnectWallet(id); err != nil {
		cc.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "wallet disconnected"})
}

// QuoteCrypto returns the token amount for the session's current total.
func (cc *CheckoutController) QuoteCrypto(c *gin.Context) {
	id, ok := cc.sessionID(c)
	if !ok {
		return
	}
	quote, err := cc.Checkout.QuoteCrypto(c.Request.Context(), id)
	if err != nil {
		cc.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, quote)
}

// SubmitTransaction submits the transfer and waits for on-chain confirmation.
func (cc *CheckoutController) SubmitTransaction(c *gin.Context) {
	id, ok := cc.sessionID(c)
	if !ok {
		return
	}

	if _, err := cc.Checkout.SubmitTransaction(c.Request.Context(), id); err != nil {
		cc.fail(c, err)
		return
	}

	tx, err := cc.Checkout.AwaitTransaction(c.Request.Context(), id)
	if err != nil {
		var txErr *wallet.TransactionError
		if errors.As(err, &txErr) && txErr.Ambiguous {
			// not a definite failure: the transfer may still land on-chain
			c.JSON(http.StatusAccepted, gin.H{"transaction": tx, "status": "unconfirmed"})
			return
		}
		cc.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transaction": tx})
}

// ReconcileTransaction re-queries an ambiguously failed transaction.
func (cc *CheckoutController) ReconcileTransaction(c *gin.Context) {
	id, ok := cc.sessionID(c)
	if !ok {
		return
	}
	tx, err := cc.Checkout.ReconcileTransaction(c.Request.Context(), id)
	if err != nil {
		cc.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transaction": tx})
}

// PlaceOrder finalizes the session into a durable order.
func (cc *CheckoutController) PlaceOrder(c *gin.Context) {
	session, ok := cc.session(c)
	if !ok {
		return
	}

	order, err := cc.Finalizer.PlaceOrder(c.Request.Context(), session)
	if err != nil {
		cc.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, order)
}

// CloseSession cancels an open session or disposes a completed one.
func (cc *CheckoutController) CloseSession(c *gin.Context) {
	id, ok := cc.sessionID(c)
	if !ok {
		return
	}

	err := cc.Checkout.Cancel(id)
	if errors.Is(err, services.ErrSessionCompleted) {
		err = cc.Checkout.Dispose(id)
	}
	if err != nil {
		cc.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "session closed"})
}

func (cc *CheckoutController) sessionID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session id"})
		return uuid.Nil, false
	}
	return id, true
}

func (cc *CheckoutController) session(c *gin.Context) (*services.Session, bool) {
	id, ok := cc.sessionID(c)
	if !ok {
		return nil, false
	}
	session, err := cc.Checkout.Get(id)
	if err != nil {
		cc.fail(c, err)
		return nil, false
	}
	if session.UserID != middleware.GetUserID(c) {
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		return nil, false
	}
	return session, true
}

// fail maps domain errors onto HTTP statuses.
func (cc *CheckoutController) fail(c *gin.Context, err error) {
	var valErr *services.ValidationError
	var walletErr *wallet.WalletError
	var txErr *wallet.TransactionError
	var orderErr *services.OrderError

	switch {
	case errors.Is(err, services.ErrSessionNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrEmptyCart),
		errors.Is(err, services.ErrAtFirstStep),
		errors.Is(err, services.ErrAtLastStep),
		errors.Is(err, services.ErrNotCryptoRail),
		errors.Is(err, services.ErrWalletRequired):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrSessionCompleted):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrUnknownAsset), errors.Is(err, services.ErrStaleRate):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.As(err, &valErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": valErr.Message, "fields": valErr.Fields})
	case errors.As(err, &walletErr):
		status := http.StatusBadRequest
		switch walletErr.Code {
		case wallet.ConnectionTimeout:
			status = http.StatusGatewayTimeout
		case wallet.TransactionInFlight:
			status = http.StatusConflict
		}
		c.JSON(status, gin.H{"error": walletErr.Message, "code": walletErr.Code})
	case errors.As(err, &txErr):
		c.JSON(http.StatusBadGateway, gin.H{"error": txErr.Error(), "ambiguous": txErr.Ambiguous})
	case errors.As(err, &orderErr):
		status := http.StatusBadGateway
		switch orderErr.Code {
		case services.OrderAlreadySubmitting, services.OrderAlreadyCompleted:
			status = http.StatusConflict
		case services.OrderNotReady:
			status = http.StatusBadRequest
		case services.OrderPaymentFailed:
			status = http.StatusPaymentRequired
		}
		c.JSON(status, gin.H{"error": orderErr.Message, "code": orderErr.Code})
	default:
		cc.Logger.Error("Unhandled checkout error", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
