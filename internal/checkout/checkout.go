// Package checkout implements the checkout orchestration state machine: the
// one multi-backend, money-moving operation in the gateway.
//
// The steps are strictly sequential because each step's input depends on the
// previous step's confirmed output; that ordering is the transaction's only
// consistency mechanism. There is no payment-reversal call, so the
// payment-succeeded-but-order-failed case is classified distinctly and
// flagged for operator reconciliation instead of being rolled back.
package checkout

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/storefronthq/gateway/internal/backend"
	"github.com/storefronthq/gateway/internal/errors"
	"github.com/storefronthq/gateway/internal/logging"
	"github.com/storefronthq/gateway/internal/metrics"
)

// State is a checkout transaction's position in the state machine.
type State string

const (
	StateStart             State = "START"
	StateCartFetched       State = "CART_FETCHED"
	StatePaymentAuthorized State = "PAYMENT_AUTHORIZED"
	StateOrderCreated      State = "ORDER_CREATED"
	StateCartCleared       State = "CART_CLEARED"
	StateFailed            State = "FAILED"
)

// CartItem is a cart line owned by the ORDER service, held transiently for
// the duration of one checkout.
type CartItem struct {
	ProductID int64 `json:"productId"`
	Quantity  int64 `json:"quantity"`
	Price     int64 `json:"price"`
}

// Transaction is the ephemeral checkout state. It lives only for one request
// and is never persisted by the gateway.
type Transaction struct {
	ID          string
	UserID      int64
	Items       []CartItem
	TotalAmount int64
	State       State
	OrderID     string
}

// Receipt is the successful checkout result returned to the caller.
type Receipt struct {
	OrderID     string
	TotalAmount int64
}

// Orchestrator sequences the cart, payment and order calls for one checkout.
type Orchestrator struct {
	order   *backend.Client
	payment *backend.Client
	logger  *logging.Logger
}

// New creates a checkout orchestrator.
func New(order, payment *backend.Client, logger *logging.Logger) *Orchestrator {
	return &Orchestrator{order: order, payment: payment, logger: logger}
}

type paymentResult struct {
	Status string `json:"status"`
}

type orderResult struct {
	OrderID string `json:"orderId"`
}

// Run executes one checkout for the user. On success the returned receipt
// carries the authoritative order ID. Failures are *errors.ServiceError with
// the checkout-specific codes EmptyCart, PaymentDeclined and
// OrderCreationAfterPayment where applicable.
func (o *Orchestrator) Run(ctx context.Context, userID int64) (*Receipt, error) {
	// If the inbound request disconnects mid-checkout, in-flight calls run to
	// completion within their own timeouts and the results are discarded.
	// Aborting between payment and order creation would manufacture the exact
	// partial-failure case this machine exists to contain.
	ctx = context.WithoutCancel(ctx)

	tx := &Transaction{
		ID:     uuid.New().String(),
		UserID: userID,
		State:  StateStart,
	}

	// START -> CART_FETCHED
	var items []CartItem
	if err := o.order.Get(ctx, fmt.Sprintf("/cart/%d", userID), &items); err != nil {
		return nil, o.fail(ctx, tx, err)
	}
	if len(items) == 0 {
		return nil, o.fail(ctx, tx, errors.EmptyCart())
	}
	tx.Items = items
	tx.State = StateCartFetched

	// The total is computed exactly once and frozen for the lifetime of the
	// transaction, so the amount settled equals the amount authorized.
	tx.TotalAmount = total(items)

	// CART_FETCHED -> PAYMENT_AUTHORIZED
	var payment paymentResult
	err := o.payment.Post(ctx, "/payments/checkout", map[string]any{
		"userId":      userID,
		"totalAmount": tx.TotalAmount,
	}, &payment)
	if err != nil {
		return nil, o.fail(ctx, tx, err)
	}
	if payment.Status != "success" {
		// No order is created and the cart is untouched; the user can retry.
		return nil, o.fail(ctx, tx, errors.PaymentDeclined(""))
	}
	tx.State = StatePaymentAuthorized

	// PAYMENT_AUTHORIZED -> ORDER_CREATED
	var order orderResult
	err = o.order.Post(ctx, "/orders/create", map[string]any{
		"userId": userID,
		"items":  tx.Items,
		"total":  tx.TotalAmount,
	}, &order)
	if err != nil {
		// Payment settled but no order exists. Flag distinctly for manual
		// reconciliation; never report this as a generic failure.
		flagged := errors.OrderCreationAfterPayment(err).
			WithDetails("transaction_id", tx.ID).
			WithDetails("total_amount", tx.TotalAmount)
		o.logger.WithContext(ctx).WithError(err).WithFields(map[string]interface{}{
			"transaction_id": tx.ID,
			"user_id":        tx.UserID,
			"total_amount":   tx.TotalAmount,
			"state":          string(tx.State),
		}).Error("order creation failed after successful payment; manual reconciliation required")
		return nil, o.fail(ctx, tx, flagged)
	}
	tx.OrderID = order.OrderID
	tx.State = StateOrderCreated

	// ORDER_CREATED -> CART_CLEARED. The order and payment are valid even if
	// this fails; a stale cart is accepted drift, not rolled back.
	if err := o.order.CallJSON(ctx, http.MethodDelete, fmt.Sprintf("/cart/%d", userID), nil, nil); err != nil {
		o.logger.WithContext(ctx).WithError(err).WithFields(map[string]interface{}{
			"transaction_id": tx.ID,
			"order_id":       tx.OrderID,
		}).Warn("cart clear failed after order creation; leaving stale cart")
	}
	tx.State = StateCartCleared

	metrics.RecordCheckout("success")
	return &Receipt{OrderID: tx.OrderID, TotalAmount: tx.TotalAmount}, nil
}

// fail records the terminal failure outcome and returns the error.
func (o *Orchestrator) fail(ctx context.Context, tx *Transaction, err error) error {
	tx.State = StateFailed
	metrics.RecordCheckout(outcomeLabel(err))

	se := errors.GetServiceError(err)
	if se == nil {
		se = errors.Unknown("checkout failed", err)
	}
	o.logger.WithContext(ctx).WithError(err).WithFields(map[string]interface{}{
		"transaction_id": tx.ID,
		"user_id":        tx.UserID,
		"code":           string(se.Code),
	}).Warn("checkout failed")
	return se
}

func outcomeLabel(err error) string {
	se := errors.GetServiceError(err)
	if se == nil {
		return "unknown"
	}
	switch se.Code {
	case errors.CodeEmptyCart:
		return "empty_cart"
	case errors.CodePaymentDeclined:
		return "payment_declined"
	case errors.CodeOrderCreationAfterPayment:
		return "order_creation_after_payment"
	case errors.CodeUpstreamUnavailable:
		return "upstream_unavailable"
	case errors.CodeUpstreamRejected:
		return "upstream_rejected"
	default:
		return "unknown"
	}
}

func total(items []CartItem) int64 {
	var sum int64
	for _, item := range items {
		sum += item.Price * item.Quantity
	}
	return sum
}
