package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"

	"github.com/sagewell/sagewell-bookings/internal/domain"
	"github.com/sagewell/sagewell-bookings/pkg/logger"
)

const webhookMaxBodyBytes = 65536

// StripeWebhook verifies the event signature and translates Stripe's event
// types into the settlement reconciler's provider-neutral notifications.
// Unknown event kinds are acknowledged so Stripe stops redelivering them; a
// failed handler returns 5xx so Stripe retries.
func (h *Handlers) StripeWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, webhookMaxBodyBytes))
	if err != nil {
		http.Error(w, "failed to read request body", http.StatusBadRequest)
		return
	}

	event, err := webhook.ConstructEvent(body, r.Header.Get("Stripe-Signature"), h.webhookSecret)
	if err != nil {
		logger.WarnContext(r.Context(), "Webhook signature verification failed", "error", err)
		http.Error(w, "invalid signature", http.StatusBadRequest)
		return
	}

	// Fast-path dedup. Best effort: if Redis is down we still process, and
	// the reconciler's status preconditions absorb the duplicate.
	if h.eventDedup != nil {
		seen, err := h.eventDedup.SeenEvent(r.Context(), event.ID, 24*time.Hour)
		if err != nil {
			logger.WarnContext(r.Context(), "Webhook dedup check failed", "error", err, "event_id", event.ID)
		} else if seen {
			w.WriteHeader(http.StatusOK)
			return
		}
	}

	if err := h.dispatchStripeEvent(r, event); err != nil {
		logger.ErrorContext(r.Context(), "Webhook processing failed",
			"error", err, "event_id", event.ID, "event_type", event.Type)
		http.Error(w, "event processing failed", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
}

func (h *Handlers) dispatchStripeEvent(r *http.Request, event stripe.Event) error {
	ctx := r.Context()

	switch event.Type {
	case "checkout.session.completed", "checkout.session.async_payment_succeeded":
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			return err
		}
		if sess.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid {
			// Delayed payment method; the async_payment event settles it later.
			logger.InfoContext(ctx, "Checkout session completed without payment yet", "session_ref", sess.ID)
			return nil
		}
		bookingID, ok := bookingIDFromMetadata(ctx, sess.Metadata, event.ID)
		if !ok {
			return nil
		}
		chargeRef := ""
		if sess.PaymentIntent != nil {
			chargeRef = sess.PaymentIntent.ID
		}
		return h.settlementService.PaymentSucceeded(ctx, domain.PaymentSucceededNote{
			BookingID:  bookingID,
			SessionRef: sess.ID,
			ChargeRef:  chargeRef,
			Amount:     sess.AmountTotal,
			Currency:   string(sess.Currency),
		})

	case "checkout.session.expired":
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			return err
		}
		bookingID, ok := bookingIDFromMetadata(ctx, sess.Metadata, event.ID)
		if !ok {
			return nil
		}
		return h.settlementService.SessionExpired(ctx, domain.SessionExpiredNote{
			BookingID:  bookingID,
			SessionRef: sess.ID,
		})

	case "checkout.session.async_payment_failed":
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			return err
		}
		bookingID, ok := bookingIDFromMetadata(ctx, sess.Metadata, event.ID)
		if !ok {
			return nil
		}
		chargeRef := ""
		if sess.PaymentIntent != nil {
			chargeRef = sess.PaymentIntent.ID
		}
		return h.settlementService.PaymentFailed(ctx, domain.PaymentFailedNote{
			BookingID: bookingID,
			ChargeRef: chargeRef,
			Amount:    sess.AmountTotal,
			Currency:  string(sess.Currency),
			Reason:    "async payment failed",
		})

	case "account.updated":
		var account stripe.Account
		if err := json.Unmarshal(event.Data.Raw, &account); err != nil {
			return err
		}
		return h.settlementService.AccountUpdated(ctx, domain.AccountUpdatedNote{
			AccountID:        account.ID,
			ChargesEnabled:   account.ChargesEnabled,
			PayoutsEnabled:   account.PayoutsEnabled,
			DetailsSubmitted: account.DetailsSubmitted,
		})

	case "charge.refunded":
		var charge stripe.Charge
		if err := json.Unmarshal(event.Data.Raw, &charge); err != nil {
			return err
		}
		chargeRef := charge.ID
		if charge.PaymentIntent != nil {
			chargeRef = charge.PaymentIntent.ID
		}
		refundRef := ""
		if charge.Refunds != nil && len(charge.Refunds.Data) > 0 {
			refundRef = charge.Refunds.Data[0].ID
		}
		return h.settlementService.ChargeRefunded(ctx, domain.ChargeRefundedNote{
			ChargeRef:      chargeRef,
			RefundRef:      refundRef,
			AmountRefunded: charge.AmountRefunded,
			Currency:       string(charge.Currency),
			FullyRefunded:  charge.Refunded,
		})

	case "transfer.created":
		var transfer stripe.Transfer
		if err := json.Unmarshal(event.Data.Raw, &transfer); err != nil {
			return err
		}
		bookingID, ok := bookingIDFromMetadata(ctx, transfer.Metadata, event.ID)
		if !ok {
			return nil
		}
		return h.settlementService.TransferCreated(ctx, domain.TransferCreatedNote{
			BookingID:   bookingID,
			TransferRef: transfer.ID,
			Amount:      transfer.Amount,
			Currency:    string(transfer.Currency),
		})

	default:
		logger.InfoContext(ctx, "Unhandled webhook event type acknowledged", "event_type", event.Type)
		return nil
	}
}

// bookingIDFromMetadata pulls the booking reference every checkout session
// and transfer carries. Events without it did not originate from this
// service, so they are acknowledged and dropped.
func bookingIDFromMetadata(ctx context.Context, metadata map[string]string, eventID string) (int64, bool) {
	raw, exists := metadata["booking_id"]
	if !exists {
		logger.WarnContext(ctx, "Webhook event missing booking metadata", "event_id", eventID)
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		logger.WarnContext(ctx, "Webhook event with malformed booking metadata", "event_id", eventID, "booking_id", raw)
		return 0, false
	}
	return id, true
}
