package payments

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docpoint/booking-platform/pkg/logging"
)

func buildStripePayload(t *testing.T, eventID, eventType, sessionID string) []byte {
	t.Helper()
	evt := map[string]any{
		"id":      eventID,
		"type":    eventType,
		"created": time.Now().Unix(),
		"data": map[string]any{
			"object": map[string]any{
				"id":           sessionID,
				"amount_total": 50000,
				"currency":     "inr",
				"metadata":     map[string]string{"appointment_id": "00000000-0000-0000-0000-000000000001"},
				"status":       "complete",
			},
		},
	}
	data, err := json.Marshal(evt)
	require.NoError(t, err)
	return data
}

func stripeSign(payload []byte, secret string) string {
	ts := fmt.Sprintf("%d", time.Now().Unix())
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(ts + "." + string(payload)))
	return fmt.Sprintf("t=%s,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

type stubApplier struct {
	confirmed []string
	expired   []string
	err       error
}

func (s *stubApplier) ConfirmSession(_ context.Context, ref string) error {
	s.confirmed = append(s.confirmed, ref)
	return s.err
}

func (s *stubApplier) ExpireSession(_ context.Context, ref string) error {
	s.expired = append(s.expired, ref)
	return s.err
}

type stubTracker struct {
	seen   bool
	marked []string
}

func (s *stubTracker) AlreadyProcessed(context.Context, string, string) (bool, error) {
	return s.seen, nil
}

func (s *stubTracker) MarkProcessed(_ context.Context, _ string, eventID string) (bool, error) {
	s.marked = append(s.marked, eventID)
	return true, nil
}

func postWebhook(handler *StripeWebhookHandler, body []byte, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "https://example.com/webhooks/stripe", bytes.NewReader(body))
	if signature != "" {
		req.Header.Set("Stripe-Signature", signature)
	}
	rr := httptest.NewRecorder()
	handler.Handle(rr, req)
	return rr
}

func TestStripeWebhookSessionCompleted(t *testing.T) {
	applier := &stubApplier{}
	tracker := &stubTracker{}
	handler := NewStripeWebhookHandler("whsec_test123", applier, tracker, nil, logging.Default())

	body := buildStripePayload(t, "evt_1", "checkout.session.completed", "cs_123")
	rr := postWebhook(handler, body, stripeSign(body, "whsec_test123"))

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, []string{"cs_123"}, applier.confirmed)
	assert.Empty(t, applier.expired)
	assert.Equal(t, []string{"evt_1"}, tracker.marked)
}

func TestStripeWebhookSessionExpired(t *testing.T) {
	applier := &stubApplier{}
	tracker := &stubTracker{}
	handler := NewStripeWebhookHandler("whsec_test123", applier, tracker, nil, logging.Default())

	body := buildStripePayload(t, "evt_2", "checkout.session.expired", "cs_456")
	rr := postWebhook(handler, body, stripeSign(body, "whsec_test123"))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, []string{"cs_456"}, applier.expired)
	assert.Empty(t, applier.confirmed)
}

func TestStripeWebhookInvalidSignature(t *testing.T) {
	applier := &stubApplier{}
	handler := NewStripeWebhookHandler("whsec_test123", applier, &stubTracker{}, nil, logging.Default())

	body := buildStripePayload(t, "evt_3", "checkout.session.completed", "cs_789")
	rr := postWebhook(handler, body, stripeSign(body, "wrong_secret"))

	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Empty(t, applier.confirmed)
}

func TestStripeWebhookMissingSignature(t *testing.T) {
	handler := NewStripeWebhookHandler("whsec_test123", &stubApplier{}, &stubTracker{}, nil, logging.Default())

	body := buildStripePayload(t, "evt_4", "checkout.session.completed", "cs_000")
	rr := postWebhook(handler, body, "")

	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestStripeWebhookDuplicateDeliveryAcked(t *testing.T) {
	applier := &stubApplier{}
	tracker := &stubTracker{seen: true}
	handler := NewStripeWebhookHandler("whsec_test123", applier, tracker, nil, logging.Default())

	body := buildStripePayload(t, "evt_5", "checkout.session.completed", "cs_dup")
	rr := postWebhook(handler, body, stripeSign(body, "whsec_test123"))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Empty(t, applier.confirmed)
	assert.Empty(t, tracker.marked)
}

func TestStripeWebhookIgnoresUnhandledTypes(t *testing.T) {
	applier := &stubApplier{}
	handler := NewStripeWebhookHandler("whsec_test123", applier, &stubTracker{}, nil, logging.Default())

	body := buildStripePayload(t, "evt_6", "payment_intent.created", "cs_x")
	rr := postWebhook(handler, body, stripeSign(body, "whsec_test123"))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Empty(t, applier.confirmed)
	assert.Empty(t, applier.expired)
}

func TestStripeWebhookHandlerFailureIsRetryable(t *testing.T) {
	applier := &stubApplier{err: fmt.Errorf("db down")}
	tracker := &stubTracker{}
	handler := NewStripeWebhookHandler("whsec_test123", applier, tracker, nil, logging.Default())

	body := buildStripePayload(t, "evt_7", "checkout.session.completed", "cs_err")
	rr := postWebhook(handler, body, stripeSign(body, "whsec_test123"))

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Empty(t, tracker.marked)
}
