package payments

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleEvent = `{
  "event": "transaction.updated",
  "data": {
    "transaction": {
      "id": "1234-1610641025-49201",
      "amount_in_cents": 4950000,
      "reference": "ORD-1-abc",
      "customer_email": "juan@example.com",
      "currency": "COP",
      "status": "APPROVED"
    }
  },
  "environment": "test",
  "signature": {
    "properties": ["transaction.id", "transaction.status", "transaction.amount_in_cents"],
    "checksum": "EE87C91594F4E3607394C9E54AA03077803508D2F1BBBE1F96BA68C962326559"
  },
  "timestamp": 1530291411,
  "sent_at": "2018-07-20T16:45:05.000Z"
}`

func TestIntegrity_KnownVector(t *testing.T) {
	got := Integrity("ORD-1-abc", 150000, "COP", "test_integrity_secret")
	assert.Equal(t, "b8ddca35e7b7f5bea489291ee0f5a5fd2a039247c9126a013c6e939a5ef46857", got)
}

func TestParseEvent(t *testing.T) {
	ev, err := ParseEvent([]byte(sampleEvent), nil)
	require.NoError(t, err)

	assert.Equal(t, EventTransactionUpdated, ev.Event)
	assert.Equal(t, "ORD-1-abc", ev.Transaction.Reference)
	assert.Equal(t, StatusApproved, ev.Transaction.Status)
	assert.Equal(t, int64(4950000), ev.Transaction.AmountInCents)
	assert.Equal(t, "1530291411", ev.Timestamp)
	assert.Contains(t, string(ev.Data), "customer_email")
}

func TestParseEvent_HeaderFallbacks(t *testing.T) {
	body := `{"event":"transaction.updated","data":{"transaction":{"id":"t1","status":"DECLINED","amount_in_cents":100,"reference":"r"}}}`
	h := http.Header{}
	h.Set(HeaderChecksum, "abc")
	h.Set(HeaderTimestamp, "99")

	ev, err := ParseEvent([]byte(body), h)
	require.NoError(t, err)
	assert.Equal(t, "abc", ev.Checksum)
	assert.Equal(t, "99", ev.Timestamp)
}

func TestParseEvent_Malformed(t *testing.T) {
	_, err := ParseEvent([]byte(`{"event":`), nil)
	assert.Error(t, err)

	_, err = ParseEvent([]byte(`{"event":"transaction.updated"}`), nil)
	assert.Error(t, err)
}

func TestVerify(t *testing.T) {
	ev, err := ParseEvent([]byte(sampleEvent), nil)
	require.NoError(t, err)

	assert.True(t, Verify(ev, "test_events_secret"), "checksum compare is case-insensitive")
	assert.False(t, Verify(ev, "other_secret"))

	tampered := ev
	tampered.Timestamp = "1530291412"
	assert.False(t, Verify(tampered, "test_events_secret"))

	missing := ev
	missing.Checksum = ""
	assert.False(t, Verify(missing, "test_events_secret"))
}

func TestVerify_DefaultPropertiesWhenUndeclared(t *testing.T) {
	ev, err := ParseEvent([]byte(sampleEvent), nil)
	require.NoError(t, err)
	ev.Signature.Properties = nil
	assert.True(t, Verify(ev, "test_events_secret"))
}

func TestEventChecksum_UnknownProperty(t *testing.T) {
	ev, err := ParseEvent([]byte(sampleEvent), nil)
	require.NoError(t, err)
	ev.Signature.Properties = []string{"transaction.nope"}

	_, err = EventChecksum(ev, "s")
	assert.Error(t, err)
	assert.False(t, Verify(ev, "s"))
}

func TestFailed(t *testing.T) {
	for _, s := range []string{"DECLINED", "VOIDED", "ERROR", "declined"} {
		assert.True(t, Failed(s), s)
	}
	for _, s := range []string{"APPROVED", "PENDING", ""} {
		assert.False(t, Failed(s), s)
	}
}

func TestHostedCheckout_Link(t *testing.T) {
	c := HostedCheckout{BaseURL: "https://checkout.example/p/"}
	link, err := c.Link(context.Background(), LinkRequest{
		Reference:   "ORD-1-abc",
		AmountCents: 150000,
		Currency:    "COP",
		Credentials: Credentials{PublicKey: "pub_test_1", IntegritySecret: "test_integrity_secret"},
	})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(link, "https://checkout.example/p/?public-key=pub_test_1"))
	assert.Contains(t, link, "&currency=COP&amount-in-cents=150000&reference=ORD-1-abc")
	assert.True(t, strings.HasSuffix(link, "&signature:integrity=b8ddca35e7b7f5bea489291ee0f5a5fd2a039247c9126a013c6e939a5ef46857"))
}

func TestHostedCheckout_Errors(t *testing.T) {
	c := HostedCheckout{}
	_, err := c.Link(context.Background(), LinkRequest{Reference: "r", AmountCents: 1, Currency: "COP"})
	assert.ErrorIs(t, err, ErrIncompleteCredentials)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = c.Link(ctx, LinkRequest{})
	assert.ErrorIs(t, err, context.Canceled)
}
