package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTwilio(url string) *Twilio {
	return &Twilio{
		AccountSID: "AC123",
		AuthToken:  "token",
		From:       "whatsapp:+14155238886",
		BaseURL:    url,
		Timeout:    time.Second,
		Client:     &http.Client{},
	}
}

func TestTwilio_SendSuccess(t *testing.T) {
	var gotForm map[string][]string
	var gotUser string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/2010-04-01/Accounts/AC123/Messages.json", r.URL.Path)
		gotUser, _, _ = r.BasicAuth()
		assert.NoError(t, r.ParseForm())
		gotForm = r.PostForm
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"sid":"SM42"}`))
	}))
	defer srv.Close()

	res := newTwilio(srv.URL).Send(context.Background(), Message{
		To:        "+573001112233",
		Body:      "hola",
		MediaURLs: []string{"https://img/1.png", "https://img/2.png"},
	})

	assert.True(t, res.Success)
	assert.Equal(t, "SM42", res.ID)
	assert.Equal(t, "AC123", gotUser)
	assert.Equal(t, []string{"whatsapp:+573001112233"}, gotForm["To"])
	assert.Equal(t, []string{"hola"}, gotForm["Body"])
	assert.Len(t, gotForm["MediaUrl"], 2)
}

func TestTwilio_SendProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"message":"invalid To number"}`))
	}))
	defer srv.Close()

	res := newTwilio(srv.URL).Send(context.Background(), Message{To: "x", Body: "b"})
	assert.False(t, res.Success)
	assert.Equal(t, "invalid To number", res.Error)
}

func TestTwilio_SendHTTPStatusWithoutBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	res := newTwilio(srv.URL).Send(context.Background(), Message{To: "x", Body: "b"})
	assert.Equal(t, "HTTP 503", res.Error)
}

func TestTwilio_SendTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	tw := newTwilio(srv.URL)
	tw.Timeout = 50 * time.Millisecond
	res := tw.Send(context.Background(), Message{To: "x", Body: "b"})
	assert.False(t, res.Success)
	assert.Equal(t, "request timeout", res.Error)
}

func TestTwilio_MissingCredentials(t *testing.T) {
	res := (&Twilio{}).Send(context.Background(), Message{To: "x"})
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "credentials")
}

type stubSender struct {
	mu   sync.Mutex
	sent []Message
	fail bool
}

func (s *stubSender) Send(_ context.Context, m Message) Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, m)
	if s.fail {
		return Result{Error: "boom"}
	}
	return Result{Success: true, ID: "SM1"}
}

type stubAudit struct {
	mu      sync.Mutex
	entries []string
	err     error
}

func (a *stubAudit) Append(_ context.Context, customerID, body, id string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, customerID+"|"+id)
	return a.err
}

func TestAsync_DeliversAndReportsOutcomes(t *testing.T) {
	sender := &stubSender{}
	audit := &stubAudit{}
	a := NewAsync(sender, audit, zap.NewNop(), 2, 8)
	a.Start(context.Background())

	require.True(t, a.Enqueue(context.Background(), Message{CustomerID: "c1", To: "+57", Body: "one"}))
	require.True(t, a.Enqueue(context.Background(), Message{To: "+57", Body: "two"}))

	for i := 0; i < 2; i++ {
		select {
		case out := <-a.Results():
			assert.True(t, out.Result.Success)
		case <-time.After(2 * time.Second):
			t.Fatal("no outcome")
		}
	}
	a.Close()

	assert.Len(t, sender.sent, 2)
	assert.Equal(t, []string{"c1|SM1"}, audit.entries, "only messages with a customer are logged")
	assert.False(t, a.Enqueue(context.Background(), Message{To: "+57"}), "closed dispatcher rejects")
}

func TestAsync_FailureIsReportedNotPropagated(t *testing.T) {
	sender := &stubSender{fail: true}
	audit := &stubAudit{}
	a := NewAsync(sender, audit, nil, 1, 1)
	a.Start(context.Background())

	require.True(t, a.Enqueue(context.Background(), Message{CustomerID: "c1", To: "+57"}))
	out := <-a.Results()
	a.Close()

	assert.False(t, out.Result.Success)
	assert.Equal(t, "boom", out.Result.Error)
	assert.Empty(t, audit.entries)
}

func TestAsync_CloseEndsResults(t *testing.T) {
	a := NewAsync(&stubSender{}, nil, nil, 2, 4)
	a.Start(context.Background())
	require.True(t, a.Enqueue(context.Background(), Message{To: "+57", Kind: KindPaymentConfirmed}))
	require.True(t, a.Enqueue(context.Background(), Message{To: "+57", Kind: KindDispatched}))

	done := make(chan int)
	go func() {
		n := 0
		for range a.Results() {
			n++
		}
		done <- n
	}()
	a.Close()
	a.Close()

	select {
	case n := <-done:
		assert.Equal(t, 2, n)
	case <-time.After(2 * time.Second):
		t.Fatal("results channel left open after Close")
	}
}

func TestMissingRow(t *testing.T) {
	assert.True(t, missingRow(pgx.ErrNoRows))
	assert.True(t, missingRow(&pgconn.PgError{Code: "22P02"}))
	assert.False(t, missingRow(&pgconn.PgError{Code: "23503"}))
	assert.False(t, missingRow(errors.New("timeout")))
	assert.False(t, missingRow(nil))
}

func TestAsync_FullQueueDrops(t *testing.T) {
	a := NewAsync(&stubSender{}, nil, nil, 1, 1)
	// workers not started: the single slot fills up
	assert.True(t, a.Enqueue(context.Background(), Message{To: "a"}))
	assert.False(t, a.Enqueue(context.Background(), Message{To: "b"}))
}

func TestDeliver_AuditErrorSwallowed(t *testing.T) {
	res := Deliver(context.Background(), &stubSender{}, &stubAudit{err: errors.New("db down")}, zap.NewNop(),
		Message{CustomerID: "c1", To: "+57"})
	assert.True(t, res.Success)
}

type capturePublisher struct {
	topic string
	key   []byte
	value []byte
}

func (c *capturePublisher) PublishTo(topic string, key, value []byte, _ ...kafkago.Header) {
	c.topic, c.key, c.value = topic, key, value
}

func TestKafkaOutbox_RoundTripThroughHandler(t *testing.T) {
	pub := &capturePublisher{}
	outbox := &KafkaOutbox{Producer: pub}
	msg := Message{Kind: KindDispatched, CustomerID: "c1", OrderID: "o1", To: "+57", Body: "va en camino"}

	require.True(t, outbox.Enqueue(context.Background(), msg))
	assert.Equal(t, TopicWhatsApp, pub.topic)
	assert.Equal(t, "+57", string(pub.key))

	sender := &stubSender{}
	h := Handler(sender, nil, zap.NewNop())
	require.NoError(t, h(context.Background(), kafkago.Message{Value: pub.value}))
	require.Len(t, sender.sent, 1)
	assert.Equal(t, msg, sender.sent[0])

	assert.NoError(t, h(context.Background(), kafkago.Message{Value: []byte("{bad")}))
}

func TestTemplates(t *testing.T) {
	assert.True(t, strings.HasPrefix(FormatCOP(12000000), "$"))
	assert.Contains(t, FormatCOP(12000000), "120")

	body := PaymentConfirmed("", 12000000, "abcd1234")
	assert.Contains(t, body, "cliente")
	assert.Contains(t, body, "#abcd1234")

	body = Dispatched("Ana", "Servientrega", "G-991")
	assert.Contains(t, body, "Ana")
	assert.Contains(t, body, "Servientrega")
	assert.Contains(t, body, "G-991")

	assert.Contains(t, Delivered("Ana", "abcd1234"), "#abcd1234")
}

func TestMessageJSON(t *testing.T) {
	b, err := json.Marshal(Message{Kind: KindDelivered, To: "+57", Body: "x"})
	require.NoError(t, err)
	assert.NotContains(t, string(b), "media_urls")
}
