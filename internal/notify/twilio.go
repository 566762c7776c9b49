package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ariefcatur/chat-storefront/internal/config"
	"golang.org/x/time/rate"
)

// Sender delivers one message and never returns a Go error; failures are
// reported in the Result.
type Sender interface {
	Send(ctx context.Context, m Message) Result
}

// Twilio sends WhatsApp messages through the Twilio REST API.
type Twilio struct {
	AccountSID string
	AuthToken  string
	From       string
	BaseURL    string
	Timeout    time.Duration
	Client     *http.Client
	Limiter    *rate.Limiter
}

func NewTwilio(cfg config.TwilioConfig) *Twilio {
	t := &Twilio{
		AccountSID: cfg.AccountSID,
		AuthToken:  cfg.AuthToken,
		From:       cfg.From,
		BaseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		Timeout:    cfg.Timeout,
		Client:     &http.Client{},
	}
	if cfg.RatePerSec > 0 {
		t.Limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), 1)
	}
	return t
}

func (t *Twilio) Send(ctx context.Context, m Message) Result {
	if t.AccountSID == "" || t.AuthToken == "" {
		return Result{Error: "missing twilio credentials"}
	}
	if m.To == "" {
		return Result{Error: "missing recipient"}
	}

	timeout := t.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if t.Limiter != nil {
		if err := t.Limiter.Wait(ctx); err != nil {
			return Result{Error: "rate limited: " + err.Error()}
		}
	}

	form := url.Values{}
	form.Set("From", t.From)
	form.Set("To", whatsappAddress(m.To))
	if m.Body != "" {
		form.Set("Body", m.Body)
	}
	for _, u := range m.MediaURLs {
		form.Add("MediaUrl", u)
	}

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", t.BaseURL, url.PathEscape(t.AccountSID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return Result{Error: err.Error()}
	}
	req.SetBasicAuth(t.AccountSID, t.AuthToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	client := t.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return Result{Error: "request timeout"}
		}
		return Result{Error: err.Error()}
	}
	defer resp.Body.Close()

	var body struct {
		SID     string `json:"sid"`
		Message string `json:"message"`
		Detail  string `json:"detail"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		switch {
		case body.Message != "":
			return Result{Error: body.Message}
		case body.Detail != "":
			return Result{Error: body.Detail}
		default:
			return Result{Error: fmt.Sprintf("HTTP %d", resp.StatusCode)}
		}
	}
	return Result{Success: true, ID: body.SID}
}

// whatsappAddress prefixes a bare E.164 number with the whatsapp channel.
func whatsappAddress(to string) string {
	if strings.HasPrefix(to, "whatsapp:") {
		return to
	}
	return "whatsapp:" + to
}
