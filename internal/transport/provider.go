package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jmehdipour/clinic-notify/internal/util"
)

// Message is one templated WhatsApp message. To is a normalized phone.
type Message struct {
	To         string
	TemplateID string
	Variables  map[string]string
}

type Provider interface {
	Name() string
	Ready() bool
	Acquire() bool
	// Send returns the provider message id.
	Send(ctx context.Context, msg Message) (string, error)
}

// TwilioProvider sends WhatsApp content templates through the Twilio Messages API.
type TwilioProvider struct {
	name        string
	baseURL     string
	accountSID  string
	authToken   string
	from        string
	countryCode string
	client      *http.Client
	br          *Breaker
}

type TwilioOpts struct {
	Name          string
	BaseURL       string // default https://api.twilio.com
	AccountSID    string
	AuthToken     string
	From          string // whatsapp:+14155238886
	CountryCode   string
	TimeoutMs     int
	FailThreshold int
	OpenForMs     int
}

func NewTwilioProvider(o TwilioOpts) *TwilioProvider {
	if o.BaseURL == "" {
		o.BaseURL = "https://api.twilio.com"
	}
	if o.TimeoutMs <= 0 {
		o.TimeoutMs = 30000
	}
	if o.OpenForMs <= 0 {
		o.OpenForMs = 30000
	}
	if o.Name == "" {
		o.Name = "twilio"
	}

	return &TwilioProvider{
		name:        o.Name,
		baseURL:     strings.TrimRight(o.BaseURL, "/"),
		accountSID:  o.AccountSID,
		authToken:   o.AuthToken,
		from:        whatsappAddr(o.From),
		countryCode: o.CountryCode,
		client:      &http.Client{Timeout: time.Duration(o.TimeoutMs) * time.Millisecond},
		br:          NewBreaker(o.FailThreshold, time.Duration(o.OpenForMs)*time.Millisecond),
	}
}

func (p *TwilioProvider) Name() string  { return p.name }
func (p *TwilioProvider) Ready() bool   { return p.br.Ready() }
func (p *TwilioProvider) Acquire() bool { return p.br.TryAcquire() }

// Breaker is exposed for health reporting.
func (p *TwilioProvider) Breaker() *Breaker { return p.br }

func (p *TwilioProvider) Send(ctx context.Context, msg Message) (string, error) {
	sid, err := p.post(ctx, msg)
	if err != nil {
		// bad requests are the caller's fault, not the provider's health
		var reqErr *RequestError
		if !errors.As(err, &reqErr) || reqErr.Status >= 500 || reqErr.Status == http.StatusTooManyRequests {
			p.br.OnFailure()
		} else {
			p.br.OnSuccess()
		}
		return "", err
	}

	p.br.OnSuccess()
	return sid, nil
}

func (p *TwilioProvider) post(ctx context.Context, msg Message) (string, error) {
	if p.accountSID == "" || p.authToken == "" {
		return "", errors.New("twilio credentials missing")
	}
	if msg.To == "" {
		return "", errors.New("recipient required")
	}
	if msg.TemplateID == "" {
		return "", errors.New("template id required")
	}

	form := url.Values{}
	form.Set("From", p.from)
	form.Set("To", "whatsapp:"+util.E164(msg.To, p.countryCode))
	form.Set("ContentSid", msg.TemplateID)
	if len(msg.Variables) > 0 {
		vars, err := json.Marshal(msg.Variables)
		if err != nil {
			return "", err
		}
		form.Set("ContentVariables", string(vars))
	}

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", p.baseURL, url.PathEscape(p.accountSID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(p.accountSID, p.authToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	res, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("provider=%s: %w", p.name, err)
	}
	defer res.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(res.Body, 8192))
	if res.StatusCode/100 != 2 {
		return "", newRequestError(p.name, res.StatusCode, body)
	}

	var parsed struct {
		SID string `json:"sid"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("provider=%s: decode response: %w", p.name, err)
	}
	return parsed.SID, nil
}

func whatsappAddr(s string) string {
	if s == "" || strings.HasPrefix(s, "whatsapp:") {
		return s
	}
	return "whatsapp:" + s
}

// RequestError is a non-2xx answer from the provider API.
type RequestError struct {
	Provider string
	Status   int
	Code     int
	Message  string
}

func (e *RequestError) Error() string {
	switch {
	case e.Code != 0:
		return fmt.Sprintf("provider=%s status=%d code=%d: %s", e.Provider, e.Status, e.Code, e.Message)
	case e.Message != "":
		return fmt.Sprintf("provider=%s status=%d: %s", e.Provider, e.Status, e.Message)
	default:
		return fmt.Sprintf("provider=%s status=%d", e.Provider, e.Status)
	}
}

func newRequestError(provider string, status int, body []byte) *RequestError {
	e := &RequestError{Provider: provider, Status: status}
	body = []byte(strings.TrimSpace(string(body)))
	if len(body) == 0 {
		return e
	}
	var parsed struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Message != "" {
		e.Code, e.Message = parsed.Code, parsed.Message
		return e
	}
	e.Message = string(body)
	return e
}
