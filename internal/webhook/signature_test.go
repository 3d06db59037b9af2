package webhook

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSignatureVerifier(t *testing.T) {
	params := url.Values{
		"From":          {"whatsapp:+972501234567"},
		"ButtonPayload": {"confirm"},
		"MessageSid":    {"SM1"},
	}
	const hook = "https://clinic.example.com/api/whatsapp-webhook"
	sig := Sign("token", hook, params)

	v := NewSignatureVerifier("token", hook)
	assert.True(t, v.Valid(sig, "http://internal:3001/api/whatsapp-webhook", params))
	assert.False(t, v.Valid("", hook, params))
	assert.False(t, v.Valid(sig, hook, url.Values{"From": {"whatsapp:+972509999999"}}))

	other := NewSignatureVerifier("other-token", hook)
	assert.False(t, other.Valid(sig, hook, params))

	// without a public URL the request URL is signed
	local := NewSignatureVerifier("token", "")
	assert.True(t, local.Valid(Sign("token", "http://x/y", params), "http://x/y", params))
}

func TestSignIsOrderIndependent(t *testing.T) {
	a := url.Values{}
	a.Add("B", "2")
	a.Add("A", "1")
	b := url.Values{"A": {"1"}, "B": {"2"}}
	assert.Equal(t, Sign("t", "u", a), Sign("t", "u", b))
}
