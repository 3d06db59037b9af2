package webhook

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"net/url"
	"sort"
	"strings"
)

// SignatureVerifier checks the X-Twilio-Signature header: base64 HMAC-SHA1,
// keyed by the account auth token, over the public webhook URL followed by
// every POST parameter as name+value in name order.
type SignatureVerifier struct {
	authToken string
	publicURL string
}

func NewSignatureVerifier(authToken, publicURL string) *SignatureVerifier {
	return &SignatureVerifier{authToken: authToken, publicURL: publicURL}
}

// Valid reports whether signature matches params. requestURL is used when no
// public URL was configured.
func (v *SignatureVerifier) Valid(signature, requestURL string, params url.Values) bool {
	if signature == "" {
		return false
	}
	u := v.publicURL
	if u == "" {
		u = requestURL
	}
	expected := Sign(v.authToken, u, params)
	return hmac.Equal([]byte(signature), []byte(expected))
}

// Sign computes the signature a provider would send for params posted to u.
func Sign(authToken, u string, params url.Values) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var payload strings.Builder
	payload.WriteString(u)
	for _, k := range keys {
		for _, val := range params[k] {
			payload.WriteString(k)
			payload.WriteString(val)
		}
	}

	mac := hmac.New(sha1.New, []byte(authToken))
	mac.Write([]byte(payload.String()))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
