package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizePhone(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"0501234567", "501234567"},
		{"050-123-4567", "501234567"},
		{" (050) 123 4567 ", "501234567"},
		{"whatsapp:+972501234567", "501234567"},
		{"+972 50 123 4567", "501234567"},
		{"00972501234567", "501234567"},
		{"972501234567", "501234567"},
		{"+14155238886", "14155238886"},
		{"501234567", "501234567"},
		{"", ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, NormalizePhone(tc.in, "972"), tc.in)
	}
}

func TestNormalizePhoneReplyMatchesBooking(t *testing.T) {
	booked := NormalizePhone("050 123 4567", "972")
	replied := NormalizePhone("whatsapp:+972501234567", "972")
	assert.Equal(t, booked, replied)
}

func TestNormalizePhoneWithoutCountryCode(t *testing.T) {
	assert.Equal(t, "501234567", NormalizePhone("0501234567", ""))
	assert.Equal(t, "972501234567", NormalizePhone("+972501234567", ""))
}

func TestE164(t *testing.T) {
	assert.Equal(t, "+972501234567", E164("501234567", "972"))
	assert.Equal(t, "+972501234567", E164("972501234567", "972"))
	assert.Equal(t, "+14155238886", E164("14155238886", ""))
}
