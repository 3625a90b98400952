package enum

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSupportedOnMatrix(t *testing.T) {
	cases := []struct {
		kind     DataKind
		exchange Exchange
		want     bool
	}{
		{KindSnapshot, ExchangeSSE, true},
		{KindSnapshot, ExchangeSZSE, true},
		{KindSnapshot, ExchangeCOMM, true},
		{KindIndex, ExchangeSSE, true},
		{KindIndex, ExchangeCOMM, true},
		{KindTransaction, ExchangeSZSE, true},
		{KindTransaction, ExchangeSSE, false},
		{KindTransaction, ExchangeCOMM, false},
		{KindOrderDetail, ExchangeSZSE, true},
		{KindOrderDetail, ExchangeSSE, false},
		{KindXTSSnapshot, ExchangeSSE, true},
		{KindXTSSnapshot, ExchangeSZSE, false},
		{KindNGTSTick, ExchangeSSE, true},
		{KindNGTSTick, ExchangeSZSE, false},
		{KindUnknown, ExchangeSZSE, false},
	}
	for _, c := range cases {
		assert.Equalf(t, c.want, c.kind.SupportedOn(c.exchange), "%s on %s", c.kind, c.exchange)
	}
}

func TestParseDataKindRoundTrip(t *testing.T) {
	for k := KindSnapshot; k < kindSentinel; k++ {
		parsed, ok := ParseDataKind(k.String())
		assert.Truef(t, ok, "kind %d", k)
		assert.Equal(t, k, parsed)
	}
	_, ok := ParseDataKind("weather")
	assert.False(t, ok)
}
