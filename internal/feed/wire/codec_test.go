package wire

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"main/internal/model"
	"main/internal/model/enum"
)

func TestFrameRoundTrip(t *testing.T) {
	in := frame{
		Type:       frameSub,
		Kind:       "snapshot",
		Exchange:   "SZSE",
		Securities: []string{"000001", "000002"},
	}
	buf, err := encodeFrame(in)
	require.NoError(t, err)
	assert.Equal(t, byte('\n'), buf[len(buf)-1], "frames are newline-delimited")

	out, err := decodeFrame(buf[:len(buf)-1])
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestDecodeEventSnapshot(t *testing.T) {
	f := frame{
		Type:       frameEvent,
		Kind:       "snapshot",
		Exchange:   "SZSE",
		SecurityID: "000001",
		Seq:        42,
		TsNano:     1700000000000000000,
		Data: json.RawMessage(`{
			"security_id": "000001",
			"last_price": "10.52",
			"volume": 1200,
			"turnover": "12624.00",
			"bids": [{"price": "10.51", "volume": 100}, {"price": "10.50", "volume": 300},
				{"price": "10.49", "volume": 0}, {"price": "10.48", "volume": 0}, {"price": "10.47", "volume": 0}],
			"asks": [{"price": "10.52", "volume": 200}, {"price": "10.53", "volume": 0},
				{"price": "10.54", "volume": 0}, {"price": "10.55", "volume": 0}, {"price": "10.56", "volume": 0}]
		}`),
	}

	e, err := decodeEvent(f)
	require.NoError(t, err)
	assert.Equal(t, enum.KindSnapshot, e.Kind)
	assert.Equal(t, enum.ExchangeSZSE, e.Exchange)
	assert.Equal(t, "000001", e.SecurityID)
	assert.Equal(t, int64(42), e.Seq)
	assert.Equal(t, int64(1700000000000000000), e.EventTsNano)
	assert.Greater(t, e.RecvTsNano, int64(0))

	snap, ok := e.Payload.(*model.Snapshot)
	require.True(t, ok)
	assert.Equal(t, "10.52", string(snap.LastPrice))
	assert.Equal(t, int64(1200), snap.Volume)
	assert.Equal(t, "10.51", string(snap.Bids[0].Price))
	assert.Equal(t, int64(200), snap.Asks[0].Volume)
}

func TestDecodeEventPayloadTypes(t *testing.T) {
	cases := []struct {
		kind string
		data string
		want any
	}{
		{"index", `{"security_id":"000300","last_index":"3500.12"}`, &model.Index{}},
		{"transaction", `{"security_id":"000001","price":"10.52","volume":100}`, &model.Transaction{}},
		{"order_detail", `{"security_id":"000001","order_no":7,"price":"10.52"}`, &model.OrderDetail{}},
		{"xts_snapshot", `{"security_id":"600000","last_price":"9.10"}`, &model.Snapshot{}},
		{"ngts_tick", `{"security_id":"600000","tick_type":"T","price":"9.10"}`, &model.NGTSTick{}},
	}
	for _, c := range cases {
		exchange := "SZSE"
		if c.kind == "xts_snapshot" || c.kind == "ngts_tick" {
			exchange = "SSE"
		}
		e, err := decodeEvent(frame{
			Type:       frameEvent,
			Kind:       c.kind,
			Exchange:   exchange,
			SecurityID: "x",
			Data:       json.RawMessage(c.data),
		})
		require.NoErrorf(t, err, "kind %s", c.kind)
		assert.IsTypef(t, c.want, e.Payload, "kind %s", c.kind)
	}
}

func TestDecodeEventRejectsUnknownKind(t *testing.T) {
	_, err := decodeEvent(frame{Type: frameEvent, Kind: "weather", Exchange: "SZSE"})
	assert.Error(t, err)

	_, err = decodeEvent(frame{Type: frameEvent, Kind: "snapshot", Exchange: "NASDAQ"})
	assert.Error(t, err)
}

func TestDecodeFrameRejectsGarbage(t *testing.T) {
	_, err := decodeFrame([]byte("not json"))
	assert.Error(t, err)
}
