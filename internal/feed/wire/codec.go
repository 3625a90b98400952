package wire

import (
	"encoding/json"
	"time"

	"github.com/bytedance/sonic"
	"github.com/yanun0323/errors"

	"main/internal/model"
	"main/internal/model/enum"
)

// The gateway speaks newline-delimited JSON frames. One frame struct covers
// every direction; unused fields stay empty on the wire.
const (
	frameLogin    = "login"
	frameLoginAck = "login_ack"
	frameSub      = "sub"
	frameUnsub    = "unsub"
	frameSubAck   = "sub_ack"
	frameEvent    = "event"
)

type frame struct {
	Type string `json:"type"`

	// login / login_ack
	UserID   string `json:"user_id,omitempty"`
	Password string `json:"password,omitempty"`
	OK       bool   `json:"ok,omitempty"`
	Message  string `json:"message,omitempty"`

	// sub / unsub / sub_ack / event
	Kind       string   `json:"kind,omitempty"`
	Exchange   string   `json:"exchange,omitempty"`
	Securities []string `json:"securities,omitempty"`
	SecurityID string   `json:"security_id,omitempty"`

	// event
	Seq    int64           `json:"seq,omitempty"`
	TsNano int64           `json:"ts,omitempty"`
	Data   json.RawMessage `json:"data,omitempty"`
}

func encodeFrame(f frame) ([]byte, error) {
	buf, err := sonic.ConfigFastest.Marshal(f)
	if err != nil {
		return nil, errors.Wrap(err, "encode frame").With("type", f.Type)
	}
	return append(buf, '\n'), nil
}

func decodeFrame(line []byte) (frame, error) {
	var f frame
	if err := sonic.ConfigFastest.Unmarshal(line, &f); err != nil {
		return frame{}, errors.Wrap(err, "decode frame")
	}
	return f, nil
}

// decodeEvent turns an event frame into the dispatch envelope, decoding the
// payload into the concrete type for the kind.
func decodeEvent(f frame) (model.Event, error) {
	kind, ok := enum.ParseDataKind(f.Kind)
	if !ok {
		return model.Event{}, errors.Errorf("unknown event kind %q", f.Kind)
	}
	exchange, ok := enum.ParseExchange(f.Exchange)
	if !ok {
		return model.Event{}, errors.Errorf("unknown event exchange %q", f.Exchange)
	}

	var payload any
	switch kind {
	case enum.KindSnapshot, enum.KindXTSSnapshot:
		payload = new(model.Snapshot)
	case enum.KindIndex:
		payload = new(model.Index)
	case enum.KindTransaction:
		payload = new(model.Transaction)
	case enum.KindOrderDetail:
		payload = new(model.OrderDetail)
	case enum.KindNGTSTick:
		payload = new(model.NGTSTick)
	}
	if len(f.Data) > 0 {
		if err := sonic.ConfigFastest.Unmarshal(f.Data, payload); err != nil {
			return model.Event{}, errors.Wrap(err, "decode event payload").
				With("kind", f.Kind).
				With("security", f.SecurityID)
		}
	}

	return model.Event{
		Kind:        kind,
		Exchange:    exchange,
		SecurityID:  f.SecurityID,
		Seq:         f.Seq,
		EventTsNano: f.TsNano,
		RecvTsNano:  time.Now().UnixNano(),
		Payload:     payload,
	}, nil
}
