package bridge

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/pion/logging"

	"github.com/etcsdemo/obu-etcs/pkg/bitcodec"
	"github.com/etcsdemo/obu-etcs/pkg/engine"
	"github.com/etcsdemo/obu-etcs/pkg/handshake"
	"github.com/etcsdemo/obu-etcs/pkg/safety"
	"github.com/etcsdemo/obu-etcs/pkg/transport/pubsub"
	"github.com/etcsdemo/obu-etcs/pkg/transport/queue"
)

// ReverseConfig configures a Reverse bridge.
type ReverseConfig struct {
	PubSub         pubsub.Client
	Queue          queue.Client
	Templates      map[uint8]*bitcodec.Template
	SubPacketTable bitcodec.TemplateTable
	RBCID          string
	LoggerFactory  logging.LoggerFactory
}

// Reverse is the durable queue -> pub/sub bridge. It maintains its own
// KeySet, populated from the same obu/<id>/keys broadcast the Forward
// bridge observes (spec.md §4.2 "(added)": each bridge process owns its
// own capability handle).
type Reverse struct {
	cfg  ReverseConfig
	keys *safety.KeySet
	log  logging.LeveledLogger
}

// NewReverse returns a Reverse bridge ready to Start.
func NewReverse(cfg ReverseConfig) *Reverse {
	lf := cfg.LoggerFactory
	if lf == nil {
		lf = logging.NewDefaultLoggerFactory()
	}
	return &Reverse{cfg: cfg, keys: safety.NewKeySet(), log: lf.NewLogger("bridge-reverse")}
}

// Start subscribes to the keys topic and consumes both durable queues.
func (r *Reverse) Start() error {
	keysTopic := fmt.Sprintf("obu/%s/keys", r.cfg.RBCID)
	if err := r.cfg.PubSub.Subscribe(keysTopic, 2, r.handleKeyUpdate); err != nil {
		return err
	}

	inTopic := fmt.Sprintf("rbc/%s/in", r.cfg.RBCID)
	outTopic := fmt.Sprintf("rbc/%s/out", r.cfg.RBCID)

	if err := r.cfg.Queue.Consume("obu_to_rbc", func(d queue.Delivery) {
		r.handleDelivery(d, inTopic)
	}); err != nil {
		return err
	}
	return r.cfg.Queue.Consume("rbc_to_obu", func(d queue.Delivery) {
		r.handleDelivery(d, outTopic)
	})
}

func (r *Reverse) handleKeyUpdate(topic string, payload []byte) {
	ku, err := handshake.DecodeKeyUpdate(payload)
	if err != nil {
		r.log.Warnf("bridge-reverse: malformed KEY_UPDATE: %v", err)
		return
	}
	if err := r.keys.Set(ku.KS1, ku.KS2, ku.KS3); err != nil {
		r.log.Warnf("bridge-reverse: install keys: %v", err)
	}
}

// handleDelivery unwraps one durable-queue delivery and republishes the
// decoded message on pubTopic. Every delivery is treated as handled
// regardless of outcome: the queue.Client acks unconditionally
// (spec.md §4.9/§7 "no requeue in demonstrator").
func (r *Reverse) handleDelivery(d queue.Delivery, pubTopic string) {
	appMS := time.Now().UnixMilli()

	pdu, trailer, hasTrailer := ExtractTrailer(d.Body)

	payload, err := safety.Unwrap(r.keys, pdu)
	if err != nil {
		r.log.Warnf("bridge-reverse: unwrap: %v", err)
		return
	}
	if len(payload) == 0 {
		r.log.Warnf("bridge-reverse: empty payload after unwrap")
		return
	}

	nid := payload[0]
	tmpl, ok := r.cfg.Templates[nid]
	if !ok {
		r.log.Warnf("bridge-reverse: unknown NID_MESSAGE %d", nid)
		return
	}

	values, err := bitcodec.Unpack(tmpl, payload, r.cfg.SubPacketTable)
	if err != nil {
		r.log.Warnf("bridge-reverse: partial decode of NID %d: %v", nid, err)
	}

	msg := &engine.Message{Values: values, Origin: engine.SourceWire}
	if hasTrailer {
		mergeTrailerFields(values, trailer)
		if id, ok := trailer["msg_id"].(string); ok {
			msg.MsgID = id
		}
	}

	values.Fields["t_bridge_app_ms"] = appMS
	values.Fields["t_bridge_send_ms"] = time.Now().UnixMilli()

	out, err := json.Marshal(msg)
	if err != nil {
		r.log.Errorf("bridge-reverse: marshal: %v", err)
		return
	}
	if err := r.cfg.PubSub.Publish(pubTopic, out, 2); err != nil {
		r.log.Errorf("bridge-reverse: publish to %s: %v", pubTopic, err)
	}
}

// mergeTrailerFields copies any trailer field not already present in
// values.Fields, per spec.md §4.9's reverse-bridge merge rule. Only
// numeric fields round-trip into Values.Fields; msg_id is handled
// separately since it lives on the envelope, not the field dictionary.
func mergeTrailerFields(values *bitcodec.Values, trailer map[string]any) {
	for name, raw := range trailer {
		if name == "msg_id" {
			continue
		}
		if _, exists := values.Fields[name]; exists {
			continue
		}
		if num, ok := raw.(float64); ok {
			values.Fields[name] = int64(num)
		}
	}
}
