// Package bridge implements the two unidirectional pub/sub <-> durable
// queue bridges of spec.md §4.9: a bridging transport abstraction
// generalized from two homogeneous transport pipes to a pub/sub client
// on one side and a durable-queue client on the other.
package bridge

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/pion/logging"

	"github.com/etcsdemo/obu-etcs/pkg/bitcodec"
	"github.com/etcsdemo/obu-etcs/pkg/engine"
	"github.com/etcsdemo/obu-etcs/pkg/handshake"
	"github.com/etcsdemo/obu-etcs/pkg/safety"
	"github.com/etcsdemo/obu-etcs/pkg/transport/pubsub"
	"github.com/etcsdemo/obu-etcs/pkg/transport/queue"
)

// ForwardConfig configures a Forward bridge.
type ForwardConfig struct {
	PubSub         pubsub.Client
	Queue          queue.Client
	Templates      map[uint8]*bitcodec.Template
	SubPacketTable bitcodec.TemplateTable
	RBCID          string
	LoggerFactory  logging.LoggerFactory
}

// Forward is the pub/sub -> durable queue bridge.
type Forward struct {
	cfg  ForwardConfig
	keys *safety.KeySet
	log  logging.LeveledLogger
}

// NewForward returns a Forward bridge ready to Start.
func NewForward(cfg ForwardConfig) *Forward {
	lf := cfg.LoggerFactory
	if lf == nil {
		lf = logging.NewDefaultLoggerFactory()
	}
	return &Forward{cfg: cfg, keys: safety.NewKeySet(), log: lf.NewLogger("bridge-forward")}
}

// Start subscribes to the handshake keys topic and both ETCS planes.
func (f *Forward) Start(ctx context.Context) error {
	inTopic := fmt.Sprintf("rbc/%s/in", f.cfg.RBCID)
	outTopic := fmt.Sprintf("rbc/%s/out", f.cfg.RBCID)
	keysTopic := fmt.Sprintf("obu/%s/keys", f.cfg.RBCID)

	if err := f.cfg.PubSub.Subscribe(keysTopic, 2, f.handleKeyUpdate); err != nil {
		return err
	}
	if err := f.cfg.PubSub.Subscribe(inTopic, 2, func(topic string, payload []byte) {
		f.handleETCS(ctx, payload, 1, "obu_to_rbc")
	}); err != nil {
		return err
	}
	if err := f.cfg.PubSub.Subscribe(outTopic, 2, func(topic string, payload []byte) {
		f.handleETCS(ctx, payload, 0, "rbc_to_obu")
	}); err != nil {
		return err
	}
	return nil
}

// handleKeyUpdate installs session keys from a KEY_UPDATE notification
// and never forwards it onward (spec.md §4.9).
func (f *Forward) handleKeyUpdate(topic string, payload []byte) {
	ku, err := handshake.DecodeKeyUpdate(payload)
	if err != nil {
		f.log.Warnf("bridge-forward: malformed KEY_UPDATE: %v", err)
		return
	}
	if err := f.keys.Set(ku.KS1, ku.KS2, ku.KS3); err != nil {
		f.log.Warnf("bridge-forward: install keys: %v", err)
	}
}

// handleETCS wraps an ETCS message into a Secure PDU plus metadata
// trailer and publishes it to the durable queue, unless its origin is
// already "amqp" (the loop-prevention gate).
func (f *Forward) handleETCS(ctx context.Context, payload []byte, dir uint8, queueName string) {
	var msg engine.Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		f.log.Warnf("bridge-forward: malformed message: %v", err)
		return
	}
	if msg.Origin == engine.SourceWire {
		return
	}

	nid := msg.NID()
	tmpl, ok := f.cfg.Templates[nid]
	if !ok {
		f.log.Warnf("bridge-forward: unknown NID_MESSAGE %d", nid)
		return
	}

	pdu, err := safety.Wrap(f.keys, tmpl, msg.Values, f.cfg.SubPacketTable, dir, safety.WrapOptions{})
	if err != nil {
		f.log.Warnf("bridge-forward: wrap NID %d: %v", nid, err)
		return
	}

	blob, err := AppendTrailer(pdu, trailerFields(tmpl, &msg))
	if err != nil {
		f.log.Errorf("bridge-forward: append trailer: %v", err)
		return
	}

	if err := f.cfg.Queue.Publish(ctx, queueName, blob); err != nil {
		f.log.Errorf("bridge-forward: publish to %s: %v", queueName, err)
	}
}

// trailerFields collects the JSON-level fields a bit-packed PDU cannot
// carry: the message id, plus any numeric field not named by tmpl's
// field list (e.g. KPI timestamps the orchestrator stamped but the
// wire template never declares).
func trailerFields(tmpl *bitcodec.Template, msg *engine.Message) map[string]any {
	declared := make(map[string]struct{}, len(tmpl.Fields))
	for _, f := range tmpl.Fields {
		declared[f.Name] = struct{}{}
	}

	out := make(map[string]any)
	if msg.MsgID != "" {
		out["msg_id"] = msg.MsgID
	}
	for name, val := range msg.Values.Fields {
		if _, ok := declared[name]; !ok {
			out[name] = val
		}
	}
	return out
}
