// bridge-forward runs the pub/sub -> durable queue half of the safety
// bridge: it wraps ETCS messages into Secure PDUs and republishes them
// onto the AMQP queues the bridge-reverse process consumes from.
//
// Usage:
//
//	bridge-forward [options]
//
// Configuration comes from the ETCS_* environment variables (see
// pkg/config).
package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/etcsdemo/obu-etcs/pkg/bridge"
	"github.com/etcsdemo/obu-etcs/pkg/config"
	"github.com/etcsdemo/obu-etcs/pkg/engine"
	"github.com/etcsdemo/obu-etcs/pkg/transport/pubsub"
	"github.com/etcsdemo/obu-etcs/pkg/transport/queue"
)

func main() {
	cfg := config.FromEnv()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ps, err := pubsub.New(pubsub.Config{BrokerURL: cfg.BrokerURL, ClientID: "bridge-forward-" + cfg.RBCID})
	if err != nil {
		log.Fatalf("bridge-forward: connect broker: %v", err)
	}
	defer ps.Close()

	q, err := queue.New(queue.Config{URL: cfg.QueueURL})
	if err != nil {
		log.Fatalf("bridge-forward: connect queue: %v", err)
	}
	defer q.Close()

	fwd := bridge.NewForward(bridge.ForwardConfig{
		PubSub:         ps,
		Queue:          q,
		Templates:      engine.Templates,
		SubPacketTable: engine.SubPacketTable,
		RBCID:          cfg.RBCID,
	})

	if err := fwd.Start(ctx); err != nil {
		log.Fatalf("bridge-forward: start: %v", err)
	}
	log.Printf("bridge-forward: relaying %s traffic to %s", cfg.RBCID, cfg.QueueURL)

	<-ctx.Done()
	log.Println("bridge-forward: shutting down...")
}
