// bridge-reverse runs the durable queue -> pub/sub half of the safety
// bridge: it consumes the AMQP queues bridge-forward publishes onto,
// unwraps the Secure PDUs, and republishes ETCS messages back onto the
// MQTT broker.
//
// Usage:
//
//	bridge-reverse [options]
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

	ps, err := pubsub.New(pubsub.Config{BrokerURL: cfg.BrokerURL, ClientID: "bridge-reverse-" + cfg.RBCID})
	if err != nil {
		log.Fatalf("bridge-reverse: connect broker: %v", err)
	}
	defer ps.Close()

	q, err := queue.New(queue.Config{URL: cfg.QueueURL})
	if err != nil {
		log.Fatalf("bridge-reverse: connect queue: %v", err)
	}
	defer q.Close()

	rev := bridge.NewReverse(bridge.ReverseConfig{
		PubSub:         ps,
		Queue:          q,
		Templates:      engine.Templates,
		SubPacketTable: engine.SubPacketTable,
		RBCID:          cfg.RBCID,
	})

	if err := rev.Start(); err != nil {
		log.Fatalf("bridge-reverse: start: %v", err)
	}
	log.Printf("bridge-reverse: relaying %s traffic from %s", cfg.RBCID, cfg.QueueURL)

	<-ctx.Done()
	log.Println("bridge-reverse: shutting down...")
}
