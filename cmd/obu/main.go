// obu runs the On-Board Unit demonstrator process: it drives the ETCS
// session lifecycle against a trackside RBC over an MQTT broker.
//
// Usage:
//
//	obu [options]
//
// Options:
//
//	-obu-id  OBU/train identity used in the handshake (default: OBU1)
//
// Configuration beyond -obu-id comes from the ETCS_* environment
// variables (see pkg/config).
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os/signal"
	"syscall"

	"github.com/etcsdemo/obu-etcs/pkg/config"
	"github.com/etcsdemo/obu-etcs/pkg/obu"
	"github.com/etcsdemo/obu-etcs/pkg/transport/pubsub"
)

func main() {
	obuID := flag.String("obu-id", "OBU1", "OBU identity used in the handshake")
	flag.Parse()

	cfg := config.FromEnv()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client, err := pubsub.New(pubsub.Config{BrokerURL: cfg.BrokerURL, ClientID: "obu-" + *obuID})
	if err != nil {
		log.Fatalf("obu: connect broker: %v", err)
	}
	defer client.Close()

	orch := obu.New(obu.Config{
		PubSub:            client,
		RBCID:             cfg.RBCID,
		OBUIdentity:       *obuID,
		TrainID:           cfg.TrainID,
		Roots:             cfg.DeriveRootKeys(),
		AutoStopCooldown:  cfg.AutoStopCooldown,
		AutoStopThreshold: cfg.AutoStopThreshold,
	})

	if err := orch.Start(ctx); err != nil {
		log.Fatalf("obu: start: %v", err)
	}

	fmt.Printf("obu: %s session toward %s started, session state %s\n", *obuID, cfg.RBCID, orch.Machine().Current())

	<-ctx.Done()
	log.Println("obu: shutting down...")
	orch.Stop()
}
