// rbc runs the Radio Block Centre demonstrator process: it answers the
// OBU's handshake, exchanges session/train-data messages, and grants
// Movement Authorities generated from a topology file.
//
// Usage:
//
//	rbc [options]
//
// Options:
//
//	-obu-id   OBU identity this RBC expects to handshake with (default: OBU1)
//	-from     route origin node (default: A)
//	-to       route destination node (default: B)
//	-tracks   comma-separated track IDs composing the route (default: T1)
//	-auto-grant  grant the first Movement Authority request automatically
//
// Configuration beyond these flags comes from the ETCS_* environment
// variables (see pkg/config), notably ETCS_TOPOLOGY_PATH.
package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/etcsdemo/obu-etcs/pkg/config"
	"github.com/etcsdemo/obu-etcs/pkg/rbc"
	"github.com/etcsdemo/obu-etcs/pkg/topology"
	"github.com/etcsdemo/obu-etcs/pkg/transport/pubsub"
)

func main() {
	obuID := flag.String("obu-id", "OBU1", "OBU identity this RBC expects to handshake with")
	from := flag.String("from", "A", "route origin node")
	to := flag.String("to", "B", "route destination node")
	tracks := flag.String("tracks", "T1", "comma-separated track IDs composing the route")
	autoGrant := flag.Bool("auto-grant", false, "grant the first Movement Authority request automatically")
	flag.Parse()

	cfg := config.FromEnv()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var topo *topology.Topology
	if cfg.TopologyPath != "" {
		t, err := topology.LoadFromFile(cfg.TopologyPath)
		if err != nil {
			log.Fatalf("rbc: load topology %s: %v", cfg.TopologyPath, err)
		}
		topo = t
	} else {
		topo = topology.NewTopology()
	}

	client, err := pubsub.New(pubsub.Config{BrokerURL: cfg.BrokerURL, ClientID: "rbc-" + cfg.RBCID})
	if err != nil {
		log.Fatalf("rbc: connect broker: %v", err)
	}
	defer client.Close()

	orch := rbc.New(rbc.Config{
		PubSub:      client,
		RBCID:       cfg.RBCID,
		OBUIdentity: *obuID,
		Roots:       cfg.DeriveRootKeys(),
		Topology:    topo,
		TrackIDs:    strings.Split(*tracks, ","),
		Route:       topology.Route{From: *from, To: *to},
	})

	if err := orch.Start(ctx); err != nil {
		log.Fatalf("rbc: start: %v", err)
	}
	log.Printf("rbc: %s listening for %s, session state %s", cfg.RBCID, *obuID, orch.Machine().Current())

	if *autoGrant {
		go autoGrantLoop(ctx, orch)
	}

	<-ctx.Done()
	log.Println("rbc: shutting down...")
}

// autoGrantLoop grants the Movement Authority as soon as the operator
// button arms, standing in for the manual console a real RBC operator
// would use (spec.md §1 "operator UI ... out of scope").
func autoGrantLoop(ctx context.Context, orch *rbc.Orchestrator) {
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if orch.MARequestReceived() {
				if err := orch.Grant(); err != nil {
					log.Printf("rbc: auto-grant: %v", err)
				}
				return
			}
		}
	}
}
