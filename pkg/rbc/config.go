// Package rbc implements the Radio Block Centre orchestrator of
// spec.md §4.7: the trackside mirror of pkg/obu, driving the
// handshake responder role, version/session/train-data/MA exchange,
// and Movement Authority generation from topology.
package rbc

import (
	"github.com/pion/logging"

	"github.com/etcsdemo/obu-etcs/pkg/handshake"
	"github.com/etcsdemo/obu-etcs/pkg/topology"
	"github.com/etcsdemo/obu-etcs/pkg/transport/pubsub"
)

// SupportedVersion is the M_VERSION value the RBC advertises on
// Message 32.
const SupportedVersion = int64(1)

// Config configures an Orchestrator.
type Config struct {
	PubSub pubsub.Client

	RBCID       string
	OBUIdentity string

	Roots handshake.RootKeys

	Topology *topology.Topology
	TrackIDs []string
	Route    topology.Route

	LoggerFactory logging.LoggerFactory
}

func (c *Config) handshakeInTopic() string  { return "obu/" + c.RBCID + "/handshake" }
func (c *Config) handshakeOutTopic() string { return "rbc/" + c.RBCID + "/handshake" }
func (c *Config) rbcInTopic() string        { return "rbc/" + c.RBCID + "/in" }
func (c *Config) rbcOutTopic() string       { return "rbc/" + c.RBCID + "/out" }

const (
	aiAlertTopic = "obu/ai/alert"
	aiAckTopic   = "obu/ai/ack"
)
