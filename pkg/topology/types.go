package topology

// Track is one track segment between two named nodes, with a
// precomputed Euclidean length. The originating coordinate geometry
// is out of this system's scope (spec.md §1: "the topology/route data
// source" is an external collaborator); Length arrives already
// computed.
type Track struct {
	ID     string
	From   string
	To     string
	Length float64
}

// Sensor sits at a single node along the track graph.
type Sensor struct {
	ID     string
	NodeID string
}

// Station is a named endpoint node, referenced by a route's
// ST_from/ST_to identifiers.
type Station struct {
	ID     string
	NodeID string
}

// Topology is the track/sensor/station graph a route walks over
// (spec.md §4.8).
type Topology struct {
	Tracks        map[string]Track
	SensorsByNode map[string]Sensor
	Stations      map[string]Station
}

// NewTopology returns an empty Topology ready for population.
func NewTopology() *Topology {
	return &Topology{
		Tracks:        make(map[string]Track),
		SensorsByNode: make(map[string]Sensor),
		Stations:      make(map[string]Station),
	}
}

// Route names the endpoints a Movement Authority grants passage
// between, resolved from the ST_from_ST_to route identifier
// (spec.md §4.8).
type Route struct {
	From string
	To   string
}
