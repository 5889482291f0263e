package topology

import (
	"encoding/json"
	"os"
)

// fileFormat is the on-disk shape topology data arrives in. The
// geometry/route authoring tool itself is out of scope (spec.md §1);
// this is the "small typed loader" SPEC_FULL.md §1 calls for.
type fileFormat struct {
	Tracks   []Track   `json:"tracks"`
	Sensors  []Sensor  `json:"sensors"`
	Stations []Station `json:"stations"`
}

// LoadFromFile reads a JSON topology file and returns a populated
// Topology.
func LoadFromFile(path string) (*Topology, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return parse(data)
}

func parse(data []byte) (*Topology, error) {
	var f fileFormat
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, err
	}

	topo := NewTopology()
	for _, tr := range f.Tracks {
		topo.Tracks[tr.ID] = tr
	}
	for _, s := range f.Sensors {
		topo.SensorsByNode[s.NodeID] = s
	}
	for _, st := range f.Stations {
		topo.Stations[st.ID] = st
	}
	return topo, nil
}
