package rbc

import (
	"errors"

	"github.com/etcsdemo/obu-etcs/pkg/bitcodec"
	"github.com/etcsdemo/obu-etcs/pkg/topology"
)

// errGrantNotArmed is returned by Grant before Message 132 has armed
// the operator grant button (spec.md §4.7).
var errGrantNotArmed = errors.New("rbc: operator grant button not armed")

// generateMA walks the configured route over the configured topology
// (spec.md §4.8).
func generateMA(cfg Config) (*topology.MovementAuthority, error) {
	return topology.GenerateMA(cfg.Topology, cfg.TrackIDs, cfg.Route)
}

// maToSubPacket renders a MovementAuthority into Packet 15's
// bitcodec.Values shape: one section per repeated `_k` group, plus the
// fixed header/end-section fields.
func maToSubPacket(ma *topology.MovementAuthority) map[string]*bitcodec.Values {
	sections := make([]map[string]int64, 0, len(ma.Sections))
	for _, s := range ma.Sections {
		sections = append(sections, map[string]int64{
			"L_SECTION":             s.LSection,
			"Q_SECTIONTIMER":        s.QSectionTimer,
			"T_SECTIONTIMER":        s.TSectionTimer,
			"D_SECTIONTIMERSTOPLOC": s.DSectionTimerStopLoc,
		})
	}
	return map[string]*bitcodec.Values{
		"packet15": {
			Fields: map[string]int64{
				"NID_PACKET":   15,
				"Q_DIR":        ma.QDir,
				"N_ITER":       ma.NIter,
				"L_ENDSECTION": ma.LEndSection,
			},
			Sections: sections,
		},
	}
}
