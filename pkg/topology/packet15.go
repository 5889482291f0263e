package topology

import (
	"errors"
	"math"
)

// Errors returned while generating a Movement Authority.
var (
	ErrEmptyTrackList   = errors.New("topology: track list must not be empty")
	ErrUnknownTrack     = errors.New("topology: track id not found in topology")
	ErrDisjointTrackRun = errors.New("topology: track does not connect to current walk position")
	ErrUnknownStation   = errors.New("topology: station id not found in topology")
)

// Section is one repeated record of Packet 15's section block
// (spec.md §3).
type Section struct {
	LSection              int64
	QSectionTimer         int64
	TSectionTimer         int64
	DSectionTimerStopLoc  int64
}

// MovementAuthority is the decoded-shape result of walking a route,
// ready to be handed to the Packet 15 template via bitcodec.Values.
type MovementAuthority struct {
	QDir         int64
	Sections     []Section
	LEndSection  int64
	NIter        int64
	LPacketBits  int64
}

// GenerateMA walks trackIDs in order over topo and builds the
// Movement Authority packet per spec.md §4.8:
//
//  1. Walk the track list, collecting the ordered sequence of sensor
//     nodes encountered (each sensor once, in encounter order).
//  2. Q_DIR = 1 if the first track's From equals route.From, else 0.
//  3. Emit one section per consecutive sensor pair, L_SECTION the
//     rounded Euclidean sum of tracks between them, timers zeroed.
//  4. L_ENDSECTION is the Euclidean sum from the last sensor to (and
//     including) the track touching route.To.
//  5. N_ITER = len(sections); L_PACKET = 93 + 46*N_ITER bits.
func GenerateMA(topo *Topology, trackIDs []string, route Route) (*MovementAuthority, error) {
	if len(trackIDs) == 0 {
		return nil, ErrEmptyTrackList
	}

	tracks := make([]Track, 0, len(trackIDs))
	for _, id := range trackIDs {
		tr, ok := topo.Tracks[id]
		if !ok {
			return nil, ErrUnknownTrack
		}
		tracks = append(tracks, tr)
	}

	toStation, ok := topo.Stations[route.To]
	if !ok {
		return nil, ErrUnknownStation
	}

	qDir := int64(0)
	if tracks[0].From == route.From {
		qDir = 1
	}

	// Walk the track run, recording cumulative distance at each node
	// and the first visit index of every sensor node encountered.
	current := tracks[0].From
	cumDist := make([]float64, len(tracks)+1)
	nodeAt := make([]string, len(tracks)+1)
	nodeAt[0] = current

	var sensorOrder []string
	sensorCum := make(map[string]float64)
	if s, ok := topo.SensorsByNode[current]; ok {
		sensorOrder = append(sensorOrder, s.NodeID)
		sensorCum[s.NodeID] = 0
	}

	for i, tr := range tracks {
		var next string
		switch current {
		case tr.From:
			next = tr.To
		case tr.To:
			next = tr.From
		default:
			return nil, ErrDisjointTrackRun
		}
		cumDist[i+1] = cumDist[i] + tr.Length
		nodeAt[i+1] = next
		current = next

		if s, ok := topo.SensorsByNode[current]; ok {
			if _, seen := sensorCum[s.NodeID]; !seen {
				sensorOrder = append(sensorOrder, s.NodeID)
				sensorCum[s.NodeID] = cumDist[i+1]
			}
		}
	}

	sections := make([]Section, 0, len(sensorOrder))
	for i := 0; i+1 < len(sensorOrder); i++ {
		length := sensorCum[sensorOrder[i+1]] - sensorCum[sensorOrder[i]]
		sections = append(sections, Section{
			LSection:      int64(math.Round(length)),
			QSectionTimer: 0,
			TSectionTimer: 0,
			DSectionTimerStopLoc: 0,
		})
	}

	endDist := cumDist[len(tracks)]
	var lastSensorDist float64
	if len(sensorOrder) > 0 {
		lastSensorDist = sensorCum[sensorOrder[len(sensorOrder)-1]]
	}
	_ = toStation // the walk's own endpoint is the MA's terminus; toStation validates route.To exists

	nIter := int64(len(sections))
	return &MovementAuthority{
		QDir:        qDir,
		Sections:    sections,
		LEndSection: int64(math.Round(endDist - lastSensorDist)),
		NIter:       nIter,
		LPacketBits: 93 + 46*nIter,
	}, nil
}
