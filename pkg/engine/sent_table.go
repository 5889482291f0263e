package engine

import "sync"

// SentTable is the Sent-Message Table of spec.md §3: NID_MESSAGE ->
// t_send_ms. The Manager records every message it publishes. No code in
// this module calls Take, so entries are only overwritten by the next
// send of the same NID, and no KPI RTT record is produced from them.
// Exclusive to its owning orchestrator instance.
type SentTable struct {
	mu  sync.Mutex
	atg map[uint8]int64
}

// NewSentTable returns an empty table.
func NewSentTable() *SentTable {
	return &SentTable{atg: make(map[uint8]int64)}
}

// Record stamps nid with the current send time.
func (t *SentTable) Record(nid uint8, sentAtMs int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.atg[nid] = sentAtMs
}

// Take returns and clears the recorded send time for nid, if any.
// The bool reports whether an entry was present (i.e. whether an RTT
// can be computed).
func (t *SentTable) Take(nid uint8) (int64, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	sentAt, ok := t.atg[nid]
	if ok {
		delete(t.atg, nid)
	}
	return sentAt, ok
}
