package topology

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "topology.json")
	data := `{
		"tracks": [
			{"ID": "T1", "From": "STA", "To": "N1", "Length": 1000},
			{"ID": "T2", "From": "N1", "To": "STB", "Length": 1500}
		],
		"sensors": [{"ID": "S1", "NodeID": "N1"}],
		"stations": [{"ID": "STA", "NodeID": "STA"}, {"ID": "STB", "NodeID": "STB"}]
	}`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	topo, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile: %v", err)
	}

	if got := topo.Tracks["T1"].Length; got != 1000 {
		t.Errorf("expected T1 length 1000, got %v", got)
	}
	if got := topo.SensorsByNode["N1"].ID; got != "S1" {
		t.Errorf("expected sensor S1 at node N1, got %q", got)
	}
	if _, ok := topo.Stations["STB"]; !ok {
		t.Errorf("expected station STB present")
	}
}

func TestLoadFromFileMissing(t *testing.T) {
	if _, err := LoadFromFile("/nonexistent/topology.json"); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
