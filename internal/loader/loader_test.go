package loader

import (
	"os"
	"path/filepath"
	"testing"

	"chrouter/pkg/apperror"
)

func TestFixtureJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "graph.json")
	doc := `{
		"nodes": [{"id": 2, "x": 1, "y": 1}, {"id": 1, "x": 0, "y": 0}, {"id": 3, "x": 2, "y": 2}],
		"edges": [
			{"from": 1, "to": 2, "length_m": 100, "road_type": "primary", "bidirectional": true},
			{"from": 2, "to": 3, "length_m": 50, "road_type": "local", "bidirectional": false}
		]
	}`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	graph, geo, err := Fixture(path, nil)
	if err != nil {
		t.Fatalf("Fixture() error = %v", err)
	}

	if graph.NodeCount() != 3 {
		t.Errorf("NodeCount() = %d, want 3", graph.NodeCount())
	}
	if graph.EdgeCount() != 3 { // 1<->2 (2 directed edges) + 2->3 (1 directed edge)
		t.Errorf("EdgeCount() = %d, want 3", graph.EdgeCount())
	}
	if geo[1].X != 0 || geo[3].Y != 2 {
		t.Errorf("geo index not populated as expected: %+v", geo)
	}

	out := graph.GetOutgoing(2)
	foundBack := false
	for _, e := range out {
		if e.To == 1 {
			foundBack = true
		}
	}
	if !foundBack {
		t.Error("bidirectional edge 1<->2 did not install the reverse direction")
	}
}

func TestFixtureJSON_EmptyGraph(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "graph.json")
	if err := os.WriteFile(path, []byte(`{"nodes": [{"id": 1, "x": 0, "y": 0}], "edges": []}`), 0o644); err != nil {
		t.Fatal(err)
	}

	_, _, err := Fixture(path, nil)
	if !apperror.Is(err, apperror.CodeEmptyGraph) {
		t.Fatalf("expected CodeEmptyGraph, got %v", err)
	}
}

func TestFixtureCSV(t *testing.T) {
	dir := t.TempDir()
	nodesCSV := "id,x,y\n1,0,0\n2,1,1\n"
	edgesCSV := "from_id,to_id,length_m,road_type,bidirectional\n1,2,75.5,highway,true\n"

	if err := os.WriteFile(filepath.Join(dir, "nodes.csv"), []byte(nodesCSV), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "edges.csv"), []byte(edgesCSV), 0o644); err != nil {
		t.Fatal(err)
	}

	graph, geo, err := Fixture(dir, nil)
	if err != nil {
		t.Fatalf("Fixture() error = %v", err)
	}
	if graph.NodeCount() != 2 {
		t.Errorf("NodeCount() = %d, want 2", graph.NodeCount())
	}
	if graph.EdgeCount() != 2 {
		t.Errorf("EdgeCount() = %d, want 2 (bidirectional)", graph.EdgeCount())
	}
	if geo[2].X != 1 {
		t.Errorf("geo[2].X = %v, want 1", geo[2].X)
	}
}

func TestRoadTypeFromString(t *testing.T) {
	cases := map[string]bool{
		"highway":     true,
		"primary":     true,
		"secondary":   true,
		"local":       true,
		"urban":       true,
		"unspecified": false,
		"bogus":       false,
	}
	for s, known := range cases {
		got := roadTypeFromString(s)
		isUnspecified := got == 0
		if known == isUnspecified {
			t.Errorf("roadTypeFromString(%q) = %v, known=%v", s, got, known)
		}
	}
}
