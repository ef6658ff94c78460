package loader

import (
	"encoding/csv"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"chrouter/pkg/apperror"
	"chrouter/pkg/levelgraph"
)

// fixtureNode and fixtureEdge mirror the postgres schema's columns so the
// same roadTypeFromString/addEdge helpers serve both loaders.
type fixtureNode struct {
	ID int64   `json:"id"`
	X  float64 `json:"x"`
	Y  float64 `json:"y"`
}

type fixtureEdge struct {
	From          int64   `json:"from"`
	To            int64   `json:"to"`
	LengthM       float64 `json:"length_m"`
	RoadType      string  `json:"road_type"`
	Bidirectional bool    `json:"bidirectional"`
}

type fixtureDocument struct {
	Nodes []fixtureNode `json:"nodes"`
	Edges []fixtureEdge `json:"edges"`
}

// Fixture loads a road network from a local file for demos and tests,
// without requiring a database. A ".json" path is read as a single
// document holding both nodes and edges; any other path is treated as a
// directory containing nodes.csv and edges.csv. Rows are sorted by id
// before insertion so the resulting graph is deterministic regardless of
// on-disk ordering, matching the postgres loader's ORDER BY id guarantee.
func Fixture(path string, log *slog.Logger) (*levelgraph.Graph, GeoIndex, error) {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	var doc fixtureDocument
	var err error
	if strings.EqualFold(filepath.Ext(path), ".json") {
		doc, err = readJSONFixture(path)
	} else {
		doc, err = readCSVFixture(path)
	}
	if err != nil {
		return nil, nil, err
	}

	sort.Slice(doc.Nodes, func(i, j int) bool { return doc.Nodes[i].ID < doc.Nodes[j].ID })
	sort.Slice(doc.Edges, func(i, j int) bool {
		if doc.Edges[i].From != doc.Edges[j].From {
			return doc.Edges[i].From < doc.Edges[j].From
		}
		return doc.Edges[i].To < doc.Edges[j].To
	})

	graph := levelgraph.New()
	geo := make(GeoIndex)

	for _, n := range doc.Nodes {
		graph.AddNode(n.ID)
		geo[n.ID] = NodeGeo{X: n.X, Y: n.Y}
	}
	for _, e := range doc.Edges {
		addEdge(graph, e.From, e.To, e.LengthM, roadTypeFromString(e.RoadType), e.Bidirectional)
	}

	if graph.EdgeCount() == 0 {
		return nil, nil, apperror.ErrEmptyGraph
	}

	log.Info("loaded road network from fixture", "path", path, "nodes", len(doc.Nodes), "edges", len(doc.Edges))

	return graph, geo, nil
}

func readJSONFixture(path string) (fixtureDocument, error) {
	var doc fixtureDocument

	data, err := os.ReadFile(path)
	if err != nil {
		return doc, apperror.Wrap(err, apperror.CodeInternal, "reading fixture file").WithField(path)
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return doc, apperror.Wrap(err, apperror.CodeInvalidGraph, "parsing fixture JSON").WithField(path)
	}
	return doc, nil
}

func readCSVFixture(dir string) (fixtureDocument, error) {
	var doc fixtureDocument

	nodes, err := readCSVRows(filepath.Join(dir, "nodes.csv"))
	if err != nil {
		return doc, err
	}
	for i, row := range nodes {
		if i == 0 {
			continue // header
		}
		if len(row) < 3 {
			continue
		}
		id, err := strconv.ParseInt(row[0], 10, 64)
		if err != nil {
			return doc, apperror.Wrap(err, apperror.CodeInvalidGraph, "parsing node id").WithDetails("row", i)
		}
		x, _ := strconv.ParseFloat(row[1], 64)
		y, _ := strconv.ParseFloat(row[2], 64)
		doc.Nodes = append(doc.Nodes, fixtureNode{ID: id, X: x, Y: y})
	}

	edges, err := readCSVRows(filepath.Join(dir, "edges.csv"))
	if err != nil {
		return doc, err
	}
	for i, row := range edges {
		if i == 0 {
			continue // header
		}
		if len(row) < 5 {
			continue
		}
		from, err := strconv.ParseInt(row[0], 10, 64)
		if err != nil {
			return doc, apperror.Wrap(err, apperror.CodeInvalidGraph, "parsing edge from_id").WithDetails("row", i)
		}
		to, err := strconv.ParseInt(row[1], 10, 64)
		if err != nil {
			return doc, apperror.Wrap(err, apperror.CodeInvalidGraph, "parsing edge to_id").WithDetails("row", i)
		}
		lengthM, _ := strconv.ParseFloat(row[2], 64)
		bidirectional := strings.EqualFold(strings.TrimSpace(row[4]), "true")
		doc.Edges = append(doc.Edges, fixtureEdge{From: from, To: to, LengthM: lengthM, RoadType: row[3], Bidirectional: bidirectional})
	}

	return doc, nil
}

func readCSVRows(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.CodeInternal, "opening fixture CSV").WithField(path)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, apperror.Wrap(err, apperror.CodeInvalidGraph, "reading fixture CSV").WithField(path)
	}
	return rows, nil
}
