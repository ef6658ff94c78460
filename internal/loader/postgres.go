package loader

import (
	"context"
	"log/slog"

	"chrouter/pkg/apperror"
	"chrouter/pkg/database"
	"chrouter/pkg/levelgraph"
)

// nodesQuery and edgesQuery read the nodes/edges tables created by the
// embedded goose migration, ordered by id so construction is
// deterministic regardless of the underlying storage engine's physical
// row order.
const (
	nodesQuery = `SELECT id, x, y FROM nodes ORDER BY id`
	edgesQuery = `SELECT from_id, to_id, length_m, road_type, bidirectional FROM edges ORDER BY id`
)

// Postgres loads a road network from the nodes/edges schema via db,
// returning a populated levelgraph.Graph and the geographic side table
// the PDF report needs. Grounded on the teacher's ToResidualGraph: nodes
// are added first, then edges, with bidirectional edges expanded to both
// directions exactly like converter.ToResidualGraph does for
// commonv1.Edge.Bidirectional.
func Postgres(ctx context.Context, db database.DB, log *slog.Logger) (*levelgraph.Graph, GeoIndex, error) {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	graph := levelgraph.New()
	geo := make(GeoIndex)

	nodeRows, err := db.Query(ctx, nodesQuery)
	if err != nil {
		return nil, nil, apperror.Wrap(err, apperror.CodeInternal, "querying nodes")
	}
	nodeCount := 0
	for nodeRows.Next() {
		var id int64
		var x, y float64
		if err := nodeRows.Scan(&id, &x, &y); err != nil {
			nodeRows.Close()
			return nil, nil, apperror.Wrap(err, apperror.CodeInternal, "scanning node row")
		}
		graph.AddNode(id)
		geo[id] = NodeGeo{X: x, Y: y}
		nodeCount++
	}
	if err := nodeRows.Err(); err != nil {
		nodeRows.Close()
		return nil, nil, apperror.Wrap(err, apperror.CodeInternal, "reading node rows")
	}
	nodeRows.Close()

	edgeRows, err := db.Query(ctx, edgesQuery)
	if err != nil {
		return nil, nil, apperror.Wrap(err, apperror.CodeInternal, "querying edges")
	}
	edgeCount := 0
	for edgeRows.Next() {
		var from, to int64
		var lengthM float64
		var roadType string
		var bidirectional bool
		if err := edgeRows.Scan(&from, &to, &lengthM, &roadType, &bidirectional); err != nil {
			edgeRows.Close()
			return nil, nil, apperror.Wrap(err, apperror.CodeInternal, "scanning edge row")
		}
		addEdge(graph, from, to, lengthM, roadTypeFromString(roadType), bidirectional)
		edgeCount++
	}
	if err := edgeRows.Err(); err != nil {
		edgeRows.Close()
		return nil, nil, apperror.Wrap(err, apperror.CodeInternal, "reading edge rows")
	}
	edgeRows.Close()

	if graph.EdgeCount() == 0 {
		return nil, nil, apperror.ErrEmptyGraph
	}

	log.Info("loaded road network from postgres", "nodes", nodeCount, "edges", edgeCount)

	return graph, geo, nil
}
