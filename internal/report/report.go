// Package report renders a CHQuery route result as a PDF itinerary via
// maroto. It is the expanded spec's Itinerary report component: a
// turn-by-turn breakdown of the node path, the per-hop and cumulative
// distance, and the road types travelled, replacing the
// teacher's flow-optimization report content with CH routing content
// while keeping its maroto component-tree idiom.
package report

import (
	"fmt"
	"time"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/border"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"

	"chrouter/internal/ch"
	"chrouter/internal/loader"
	appconfig "chrouter/pkg/config"
	"chrouter/pkg/levelgraph"
)

// Styles, grounded on services/report-svc/internal/generator/pdf.go's
// package-level style vars - same palette and text-prop shapes, renamed
// for the itinerary domain.
var (
	primaryColor   = &props.Color{Red: 52, Green: 152, Blue: 219}
	headerBgColor  = &props.Color{Red: 44, Green: 62, Blue: 80}
	lightGrayColor = &props.Color{Red: 236, Green: 240, Blue: 241}
	darkGrayColor  = &props.Color{Red: 127, Green: 140, Blue: 141}

	titleStyle  = props.Text{Size: 24, Style: fontstyle.Bold, Align: align.Center, Color: headerBgColor}
	h2Style     = props.Text{Size: 16, Style: fontstyle.Bold, Color: headerBgColor, Top: 5}
	normalStyle = props.Text{Size: 10}
	boldStyle   = props.Text{Size: 10, Style: fontstyle.Bold}
	smallStyle  = props.Text{Size: 8, Color: darkGrayColor}

	metricValueStyle = props.Text{Size: 20, Style: fontstyle.Bold, Align: align.Center, Color: primaryColor}
	metricLabelStyle = props.Text{Size: 9, Align: align.Center, Color: darkGrayColor}

	tableHeaderStyle     = &props.Cell{BackgroundColor: primaryColor}
	tableHeaderTextStyle = props.Text{Size: 9, Style: fontstyle.Bold, Color: &props.Color{Red: 255, Green: 255, Blue: 255}, Align: align.Center}
	tableCellStyle       = &props.Cell{BorderType: border.Bottom, BorderColor: lightGrayColor}
	tableCellTextStyle   = props.Text{Size: 9, Align: align.Center}
)

// roadTypeName renders a levelgraph.RoadType for display, the reverse of
// internal/loader's roadTypeFromString.
func roadTypeName(rt levelgraph.RoadType) string {
	switch rt {
	case levelgraph.RoadTypeHighway:
		return "Highway"
	case levelgraph.RoadTypePrimary:
		return "Primary"
	case levelgraph.RoadTypeSecondary:
		return "Secondary"
	case levelgraph.RoadTypeLocal:
		return "Local"
	case levelgraph.RoadTypeUrban:
		return "Urban"
	default:
		return "Unspecified"
	}
}

// Itinerary is the PDF itinerary report generator. It carries only
// configuration and no request-scoped state, mirroring the teacher's
// stateless PDFGenerator.
type Itinerary struct {
	cfg appconfig.PDFConfig
}

// New returns an Itinerary generator configured by cfg.
func New(cfg appconfig.PDFConfig) *Itinerary {
	return &Itinerary{cfg: cfg}
}

// Options describes the route being reported: its source/target/weighting
// plus the geo side table needed to print node coordinates. Geo may be
// nil if the graph source doesn't carry coordinates.
type Options struct {
	Source      int64
	Target      int64
	Weighting   string
	CompanyName string
	Geo         loader.GeoIndex
}

// Generate renders result as a PDF document and returns its bytes.
func (g *Itinerary) Generate(result *ch.RouteResult, opts Options) ([]byte, error) {
	builder := maroto.New(g.buildConfig())

	g.addHeader(builder, opts)
	g.addSummary(builder, result, opts)
	g.addItineraryTable(builder, result, opts)
	g.addFooter(builder)

	doc, err := builder.Generate()
	if err != nil {
		return nil, fmt.Errorf("generating itinerary PDF: %w", err)
	}

	return doc.GetBytes(), nil
}

func (g *Itinerary) buildConfig() *config.Config {
	b := config.NewBuilder()
	if g.cfg.EnablePageNumbers {
		b = b.WithPageNumber()
	}
	marginLeft, marginTop, marginRight := g.cfg.MarginLeft, g.cfg.MarginTop, g.cfg.MarginRight
	if marginLeft == 0 && marginTop == 0 && marginRight == 0 {
		marginLeft, marginTop, marginRight = 15, 15, 15
	}
	return b.
		WithLeftMargin(marginLeft).
		WithTopMargin(marginTop).
		WithRightMargin(marginRight).
		Build()
}

func (g *Itinerary) addHeader(m core.Maroto, opts Options) {
	m.AddRow(15, text.NewCol(12, "Route Itinerary", titleStyle))
	m.AddRow(5, line.NewCol(12))

	company := opts.CompanyName
	if company == "" {
		company = "chrouter"
	}
	m.AddRow(6,
		text.NewCol(6, fmt.Sprintf("Generated by: %s", company), smallStyle),
		text.NewCol(6, fmt.Sprintf("Generated: %s", time.Now().Format("2006-01-02 15:04:05")),
			props.Text{Size: 8, Color: darkGrayColor, Align: align.Right}),
	)
	m.AddRow(8)
}

func (g *Itinerary) addSummary(m core.Maroto, result *ch.RouteResult, opts Options) {
	g.addSection(m, "Route Summary")

	hops := 0
	if len(result.Nodes) > 0 {
		hops = len(result.Nodes) - 1
	}

	m.AddRow(20,
		col.New(3).Add(text.New(fmt.Sprintf("%d", opts.Source), metricValueStyle), text.New("Source node", metricLabelStyle)),
		col.New(3).Add(text.New(fmt.Sprintf("%d", opts.Target), metricValueStyle), text.New("Target node", metricLabelStyle)),
		col.New(3).Add(text.New(fmt.Sprintf("%.2f", result.Distance), metricValueStyle), text.New("Distance (m)", metricLabelStyle)),
		col.New(3).Add(text.New(fmt.Sprintf("%d", hops), metricValueStyle), text.New("Hops", metricLabelStyle)),
	)

	m.AddRow(6,
		text.NewCol(6, "Weighting", boldStyle),
		text.NewCol(6, opts.Weighting, normalStyle),
	)
	m.AddRow(6,
		text.NewCol(6, "Overlay weight", boldStyle),
		text.NewCol(6, fmt.Sprintf("%.4f", result.Weight), normalStyle),
	)
	m.AddRow(8)
}

func (g *Itinerary) addItineraryTable(m core.Maroto, result *ch.RouteResult, opts Options) {
	g.addSection(m, "Turn-by-turn")

	m.AddRow(8,
		text.NewCol(1, "#", tableHeaderTextStyle).WithStyle(tableHeaderStyle),
		text.NewCol(2, "From", tableHeaderTextStyle).WithStyle(tableHeaderStyle),
		text.NewCol(2, "To", tableHeaderTextStyle).WithStyle(tableHeaderStyle),
		text.NewCol(2, "Road type", tableHeaderTextStyle).WithStyle(tableHeaderStyle),
		text.NewCol(2, "Hop (m)", tableHeaderTextStyle).WithStyle(tableHeaderStyle),
		text.NewCol(3, "Cumulative (m)", tableHeaderTextStyle).WithStyle(tableHeaderStyle),
	)

	var cumulative float64
	for i, e := range result.Edges {
		cumulative += e.Length
		m.AddRow(6,
			text.NewCol(1, fmt.Sprintf("%d", i+1), tableCellTextStyle).WithStyle(tableCellStyle),
			text.NewCol(2, fmt.Sprintf("%d", e.From), tableCellTextStyle).WithStyle(tableCellStyle),
			text.NewCol(2, fmt.Sprintf("%d", e.To), tableCellTextStyle).WithStyle(tableCellStyle),
			text.NewCol(2, roadTypeName(e.RoadType), tableCellTextStyle).WithStyle(tableCellStyle),
			text.NewCol(2, fmt.Sprintf("%.1f", e.Length), tableCellTextStyle).WithStyle(tableCellStyle),
			text.NewCol(3, fmt.Sprintf("%.1f", cumulative), tableCellTextStyle).WithStyle(tableCellStyle),
		)
	}

	if opts.Geo != nil {
		g.addWaypointsTable(m, result, opts.Geo)
	}
}

func (g *Itinerary) addWaypointsTable(m core.Maroto, result *ch.RouteResult, geo loader.GeoIndex) {
	m.AddRow(8)
	g.addSection(m, "Waypoints")

	m.AddRow(8,
		text.NewCol(2, "Node", tableHeaderTextStyle).WithStyle(tableHeaderStyle),
		text.NewCol(5, "X", tableHeaderTextStyle).WithStyle(tableHeaderStyle),
		text.NewCol(5, "Y", tableHeaderTextStyle).WithStyle(tableHeaderStyle),
	)
	for _, n := range result.Nodes {
		pos, ok := geo[n]
		if !ok {
			continue
		}
		m.AddRow(6,
			text.NewCol(2, fmt.Sprintf("%d", n), tableCellTextStyle).WithStyle(tableCellStyle),
			text.NewCol(5, fmt.Sprintf("%.6f", pos.X), tableCellTextStyle).WithStyle(tableCellStyle),
			text.NewCol(5, fmt.Sprintf("%.6f", pos.Y), tableCellTextStyle).WithStyle(tableCellStyle),
		)
	}
}

func (g *Itinerary) addSection(m core.Maroto, title string) {
	m.AddRow(10, text.NewCol(12, title, h2Style))
	m.AddRow(2, line.NewCol(12, props.Line{Color: primaryColor}))
	m.AddRow(5)
}

func (g *Itinerary) addFooter(m core.Maroto) {
	m.AddRow(10)
	m.AddRow(2, line.NewCol(12, props.Line{Color: lightGrayColor}))
	m.AddRow(6,
		text.NewCol(12, fmt.Sprintf("Generated by chrouter | %s", time.Now().Format("2006-01-02 15:04:05")),
			props.Text{Size: 8, Color: darkGrayColor, Align: align.Center}),
	)
}
