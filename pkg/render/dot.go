// Package render turns a computed [layout.Layout] into visual artifacts:
// Graphviz DOT text, SVG, PNG, and PDF documents, and a cell grid suitable
// for terminal display.
//
// Vector output goes through Graphviz with the neato engine and pinned node
// positions, so the coordinates produced by the layout engine are honored
// exactly rather than recomputed.
package render

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/goccy/go-graphviz"

	"github.com/matzehuels/kintree/pkg/layout"
	"github.com/matzehuels/kintree/pkg/lineage"
)

// Format identifies a vector output format.
type Format string

const (
	FormatDOT Format = "dot"
	FormatSVG Format = "svg"
	FormatPNG Format = "png"
	FormatPDF Format = "pdf"
)

// ParseFormat maps a user-supplied string to a [Format].
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case FormatDOT:
		return FormatDOT, nil
	case FormatSVG:
		return FormatSVG, nil
	case FormatPNG:
		return FormatPNG, nil
	case FormatPDF:
		return FormatPDF, nil
	}
	return "", fmt.Errorf("unknown render format %q (want dot, svg, png, or pdf)", s)
}

// Options controls DOT generation.
type Options struct {
	// Detailed adds age, category, and notes to node labels.
	Detailed bool
	// Title is drawn as the graph label when non-empty.
	Title string
}

// categoryFill maps person categories to node fill colors.
var categoryFill = map[string]string{
	lineage.CategoryMale:   "#dbeafe",
	lineage.CategoryFemale: "#fce7f3",
}

// ToDOT renders the tree with its computed layout as Graphviz DOT text.
// Node positions are pinned ("x,y!") so the neato engine reproduces the
// layout engine's placement instead of running its own.
func ToDOT(t *lineage.Tree, l *layout.Layout, opts Options) (string, error) {
	if t == nil || l == nil {
		return "", fmt.Errorf("render: %w", lineage.ErrEmptyTree)
	}

	var b strings.Builder
	b.WriteString("digraph kintree {\n")
	b.WriteString("  graph [layout=neato, splines=line, outputorder=edgesfirst")
	if opts.Title != "" {
		fmt.Fprintf(&b, ", label=%s, labelloc=t, fontsize=18", quote(opts.Title))
	}
	b.WriteString("];\n")
	b.WriteString("  node [shape=box, style=\"rounded,filled\", fillcolor=white, fontname=\"Helvetica\", fontsize=11];\n")
	b.WriteString("  edge [arrowhead=none, color=\"#6b7280\"];\n")

	for _, n := range l.Nodes {
		p, err := t.Person(n.ID)
		if err != nil {
			return "", fmt.Errorf("render node %d: %w", n.ID, err)
		}
		attrs := []string{
			"label=" + quote(nodeLabel(p, opts.Detailed)),
			// Graphviz Y grows upward; the layout frame grows downward.
			fmt.Sprintf("pos=\"%.2f,%.2f!\"", n.Pos.X, l.Frame.Height-n.Pos.Y),
		}
		if fill, ok := categoryFill[p.Category]; ok {
			attrs = append(attrs, fmt.Sprintf("fillcolor=%q", fill))
		}
		if n.Overridden {
			attrs = append(attrs, "penwidth=2", "color=\"#b45309\"")
		}
		fmt.Fprintf(&b, "  n%d [%s];\n", n.ID, strings.Join(attrs, ", "))
	}

	edges := append([]layout.Edge(nil), l.Edges...)
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].From != edges[j].From {
			return edges[i].From < edges[j].From
		}
		return edges[i].To < edges[j].To
	})
	for _, e := range edges {
		fmt.Fprintf(&b, "  n%d -> n%d;\n", e.From, e.To)
	}

	b.WriteString("}\n")
	return b.String(), nil
}

func nodeLabel(p *lineage.Person, detailed bool) string {
	if !detailed {
		return p.Name
	}
	lines := []string{p.Name}
	if p.Age != nil {
		lines = append(lines, fmt.Sprintf("age %d", *p.Age))
	}
	if p.Category != "" {
		lines = append(lines, p.Category)
	}
	if p.Notes != "" {
		lines = append(lines, p.Notes)
	}
	return strings.Join(lines, "\\n")
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
}

// ===== SVG rendering =====

var (
	viewBoxRe = regexp.MustCompile(`viewBox="[^"]*"`)
	widthRe   = regexp.MustCompile(`<svg([^>]*?)\swidth="[^"]*"`)
	heightRe  = regexp.MustCompile(`<svg([^>]*?)\sheight="[^"]*"`)
)

// RenderSVG runs the pinned-position DOT through Graphviz and returns SVG
// bytes. Fixed width/height attributes are stripped so the document scales
// to its container.
func RenderSVG(ctx context.Context, t *lineage.Tree, l *layout.Layout, opts Options) ([]byte, error) {
	dot, err := ToDOT(t, l, opts)
	if err != nil {
		return nil, err
	}

	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse dot: %w", err)
	}
	defer g.Close()

	var buf strings.Builder
	if err := gv.Render(ctx, g, graphviz.SVG, &buf); err != nil {
		return nil, fmt.Errorf("render svg: %w", err)
	}
	return normalizeSVG(buf.String()), nil
}

// normalizeSVG makes the SVG responsive: it keeps the viewBox but removes
// the fixed pixel dimensions Graphviz emits.
func normalizeSVG(svg string) []byte {
	if viewBoxRe.MatchString(svg) {
		svg = widthRe.ReplaceAllString(svg, `<svg$1`)
		svg = heightRe.ReplaceAllString(svg, `<svg$1`)
	}
	return []byte(svg)
}

// RenderPNG renders the tree to PNG via SVG conversion.
func RenderPNG(ctx context.Context, t *lineage.Tree, l *layout.Layout, opts Options) ([]byte, error) {
	svg, err := RenderSVG(ctx, t, l, opts)
	if err != nil {
		return nil, err
	}
	return ToPNG(ctx, svg)
}

// RenderPDF renders the tree to PDF via SVG conversion.
func RenderPDF(ctx context.Context, t *lineage.Tree, l *layout.Layout, opts Options) ([]byte, error) {
	svg, err := RenderSVG(ctx, t, l, opts)
	if err != nil {
		return nil, err
	}
	return ToPDF(ctx, svg)
}

// Render produces the artifact for the given format.
func Render(ctx context.Context, t *lineage.Tree, l *layout.Layout, f Format, opts Options) ([]byte, error) {
	switch f {
	case FormatDOT:
		dot, err := ToDOT(t, l, opts)
		if err != nil {
			return nil, err
		}
		return []byte(dot), nil
	case FormatSVG:
		return RenderSVG(ctx, t, l, opts)
	case FormatPNG:
		return RenderPNG(ctx, t, l, opts)
	case FormatPDF:
		return RenderPDF(ctx, t, l, opts)
	}
	return nil, fmt.Errorf("unknown render format %q", f)
}
