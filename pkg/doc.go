// Package pkg provides the core libraries for kintree family-tree visualization.
//
// # Overview
//
// kintree turns a nested family snapshot into an interactive tree diagram.
// The pkg directory is organized into these areas:
//
//  1. [lineage] - Tree model (arena of persons, validation, snapshot codec)
//  2. [layout] - Tidy layout engine with manual position overrides
//  3. [gesture] - Pointer gesture interpreter (click vs. drag)
//  4. [render] - DOT/SVG/PNG/PDF emitters and the terminal canvas
//  5. [snapshot] - Saved trees and positions (file and MongoDB stores)
//  6. [cache] - Layout and artifact caching (file and Redis backends)
//  7. [pipeline] - Orchestration (load → layout → render)
//  8. [watch] - Snapshot file watching with debounce
//
// # Architecture
//
// The typical data flow:
//
//	Snapshot file (JSON)
//	         ↓
//	lineage.Tree (validated arena)
//	         ↓
//	layout.Layout (positions + overrides)
//	         ↓
//	render (DOT, SVG, PNG, PDF, terminal canvas)
//
// The pipeline package drives this flow with caching at the layout and
// artifact stages, and the CLI (internal/cli) wires it into the view,
// render, serve, and check commands.
package pkg
