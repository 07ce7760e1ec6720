package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/kintree/pkg/pipeline"
	"github.com/matzehuels/kintree/pkg/render"
)

// renderOpts holds the command-line flags for the render command.
type renderOpts struct {
	output   string  // output file path (or base path for multiple formats)
	formats  string  // comma-separated output formats
	width    float64 // layout frame width in pixels
	height   float64 // layout frame height in pixels
	detailed bool    // include age, category, and notes in node labels
	title    string  // diagram title
	noCache  bool    // disable the layout/artifact cache
	refresh  bool    // bypass the cache and recompute
}

// renderCommand creates the render command for exporting diagrams.
//
// Default settings:
//   - format: svg
//   - width: 800px, height: 600px (from config)
//   - saved manual positions are applied automatically
func (c *CLI) renderCommand() *cobra.Command {
	opts := renderOpts{}

	cmd := &cobra.Command{
		Use:   "render [file]",
		Short: "Render a family tree to SVG, PNG, PDF, DOT, or JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runRender(cmd, args[0], &opts)
		},
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file (single format) or base path (multiple)")
	cmd.Flags().StringVarP(&opts.formats, "format", "f", "", "output format(s): svg (default), png, pdf, dot, json (comma-separated)")
	cmd.Flags().Float64Var(&opts.width, "width", 0, "frame width (default from config)")
	cmd.Flags().Float64Var(&opts.height, "height", 0, "frame height (default from config)")
	cmd.Flags().BoolVar(&opts.detailed, "detailed", false, "include age, category, and notes in labels")
	cmd.Flags().StringVar(&opts.title, "title", "", "diagram title")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "disable the layout/artifact cache")
	cmd.Flags().BoolVar(&opts.refresh, "refresh", false, "recompute even when cached")

	return cmd
}

func (c *CLI) runRender(cmd *cobra.Command, input string, opts *renderOpts) error {
	formats := parseFormats(opts.formats)
	if err := pipeline.ValidateFormats(formats); err != nil {
		return err
	}
	if needsConverter(formats) && !render.ConverterAvailable() {
		return render.ErrConverterMissing
	}

	runner, err := c.newRunner(opts.noCache)
	if err != nil {
		return err
	}
	defer runner.Close()

	store, err := c.newStore()
	if err != nil {
		c.Logger.Warn("snapshot store unavailable, saved positions ignored", "err", err)
		store = nil
	} else {
		runner.Store = store
	}

	popts := pipeline.Options{
		Input:    input,
		Width:    firstNonZero(opts.width, c.Config.Layout.Width),
		Height:   firstNonZero(opts.height, c.Config.Layout.Height),
		Formats:  formats,
		Detailed: opts.detailed,
		Title:    opts.title,
		Refresh:  opts.refresh,
		Logger:   c.Logger,
	}

	// Apply saved manual positions for this tree revision, if any.
	if store != nil {
		if tree, err := runner.Load(cmd.Context(), popts); err == nil {
			if ov, err := store.LoadPositions(cmd.Context(), tree.Hash()); err == nil && ov.Len() > 0 {
				popts.Overrides = ov
				c.Logger.Debug("applying saved positions", "count", ov.Len())
			}
		}
	}

	prog := newProgress(c.Logger)
	sp := newSpinnerWithContext(cmd.Context(), "rendering "+input)
	sp.Start()
	result, err := runner.Execute(cmd.Context(), popts)
	sp.Stop()
	if err != nil {
		if sp.Cancelled() {
			return cmd.Context().Err()
		}
		return err
	}
	prog.done(fmt.Sprintf("Rendered %d people", result.Stats.PersonCount))

	base := basePath(opts.output, input)
	for _, format := range formats {
		path := opts.output
		if path == "" || len(formats) > 1 {
			path = base + "." + format
		}
		if err := os.WriteFile(path, result.Artifacts[format], 0644); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
		printFile(path)
	}
	printStats(result.Stats.PersonCount, result.Stats.EdgeCount,
		result.CacheInfo.LayoutHit && result.CacheInfo.RenderHit)

	return nil
}

// needsConverter reports whether any requested format requires rsvg-convert.
func needsConverter(formats []string) bool {
	for _, f := range formats {
		if f == pipeline.FormatPNG || f == pipeline.FormatPDF {
			return true
		}
	}
	return false
}

// basePath derives the base output path from the output and input file paths.
// If output is empty, it strips the extension from input. If output has a
// format extension (.svg, .pdf, etc.), it strips that extension.
func basePath(output, input string) string {
	if output == "" {
		return strings.TrimSuffix(input, filepath.Ext(input))
	}
	ext := filepath.Ext(output)
	if pipeline.ValidFormats[strings.TrimPrefix(ext, ".")] {
		return strings.TrimSuffix(output, ext)
	}
	return output
}

func firstNonZero(vals ...float64) float64 {
	for _, v := range vals {
		if v != 0 {
			return v
		}
	}
	return 0
}
