package cli

import (
	"github.com/spf13/cobra"

	"github.com/matzehuels/kintree/internal/server"
)

// serveCommand creates the preview server command.
func (c *CLI) serveCommand() *cobra.Command {
	var (
		addr    string
		noCache bool
	)

	cmd := &cobra.Command{
		Use:   "serve [file]",
		Short: "Serve a family tree diagram over HTTP",
		Long: `Serve starts a local HTTP server that renders the snapshot as an SVG
diagram. Useful for sharing a tree on a LAN or embedding the diagram
in other tooling.

Endpoints:
  GET /            HTML page with the embedded diagram
  GET /tree.svg    the rendered diagram
  GET /tree.json   the snapshot as JSON
  GET /healthz     health check`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			runner, err := c.newRunner(noCache)
			if err != nil {
				return err
			}
			defer runner.Close()

			srv := server.New(server.Config{
				Addr:   firstNonEmpty(addr, c.Config.Server.Addr),
				Input:  args[0],
				Width:  c.Config.Layout.Width,
				Height: c.Config.Layout.Height,
			}, runner, c.Logger)
			return srv.Run(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config, :8080)")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable the layout/artifact cache")
	return cmd
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
