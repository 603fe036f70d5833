// Command preview-server serves games.json and the game directories locally
package main

import (
	"fmt"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"github.com/semag-arcade/game-importer/internal/cli"
	"github.com/semag-arcade/game-importer/internal/preview"
	"github.com/spf13/cobra"
)

var (
	opts      cli.Options
	addr      string
	root      string
	accessLog bool
)

var rootCmd = &cobra.Command{
	Use:   "preview-server",
	Short: "Serve the site's games locally with production cache headers",
	Args:  cobra.NoArgs,
	RunE:  run,
}

func init() {
	cli.AddFlags(rootCmd, &opts)
	flags := rootCmd.Flags()
	flags.StringVar(&addr, "addr", ":8788", "listen address")
	flags.StringVar(&root, "root", ".", "site root holding data/, semag/ and non-semag/")
	flags.BoolVar(&accessLog, "access-log", true, "log every request")
}

func main() {
	cli.Execute(rootCmd)
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := cli.Setup(&opts)
	if err != nil {
		return err
	}
	ctx, cancel := cli.Context()
	defer cancel()

	server := preview.New(preview.Config{
		GamesJSON: filepath.Join(root, cfg.Paths.GamesJSON),
		Prefixes: map[string]string{
			cfg.Paths.SemagDir: filepath.Join(root, cfg.Paths.SemagDir),
			cfg.Paths.GamesDir: filepath.Join(root, cfg.Paths.GamesDir),
		},
		AccessLog: accessLog,
	})

	go func() {
		<-ctx.Done()
		log.Info().Msg("Shutting down preview server...")
		if err := server.Shutdown(); err != nil {
			log.Error().Err(err).Msg("Server shutdown error")
		}
	}()

	fmt.Printf("🌐 Preview server on http://localhost%s\n", addr)
	return server.Listen(addr)
}
