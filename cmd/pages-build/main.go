// Command pages-build copies the site into a deploy directory, leaving out
// tooling folders and files larger than the host accepts.
package main

import (
	"fmt"

	"github.com/semag-arcade/game-importer/internal/cli"
	"github.com/semag-arcade/game-importer/internal/publish"
	"github.com/spf13/cobra"
)

var (
	opts    cli.Options
	root    string
	out     string
	maxSize int64
	exclude []string
)

var rootCmd = &cobra.Command{
	Use:     "pages-build",
	Short:   "Build the Cloudflare Pages output directory",
	Example: "  pages-build --root . --out dist --exclude 'non-semag/EscapeRoad*'",
	Args:    cobra.NoArgs,
	RunE:    run,
}

func init() {
	cli.AddFlags(rootCmd, &opts)
	flags := rootCmd.Flags()
	flags.StringVar(&root, "root", ".", "site root")
	flags.StringVar(&out, "out", "dist", "output directory, replaced on every build")
	flags.Int64Var(&maxSize, "max-size", publish.DefaultMaxFileSize, "largest file copied, in bytes")
	flags.StringSliceVar(&exclude, "exclude", nil, "glob of paths to leave out, relative to the root (repeatable)")
}

func main() {
	cli.Execute(rootCmd)
}

func run(cmd *cobra.Command, args []string) error {
	if _, err := cli.Setup(&opts); err != nil {
		return err
	}

	buildOpts := publish.DefaultOptions()
	buildOpts.MaxFileSize = maxSize
	buildOpts.Exclude = exclude

	report, err := publish.Build(root, out, buildOpts)
	if err != nil {
		return err
	}

	fmt.Printf("📦 Pages build output written to %s/\n", out)
	fmt.Printf("   Copied %d files (%.1f MiB)\n", report.Copied, float64(report.Bytes)/(1<<20))
	for _, f := range report.Oversize {
		fmt.Printf("   ⚠️  Skipped %s (%.1f MiB)\n", f.Path, float64(f.Size)/(1<<20))
	}
	if len(report.Excluded) > 0 {
		fmt.Printf("   Excluded %d paths\n", len(report.Excluded))
	}
	return nil
}
