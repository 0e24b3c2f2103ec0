package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kiesman99/deepzoom/internal/pyramid"
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Show the work plan for a render without computing anything",
	Long: `Validate the rendering configuration and print the resulting work
plan: strip and chunk geometry, the pyramid level layout, and the peak
temporary storage the chunk store will use.

Examples:
  # Plan the default render
  deepzoom plan

  # Plan a gigapixel render
  deepzoom plan --scale 8 --max-iter 2000`,
	RunE: runPlan,
}

func init() {
	rootCmd.AddCommand(planCmd)
	addRenderFlags(planCmd)
}

func runPlan(cmd *cobra.Command, args []string) error {
	bindRenderFlags(cmd)
	opts := optionsFromFlags()
	if err := opts.Validate(); err != nil {
		return err
	}

	out := cmd.OutOrStdout()

	fmt.Fprintf(out, "Resolution:      %dx%d (%.2f megapixels)\n",
		opts.Width, opts.Height, float64(opts.Width)*float64(opts.Height)/1e6)
	fmt.Fprintf(out, "Window:          [%g, %g] x [%g, %g]\n",
		opts.Window.Xmin, opts.Window.Xmax, opts.Window.Ymin, opts.Window.Ymax)
	fmt.Fprintf(out, "Max iterations:  %d\n", opts.MaxIter)
	fmt.Fprintf(out, "Strips:          %d of %d rows\n", opts.Strips(), opts.StripHeight)
	fmt.Fprintf(out, "Chunks/strip:    %d (about %d columns each)\n",
		opts.ChunksPerStrip, (opts.Width+opts.ChunksPerStrip-1)/opts.ChunksPerStrip)

	// One strip of float32 values is on disk at a time; the store never
	// holds more than ChunksPerStrip chunk files.
	peak := int64(opts.Width) * int64(opts.StripHeight) * 4
	fmt.Fprintf(out, "Peak temp store: %s in %d chunk files\n",
		formatBytes(peak), opts.ChunksPerStrip)

	maxLevel := pyramid.MaxLevel(opts.Width, opts.Height)
	fmt.Fprintf(out, "Pyramid levels:  %d (finest level %d)\n",
		pyramid.LevelCount(opts.Width, opts.Height), maxLevel)

	var total int
	for level := maxLevel; level >= 0; level-- {
		lw, lh := pyramid.LevelDims(opts.Width, opts.Height, level, maxLevel)
		cols, rows := pyramid.Grid(lw, lh, opts.TileSize)
		total += cols * rows
		fmt.Fprintf(out, "  level %2d: %6dx%-6d %4d x %-4d tiles\n", level, lw, lh, cols, rows)
	}
	fmt.Fprintf(out, "Total tiles:     %d\n", total)

	return nil
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
