package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kiesman99/deepzoom/internal/fractal"
	"github.com/kiesman99/deepzoom/internal/pyramid"
	"github.com/kiesman99/deepzoom/internal/render"
	"github.com/kiesman99/deepzoom/internal/server"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "deepzoom",
	Short: "Render a Mandelbrot set as a DeepZoom tile pyramid",
	Long: `deepzoom computes an escape-time Mandelbrot rendering in horizontal
strips, colors it, and cuts it into a DeepZoom (DZI) tile pyramid
suitable for OpenSeadragon and other deep-zoom viewers.

The image is never held in memory as a whole: strips are computed in
parallel chunks, spilled to a temporary chunk store, and consumed one
strip at a time. Memory use is bounded by the strip geometry, not by
the output resolution.

Examples:
  # Render the default 1024x768 overview into ./mandelbrot.dzi
  deepzoom

  # Render a 4x gigapixel-scale image with 2000 iterations
  deepzoom --scale 4 --max-iter 2000 --out ./render

  # Zoom into the seahorse valley
  deepzoom --xmin -0.75 --xmax -0.73 --ymin 0.09 --ymax 0.11 --width 4096 --height 4096

  # Preview the work plan without rendering
  deepzoom plan --scale 8

  # Serve a finished pyramid
  deepzoom serve --dir ./render --port 8080`,
	RunE: runRender,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.deepzoom.yaml)")

	addRenderFlags(rootCmd)
}

// addRenderFlags registers the shared rendering flags on a command.
// The plan subcommand reuses the same set, so the flags are bound to
// viper per invocation rather than at init time.
func addRenderFlags(cmd *cobra.Command) {
	// Complex-plane window
	cmd.Flags().Float64("xmin", -2.5, "left edge of the complex window")
	cmd.Flags().Float64("xmax", 1.0, "right edge of the complex window")
	cmd.Flags().Float64("ymin", -1.0, "bottom edge of the complex window")
	cmd.Flags().Float64("ymax", 1.0, "top edge of the complex window")

	// Resolution
	cmd.Flags().Int("width", 1024, "image width in pixels")
	cmd.Flags().Int("height", 768, "image height in pixels")
	cmd.Flags().Int("scale", 0, "render at scale x 10240x7680, overriding --width and --height")

	// Iteration and coloring
	cmd.Flags().Int("max-iter", 750, "escape iteration bound")
	cmd.Flags().Float64("color-ref", 100, "escape value mapped to the last palette color")

	// Streaming geometry
	cmd.Flags().Int("strip-height", 256, "rows per strip")
	cmd.Flags().Int("chunks", 64, "chunks per strip")
	cmd.Flags().IntP("tilesize", "t", 256, "tile size in pixels")
	cmd.Flags().Int("workers", 0, "parallel chunk workers (0 = GOMAXPROCS)")

	// Output
	cmd.Flags().StringP("out", "o", ".", "output directory")
	cmd.Flags().StringP("name", "n", "mandelbrot", "base name for the .dzi and tiles directory")

}

// bindRenderFlags points the viper keys at the invoked command's flag
// set. Binding at init time would leave the keys attached to whichever
// command registered last.
func bindRenderFlags(cmd *cobra.Command) {
	viper.BindPFlag("xmin", cmd.Flags().Lookup("xmin"))
	viper.BindPFlag("xmax", cmd.Flags().Lookup("xmax"))
	viper.BindPFlag("ymin", cmd.Flags().Lookup("ymin"))
	viper.BindPFlag("ymax", cmd.Flags().Lookup("ymax"))
	viper.BindPFlag("width", cmd.Flags().Lookup("width"))
	viper.BindPFlag("height", cmd.Flags().Lookup("height"))
	viper.BindPFlag("scale", cmd.Flags().Lookup("scale"))
	viper.BindPFlag("max-iter", cmd.Flags().Lookup("max-iter"))
	viper.BindPFlag("color-ref", cmd.Flags().Lookup("color-ref"))
	viper.BindPFlag("strip-height", cmd.Flags().Lookup("strip-height"))
	viper.BindPFlag("chunks", cmd.Flags().Lookup("chunks"))
	viper.BindPFlag("tilesize", cmd.Flags().Lookup("tilesize"))
	viper.BindPFlag("workers", cmd.Flags().Lookup("workers"))
	viper.BindPFlag("out", cmd.Flags().Lookup("out"))
	viper.BindPFlag("name", cmd.Flags().Lookup("name"))
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory.
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		// Search config in home directory with name ".deepzoom" (without extension).
		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".deepzoom")
	}

	viper.AutomaticEnv() // read in environment variables that match

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// optionsFromFlags assembles render options from the bound viper keys.
func optionsFromFlags() render.Options {
	width := viper.GetInt("width")
	height := viper.GetInt("height")
	if scale := viper.GetInt("scale"); scale > 0 {
		width = scale * 10240
		height = scale * 7680
	}

	return render.Options{
		Window: fractal.Window{
			Xmin: viper.GetFloat64("xmin"),
			Xmax: viper.GetFloat64("xmax"),
			Ymin: viper.GetFloat64("ymin"),
			Ymax: viper.GetFloat64("ymax"),
		},
		Width:          width,
		Height:         height,
		MaxIter:        viper.GetInt("max-iter"),
		StripHeight:    viper.GetInt("strip-height"),
		ChunksPerStrip: viper.GetInt("chunks"),
		TileSize:       viper.GetInt("tilesize"),
		Workers:        viper.GetInt("workers"),
		ColorReference: viper.GetFloat64("color-ref"),
		OutDir:         viper.GetString("out"),
		Name:           viper.GetString("name"),
	}
}

func runRender(cmd *cobra.Command, args []string) error {
	bindRenderFlags(cmd)
	opts := optionsFromFlags()
	if err := opts.Validate(); err != nil {
		return err
	}

	// Cancel the pipeline on Ctrl-C instead of leaving a half-written
	// chunk store behind.
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	r := render.New(opts)
	r.Reporter = newProgressReporter(cmd.ErrOrStderr())

	fmt.Fprintf(cmd.ErrOrStderr(), "Rendering %dx%d (%d strips, max-iter %d) into %s\n",
		opts.Width, opts.Height, opts.Strips(), opts.MaxIter, opts.OutDir)

	if err := r.Render(ctx); err != nil {
		return err
	}

	d := pyramid.NewDescriptor(opts.Width, opts.Height, opts.TileSize)
	if err := server.WriteViewer(opts.OutDir, opts.Name, d, opts.MaxIter); err != nil {
		return fmt.Errorf("writing viewer page: %v", err)
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "Done: %s.dzi with %d levels\n",
		opts.Name, pyramid.LevelCount(opts.Width, opts.Height))
	return nil
}
