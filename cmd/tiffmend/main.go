package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"cloud.google.com/go/storage"
	"github.com/airbusgeo/godal"
	"github.com/airbusgeo/osio"
	"github.com/airbusgeo/osio/gcs"
	"github.com/airbusgeo/tiffmend"
	shellwords "github.com/mattn/go-shellwords"
	"github.com/spf13/cobra"
	adst "go.airbusds-geo.com/gcp/storage"
	"go.airbusds-geo.com/log"
)

var stcl *storage.Client
var adstcl *adst.Client

var output string
var compression string
var dirMode bool
var pattern string
var cogLayout bool
var switches string
var configOpts []string
var verbose bool
var blocksize string
var numCachedBlocks int
var startTime time.Time

var parsedSwitches []string

var rootCmd = &cobra.Command{
	Use:   "tiffmend input.tif",
	Short: "recompress tiff files whose predictor encoding breaks 64 bit readers",
	Long: `tiffmend rewrites a tiff with its predictor disabled, keeping pixels,
georeferencing and metadata intact. Some readers cannot decode predictor
encoded 64 bit samples; the repaired copy reads everywhere.`,
	Args: cobra.ExactArgs(1),
	CompletionOptions: cobra.CompletionOptions{
		DisableDefaultCmd: true,
	},
	SilenceUsage: true,

	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		startTime = time.Now()
		if !verbose {
			os.Setenv("LOGLEVEL", "info")
			log.Structured()
		}
		var err error
		if parsedSwitches, err = shellwords.Parse(switches); err != nil {
			return fmt.Errorf("invalid switches: %w", err)
		}
		if needsGCS(args) {
			if err := enableGCS(cmd.Context()); err != nil {
				return err
			}
		}
		tiffmend.Setup()
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, _ []string) {
		log.Logger(cmd.Context()).Sugar().Debugf("command %s took %.1fs",
			cmd.Name(), time.Since(startTime).Seconds())
	},

	RunE: func(cmd *cobra.Command, args []string) error {
		codec, err := tiffmend.ParseCodec(compression)
		if err != nil {
			return err
		}
		opts := []tiffmend.RepairOption{
			tiffmend.Compression(codec),
			tiffmend.Progress(os.Stdout),
		}
		if cogLayout {
			opts = append(opts, tiffmend.CogLayout())
		}
		if len(parsedSwitches) > 0 {
			opts = append(opts, tiffmend.TranslateSwitches(parsedSwitches...))
		}
		if len(configOpts) > 0 {
			opts = append(opts, tiffmend.ConfigOptions(configOpts...))
		}
		if dirMode {
			return repairDirectory(cmd.Context(), args[0], opts)
		}
		return repairFile(cmd.Context(), args[0], codec, opts)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVarP(&compression, "compression", "c", "DEFLATE", "output compression: NONE, LZW, DEFLATE or ZSTD")
	rootCmd.PersistentFlags().StringVarP(&pattern, "pattern", "p", "*.tif", "file pattern for directory mode")
	rootCmd.PersistentFlags().StringVar(&switches, "switches", "", "extra gdal_translate switches, e.g: \"-a_nodata -9999\"")
	rootCmd.PersistentFlags().StringVar(&blocksize, "blocksize", "512k", "gs cache blocksize")
	rootCmd.PersistentFlags().IntVar(&numCachedBlocks, "numblocks", 500, "number of gs cached blocks")

	rootCmd.Flags().StringVarP(&output, "output", "o", "", "output file (default <input>_fixed.<ext>)")
	rootCmd.Flags().BoolVarP(&dirMode, "directory", "d", false, "treat input as a directory and repair every matching file")
	rootCmd.Flags().BoolVar(&cogLayout, "cog", false, "rewrite the repaired file with a cloud optimized layout")
	rootCmd.Flags().StringArrayVar(&configOpts, "config", nil, "gdal configuration options")

	rootCmd.AddCommand(planCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func repairFile(ctx context.Context, input string, codec tiffmend.Codec, opts []tiffmend.RepairOption) error {
	if !strings.HasPrefix(input, "gs://") {
		st, err := os.Stat(input)
		if err != nil {
			return fmt.Errorf("open %s: %w", input, err)
		}
		if st.IsDir() {
			return fmt.Errorf("%s is a directory, use --directory", input)
		}
	}
	dst := output
	if dst == "" {
		dst = tiffmend.DefaultOutputPath(input)
	}
	if verbose {
		log.Logger(ctx).Sugar().Debugf("equivalent command: %s",
			tiffmend.EquivalentCommand(input, dst, codec, parsedSwitches...))
	}
	if strings.HasPrefix(dst, "gs://") {
		tmpf, err := os.CreateTemp("", "tiffmend-*.tif")
		if err != nil {
			return fmt.Errorf("create temp file: %w", err)
		}
		tmpf.Close()
		defer os.Remove(tmpf.Name())
		o := append(opts, tiffmend.OutputPath(tmpf.Name()))
		if _, err := tiffmend.Repair(input, o...); err != nil {
			return err
		}
		if err := adstcl.UploadFromFile(ctx, dst, tmpf.Name()); err != nil {
			return fmt.Errorf("upload %s: %w", dst, err)
		}
		fmt.Println("Uploaded:", dst)
		return nil
	}
	if output != "" {
		opts = append(opts, tiffmend.OutputPath(output))
	}
	_, err := tiffmend.Repair(input, opts...)
	return err
}

// repairDirectory reports per-file outcomes and aggregate counts through
// the progress writer. A partial batch failure is not an error: the batch
// completed and the counts tell the story.
func repairDirectory(ctx context.Context, dir string, opts []tiffmend.RepairOption) error {
	if output != "" {
		return fmt.Errorf("--output cannot be combined with --directory")
	}
	res, err := tiffmend.RepairDir(dir, pattern, opts...)
	if err != nil {
		return err
	}
	if res.Succeeded < res.Attempted {
		log.Logger(ctx).Sugar().Warnf("%d of %d files failed",
			res.Attempted-res.Succeeded, res.Attempted)
	}
	return nil
}

func needsGCS(args []string) bool {
	for _, a := range args {
		if strings.HasPrefix(a, "gs://") {
			return true
		}
	}
	return strings.HasPrefix(output, "gs://")
}

func enableGCS(ctx context.Context) error {
	var err error
	if stcl, err = storage.NewClient(ctx); err != nil {
		return fmt.Errorf("storage.newclient: %w", err)
	}
	if adstcl, err = adst.New(ctx, adst.WithStorageClient(stcl)); err != nil {
		return fmt.Errorf("ads storage.new: %w", err)
	}
	gcsh, err := gcs.Handle(ctx, gcs.GCSClient(stcl))
	if err != nil {
		return fmt.Errorf("gcs.handle: %w", err)
	}
	gcsa, err := osio.NewAdapter(gcsh, osio.BlockSize(blocksize), osio.NumCachedBlocks(numCachedBlocks))
	if err != nil {
		return fmt.Errorf("osio.new: %w", err)
	}
	if err := godal.RegisterVSIHandler("gs://", gcsa); err != nil {
		return fmt.Errorf("register osio: %w", err)
	}
	return nil
}
