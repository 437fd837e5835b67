package tiffmend

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/airbusgeo/cogger"
	"github.com/airbusgeo/godal"
	"github.com/alessio/shellescape"
	"github.com/google/uuid"
)

type ErrInvalidOption struct {
	msg string
}

func (err ErrInvalidOption) Error() string {
	return err.msg
}

type repairConfig struct {
	codec      Codec
	output     string
	cog        bool
	switches   []string
	configOpts []string
	progress   io.Writer
}

func defaultRepairConfig() repairConfig {
	return repairConfig{
		codec:    CodecDeflate,
		progress: io.Discard,
	}
}

// RepairOption is an option that can be passed to Repair() or RepairDir()
type RepairOption func(cfg *repairConfig) error

// Compression selects the output codec. Whatever the codec, the repair
// always writes the output with the predictor disabled.
func Compression(c Codec) RepairOption {
	return func(cfg *repairConfig) error {
		cc, err := ParseCodec(string(c))
		if err != nil {
			return ErrInvalidOption{err.Error()}
		}
		cfg.codec = cc
		return nil
	}
}

// OutputPath sets the destination of a single file repair. The default is
// DefaultOutputPath(input). Not applicable to directory repairs.
func OutputPath(path string) RepairOption {
	return func(cfg *repairConfig) error {
		if path == "" {
			return ErrInvalidOption{"empty output path"}
		}
		cfg.output = path
		return nil
	}
}

// CogLayout additionally rewrites the repaired file with a cloud optimized
// internal layout (header first, tile data in overview-last order).
func CogLayout() RepairOption {
	return func(cfg *repairConfig) error {
		cfg.cog = true
		return nil
	}
}

// TranslateSwitches appends extra gdal_translate switches to the repair
// re-encoding, e.g. "-a_nodata", "-9999". Switches that would change the
// format, geometry or pixel content of the copy are refused: a repair must
// be a full copy of the source raster.
func TranslateSwitches(switches ...string) RepairOption {
	return func(cfg *repairConfig) error {
		for _, sw := range switches {
			switch sw {
			case "-of", "-ot", "-expand", "-outsize", "-tr", "-r",
				"-srcwin", "-projwin", "-projwin_srs", "-sds", "-b":
				return ErrInvalidOption{fmt.Sprintf("switch %s not allowed: a repair must copy the full raster", sw)}
			}
		}
		cfg.switches = append(cfg.switches, switches...)
		return nil
	}
}

// ConfigOptions sets gdal configuration options for the repair, e.g.
// "GDAL_CACHEMAX=512".
func ConfigOptions(opts ...string) RepairOption {
	return func(cfg *repairConfig) error {
		for _, o := range opts {
			if !strings.Contains(o, "=") {
				return ErrInvalidOption{fmt.Sprintf("config option %q not in KEY=VALUE form", o)}
			}
		}
		cfg.configOpts = append(cfg.configOpts, opts...)
		return nil
	}
}

// Progress directs human readable progress lines to w. The default
// discards them.
func Progress(w io.Writer) RepairOption {
	return func(cfg *repairConfig) error {
		if w == nil {
			return ErrInvalidOption{"nil progress writer"}
		}
		cfg.progress = w
		return nil
	}
}

// Result describes a completed single file repair.
type Result struct {
	Input    string
	Output   string
	Codec    Codec
	Verified bool
	Elapsed  time.Duration
}

// DefaultOutputPath returns the output naming convention for repaired
// files: the input path with "_fixed" inserted before the extension.
func DefaultOutputPath(input string) string {
	ext := filepath.Ext(input)
	return strings.TrimSuffix(input, ext) + "_fixed" + ext
}

// Repair re-encodes the raster at input into a new file whose compression
// is usable by readers that choke on predictor-encoded 64 bit samples: the
// output keeps the source's pixels, bands, georeferencing and metadata but
// is written with the predictor disabled, tiled 512x512, as BigTIFF. The
// source file is never modified.
//
// The output is written to a scratch name next to the destination and only
// renamed into place once fully written, so a failed repair cannot leave a
// partial file at the output path. Before returning, the output is
// re-opened and a pixel window is read back to make sure the repaired file
// is actually decodable; an output failing that check is reported as an
// error.
func Repair(input string, opts ...RepairOption) (Result, error) {
	cfg := defaultRepairConfig()
	for _, o := range opts {
		if err := o(&cfg); err != nil {
			return Result{}, err
		}
	}

	start := time.Now()
	output := cfg.output
	if output == "" {
		output = DefaultOutputPath(input)
	}
	res := Result{Input: input, Output: output, Codec: cfg.codec}

	fmt.Fprintf(cfg.progress, "Processing: %s\n", input)
	fmt.Fprintf(cfg.progress, "Output: %s\n", output)

	src, err := godal.Open(input, godal.RasterOnly())
	if err != nil {
		return res, fmt.Errorf("open %s: %w", input, err)
	}

	copts := cfg.codec.CreationOptions()
	fmt.Fprintf(cfg.progress, "Compression: %s (predictor disabled)\n", cfg.codec)

	tmp := partialName(output)
	dst, err := src.Translate(tmp, cfg.switches,
		godal.CreationOption(copts...),
		godal.ConfigOption(cfg.configOpts...),
		godal.GTiff)
	if err != nil {
		src.Close()
		os.Remove(tmp)
		return res, fmt.Errorf("translate %s: %w", input, err)
	}
	if err := dst.Close(); err != nil {
		src.Close()
		os.Remove(tmp)
		return res, fmt.Errorf("flush %s: %w", output, err)
	}
	if err := src.Close(); err != nil {
		os.Remove(tmp)
		return res, fmt.Errorf("close %s: %w", input, err)
	}

	if cfg.cog {
		fmt.Fprintf(cfg.progress, "Rewriting with cloud optimized layout\n")
		if err := cogify(tmp); err != nil {
			os.Remove(tmp)
			return res, fmt.Errorf("cog layout: %w", err)
		}
	}

	if err := os.Rename(tmp, output); err != nil {
		os.Remove(tmp)
		return res, fmt.Errorf("rename to %s: %w", output, err)
	}
	fmt.Fprintf(cfg.progress, "Created: %s\n", output)

	if err := verify(output); err != nil {
		// the file stays on disk for post-mortem, but the repair failed
		fmt.Fprintf(cfg.progress, "Warning: %s failed verification: %s\n", output, err.Error())
		return res, fmt.Errorf("verify %s: %w", output, err)
	}
	res.Verified = true
	res.Elapsed = time.Since(start)
	fmt.Fprintf(cfg.progress, "Verified: output reads back correctly\n")
	return res, nil
}

// Outcome is the result of one file of a directory repair.
type Outcome struct {
	Input string
	Err   error
}

// BatchResult summarizes a directory repair.
type BatchResult struct {
	Attempted int
	Succeeded int
	Outcomes  []Outcome
}

// RepairDir repairs every file directly under dir whose base name matches
// pattern (shell glob syntax, "*.tif" when empty), one file at a time in
// lexical order. A file that fails to repair does not stop the batch: its
// error is recorded in the returned BatchResult and processing moves on to
// the next file.
func RepairDir(dir, pattern string, opts ...RepairOption) (BatchResult, error) {
	cfg := defaultRepairConfig()
	for _, o := range opts {
		if err := o(&cfg); err != nil {
			return BatchResult{}, err
		}
	}
	if cfg.output != "" {
		return BatchResult{}, ErrInvalidOption{"OutputPath cannot apply to a directory repair"}
	}
	if pattern == "" {
		pattern = "*.tif"
	}
	st, err := os.Stat(dir)
	if err != nil {
		return BatchResult{}, fmt.Errorf("open %s: %w", dir, err)
	}
	if !st.IsDir() {
		return BatchResult{}, fmt.Errorf("%s is not a directory", dir)
	}
	files, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return BatchResult{}, fmt.Errorf("bad pattern %q: %w", pattern, err)
	}

	fmt.Fprintf(cfg.progress, "Found %d files to process\n", len(files))
	res := BatchResult{}
	for _, f := range files {
		fmt.Fprintf(cfg.progress, "%s\n", strings.Repeat("-", 50))
		_, ferr := Repair(f, opts...)
		res.Attempted++
		if ferr == nil {
			res.Succeeded++
		} else {
			fmt.Fprintf(cfg.progress, "Failed: %s: %s\n", f, ferr.Error())
		}
		res.Outcomes = append(res.Outcomes, Outcome{Input: f, Err: ferr})
	}
	fmt.Fprintf(cfg.progress, "%s\n", strings.Repeat("-", 50))
	fmt.Fprintf(cfg.progress, "Processed %d/%d files successfully\n", res.Succeeded, res.Attempted)
	return res, nil
}

// EquivalentCommand returns the gdal_translate invocation equivalent to a
// repair, quoted for a shell, so an operator can replay it by hand.
func EquivalentCommand(input, output string, c Codec, switches ...string) string {
	args := []string{"gdal_translate", input, output}
	for _, co := range c.CreationOptions() {
		args = append(args, "-co", co)
	}
	args = append(args, switches...)
	return shellescape.QuoteCommand(args)
}

// verify re-opens path, reads back a bounded pixel window from the first
// band, and checks that no image directory still carries an active
// predictor.
func verify(path string) error {
	ds, err := godal.Open(path, godal.RasterOnly())
	if err != nil {
		return fmt.Errorf("reopen: %w", err)
	}
	defer ds.Close()
	bands := ds.Bands()
	if len(bands) == 0 {
		return fmt.Errorf("no bands")
	}
	bst := bands[0].Structure()
	w, h := bst.SizeX, bst.SizeY
	if w > 100 {
		w = 100
	}
	if h > 100 {
		h = 100
	}
	buf := make([]float64, w*h)
	if err := bands[0].Read(0, 0, buf, w, h); err != nil {
		return fmt.Errorf("read %dx%d window: %w", w, h, err)
	}
	tags, err := ReadTags(path)
	if err != nil {
		return err
	}
	for i, t := range tags {
		if t.HasPredictor() {
			return fmt.Errorf("directory %d still carries predictor %s", i, PredictorName(Predictor(t.Predictor)))
		}
	}
	return nil
}

// cogify rewrites the tiff at path in place with a cloud optimized layout.
func cogify(path string) error {
	in, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	tmp := path + ".cog"
	out, err := os.Create(tmp)
	if err != nil {
		in.Close()
		return fmt.Errorf("create %s: %w", tmp, err)
	}
	err = cogger.DefaultConfig().Rewrite(out, in)
	in.Close()
	if err != nil {
		out.Close()
		os.Remove(tmp)
		return fmt.Errorf("rewrite: %w", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close %s: %w", tmp, err)
	}
	return os.Rename(tmp, path)
}

func partialName(output string) string {
	return filepath.Join(filepath.Dir(output),
		fmt.Sprintf(".%s.partial-%s", filepath.Base(output), uuid.New().String()))
}
