package tiffmend

import (
	"errors"
	"fmt"
	"strings"

	"github.com/airbusgeo/godal"
)

// BandInfo describes one raster band of an inspected file.
type BandInfo struct {
	Index      int
	DataType   string
	BlockSizeX int
	BlockSizeY int
}

// Report is the structured result of inspecting one raster file.
type Report struct {
	Path      string
	Driver    string
	SizeX     int
	SizeY     int
	BandCount int
	Bands     []BandInfo
	// ImageStructure is the dataset's IMAGE_STRUCTURE metadata domain
	// (compression, interleaving) as exposed by the raster library.
	ImageStructure map[string]string
	// Tags holds the raw TIFF tag view of each image directory, full
	// resolution first. Empty when the file is not a TIFF.
	Tags []Tags
}

// Inspect opens path read-only and gathers the structural facts needed to
// diagnose compression and predictor problems: raster structure and
// metadata through the raster library, plus the raw tag directories of
// TIFF inputs. The file is never modified.
func Inspect(path string) (*Report, error) {
	ds, err := godal.Open(path, godal.RasterOnly())
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer ds.Close()

	st := ds.Structure()
	rep := &Report{
		Path:      path,
		SizeX:     st.SizeX,
		SizeY:     st.SizeY,
		BandCount: st.NBands,
	}
	for i, band := range ds.Bands() {
		bst := band.Structure()
		rep.Bands = append(rep.Bands, BandInfo{
			Index:      i + 1,
			DataType:   bst.DataType.String(),
			BlockSizeX: bst.BlockSizeX,
			BlockSizeY: bst.BlockSizeY,
		})
	}
	rep.ImageStructure = ds.Metadatas(godal.Domain("IMAGE_STRUCTURE"))

	tags, err := ReadTags(path)
	switch {
	case err == nil:
		rep.Driver = "GTiff/GeoTIFF"
		rep.Tags = tags
	case errors.Is(err, ErrTagsUnavailable):
		// readable raster but not a tiff: no tag section in the report
		rep.Driver = "unknown"
	default:
		return nil, err
	}
	return rep, nil
}

// HasPredictor reports whether any image directory of the inspected file
// carries an active predictor.
func (r *Report) HasPredictor() bool {
	for _, t := range r.Tags {
		if t.HasPredictor() {
			return true
		}
	}
	return false
}

// Text renders the report as the diagnostic listing printed by tiffcheck.
func (r *Report) Text() string {
	sb := &strings.Builder{}
	fmt.Fprintf(sb, "Checking: %s\n", r.Path)
	fmt.Fprintf(sb, "%s\n", strings.Repeat("-", 50))
	fmt.Fprintf(sb, "Driver: %s\n", r.Driver)
	fmt.Fprintf(sb, "Size: %d x %d x %d\n", r.SizeX, r.SizeY, r.BandCount)
	for _, b := range r.Bands {
		fmt.Fprintf(sb, "\nBand %d:\n", b.Index)
		fmt.Fprintf(sb, "  Data Type: %s\n", b.DataType)
		fmt.Fprintf(sb, "  Block Size: %d x %d\n", b.BlockSizeX, b.BlockSizeY)
	}
	if len(r.ImageStructure) > 0 {
		fmt.Fprintf(sb, "\nImage Structure Metadata:\n")
		for _, k := range sortedKeys(r.ImageStructure) {
			fmt.Fprintf(sb, "  %s: %s\n", k, r.ImageStructure[k])
		}
	}
	for i, t := range r.Tags {
		if i == 0 {
			fmt.Fprintf(sb, "\nTIFF Tags:\n")
		} else {
			fmt.Fprintf(sb, "\nTIFF Tags (directory %d):\n", i)
		}
		m := t.Map()
		for _, k := range sortedKeys(m) {
			fmt.Fprintf(sb, "  %s: %s\n", k, m[k])
		}
	}
	return sb.String()
}
