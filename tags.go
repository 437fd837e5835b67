package tiffmend

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/google/tiff"
	_ "github.com/google/tiff/bigtiff"
)

// ErrTagsUnavailable is returned when a file carries no parseable TIFF tag
// directory, typically because it is not a TIFF at all.
var ErrTagsUnavailable = errors.New("tiff tags unavailable")

// Tags is the decoded view of the tags of one image directory that matter
// when diagnosing compression problems. Zero values mean the tag was
// absent from the directory.
type Tags struct {
	ImageWidth      uint64   `tiff:"field,tag=256"`
	ImageLength     uint64   `tiff:"field,tag=257"`
	BitsPerSample   []uint16 `tiff:"field,tag=258"`
	Compression     uint16   `tiff:"field,tag=259"`
	SamplesPerPixel uint16   `tiff:"field,tag=277"`
	Predictor       uint16   `tiff:"field,tag=317"`
	TileWidth       uint16   `tiff:"field,tag=322"`
	TileLength      uint16   `tiff:"field,tag=323"`
	SampleFormat    []uint16 `tiff:"field,tag=339"`
}

// ReadTags parses path as a (Big)TIFF and returns the tag view of each of
// its image directories, full resolution image first. A file that cannot
// be parsed as a TIFF returns an error wrapping ErrTagsUnavailable.
func ReadTags(path string) ([]Tags, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	t, err := tiff.Parse(f, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %s", ErrTagsUnavailable, path, err.Error())
	}
	ifds := t.IFDs()
	tags := make([]Tags, len(ifds))
	for i, ifd := range ifds {
		if err := tiff.UnmarshalIFD(ifd, &tags[i]); err != nil {
			return nil, fmt.Errorf("%s: directory %d: %w", path, i, err)
		}
	}
	return tags, nil
}

// HasPredictor reports whether the directory carries an active predictor
// (horizontal differencing or floating point prediction).
func (t Tags) HasPredictor() bool {
	return t.Predictor > uint16(PredictorNone)
}

// Map renders the present tags as name/value pairs for reporting.
func (t Tags) Map() map[string]string {
	m := map[string]string{}
	if t.ImageWidth > 0 {
		m["ImageWidth"] = fmt.Sprintf("%d", t.ImageWidth)
	}
	if t.ImageLength > 0 {
		m["ImageLength"] = fmt.Sprintf("%d", t.ImageLength)
	}
	if len(t.BitsPerSample) > 0 {
		m["BitsPerSample"] = joinUint16(t.BitsPerSample)
	}
	if t.Compression > 0 {
		m["Compression"] = fmt.Sprintf("%s (%d)", CompressionName(t.Compression), t.Compression)
	}
	if t.SamplesPerPixel > 0 {
		m["SamplesPerPixel"] = fmt.Sprintf("%d", t.SamplesPerPixel)
	}
	if t.Predictor > 0 {
		m["Predictor"] = fmt.Sprintf("%s (%d)", PredictorName(Predictor(t.Predictor)), t.Predictor)
	}
	if t.TileWidth > 0 {
		m["TileWidth"] = fmt.Sprintf("%d", t.TileWidth)
	}
	if t.TileLength > 0 {
		m["TileLength"] = fmt.Sprintf("%d", t.TileLength)
	}
	if len(t.SampleFormat) > 0 {
		m["SampleFormat"] = joinUint16(t.SampleFormat)
	}
	return m
}

func joinUint16(vals []uint16) string {
	strs := make([]string, len(vals))
	for i, v := range vals {
		strs[i] = fmt.Sprintf("%d", v)
	}
	return strings.Join(strs, ",")
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
