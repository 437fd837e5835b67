package tiffmend

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/airbusgeo/godal"
	"github.com/stretchr/testify/assert"
)

func TestReadTagsNonTIFF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "not-a-tiff.tif")
	if err := os.WriteFile(path, []byte("plain text, no tiff header"), 0644); err != nil {
		t.Fatal(err)
	}
	_, err := ReadTags(path)
	assert.Error(t, err)
	assert.True(t, errors.Is(err, ErrTagsUnavailable))
}

func TestReadTagsMissingFile(t *testing.T) {
	_, err := ReadTags(filepath.Join(t.TempDir(), "absent.tif"))
	assert.Error(t, err)
	assert.False(t, errors.Is(err, ErrTagsUnavailable))
}

func TestReadTags(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.tif")
	createTestTIFF(t, path, godal.Int32, 600, 400,
		"COMPRESS=DEFLATE", "PREDICTOR=2", "TILED=YES", "BLOCKXSIZE=256", "BLOCKYSIZE=256")

	tags, err := ReadTags(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(tags) < 1 {
		t.Fatal("no image directory decoded")
	}
	assert.EqualValues(t, 600, tags[0].ImageWidth)
	assert.EqualValues(t, 400, tags[0].ImageLength)
	assert.Equal(t, "DEFLATE", CompressionName(tags[0].Compression))
	assert.EqualValues(t, PredictorHorizontal, tags[0].Predictor)
	assert.EqualValues(t, 256, tags[0].TileWidth)
	assert.EqualValues(t, 256, tags[0].TileLength)
	assert.Equal(t, []uint16{32}, tags[0].BitsPerSample)
	assert.True(t, tags[0].HasPredictor())
}

func TestHasPredictor(t *testing.T) {
	assert.False(t, Tags{Predictor: 0}.HasPredictor())
	assert.False(t, Tags{Predictor: 1}.HasPredictor())
	assert.True(t, Tags{Predictor: 2}.HasPredictor())
	assert.True(t, Tags{Predictor: 3}.HasPredictor())
}

func TestTagsMap(t *testing.T) {
	m := Tags{
		ImageWidth:    1440,
		ImageLength:   721,
		BitsPerSample: []uint16{64},
		Compression:   8,
		Predictor:     2,
		TileWidth:     512,
		TileLength:    512,
	}.Map()
	assert.Equal(t, "DEFLATE (8)", m["Compression"])
	assert.Equal(t, "HORIZONTAL (2)", m["Predictor"])
	assert.Equal(t, "64", m["BitsPerSample"])
	assert.Equal(t, "512", m["TileWidth"])
	assert.NotContains(t, m, "SampleFormat")
	assert.NotContains(t, m, "SamplesPerPixel")
}
