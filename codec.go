package tiffmend

import (
	"fmt"
	"strings"
)

// Codec is one of the compression schemes a repaired file can be encoded
// with.
type Codec string

const (
	CodecNone    Codec = "NONE"
	CodecLZW     Codec = "LZW"
	CodecDeflate Codec = "DEFLATE"
	CodecZSTD    Codec = "ZSTD"
)

// ParseCodec returns the Codec named by s (case insensitive).
func ParseCodec(s string) (Codec, error) {
	switch Codec(strings.ToUpper(strings.TrimSpace(s))) {
	case CodecNone:
		return CodecNone, nil
	case CodecLZW:
		return CodecLZW, nil
	case CodecDeflate:
		return CodecDeflate, nil
	case CodecZSTD:
		return CodecZSTD, nil
	}
	return "", fmt.Errorf("unknown compression %q (expecting NONE, LZW, DEFLATE or ZSTD)", s)
}

// CreationOptions returns the GTiff creation options of a repair encoding:
// the chosen codec, the predictor explicitly disabled, 512x512 internal
// tiling and BigTIFF offsets. The source file's predictor setting is never
// propagated: horizontal differencing combined with 64 bit samples produces
// files some readers cannot decode, which is the defect being repaired.
func (c Codec) CreationOptions() []string {
	opts := []string{
		"COMPRESS=" + string(c),
		"PREDICTOR=1",
		"TILED=YES",
		"BLOCKXSIZE=512",
		"BLOCKYSIZE=512",
		"BIGTIFF=YES",
	}
	if c == CodecDeflate {
		opts = append(opts, "ZLEVEL=6")
	}
	return opts
}

// Predictor is the value of TIFF tag 317.
type Predictor uint16

const (
	PredictorNone          Predictor = 1
	PredictorHorizontal    Predictor = 2
	PredictorFloatingPoint Predictor = 3
)

// PredictorName returns the symbolic name of a predictor tag value. Tag
// value 0 means the tag was absent, which readers treat as none.
func PredictorName(p Predictor) string {
	switch p {
	case 0, PredictorNone:
		return "NONE"
	case PredictorHorizontal:
		return "HORIZONTAL"
	case PredictorFloatingPoint:
		return "FLOATINGPOINT"
	}
	return fmt.Sprintf("UNKNOWN(%d)", uint16(p))
}

// CompressionName returns the symbolic name of a TIFF compression tag
// value (tag 259).
func CompressionName(code uint16) string {
	switch code {
	case 0, 1:
		return "NONE"
	case 5:
		return "LZW"
	case 6, 7:
		return "JPEG"
	case 8, 32946:
		return "DEFLATE"
	case 32773:
		return "PACKBITS"
	case 34712:
		return "JPEG2000"
	case 34887:
		return "LERC"
	case 50000:
		return "ZSTD"
	case 50001:
		return "WEBP"
	case 50002:
		return "JXL"
	}
	return fmt.Sprintf("UNKNOWN(%d)", code)
}
