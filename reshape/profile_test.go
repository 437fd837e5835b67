package reshape

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProfile(t *testing.T) {
	for _, goType := range []string{"float32", "float64", ""} {
		opts := Profile(goType)
		assert.Contains(t, opts, "PREDICTOR=1", goType)
		assert.Contains(t, opts, "BIGTIFF=YES", goType)
		assert.NotContains(t, opts, "PREDICTOR=2", goType)
	}
	for _, goType := range []string{"int16", "int32", "uint8"} {
		opts := Profile(goType)
		assert.Contains(t, opts, "PREDICTOR=2", goType)
		assert.NotContains(t, opts, "PREDICTOR=1", goType)
	}
	for _, goType := range []string{"float64", "int16", ""} {
		opts := Profile(goType)
		assert.Contains(t, opts, "COMPRESS=DEFLATE", goType)
		assert.Contains(t, opts, "TILED=YES", goType)
		assert.Contains(t, opts, "BLOCKXSIZE=512", goType)
		assert.Contains(t, opts, "BLOCKYSIZE=512", goType)
	}
}
