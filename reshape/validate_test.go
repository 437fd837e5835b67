package reshape

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func validArray() *Array {
	nd := -9999.0
	return &Array{
		Name:  "v",
		Dims:  []string{"latitude", "longitude"},
		Shape: []int{2, 3},
		Coords: map[string][]float64{
			"latitude":  {10, 0},
			"longitude": {-1, 0, 1},
		},
		Values: make([]float64, 6),
		CRS:    "EPSG:4326",
		NoData: &nd,
		XDim:   "longitude",
		YDim:   "latitude",
	}
}

func TestValidate(t *testing.T) {
	assert.True(t, Validate(validArray()))

	assert.False(t, Validate(nil))

	a := validArray()
	a.CRS = ""
	assert.False(t, Validate(a))

	a = validArray()
	a.XDim = ""
	assert.False(t, Validate(a))

	a = validArray()
	a.YDim = "lat"
	assert.False(t, Validate(a))

	a = validArray()
	a.NoData = nil
	assert.False(t, Validate(a))

	a = validArray()
	delete(a.Coords, "longitude")
	assert.False(t, Validate(a))

	a = validArray()
	a.Values = a.Values[:4]
	assert.False(t, Validate(a))

	a = validArray()
	a.Dims = []string{"longitude"}
	a.Shape = []int{3}
	a.Values = make([]float64, 3)
	assert.False(t, Validate(a))
}
