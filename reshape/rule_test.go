package reshape

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// eccoGroup builds a granule shaped like an ECCO Darwin CO2 flux file:
// 0..1439 / 0..720 grid index coordinates, two bookkeeping variables and
// one flux variable carrying a missing-value sentinel.
func eccoGroup(sentinel float32) *fakeGroup {
	const w, h = 1440, 721
	xc := make([]int32, w)
	for i := range xc {
		xc[i] = int32(i)
	}
	yc := make([]int32, h)
	for i := range yc {
		yc[i] = int32(i)
	}
	grid := func() [][]float32 {
		rows := make([][]float32, h)
		for y := range rows {
			row := make([]float32, w)
			for x := range row {
				row[x] = float32(y*10000 + x)
			}
			rows[y] = row
		}
		return rows
	}
	flux := grid()
	flux[5][7] = sentinel
	cube := [][][]float32{flux}
	return &fakeGroup{
		names: []string{"x", "y", "mask", "area", "co2flux"},
		vars: map[string]fakeVar{
			"x":       {values: xc, dims: []string{"x"}},
			"y":       {values: yc, dims: []string{"y"}},
			"mask":    {values: grid(), dims: []string{"y", "x"}},
			"area":    {values: grid(), dims: []string{"y", "x"}},
			"co2flux": {values: cube, dims: []string{"time", "y", "x"}},
		},
	}
}

func TestTransformECCODarwin(t *testing.T) {
	const w, h = 1440, 721
	out, err := Transform(eccoGroup(-999999), "co2flux_2021_01.nc", ECCODarwinRule(-999999))
	if err != nil {
		t.Fatal(err)
	}
	if !assert.Len(t, out, 1) {
		t.FailNow()
	}
	arr, ok := out["co2flux_202101.tif"]
	if !assert.True(t, ok, "expected key co2flux_202101.tif") {
		t.FailNow()
	}

	assert.Equal(t, []string{"time", "latitude", "longitude"}, arr.Dims)
	assert.Equal(t, []int{1, h, w}, arr.Shape)
	assert.Equal(t, "EPSG:4326", arr.CRS)
	assert.Equal(t, "longitude", arr.XDim)
	assert.Equal(t, "latitude", arr.YDim)
	assert.Equal(t, "float32", arr.GoType)
	if assert.NotNil(t, arr.NoData) {
		assert.Equal(t, -9999.0, *arr.NoData)
	}
	assert.True(t, Validate(arr))

	// longitude ascends across -180..180
	lon := arr.Coords["longitude"]
	if assert.Len(t, lon, w) {
		assert.InDelta(t, -180.0, lon[0], 1e-9)
		assert.InDelta(t, 179.75, lon[w-1], 1e-9)
		assert.Less(t, lon[0], lon[1])
	}
	// latitude spans -90..90 and descends: rasters are written north up
	lat := arr.Coords["latitude"]
	if assert.Len(t, lat, h) {
		assert.InDelta(t, 720.0*180.0/721.0-90.0, lat[0], 1e-9)
		assert.InDelta(t, -90.0, lat[h-1], 1e-9)
		assert.Greater(t, lat[0], lat[1])
	}

	// the south-most source row ends up as the bottom raster row
	assert.Equal(t, 0.0, arr.Values[(h-1)*w])
	// the north-east source corner ends up top right
	assert.Equal(t, float64(720*10000+1439), arr.Values[w-1])
	// the sentinel was replaced after the flip
	assert.Equal(t, -9999.0, arr.Values[(h-1-5)*w+7])
	// neighbors are untouched
	assert.Equal(t, float64(5*10000+8), arr.Values[(h-1-5)*w+8])
}

func TestTransformDatasetCustomRule(t *testing.T) {
	g := &fakeGroup{
		names: []string{"lon", "lat", "sst", "wind"},
		vars: map[string]fakeVar{
			"lon": {values: []float64{0, 90, 180, 270}, dims: []string{"lon"}},
			"lat": {values: []float64{-10, 10}, dims: []string{"lat"}},
			"sst": {
				values: [][]float64{{0, 1, -1, 3}, {4, 5, 6, -1}},
				dims:   []string{"lat", "lon"},
				attrs:  fakeAttrs{"_FillValue": []float64{-1}},
			},
			"wind": {values: [][]float64{{0, 0, 0, 0}, {0, 0, 0, 0}}, dims: []string{"lat", "lon"}},
		},
	}
	rule := Rule{
		WrapLongitude:    true,
		ExcludeVars:      []string{"wind"},
		NoDataOut:        -9999,
		CRS:              "EPSG:4326",
		XDim:             "lon",
		YDim:             "lat",
		FilenameTemplate: "{stem}_{var}.tif",
	}
	out, err := Transform(g, "sst_2020_01.nc", rule)
	if err != nil {
		t.Fatal(err)
	}
	if !assert.Len(t, out, 1) {
		t.FailNow()
	}
	arr, ok := out["sst_202001_sst.tif"]
	if !assert.True(t, ok) {
		t.FailNow()
	}
	// wrap permutation moved 180,270 in front of 0,90 on every row, and
	// with no explicit sentinel the _FillValue attribute applies
	assert.Equal(t, []float64{-9999, 3, 0, 1, 6, -9999, 4, 5}, arr.Values)
	assert.Equal(t, []float64{-180, -90, 0, 90}, arr.Coords["lon"])
	assert.True(t, Validate(arr))
}

func TestTransformSelectVars(t *testing.T) {
	r := Rule{SkipLeadingVars: 2}
	got, err := r.selectVars([]string{"a", "b", "c", "d"})
	assert.NoError(t, err)
	assert.Equal(t, []string{"c", "d"}, got)

	r = Rule{SkipLeadingVars: 1, ExcludeVars: []string{"c"}}
	got, err = r.selectVars([]string{"a", "b", "c", "d"})
	assert.NoError(t, err)
	assert.Equal(t, []string{"b", "d"}, got)

	r = Rule{IncludeVars: []string{"b"}}
	got, err = r.selectVars([]string{"a", "b", "c"})
	assert.NoError(t, err)
	assert.Equal(t, []string{"b"}, got)

	r = Rule{IncludeVars: []string{"z"}}
	_, err = r.selectVars([]string{"a", "b"})
	assert.Error(t, err)

	r = Rule{SkipLeadingVars: 5}
	_, err = r.selectVars([]string{"a", "b"})
	assert.Error(t, err)
}

func TestTransformDuplicateFilename(t *testing.T) {
	g := &fakeGroup{
		names: []string{"a", "b"},
		vars: map[string]fakeVar{
			"a": {values: [][]float64{{1, 2}, {3, 4}}, dims: []string{"y", "x"}},
			"b": {values: [][]float64{{1, 2}, {3, 4}}, dims: []string{"y", "x"}},
		},
	}
	// two variables and no {var} placeholder cannot work
	_, err := Transform(g, "data_2020_01.nc", Rule{NoDataOut: -9999})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "{var}")
}

func TestTransformRenameMissingDim(t *testing.T) {
	g := &fakeGroup{
		names: []string{"a"},
		vars: map[string]fakeVar{
			"a": {values: [][]float64{{1, 2}}, dims: []string{"r", "c"}},
		},
	}
	_, err := Transform(g, "data_2020_01.nc", Rule{RenameDims: map[string]string{"y": "latitude"}})
	assert.Error(t, err)
}

func TestRuleFilename(t *testing.T) {
	r := Rule{}
	assert.Equal(t, "stem.tif", r.filename("stem", "v"))
	r = Rule{FilenameTemplate: "{stem}_{var}.tif"}
	assert.Equal(t, "stem_v.tif", r.filename("stem", "v"))
}

func TestLoadRule(t *testing.T) {
	doc := []byte(`
renameDims:
  y: latitude
  x: longitude
coordScales:
  - dim: longitude
    scale: 0.25
    offset: -180
skipLeadingVars: 2
flipDim: latitude
noDataIn: -999999
noDataOut: -9999
crs: EPSG:4326
xDim: longitude
yDim: latitude
`)
	r, err := LoadRule(doc)
	assert.NoError(t, err)
	assert.Equal(t, "latitude", r.RenameDims["y"])
	if assert.Len(t, r.CoordScales, 1) {
		assert.Equal(t, "longitude", r.CoordScales[0].Dim)
		assert.Equal(t, 0.25, r.CoordScales[0].Scale)
		assert.Equal(t, -180.0, r.CoordScales[0].Offset)
	}
	assert.Equal(t, 2, r.SkipLeadingVars)
	assert.Equal(t, "latitude", r.FlipDim)
	if assert.NotNil(t, r.NoDataIn) {
		assert.Equal(t, -999999.0, *r.NoDataIn)
	}
	assert.Equal(t, -9999.0, r.NoDataOut)
	assert.Equal(t, "EPSG:4326", r.CRS)
}

func TestLoadRuleUnknownField(t *testing.T) {
	_, err := LoadRule([]byte("bogus: 1\n"))
	assert.Error(t, err)
}

func TestECCODarwinRule(t *testing.T) {
	r := ECCODarwinRule(-999999)
	assert.Equal(t, "latitude", r.RenameDims["y"])
	assert.Equal(t, "longitude", r.RenameDims["x"])
	assert.Equal(t, 2, r.SkipLeadingVars)
	assert.Equal(t, "latitude", r.FlipDim)
	assert.Equal(t, -9999.0, r.NoDataOut)
	if assert.NotNil(t, r.NoDataIn) {
		assert.Equal(t, -999999.0, *r.NoDataIn)
	}
	assert.InDelta(t, 0.25, r.CoordScales[0].Scale, 1e-12)
}
