package reshape

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"sort"

	"github.com/batchatco/go-native-netcdf/netcdf"
	"github.com/batchatco/go-native-netcdf/netcdf/api"
)

// Dataset is an in-memory copy of a gridded multi-variable file:
// variables in file order, dimension lengths, and one coordinate slice
// per dimension. Dimensions without a coordinate variable in the file get
// 0..n-1 index coordinates.
type Dataset struct {
	vars   []variable
	dims   map[string]int
	coords map[string][]float64
}

type variable struct {
	name   string
	dims   []string
	shape  []int
	values []float64
	goType string
	fill   *float64
}

// Open loads the dataset at path. Classic NetCDF and HDF5 based NetCDF4
// files are both handled.
func Open(path string) (*Dataset, error) {
	g, err := netcdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer g.Close()
	return FromGroup(g)
}

// New loads a dataset from an already opened file handle, as handed over
// by an ingestion pipeline. The handle is closed before returning.
func New(r api.ReadSeekerCloser) (*Dataset, error) {
	g, err := netcdf.New(r)
	if err != nil {
		return nil, fmt.Errorf("read dataset: %w", err)
	}
	defer g.Close()
	return FromGroup(g)
}

// FromGroup loads every variable of the group into memory. Sample values
// of any numeric type are widened to float64.
func FromGroup(g api.Group) (*Dataset, error) {
	ds := &Dataset{
		dims:   map[string]int{},
		coords: map[string][]float64{},
	}
	for _, name := range g.ListVariables() {
		v, err := g.GetVariable(name)
		if err != nil {
			return nil, fmt.Errorf("variable %s: %w", name, err)
		}
		shape, values, goType, err := flatten(v.Values)
		if errors.Is(err, errNotNumeric) {
			// label or bounds variables take no part in any grid transform
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("variable %s: %w", name, err)
		}
		if len(shape) != len(v.Dimensions) {
			return nil, fmt.Errorf("variable %s: %d dimensions but rank %d data", name, len(v.Dimensions), len(shape))
		}
		for i, d := range v.Dimensions {
			if n, ok := ds.dims[d]; ok && n != shape[i] {
				return nil, fmt.Errorf("dimension %s: length %d conflicts with %d", d, shape[i], n)
			}
			ds.dims[d] = shape[i]
		}
		ds.vars = append(ds.vars, variable{
			name:   name,
			dims:   append([]string(nil), v.Dimensions...),
			shape:  shape,
			values: values,
			goType: goType,
			fill:   fillAttr(v.Attributes),
		})
	}
	for d, n := range ds.dims {
		ds.coords[d] = indexCoords(n)
	}
	// a 1-d variable named after its dimension is that dimension's
	// coordinate variable
	for _, v := range ds.vars {
		if len(v.dims) == 1 && v.dims[0] == v.name {
			ds.coords[v.name] = append([]float64(nil), v.values...)
		}
	}
	return ds, nil
}

// Vars returns the variable names in file order.
func (d *Dataset) Vars() []string {
	names := make([]string, len(d.vars))
	for i, v := range d.vars {
		names[i] = v.name
	}
	return names
}

// DataVars returns the data variable names in file order, leaving out
// coordinate variables (1-d variables named after their dimension).
func (d *Dataset) DataVars() []string {
	var names []string
	for _, v := range d.vars {
		if len(v.dims) == 1 && v.dims[0] == v.name {
			continue
		}
		names = append(names, v.name)
	}
	return names
}

// DimLen returns the length of dimension dim.
func (d *Dataset) DimLen(dim string) (int, bool) {
	n, ok := d.dims[dim]
	return n, ok
}

// Coords returns the coordinates of dimension dim.
func (d *Dataset) Coords(dim string) ([]float64, bool) {
	c, ok := d.coords[dim]
	return c, ok
}

// RenameDims renames dimensions according to mapping, e.g.
// {"y": "latitude", "x": "longitude"}. Coordinates and variables follow
// the rename. Renaming a dimension the dataset does not have, or onto a
// name it already has, is an error.
func (d *Dataset) RenameDims(mapping map[string]string) error {
	olds := make([]string, 0, len(mapping))
	for o := range mapping {
		olds = append(olds, o)
	}
	sort.Strings(olds)
	for _, old := range olds {
		nw := mapping[old]
		if _, ok := d.dims[old]; !ok {
			return fmt.Errorf("rename %s: no such dimension", old)
		}
		if _, ok := d.dims[nw]; ok {
			return fmt.Errorf("rename %s: dimension %s already exists", old, nw)
		}
		d.dims[nw] = d.dims[old]
		delete(d.dims, old)
		d.coords[nw] = d.coords[old]
		delete(d.coords, old)
		for vi := range d.vars {
			v := &d.vars[vi]
			if v.name == old {
				v.name = nw
			}
			for di, dim := range v.dims {
				if dim == old {
					v.dims[di] = nw
				}
			}
		}
	}
	return nil
}

// ScaleCoord linearly remaps the coordinates of dim (new = old*scale +
// offset), then reorders the whole dataset so that dim's coordinates
// ascend.
func (d *Dataset) ScaleCoord(dim string, scale, offset float64) error {
	c, ok := d.coords[dim]
	if !ok {
		return fmt.Errorf("scale %s: no such dimension", dim)
	}
	scaled := make([]float64, len(c))
	for i, v := range c {
		scaled[i] = v*scale + offset
	}
	d.coords[dim] = scaled
	return d.sortBy(dim)
}

// WrapLongitude remaps a 0..360 longitude axis onto the -180..180
// convention and reorders the dataset so longitudes ascend. The
// "longitude" and "lon" dimension names are recognized; a dataset with
// neither is returned unchanged. Coordinates already in -180..180 map to
// themselves, so applying the wrap twice changes nothing.
func (d *Dataset) WrapLongitude() error {
	for _, dim := range []string{"longitude", "lon"} {
		c, ok := d.coords[dim]
		if !ok {
			continue
		}
		wrapped := make([]float64, len(c))
		for i, v := range c {
			m := math.Mod(v+180, 360)
			if m < 0 {
				m += 360
			}
			wrapped[i] = m - 180
		}
		d.coords[dim] = wrapped
		return d.sortBy(dim)
	}
	return nil
}

// sortBy reorders dim's coordinates ascending and gathers every variable
// carrying dim along the same permutation, keeping samples aligned with
// their coordinates. The sort is stable so duplicate coordinates keep
// their relative order.
func (d *Dataset) sortBy(dim string) error {
	c := d.coords[dim]
	idx := make([]int, len(c))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(i, j int) bool { return c[idx[i]] < c[idx[j]] })
	sorted := make([]float64, len(c))
	for i, j := range idx {
		sorted[i] = c[j]
	}
	d.coords[dim] = sorted
	for vi := range d.vars {
		v := &d.vars[vi]
		ax := -1
		for i, dn := range v.dims {
			if dn == dim {
				ax = i
				break
			}
		}
		if ax < 0 {
			continue
		}
		vals, err := reorderAxis(v.values, v.shape, ax, idx)
		if err != nil {
			return fmt.Errorf("sort %s by %s: %w", v.name, dim, err)
		}
		v.values = vals
	}
	// the coordinate variable, when present, mirrors the remapped
	// coordinates rather than its original samples
	for vi := range d.vars {
		v := &d.vars[vi]
		if v.name == dim && len(v.dims) == 1 && v.dims[0] == dim {
			v.values = append([]float64(nil), d.coords[dim]...)
		}
	}
	return nil
}

// Get returns a standalone copy of one variable together with the
// coordinates of its dimensions.
func (d *Dataset) Get(name string) (*Array, error) {
	for _, v := range d.vars {
		if v.name != name {
			continue
		}
		a := &Array{
			Name:   name,
			Dims:   append([]string(nil), v.dims...),
			Shape:  append([]int(nil), v.shape...),
			Coords: make(map[string][]float64, len(v.dims)),
			Values: append([]float64(nil), v.values...),
			GoType: v.goType,
		}
		for _, dim := range v.dims {
			if c, ok := d.coords[dim]; ok {
				a.Coords[dim] = append([]float64(nil), c...)
			}
		}
		return a, nil
	}
	return nil, fmt.Errorf("no variable %q", name)
}

// fillValue returns the missing-value sentinel declared by the variable's
// attributes, nil when it declares none.
func (d *Dataset) fillValue(name string) *float64 {
	for _, v := range d.vars {
		if v.name == name {
			return v.fill
		}
	}
	return nil
}

// goType returns the Go element type the variable was stored with, e.g.
// "float32" or "int16".
func (d *Dataset) goType(name string) string {
	for _, v := range d.vars {
		if v.name == name {
			return v.goType
		}
	}
	return ""
}

func indexCoords(n int) []float64 {
	c := make([]float64, n)
	for i := range c {
		c[i] = float64(i)
	}
	return c
}

func fillAttr(attrs api.AttributeMap) *float64 {
	if attrs == nil {
		return nil
	}
	for _, key := range []string{"_FillValue", "missing_value"} {
		if raw, has := attrs.Get(key); has {
			if f, ok := asFloat(raw); ok {
				return &f
			}
		}
	}
	return nil
}

// asFloat widens a scalar numeric attribute value (possibly wrapped in a
// length 1 slice) to float64.
func asFloat(v interface{}) (float64, bool) {
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
		if rv.Len() != 1 {
			return 0, false
		}
		rv = rv.Index(0)
	}
	switch rv.Kind() {
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), true
	}
	return 0, false
}

var errNotNumeric = errors.New("not a numeric variable")

// flatten converts the nested slices handed back by the netcdf reader
// into a flat row major float64 buffer plus its shape and the name of the
// element's Go type.
func flatten(v interface{}) ([]int, []float64, string, error) {
	rv := reflect.ValueOf(v)
	var shape []int
	elem := rv
	for elem.Kind() == reflect.Slice || elem.Kind() == reflect.Array {
		shape = append(shape, elem.Len())
		if elem.Len() == 0 {
			break
		}
		elem = elem.Index(0)
	}
	if !numericKind(elem.Kind()) {
		return nil, nil, "", fmt.Errorf("%w: %s samples", errNotNumeric, elem.Kind())
	}
	n := 1
	for _, s := range shape {
		n *= s
	}
	out := make([]float64, 0, n)
	if err := appendFlat(rv, len(shape), &out); err != nil {
		return nil, nil, "", err
	}
	if len(out) != n {
		return nil, nil, "", fmt.Errorf("ragged data for shape %v", shape)
	}
	return shape, out, elem.Kind().String(), nil
}

func appendFlat(rv reflect.Value, depth int, out *[]float64) error {
	if depth == 0 {
		switch rv.Kind() {
		case reflect.Float32, reflect.Float64:
			*out = append(*out, rv.Float())
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			*out = append(*out, float64(rv.Int()))
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			*out = append(*out, float64(rv.Uint()))
		default:
			return fmt.Errorf("unsupported sample type %s", rv.Kind())
		}
		return nil
	}
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return fmt.Errorf("ragged data: %s at depth %d", rv.Kind(), depth)
	}
	for i := 0; i < rv.Len(); i++ {
		if err := appendFlat(rv.Index(i), depth-1, out); err != nil {
			return err
		}
	}
	return nil
}

func numericKind(k reflect.Kind) bool {
	switch k {
	case reflect.Float32, reflect.Float64,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return true
	}
	return false
}
