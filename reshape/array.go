// Package reshape converts multi-variable gridded datasets (NetCDF
// granules) into per-variable geographic arrays ready to be written as
// cloud optimized geotiffs: dimensions are renamed to canonical axis
// names, index coordinates become degrees, grids are reordered into
// raster orientation and provider missing-value sentinels are replaced
// with the -9999 convention.
package reshape

import (
	"fmt"
)

// Array is one labeled grid of samples: named dimensions, per-dimension
// coordinates, and the geospatial attributes a raster writer needs.
// Values is row major with Dims[0] varying slowest.
type Array struct {
	Name   string
	Dims   []string
	Shape  []int
	Coords map[string][]float64
	Values []float64
	// GoType is the element type the samples were stored with in the
	// source file, e.g. "float32". Values are always held as float64 in
	// memory; GoType lets a writer restore the narrower type on disk.
	GoType string

	// CRS names the coordinate reference system, e.g. "EPSG:4326".
	// Empty until attached by a transformation.
	CRS string
	// NoData is the missing-value sentinel carried by Values, nil when
	// none has been attached.
	NoData *float64
	// XDim and YDim name the spatial dimensions, empty until attached.
	XDim string
	YDim string
}

// Len returns the number of samples the shape implies.
func (a *Array) Len() int {
	n := 1
	for _, s := range a.Shape {
		n *= s
	}
	return n
}

func (a *Array) axis(dim string) int {
	for i, d := range a.Dims {
		if d == dim {
			return i
		}
	}
	return -1
}

// ReverseDim flips the array along dim, together with that dimension's
// coordinates.
func (a *Array) ReverseDim(dim string) error {
	ax := a.axis(dim)
	if ax < 0 {
		return fmt.Errorf("%s: no dimension %q", a.Name, dim)
	}
	n := a.Shape[ax]
	idx := make([]int, n)
	for i := range idx {
		idx[i] = n - 1 - i
	}
	vals, err := reorderAxis(a.Values, a.Shape, ax, idx)
	if err != nil {
		return fmt.Errorf("%s: %w", a.Name, err)
	}
	a.Values = vals
	if c, ok := a.Coords[dim]; ok {
		rev := make([]float64, n)
		for i := range rev {
			rev[i] = c[n-1-i]
		}
		a.Coords[dim] = rev
	}
	return nil
}

// ReplaceSentinel rewrites every sample equal to in with out.
func (a *Array) ReplaceSentinel(in, out float64) {
	for i, v := range a.Values {
		if v == in {
			a.Values[i] = out
		}
	}
}

// Rescale returns a copy of a with every sample multiplied by scale then
// shifted by offset. The input array is left untouched.
func Rescale(a *Array, scale, offset float64) *Array {
	out := a.clone()
	for i, v := range out.Values {
		out.Values[i] = v*scale + offset
	}
	return out
}

func (a *Array) clone() *Array {
	out := &Array{
		Name:   a.Name,
		Dims:   append([]string(nil), a.Dims...),
		Shape:  append([]int(nil), a.Shape...),
		Coords: make(map[string][]float64, len(a.Coords)),
		Values: append([]float64(nil), a.Values...),
		GoType: a.GoType,
		CRS:    a.CRS,
		XDim:   a.XDim,
		YDim:   a.YDim,
	}
	for d, c := range a.Coords {
		out.Coords[d] = append([]float64(nil), c...)
	}
	if a.NoData != nil {
		nd := *a.NoData
		out.NoData = &nd
	}
	return out
}

// reorderAxis rearranges a row major buffer along one axis so that output
// position i along that axis holds what was at position idx[i].
func reorderAxis(values []float64, shape []int, axis int, idx []int) ([]float64, error) {
	if axis < 0 || axis >= len(shape) {
		return nil, fmt.Errorf("axis %d out of range for %d dimensions", axis, len(shape))
	}
	n := shape[axis]
	if len(idx) != n {
		return nil, fmt.Errorf("index length %d does not match axis length %d", len(idx), n)
	}
	outer, inner := 1, 1
	for _, s := range shape[:axis] {
		outer *= s
	}
	for _, s := range shape[axis+1:] {
		inner *= s
	}
	if outer*n*inner != len(values) {
		return nil, fmt.Errorf("shape %v does not match %d values", shape, len(values))
	}
	out := make([]float64, len(values))
	for o := 0; o < outer; o++ {
		base := o * n * inner
		for i, j := range idx {
			if j < 0 || j >= n {
				return nil, fmt.Errorf("index %d out of range for axis length %d", j, n)
			}
			copy(out[base+i*inner:base+(i+1)*inner], values[base+j*inner:base+(j+1)*inner])
		}
	}
	return out, nil
}
