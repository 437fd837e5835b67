package reshape

import (
	"fmt"
	"strings"

	"github.com/batchatco/go-native-netcdf/netcdf"
	"github.com/batchatco/go-native-netcdf/netcdf/api"
	"sigs.k8s.io/yaml"
)

// CoordScale is a linear remapping of one dimension's coordinates from
// index space to geographic space: new = old*Scale + Offset.
type CoordScale struct {
	Dim    string  `json:"dim"`
	Scale  float64 `json:"scale"`
	Offset float64 `json:"offset"`
}

// Rule declares how one dataset family is reshaped into per-variable
// geographic arrays. A Rule is plain data: onboarding a new provider is a
// configuration change, not new code. LoadRule reads one from YAML.
type Rule struct {
	// RenameDims maps source dimension names to canonical axis names
	// before any coordinate handling, e.g. {"y": "latitude"}.
	RenameDims map[string]string `json:"renameDims,omitempty"`
	// CoordScales remap index coordinates to degrees; each scaled
	// dimension is reordered so its coordinates ascend.
	CoordScales []CoordScale `json:"coordScales,omitempty"`
	// WrapLongitude converts a 0..360 longitude axis to -180..180.
	WrapLongitude bool `json:"wrapLongitude,omitempty"`
	// SkipLeadingVars drops that many data variables from the front of
	// the file's variable list, the provider's grid bookkeeping pair.
	// Coordinate variables are never part of the selection.
	SkipLeadingVars int `json:"skipLeadingVars,omitempty"`
	// IncludeVars restricts the output to the named variables. Empty
	// means every variable surviving SkipLeadingVars and ExcludeVars.
	IncludeVars []string `json:"includeVars,omitempty"`
	// ExcludeVars drops the named variables.
	ExcludeVars []string `json:"excludeVars,omitempty"`
	// FlipDim reverses this axis on every produced array. Rasters are
	// written top row first, so a south-to-north latitude axis is
	// flipped here.
	FlipDim string `json:"flipDim,omitempty"`
	// NoDataIn is the provider's missing-value sentinel. When nil, the
	// _FillValue or missing_value attribute of each variable is used if
	// present.
	NoDataIn *float64 `json:"noDataIn,omitempty"`
	// NoDataOut is the sentinel written on the outputs. The downstream
	// convention is -9999.
	NoDataOut float64 `json:"noDataOut,omitempty"`
	// CRS is attached to every produced array, e.g. "EPSG:4326".
	CRS string `json:"crs,omitempty"`
	// XDim and YDim name the spatial dimensions of the outputs.
	XDim string `json:"xDim,omitempty"`
	YDim string `json:"yDim,omitempty"`
	// FilenameTemplate builds each output name. {stem} expands to the
	// stem derived from the source name and {var} to the variable name.
	// Empty means "{stem}.tif": single variable granules keep the
	// source-derived name unchanged.
	FilenameTemplate string `json:"filenameTemplate,omitempty"`
}

// LoadRule reads a Rule from YAML (or JSON) bytes, rejecting unknown
// fields.
func LoadRule(b []byte) (Rule, error) {
	r := Rule{}
	if err := yaml.UnmarshalStrict(b, &r); err != nil {
		return Rule{}, fmt.Errorf("rule: %w", err)
	}
	return r, nil
}

// Transform loads the dataset from g and applies rule to it, returning
// the produced arrays keyed by their derived output filename. name is the
// source granule name the output names derive from.
func Transform(g api.Group, name string, rule Rule) (map[string]*Array, error) {
	ds, err := FromGroup(g)
	if err != nil {
		return nil, err
	}
	return TransformDataset(ds, name, rule)
}

// TransformDataset applies rule to an already loaded dataset. The dataset
// is consumed: its axes are renamed, rescaled and reordered in place.
func TransformDataset(ds *Dataset, name string, rule Rule) (map[string]*Array, error) {
	if err := ds.RenameDims(rule.RenameDims); err != nil {
		return nil, err
	}
	for _, cs := range rule.CoordScales {
		if err := ds.ScaleCoord(cs.Dim, cs.Scale, cs.Offset); err != nil {
			return nil, err
		}
	}
	if rule.WrapLongitude {
		if err := ds.WrapLongitude(); err != nil {
			return nil, err
		}
	}
	stem, err := DeriveStem(name)
	if err != nil {
		return nil, err
	}

	selected, err := rule.selectVars(ds.DataVars())
	if err != nil {
		return nil, err
	}
	out := make(map[string]*Array, len(selected))
	for _, vn := range selected {
		arr, err := ds.Get(vn)
		if err != nil {
			return nil, err
		}
		if rule.FlipDim != "" {
			if err := arr.ReverseDim(rule.FlipDim); err != nil {
				return nil, err
			}
		}
		sentinel := rule.NoDataIn
		if sentinel == nil {
			sentinel = ds.fillValue(vn)
		}
		if sentinel != nil {
			arr.ReplaceSentinel(*sentinel, rule.NoDataOut)
		}
		nodata := rule.NoDataOut
		arr.NoData = &nodata
		arr.CRS = rule.CRS
		arr.XDim = rule.XDim
		arr.YDim = rule.YDim
		fname := rule.filename(stem, vn)
		if _, dup := out[fname]; dup {
			return nil, fmt.Errorf("output name %s produced twice: the filename template needs a {var} placeholder", fname)
		}
		out[fname] = arr
	}
	return out, nil
}

func (r Rule) selectVars(names []string) ([]string, error) {
	if r.SkipLeadingVars > len(names) {
		return nil, fmt.Errorf("cannot skip %d of %d variables", r.SkipLeadingVars, len(names))
	}
	names = names[r.SkipLeadingVars:]
	var out []string
	for _, n := range names {
		if contains(r.ExcludeVars, n) {
			continue
		}
		if len(r.IncludeVars) > 0 && !contains(r.IncludeVars, n) {
			continue
		}
		out = append(out, n)
	}
	for _, n := range r.IncludeVars {
		if !contains(out, n) {
			return nil, fmt.Errorf("no variable %q to include", n)
		}
	}
	return out, nil
}

func (r Rule) filename(stem, varName string) string {
	tpl := r.FilenameTemplate
	if tpl == "" {
		tpl = "{stem}.tif"
	}
	fname := strings.ReplaceAll(tpl, "{stem}", stem)
	return strings.ReplaceAll(fname, "{var}", varName)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// ECCODarwinRule is the rule for ECCO Darwin CO2 flux granules: the y/x
// grid indices become EPSG:4326 degrees on ascending axes, latitude is
// flipped to north-up raster order, the provider sentinel becomes -9999,
// and the first two variables (grid bookkeeping) are dropped.
func ECCODarwinRule(nodata float64) Rule {
	return Rule{
		RenameDims: map[string]string{"y": "latitude", "x": "longitude"},
		CoordScales: []CoordScale{
			{Dim: "longitude", Scale: 360.0 / 1440.0, Offset: -180},
			{Dim: "latitude", Scale: 180.0 / 721.0, Offset: -90},
		},
		SkipLeadingVars: 2,
		FlipDim:         "latitude",
		NoDataIn:        &nodata,
		NoDataOut:       -9999,
		CRS:             "EPSG:4326",
		XDim:            "longitude",
		YDim:            "latitude",
	}
}

// ECCODarwin reads an ECCO Darwin granule from file and returns its data
// variables as write-ready arrays keyed by output filename. name is the
// source granule name, nodata the provider's integer missing-value
// sentinel. The file handle is closed before returning.
func ECCODarwin(file api.ReadSeekerCloser, name string, nodata int) (map[string]*Array, error) {
	g, err := netcdf.New(file)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	defer g.Close()
	return Transform(g, name, ECCODarwinRule(float64(nodata)))
}
