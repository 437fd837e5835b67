// Command eccodarwin converts an ECCO Darwin NetCDF granule into one
// cloud optimized geotiff per data variable.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/airbusgeo/cogger"
	"github.com/airbusgeo/godal"
	"github.com/airbusgeo/tiffmend/reshape"
)

var (
	nodata   = flag.String("nodata", "", "provider missing-value sentinel (default: the file's _FillValue attribute)")
	outDir   = flag.String("out", ".", "output directory")
	rulePath = flag.String("rule", "", "yaml rule overriding the builtin ecco darwin rule")
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [options] granule.nc\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	if len(flag.Args()) != 1 {
		flag.Usage()
		os.Exit(1)
	}
	godal.RegisterAll()
	if err := run(flag.Arg(0)); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

func run(input string) error {
	rule, err := loadRule()
	if err != nil {
		return err
	}
	ds, err := reshape.Open(input)
	if err != nil {
		return err
	}
	arrays, err := reshape.TransformDataset(ds, input, rule)
	if err != nil {
		return err
	}
	names := make([]string, 0, len(arrays))
	for name := range arrays {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		dst := filepath.Join(*outDir, name)
		tmp := dst + ".tmp"
		if err := reshape.WriteGeoTIFF(arrays[name], tmp); err != nil {
			return err
		}
		if err := addOverviews(tmp); err != nil {
			os.Remove(tmp)
			return err
		}
		if err := cogify(tmp, dst); err != nil {
			os.Remove(tmp)
			return err
		}
		os.Remove(tmp)
		fmt.Println("wrote", dst)
	}
	return nil
}

func loadRule() (reshape.Rule, error) {
	if *rulePath != "" {
		b, err := os.ReadFile(*rulePath)
		if err != nil {
			return reshape.Rule{}, fmt.Errorf("read rule: %w", err)
		}
		return reshape.LoadRule(b)
	}
	rule := reshape.ECCODarwinRule(0)
	rule.NoDataIn = nil
	if *nodata != "" {
		v, err := strconv.ParseFloat(*nodata, 64)
		if err != nil {
			return reshape.Rule{}, fmt.Errorf("invalid nodata %q: %w", *nodata, err)
		}
		rule.NoDataIn = &v
	}
	return rule, nil
}

func addOverviews(path string) error {
	ds, err := godal.Open(path, godal.Update())
	if err != nil {
		return fmt.Errorf("reopen %s: %w", path, err)
	}
	if err := ds.BuildOverviews(godal.Levels(2, 4)); err != nil {
		ds.Close()
		return fmt.Errorf("build overviews: %w", err)
	}
	return ds.Close()
}

func cogify(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create %s: %w", dst, err)
	}
	if err := cogger.DefaultConfig().Rewrite(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return fmt.Errorf("cog rewrite: %w", err)
	}
	return out.Close()
}
