// Command globe-scale compares quantities against a baseline and prints the
// resulting circles as GeoJSON.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/paulmach/orb/geojson"

	"github.com/signalsfoundry/globe-scale/core"
	"github.com/signalsfoundry/globe-scale/internal/export"
	"github.com/signalsfoundry/globe-scale/internal/logging"
	"github.com/signalsfoundry/globe-scale/internal/session"
	"github.com/signalsfoundry/globe-scale/kb"
	"github.com/signalsfoundry/globe-scale/model"
)

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintln(os.Stderr, "globe-scale:", err)
		}
		os.Exit(2)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("globe-scale", flag.ContinueOnError)
	fs.SetOutput(stderr)
	mode := fs.String("mode", "size", "comparison mode (see -list-modes)")
	modesFile := fs.String("modes", "", "YAML mode table replacing the built-in modes")
	listModes := fs.Bool("list-modes", false, "print the mode table and exit")
	refValue := fs.Float64("ref-value", 0, "baseline quantity")
	refLength := fs.Float64("ref-length", 0, "baseline length in metres")
	targets := fs.String("targets", "", "comma-separated quantities to compare")
	lat := fs.Float64("lat", 0, "circle center latitude in degrees")
	lon := fs.Float64("lon", 0, "circle center longitude in degrees")
	fov := fs.Float64("fov", core.DefaultFOVDeg, "camera field of view in degrees")
	segments := fs.Int("segments", core.DefaultSegments, "points per ring")
	fit := fs.Bool("fit", false, "rescale the baseline so the largest target fits")
	if err := fs.Parse(args); err != nil {
		return err
	}

	modes := kb.NewDefaultModeTable()
	if *modesFile != "" {
		f, err := os.Open(*modesFile)
		if err != nil {
			return err
		}
		_, err = kb.LoadModeTable(modes, f)
		f.Close()
		if err != nil {
			return err
		}
	}

	if *listModes {
		for _, m := range modes.ListModes() {
			kind := "diameter"
			if m.LengthIsRadius {
				kind = "radius"
			}
			fmt.Fprintf(stdout, "%-12s %-16s %-9s %s\n", m.Name, m.ScaleKind, kind, m.Description)
		}
		return nil
	}

	if *segments > core.MaxSegments {
		return fmt.Errorf("segments %d exceeds %d", *segments, core.MaxSegments)
	}

	values, err := parseTargets(*targets)
	if err != nil {
		return err
	}

	log := logging.New(logging.Config{Level: os.Getenv("LOG_LEVEL"), Output: stderr})
	store := session.NewStore(modes, session.WithLogger(log), session.WithDefaultSegments(*segments))

	sess, err := store.Establish(ctx, "cli", *mode, *refValue, *refLength)
	if err != nil {
		return err
	}
	if !sess.Baseline.Valid() {
		return fmt.Errorf("baseline %v -> %v m cannot anchor a comparison", *refValue, *refLength)
	}

	if *fit {
		if largest, ok := maxFinite(values); ok {
			res, err := store.Fit(ctx, sess.ID, largest)
			if err != nil {
				return err
			}
			if res.Adjusted {
				fmt.Fprintf(stderr, "baseline rescaled to %s so %s fits\n",
					humanize.SIWithDigits(res.Session.Baseline.ReferenceLengthMeters, 3, "m"),
					humanize.Commaf(largest))
			}
		}
	}

	center := model.GeoPoint{LonDeg: *lon, LatDeg: *lat}
	results, err := store.Compare(ctx, sess.ID, session.CompareRequest{
		Targets:  values,
		Center:   center,
		WithRing: true,
	})
	if err != nil {
		return err
	}

	features := make([]*geojson.Feature, 0, len(results)+1)
	var last *session.Comparison
	for i := range results {
		c := results[i]
		fmt.Fprintln(stderr, summary(c))
		features = append(features, export.RingFeature(c.Ring, map[string]any{
			"value":    c.Value,
			"length_m": c.LengthMeters,
			"radius_m": c.RadiusMeters,
		}))
		if c.Drawable() {
			last = &results[i]
		}
	}
	if last != nil {
		p := store.Frame(model.Circle{Center: center, RadiusMeters: last.RadiusMeters}, *fov)
		features = append(features, export.PlacementFeature(p))
		fmt.Fprintf(stderr, "camera: %.5f, %.5f at %s\n",
			p.Target.LatDeg, p.Target.LonDeg, humanize.SIWithDigits(p.AltitudeMeters, 3, "m"))
	}

	raw, err := export.MarshalCollection(features...)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(stdout, string(raw))
	return err
}

func parseTargets(raw string) ([]float64, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, errors.New("-targets is required")
	}
	parts := strings.Split(raw, ",")
	out := make([]float64, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("target %q: %w", p, err)
		}
		out = append(out, v)
	}
	return out, nil
}

func maxFinite(values []float64) (float64, bool) {
	best, ok := 0.0, false
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
			continue
		}
		if !ok || v > best {
			best, ok = v, true
		}
	}
	return best, ok
}

func summary(c session.Comparison) string {
	value := humanize.Commaf(c.Value)
	switch {
	case c.Degenerate:
		return fmt.Sprintf("%s: nothing to draw", value)
	case c.TooLarge:
		return fmt.Sprintf("%s: too large (radius %s); baseline length %s would fit",
			value,
			humanize.SIWithDigits(c.RadiusMeters, 3, "m"),
			humanize.SIWithDigits(c.RequiredBaselineLengthMeters, 3, "m"))
	default:
		return fmt.Sprintf("%s: length %s, radius %s",
			value,
			humanize.SIWithDigits(c.LengthMeters, 3, "m"),
			humanize.SIWithDigits(c.RadiusMeters, 3, "m"))
	}
}
