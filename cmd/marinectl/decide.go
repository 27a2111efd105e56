package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/couchcryptid/marine-ops/internal/fusion"
	"github.com/spf13/cobra"
)

var decideCmd = &cobra.Command{
	Use:   "decide",
	Short: "Fuse bulletin readings into a Go / No-Go decision with ETA",
	Long: `Fuse the coastal and offshore bulletins into a single wave height and
wind estimate, apply the decision gate, and estimate passage time.

Wave heights are feet, winds knots, distance nautical miles.

Examples:
  # Calm passage
  decide --combined-ft 2 --wind-adnoc 15 --hs-onshore-ft 1.5 --hs-offshore-ft 2 \
    --wind-albahar 18 --offshore-weight 0.35 --distance-nm 120 --planned-speed 12

  # High seas alert
  decide --alert "High seas" ...

  # Read the inputs as JSON from stdin
  echo '{"combined_ft":2,...}' | decide --input -`,
	RunE: runDecide,
}

func init() {
	f := decideCmd.Flags()
	f.Float64("combined-ft", 0, "combined primary bulletin wave height (ft)")
	f.Float64("wind-adnoc", 0, "primary bulletin wind (kt)")
	f.Float64("hs-onshore-ft", 0, "secondary bulletin onshore wave height (ft)")
	f.Float64("hs-offshore-ft", 0, "secondary bulletin offshore wave height (ft)")
	f.Float64("wind-albahar", 0, "secondary bulletin wind (kt)")
	f.String("alert", "", "bulletin alert text; omit for none")
	f.Float64("offshore-weight", 0, "share of the passage offshore, 0-1")
	f.Float64("distance-nm", 0, "passage distance (NM)")
	f.Float64("planned-speed", 0, "planned speed through water (kt)")
	f.String("input", "", "read inputs as JSON from a file, or - for stdin")

	def := fusion.DefaultParams()
	f.Float64("alpha", def.Alpha, "weight on the combined primary bulletin")
	f.Float64("beta", def.Beta, "floor factor on the primary estimate")
	f.Float64("k-wind", def.KWind, "knots lost per knot of wind above 10")
	f.Float64("k-wave", def.KWave, "knots lost per metre of fused Hs")
	f.String("format", "text", "output format: text or json")

	rootCmd.AddCommand(decideCmd)
}

func runDecide(cmd *cobra.Command, _ []string) error {
	f := cmd.Flags()
	format, _ := f.GetString("format")
	if format != "text" && format != "json" {
		return fmt.Errorf("unsupported format %q", format)
	}

	in, err := decideInputs(cmd)
	if err != nil {
		return err
	}

	var p fusion.Params
	p.Alpha, _ = f.GetFloat64("alpha")
	p.Beta, _ = f.GetFloat64("beta")
	p.KWind, _ = f.GetFloat64("k-wind")
	p.KWave, _ = f.GetFloat64("k-wave")

	out, err := fusion.DecideAndETA(in, p)
	if err != nil {
		return err
	}
	metrics().Decisions.WithLabelValues(string(out.Decision)).Inc()

	w := cmd.OutOrStdout()
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}
	fmt.Fprintf(w, "Decision:        %s\n", out.Decision)
	fmt.Fprintf(w, "Fused Hs:        %.2f m\n", out.HsFusedM)
	fmt.Fprintf(w, "Fused wind:      %.1f kt\n", out.WindFusedKt)
	fmt.Fprintf(w, "ETA:             %.1f h (+%d min buffer)\n", out.ETAHours, out.BufferMinutes)
	fmt.Fprintf(w, "Effective speed: %.1f kt\n", out.EffectiveSpeed)
	return nil
}

func decideInputs(cmd *cobra.Command) (fusion.Inputs, error) {
	f := cmd.Flags()
	var in fusion.Inputs

	if path, _ := f.GetString("input"); path != "" {
		var r io.Reader = cmd.InOrStdin()
		if path != "-" {
			file, err := os.Open(path)
			if err != nil {
				return in, err
			}
			defer file.Close()
			r = file
		}
		dec := json.NewDecoder(r)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&in); err != nil {
			return in, fmt.Errorf("decode inputs: %w", err)
		}
		return in, nil
	}

	in.CombinedFt, _ = f.GetFloat64("combined-ft")
	in.WindADNOC, _ = f.GetFloat64("wind-adnoc")
	in.HsOnshoreFt, _ = f.GetFloat64("hs-onshore-ft")
	in.HsOffshoreFt, _ = f.GetFloat64("hs-offshore-ft")
	in.WindAlBahar, _ = f.GetFloat64("wind-albahar")
	in.OffshoreWeight, _ = f.GetFloat64("offshore-weight")
	in.DistanceNM, _ = f.GetFloat64("distance-nm")
	in.PlannedSpeed, _ = f.GetFloat64("planned-speed")
	if f.Changed("alert") {
		alert, _ := f.GetString("alert")
		in.Alert = &alert
	}
	return in, nil
}
