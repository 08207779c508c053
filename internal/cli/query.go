package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/smokyabdulrahman/ramadan-times/internal/geo"
	"github.com/smokyabdulrahman/ramadan-times/internal/hijri"
	"github.com/smokyabdulrahman/ramadan-times/internal/offset"
)

func newOffsetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "offset",
		Short: "Show the Ramadan start offset for a location",
		Long:  "Show which national start date applies to the location, the rule that matched, and any minute-level correction.\nNo prayer times are fetched.",
		Args:  cobra.NoArgs,
		RunE:  runOffset,
	}
}

// offsetReport is the offset command's output.
type offsetReport struct {
	Location   geo.Location       `json:"location"`
	Match      offset.Match       `json:"match"`
	UseOffsets bool               `json:"use_offsets"`
	Start      string             `json:"start_date"`
	End        string             `json:"end_date"`
	Correction *offset.Correction `json:"correction,omitempty"`
}

func runOffset(cmd *cobra.Command, args []string) error {
	cfg, err := effectiveConfig(cmd)
	if err != nil {
		return err
	}
	a, err := newApp(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	loc, err := a.location(cmd.Context())
	if err != nil {
		return err
	}

	r := buildOffsetReport(a.engine.WithOffsets(cfg.UseOffsetsOrDefault(true)), a.resolver, loc)
	if FlagJSON {
		return writeJSON(cmd.OutOrStdout(), r)
	}
	printOffsetReport(cmd.OutOrStdout(), r)
	return nil
}

func buildOffsetReport(e *hijri.Engine, res *offset.Resolver, loc geo.Location) offsetReport {
	r := offsetReport{
		Location:   loc,
		Match:      e.Resolver.Lookup(loc),
		UseOffsets: e.Resolver != nil,
	}
	window := e.Window(loc)
	r.Start = window[0].Date.Format(hijri.DateLayout)
	r.End = window[len(window)-1].Date.Format(hijri.DateLayout)
	if c, ok := res.MinuteCorrection(loc); ok {
		r.Correction = &c
	}
	return r
}

func printOffsetReport(w io.Writer, r offsetReport) {
	fmt.Fprintf(w, "  %s\n\n", r.Location)
	fmt.Fprintf(w, "  %-11s %+d\n", "Offset", int(r.Match.Offset))
	rule := string(r.Match.Rule)
	if r.Match.Key != "" {
		rule = fmt.Sprintf("%s %q", rule, r.Match.Key)
	}
	if !r.UseOffsets {
		rule = "national offsets off"
	}
	fmt.Fprintf(w, "  %-11s %s\n", "Matched", rule)
	fmt.Fprintf(w, "  %-11s %s to %s\n", "Ramadan", r.Start, r.End)
	if r.Correction != nil {
		fmt.Fprintf(w, "  %-11s sehri %+dm, iftar %+dm\n", "Correction", r.Correction.SehriMinutes, r.Correction.IftarMinutes)
	}
}
