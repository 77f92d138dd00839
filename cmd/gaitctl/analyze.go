package main

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"strideminder/internal/gait"
)

func analyzeCmd() *cobra.Command {
	var (
		startMs   int64
		threshold float64
		maxLag    int
		asJSON    bool
		fullRMS   bool
		dumpPath  string
	)

	cmd := &cobra.Command{
		Use:   "analyze <file.csv>",
		Short: "Run the gait pipeline over one recording",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			samples, err := readRecording(f)
			if err != nil {
				return fmt.Errorf("read %s: %w", args[0], err)
			}

			proc := gait.NewProcessor(gait.Config{
				WalkingRMSThreshold: threshold,
				MaxLag:              maxLag,
				FullLengthRMS:       fullRMS,
			})
			analysis, err := proc.ProcessBatch(gait.NewBatch(startMs, samples))
			if err != nil {
				return err
			}

			if dumpPath != "" {
				if err := writeDump(dumpPath, analysis); err != nil {
					return fmt.Errorf("write dump: %w", err)
				}
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(map[string]any{
					"samples":   len(samples),
					"outcome":   analysis.Outcome.String(),
					"rms":       analysis.RMS,
					"crossings": analysis.Crossings,
					"metrics":   analysis.Metrics,
				})
			}
			return printAnalysis(out, len(samples), analysis)
		},
	}

	cmd.Flags().Int64Var(&startMs, "start-ms", 0, "wall-clock start of the recording in unix milliseconds")
	cmd.Flags().Float64Var(&threshold, "threshold", gait.DefaultWalkingRMSThreshold, "walking RMS threshold")
	cmd.Flags().IntVar(&maxLag, "max-lag", 0, "autocorrelation lag cap (0 = recording length)")
	cmd.Flags().BoolVar(&fullRMS, "full-length-rms", false, "score walking RMS against the full autocorrelation length")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the result as JSON")
	cmd.Flags().StringVar(&dumpPath, "dump", "", "write the vertical series and autocorrelation to this CSV file")
	return cmd
}

// readRecording parses t_ns,x,y,z rows. A header row is skipped if its
// first field is not a number.
func readRecording(r io.Reader) ([]gait.Sample, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 4
	cr.TrimLeadingSpace = true
	cr.Comment = '#'

	var samples []gait.Sample
	for line := 1; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		t, err := strconv.ParseInt(strings.TrimSpace(rec[0]), 10, 64)
		if err != nil {
			if line == 1 {
				continue
			}
			return nil, fmt.Errorf("line %d: invalid t_ns %q", line, rec[0])
		}
		var xyz [3]float64
		for i := range xyz {
			xyz[i], err = strconv.ParseFloat(strings.TrimSpace(rec[i+1]), 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: invalid value %q", line, rec[i+1])
			}
		}
		if n := len(samples); n > 0 && time.Duration(t) < samples[n-1].T {
			return nil, fmt.Errorf("line %d: timestamp goes backwards", line)
		}
		samples = append(samples, gait.Sample{T: time.Duration(t), X: xyz[0], Y: xyz[1], Z: xyz[2]})
	}
	return samples, nil
}

func printAnalysis(w io.Writer, n int, a gait.Analysis) error {
	fmt.Fprintf(w, "samples:   %d\n", n)
	fmt.Fprintf(w, "outcome:   %s\n", a.Outcome)
	fmt.Fprintf(w, "rms:       %.4f\n", a.RMS)
	if a.Metrics == nil {
		return nil
	}
	m := a.Metrics
	fmt.Fprintf(w, "cadence:   %.1f strides/min (%.1f steps/min)\n", m.Cadence, m.StepsPerMinute())
	fmt.Fprintf(w, "step reg:  %.3f\n", m.StepRegularity)
	fmt.Fprintf(w, "stride reg: %.3f\n", m.StrideRegularity)
	_, err := fmt.Fprintf(w, "symmetry:  %.3f\n", m.StepSymmetry)
	return err
}

func writeDump(path string, a gait.Analysis) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	if err := cw.Write([]string{"vertical", "autocorrelation"}); err != nil {
		return err
	}
	n := max(len(a.Vertical), len(a.Autocorrelation))
	for i := 0; i < n; i++ {
		row := []string{"", ""}
		if i < len(a.Vertical) {
			row[0] = strconv.FormatFloat(a.Vertical[i], 'g', -1, 64)
		}
		if i < len(a.Autocorrelation) {
			row[1] = strconv.FormatFloat(a.Autocorrelation[i], 'g', -1, 64)
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return err
	}
	return f.Close()
}
