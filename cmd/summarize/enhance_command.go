package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/maauso/summarize-api/internal/audio"
	"github.com/maauso/summarize-api/internal/enhance"
)

func newEnhanceCommand() *cobra.Command {
	var (
		aggressive bool
		workers    int
		sequential bool
		outDir     string
	)

	cmd := &cobra.Command{
		Use:   "enhance <input.wav> [output.wav]",
		Short: "Run adaptive audio enhancement on a WAV file",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := args[0]
			if !audio.IsWAV(in) {
				return fmt.Errorf("%w: enhance reads WAV input only", audio.ErrUnsupportedFormat)
			}
			if _, err := os.Stat(in); err != nil {
				return fmt.Errorf("inspect input: %w", err)
			}

			out := audio.EnhancedPath(filepath.Dir(in), in)
			switch {
			case len(args) == 2:
				out = args[1]
			case outDir != "":
				if err := os.MkdirAll(outDir, 0750); err != nil {
					return fmt.Errorf("create output directory: %w", err)
				}
				out = audio.EnhancedPath(outDir, in)
			}

			e := enhance.NewEnhancer(nil,
				enhance.WithWorkers(workers),
				enhance.WithParallel(!sequential),
			)
			res, err := audio.NewFileEnhancer(e, nil).EnhanceFile(cmd.Context(), in, out, aggressive)
			if err != nil {
				return err
			}

			stages := make([]string, len(res.Stages))
			for i, st := range res.Stages {
				stages[i] = st.String()
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Tier:    %s\n", res.Tier)
			if res.Assessed {
				fmt.Fprintf(w, "Rolloff: %.0f Hz  RMS: %.4f  ZCR: %.4f\n",
					res.Report.SpectralRolloff, res.Report.RMSEnergy, res.Report.ZeroCrossingRate)
			}
			fmt.Fprintf(w, "Stages:  %s\n", strings.Join(stages, ", "))
			fmt.Fprintf(w, "Elapsed: %s\n", res.Elapsed.Round(time.Millisecond))
			fmt.Fprintf(w, "Output:  %s\n", out)
			return nil
		},
	}

	cmd.Flags().BoolVar(&aggressive, "aggressive", false, "Force the low-quality cascade")
	cmd.Flags().IntVar(&workers, "workers", 0, "Parallel noise-reduction segments (0 = one less than the CPU count, at least 1)")
	cmd.Flags().BoolVar(&sequential, "sequential", false, "Disable chunked parallel noise reduction")
	cmd.Flags().StringVarP(&outDir, "out-dir", "o", "", "Directory for <name>_enhanced.wav")

	return cmd
}
