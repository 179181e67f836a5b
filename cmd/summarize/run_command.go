package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/maauso/summarize-api/internal/job"
)

type runFlags struct {
	denoise         bool
	aggressive      bool
	forceWAV        bool
	chunkSize       int
	language        string
	correctLanguage bool
	pushToS3        bool
	jsonOutput      bool
}

func newRunCommand(ctx *commandContext) *cobra.Command {
	var flags runFlags

	cmd := &cobra.Command{
		Use:   "run <file>",
		Short: "Run the full pipeline on a local audio or video file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if flags.chunkSize != 0 && (flags.chunkSize < 100 || flags.chunkSize > 20000) {
				return fmt.Errorf("--chunk-size must be between 100 and 20000, got %d", flags.chunkSize)
			}

			f, err := os.Open(args[0])
			if err != nil {
				if errors.Is(err, os.ErrNotExist) {
					return fmt.Errorf("file does not exist: %s", args[0])
				}
				return fmt.Errorf("open input: %w", err)
			}
			defer f.Close()

			deps, err := ctx.ensureDeps(cmd.Context())
			if err != nil {
				return err
			}

			result, runErr := deps.Service.Process(cmd.Context(), job.CreateJobInput{
				Filename: filepath.Base(args[0]),
				Data:     f,
				Options: job.Options{
					Denoise:           flags.denoise,
					AggressiveDenoise: flags.aggressive,
					ForceWAV:          flags.forceWAV,
					ChunkSize:         flags.chunkSize,
					Language:          flags.language,
					CorrectLanguage:   flags.correctLanguage,
					PushToS3:          flags.pushToS3,
				},
			})
			if result == nil {
				return runErr
			}

			out := cmd.OutOrStdout()
			if flags.jsonOutput {
				if err := writeReport(out, result); err != nil {
					return err
				}
			} else {
				printResult(out, result)
			}
			return runErr
		},
	}

	cmd.Flags().BoolVar(&flags.denoise, "denoise", false, "Run adaptive audio enhancement before transcription")
	cmd.Flags().BoolVar(&flags.aggressive, "aggressive", false, "Force the strongest enhancement cascade")
	cmd.Flags().BoolVar(&flags.forceWAV, "force-wav", false, "Standardize WAV input as well")
	cmd.Flags().IntVar(&flags.chunkSize, "chunk-size", 0, "Chunk size in characters (default from CHUNK_SIZE)")
	cmd.Flags().StringVarP(&flags.language, "language", "l", "", "Language hint, e.g. en or id (blank auto-detects)")
	cmd.Flags().BoolVar(&flags.correctLanguage, "correct", false, "Correct the transcript with the generator")
	cmd.Flags().BoolVar(&flags.pushToS3, "push-to-s3", false, "Upload the JSON report to S3")
	cmd.Flags().BoolVar(&flags.jsonOutput, "json", false, "Print the full report as JSON")

	return cmd
}

func writeReport(w io.Writer, j *job.Job) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(job.Report{
		ID:       j.ID,
		Filename: j.Filename,
		Options:  j.Options,
		Result:   j.Result,
		Steps:    j.Steps,
	})
}

func printResult(w io.Writer, j *job.Job) {
	fmt.Fprintf(w, "Job:      %s (%s)\n", j.ID, j.Status)
	if j.Error != "" {
		fmt.Fprintf(w, "Error:    %s\n", j.Error)
	}
	r := j.Result
	if r.Language != "" {
		fmt.Fprintf(w, "Language: %s\n", r.Language)
	}
	if r.Enhancement != nil {
		fmt.Fprintf(w, "Audio:    %s tier, %d stages\n", r.Enhancement.Tier, len(r.Enhancement.Stages))
	}
	if len(r.Chunks) > 0 {
		fmt.Fprintf(w, "Chunks:   %d in %d clusters\n", len(r.Chunks), r.Clusters)
	}
	if r.ReportURL != "" {
		fmt.Fprintf(w, "Report:   %s\n", r.ReportURL)
	}
	if r.Summary != "" {
		fmt.Fprintf(w, "\n%s\n", r.Summary)
	} else if r.SummaryError != "" {
		fmt.Fprintf(w, "\nSummary unavailable: %s\n", r.SummaryError)
	}
}
