// Package main provides a command line front end for the movement analyzer.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/Fastpacer/Dance-Movement-Analysis/internal/app"
	"github.com/Fastpacer/Dance-Movement-Analysis/internal/domain/entity"
	"github.com/Fastpacer/Dance-Movement-Analysis/internal/infra/config"
	"github.com/Fastpacer/Dance-Movement-Analysis/internal/infra/sqlite"
	"github.com/Fastpacer/Dance-Movement-Analysis/internal/movement"
	"github.com/Fastpacer/Dance-Movement-Analysis/internal/usecase"
	"github.com/Fastpacer/Dance-Movement-Analysis/pkg/logger"
	"github.com/spf13/cobra"
)

const defaultHistoryLimit = 10

var (
	analyzeOutput string
	analyzeJSON   bool
	analyzeSave   bool

	historyLimit int
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "dancectl",
		Short:        "Analyze dance videos from the command line",
		SilenceUsage: true,
	}
	rootCmd.AddCommand(newAnalyzeCmd())
	rootCmd.AddCommand(newHistoryCmd())
	return rootCmd
}

func newAnalyzeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze <input>",
		Short: "Run pose analysis on a video and write the annotated copy",
		Args:  cobra.ExactArgs(1),
		RunE:  runAnalyzeCmd,
	}
	cmd.Flags().StringVarP(&analyzeOutput, "output", "o", "", "annotated video path (default: analyzed_<input> next to the input)")
	cmd.Flags().BoolVar(&analyzeJSON, "json", false, "print the summary as JSON")
	cmd.Flags().BoolVar(&analyzeSave, "save", false, "record the analysis in the studio history database")
	return cmd
}

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent analyses from the studio history database",
		Args:  cobra.NoArgs,
		RunE:  runHistoryCmd,
	}
	cmd.Flags().IntVar(&historyLimit, "last", defaultHistoryLimit, "number of analyses to show")
	return cmd
}

func runAnalyzeCmd(cmd *cobra.Command, args []string) error {
	input := args[0]
	output := analyzeOutput
	if output == "" {
		output = defaultOutputPath(input)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("failed to init logger: %w", err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps := app.AnalyzeDeps(cfg, log)
	if analyzeSave {
		st, err := sqlite.Open(cfg.StudioDBPath)
		if err != nil {
			return fmt.Errorf("failed to open db: %w", err)
		}
		defer st.Close()
		deps.Repo = st
	}

	uc := usecase.NewAnalyzeVideoUseCase(deps, log)
	a, err := uc.Execute(ctx, usecase.AnalyzeRequest{
		Source:     entity.SourceCLI,
		InputName:  filepath.Base(input),
		InputPath:  input,
		OutputPath: output,
	})
	if err != nil {
		return err
	}

	if analyzeJSON {
		return printJSON(cmd.OutOrStdout(), a)
	}
	printReport(cmd.OutOrStdout(), a)
	return nil
}

func runHistoryCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	st, err := sqlite.Open(cfg.StudioDBPath)
	if err != nil {
		return fmt.Errorf("failed to open db: %w", err)
	}
	defer st.Close()

	items, err := st.ListRecent(cmd.Context(), historyLimit)
	if err != nil {
		return fmt.Errorf("failed to list analyses: %w", err)
	}
	printHistory(cmd.OutOrStdout(), items)
	return nil
}

func defaultOutputPath(input string) string {
	return filepath.Join(filepath.Dir(input), "analyzed_"+filepath.Base(input))
}

type jsonReport struct {
	ID         string            `json:"id"`
	OutputPath string            `json:"output_path"`
	ChartPath  string            `json:"chart_path,omitempty"`
	BundlePath string            `json:"bundle_path,omitempty"`
	Duration   float64           `json:"video_duration_seconds,omitempty"`
	Summary    *movement.Summary `json:"summary"`
}

func printJSON(w io.Writer, a *entity.Analysis) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(jsonReport{
		ID:         a.ID.String(),
		OutputPath: a.OutputPath,
		ChartPath:  a.ChartPath,
		BundlePath: a.BundlePath,
		Duration:   a.VideoDuration,
		Summary:    a.Summary,
	})
}

func printReport(w io.Writer, a *entity.Analysis) {
	fmt.Fprintf(w, "Analysis %s\n", a.ID)
	fmt.Fprintf(w, "Output video: %s\n", a.OutputPath)
	if a.BundlePath != "" {
		fmt.Fprintf(w, "Bundle:       %s\n", a.BundlePath)
	}

	if a.Summary == nil || !a.Summary.Detected() {
		msg := "No pose detected in video"
		if a.Summary != nil && a.Summary.Error != "" {
			msg = a.Summary.Error
		}
		fmt.Fprintf(w, "\n%s\n", msg)
		fmt.Fprintln(w, "Try a well lit video with the full body in frame.")
		return
	}

	s := a.Summary
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw)
	fmt.Fprintf(tw, "Total frames\t%d\n", s.TotalFrames)
	fmt.Fprintf(tw, "Frames with pose\t%d\n", s.FramesWithDetection)
	fmt.Fprintf(tw, "Left arm angle\t%.1f°\n", s.Averages.LeftArmAngle)
	fmt.Fprintf(tw, "Right arm angle\t%.1f°\n", s.Averages.RightArmAngle)
	fmt.Fprintf(tw, "Left leg angle\t%.1f°\n", s.Averages.LeftLegAngle)
	fmt.Fprintf(tw, "Right leg angle\t%.1f°\n", s.Averages.RightLegAngle)
	fmt.Fprintf(tw, "Stability\t%.3f\n", s.Averages.Stability)
	tw.Flush()

	if in, ok := movement.Assess(*s); ok {
		fmt.Fprintf(w, "\nDetection rate %.1f%%: %s\n", in.DetectionRate*100, in.DetectionMessage)
		fmt.Fprintf(w, "Stability: %s\n", in.StabilityLabel)
		fmt.Fprintf(w, "Movement: %s\n", in.MovementQuality)
	}
}

func printHistory(w io.Writer, items []*entity.Analysis) {
	if len(items) == 0 {
		fmt.Fprintln(w, "no analyses recorded yet")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CREATED\tINPUT\tSTATUS\tFRAMES\tSTABILITY")
	for _, a := range items {
		frames, stability := "-", "-"
		if a.Summary != nil && a.Summary.Detected() {
			frames = fmt.Sprintf("%d/%d", a.Summary.FramesWithDetection, a.Summary.TotalFrames)
			stability = fmt.Sprintf("%.3f", a.Summary.Averages.Stability)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			a.CreatedAt.Local().Format("2006-01-02 15:04"),
			a.InputName,
			strings.ToLower(string(a.Status)),
			frames,
			stability,
		)
	}
	tw.Flush()
}
