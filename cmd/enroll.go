package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-recognizer/internal/constants"
	"github.com/kozaktomas/face-recognizer/internal/enrollment"
	"github.com/kozaktomas/face-recognizer/internal/logger"
	"github.com/kozaktomas/face-recognizer/internal/service"
)

var enrollCmd = &cobra.Command{
	Use:   "enroll [subject|all]",
	Short: "Enroll subjects from their raw photos",
	Long: `Detect the best face in every raw photo of a subject, store the crops and
replace the subject's embeddings with the new ones.

Without an argument, or with "all", every subject is enrolled and the whole
store is rebuilt. Press Ctrl+C to stop after the current photo; a stopped
run leaves the store unchanged.

Example:
  face-recognizer enroll Rick
  face-recognizer enroll all --json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runEnroll,
}

func init() {
	rootCmd.AddCommand(enrollCmd)

	enrollCmd.Flags().Bool("json", false, "Output the final status as JSON")
}

func runEnroll(cmd *cobra.Command, args []string) error {
	jsonOutput := mustGetBool(cmd, "json")
	scope := constants.AllSubjects
	if len(args) == 1 {
		scope = args[0]
	}

	ctx := context.Background()
	svc, log, err := openService(ctx)
	if err != nil {
		return err
	}
	defer logger.Sync(log)
	defer svc.Close()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		if _, ok := <-sigChan; ok {
			fmt.Fprintln(os.Stderr, "\nStopping after the current photo...")
			svc.StopEnrollment()
		}
	}()

	if !jsonOutput {
		bar := progressbar.NewOptions(100,
			progressbar.OptionSetDescription("Enrolling "+scope),
			progressbar.OptionShowElapsedTimeOnFinish(),
			progressbar.OptionSetPredictTime(true),
			progressbar.OptionFullWidth(),
		)
		unsubscribe := svc.ObserveEnrollment(func(st service.Status) {
			bar.Describe(fmt.Sprintf("%-9s %s", st.State, scope))
			bar.Set(int(st.Percent))
		})
		defer unsubscribe()
	}

	status, err := svc.RunEnrollment(ctx, scope)
	if err != nil {
		return fmt.Errorf("enrollment: %w", err)
	}

	if jsonOutput {
		return outputJSON(status)
	}
	printEnrollmentSummary(status)
	if status.State == enrollment.StateFailed {
		return fmt.Errorf("enrollment failed: %s", status.StatusMessage)
	}
	return nil
}

func printEnrollmentSummary(st service.Status) {
	fmt.Println()
	fmt.Printf("Status:      %s\n", st.StatusMessage)
	fmt.Printf("Photos:      %d/%d processed\n", st.ProcessedImages, st.TotalImages)
	fmt.Printf("Crops:       %d/%d embedded\n", st.EmbeddedCrops, st.TotalCrops)
	fmt.Printf("Saved:       %d embeddings (store total %d)\n", st.TotalSaved, st.TotalEmbeddings)

	if len(st.Skipped) > 0 {
		fmt.Printf("\nSkipped %d item(s):\n", len(st.Skipped))
		for _, s := range st.Skipped {
			fmt.Printf("  - %s/%s: %s\n", s.Subject, s.File, s.Reason)
		}
	}
}
