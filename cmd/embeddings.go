package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-recognizer/internal/database"
	"github.com/kozaktomas/face-recognizer/internal/enrollment"
	"github.com/kozaktomas/face-recognizer/internal/service"
)

var embeddingsCmd = &cobra.Command{
	Use:   "embeddings",
	Short: "Show the enrolled embeddings",
	Long:  `Show the number of enrolled embeddings per subject, the embedding length and the stored face crops. Use subcommands to remove a subject.`,
	Args:  cobra.NoArgs,
	RunE:  runEmbeddingsStats,
}

var embeddingsRemoveCmd = &cobra.Command{
	Use:   "remove <label>",
	Short: "Remove every embedding of a subject",
	Long: `Remove every enrolled embedding of a subject and save the store.
The label is matched exactly first, then ignoring case and diacritics.

Example:
  face-recognizer embeddings remove Rick --yes`,
	Args: cobra.ExactArgs(1),
	RunE: runEmbeddingsRemove,
}

func init() {
	rootCmd.AddCommand(embeddingsCmd)
	embeddingsCmd.AddCommand(embeddingsRemoveCmd)

	embeddingsCmd.Flags().Bool("json", false, "Output as JSON")
	embeddingsRemoveCmd.Flags().Bool("yes", false, "Skip confirmation prompt")
}

func runEmbeddingsStats(cmd *cobra.Command, args []string) error {
	jsonOutput := mustGetBool(cmd, "json")

	ctx := context.Background()
	cfg, store, closer, err := openStore(ctx)
	if err != nil {
		return err
	}
	if closer != nil {
		defer closer.Close()
	}

	stats, err := service.ReadStats(store, enrollment.NewDirArtifacts(cfg.Data.CropsDir))
	if err != nil {
		return fmt.Errorf("failed to read stats: %w", err)
	}

	if jsonOutput {
		return outputJSON(stats)
	}

	fmt.Printf("Store:       %s\n", stats.Location)
	fmt.Printf("Embeddings:  %d\n", stats.TotalEmbeddings)
	fmt.Printf("Length:      %d\n", stats.Dim)
	fmt.Printf("Face crops:  %d\n", stats.TotalFaces)

	if len(stats.Labels) == 0 {
		fmt.Println("\nNo subjects enrolled.")
		return nil
	}

	fmt.Println()
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SUBJECT\tEMBEDDINGS")
	fmt.Fprintln(w, "-------\t----------")
	for _, lc := range stats.Labels {
		fmt.Fprintf(w, "%s\t%d\n", lc.Label, lc.Count)
	}
	w.Flush()
	return nil
}

func runEmbeddingsRemove(cmd *cobra.Command, args []string) error {
	skipConfirm := mustGetBool(cmd, "yes")

	ctx := context.Background()
	_, store, closer, err := openStore(ctx)
	if err != nil {
		return err
	}
	if closer != nil {
		defer closer.Close()
	}

	label, ok := service.ResolveLabel(store.Snapshot(), args[0])
	if !ok {
		return fmt.Errorf("%w: %q", service.ErrLabelNotFound, args[0])
	}

	if !skipConfirm && !confirmRemove(store.Snapshot(), label) {
		fmt.Println("Cancelled.")
		return nil
	}

	resolved, removed, err := service.RemoveLabel(ctx, store, label)
	if err != nil {
		return fmt.Errorf("failed to remove %s: %w", label, err)
	}
	fmt.Printf("Removed %d embedding(s) of %s.\n", removed, resolved)
	return nil
}

func confirmRemove(snap *database.Snapshot, label string) bool {
	fmt.Printf("Remove %d embedding(s) of %s? [y/N]: ", snap.Count(label), label)
	reader := bufio.NewReader(os.Stdin)
	response, _ := reader.ReadString('\n')
	response = strings.TrimSpace(strings.ToLower(response))
	return response == "y" || response == "yes"
}
