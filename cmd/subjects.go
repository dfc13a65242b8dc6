package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-recognizer/internal/photos"
)

var subjectsCmd = &cobra.Command{
	Use:   "subjects",
	Short: "List subjects in the photo library",
	Long:  `List every subject directory holding at least one raw photo. Use subcommands to list a subject's photos.`,
	Args:  cobra.NoArgs,
	RunE:  runSubjectsList,
}

var subjectsPhotosCmd = &cobra.Command{
	Use:   "photos <name>",
	Short: "List the raw photos of a subject",
	Long: `List a subject's raw photos. Numbered files come first in numeric order.
The name is matched ignoring case and diacritics.

Example:
  face-recognizer subjects photos jose`,
	Args: cobra.ExactArgs(1),
	RunE: runSubjectsPhotos,
}

func init() {
	rootCmd.AddCommand(subjectsCmd)
	subjectsCmd.AddCommand(subjectsPhotosCmd)

	subjectsCmd.Flags().Bool("json", false, "Output as JSON")
	subjectsPhotosCmd.Flags().Bool("json", false, "Output as JSON")
}

func openLibrary() (*photos.Library, error) {
	cfg, _, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return photos.NewLibrary(cfg.Data.Dir, cfg.Data.CropsDir), nil
}

func runSubjectsList(cmd *cobra.Command, args []string) error {
	jsonOutput := mustGetBool(cmd, "json")

	lib, err := openLibrary()
	if err != nil {
		return err
	}
	subjects, err := lib.Subjects()
	if err != nil {
		return fmt.Errorf("failed to list subjects: %w", err)
	}

	if jsonOutput {
		return outputJSON(subjects)
	}
	if len(subjects) == 0 {
		fmt.Printf("No subjects found in %s.\n", lib.Root())
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tPHOTOS")
	fmt.Fprintln(w, "----\t------")
	total := 0
	for _, s := range subjects {
		fmt.Fprintf(w, "%s\t%d\n", s.Name, s.PhotoCount)
		total += s.PhotoCount
	}
	w.Flush()

	fmt.Printf("\nTotal: %d subjects, %d photos\n", len(subjects), total)
	return nil
}

func runSubjectsPhotos(cmd *cobra.Command, args []string) error {
	jsonOutput := mustGetBool(cmd, "json")

	lib, err := openLibrary()
	if err != nil {
		return err
	}
	name, err := lib.Resolve(args[0])
	if err != nil {
		return err
	}
	list, err := lib.Photos(name)
	if err != nil {
		return fmt.Errorf("failed to list photos: %w", err)
	}

	if jsonOutput {
		return outputJSON(list)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "FILE\tSIZE\tMODIFIED")
	fmt.Fprintln(w, "----\t----\t--------")
	for _, p := range list {
		fmt.Fprintf(w, "%s\t%d\t%s\n", p.Name, p.Size, p.ModTime.Format("2006-01-02 15:04"))
	}
	w.Flush()

	fmt.Printf("\n%s: %d photos\n", name, len(list))
	return nil
}
