package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-recognizer/internal/imaging"
	"github.com/kozaktomas/face-recognizer/internal/logger"
	"github.com/kozaktomas/face-recognizer/internal/recognition"
)

var recognizeCmd = &cobra.Command{
	Use:   "recognize <image>...",
	Short: "Recognize the faces in image files",
	Long: `Detect every face in each image and label it with the nearest enrolled
subject, or "unknown" when no enrolled face is close enough.

With --top, the nearest enrolled embeddings are listed for every face.

Example:
  face-recognizer recognize frame.jpg
  face-recognizer recognize --top 5 a.jpg b.png`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRecognize,
}

func init() {
	rootCmd.AddCommand(recognizeCmd)

	recognizeCmd.Flags().Int("top", 0, "Also list the k nearest enrolled embeddings per face")
	recognizeCmd.Flags().Bool("json", false, "Output as JSON")
}

// RecognizeOutput is the JSON result for one image.
type RecognizeOutput struct {
	File    string                        `json:"file"`
	Error   string                        `json:"error,omitempty"`
	Faces   []recognition.Result          `json:"faces,omitempty"`
	Nearest []recognition.CandidateResult `json:"nearest,omitempty"`
}

func runRecognize(cmd *cobra.Command, args []string) error {
	top := mustGetInt(cmd, "top")
	jsonOutput := mustGetBool(cmd, "json")
	if top < 0 {
		return fmt.Errorf("--top must not be negative")
	}

	ctx := context.Background()
	svc, log, err := openService(ctx)
	if err != nil {
		return err
	}
	defer logger.Sync(log)
	defer svc.Close()

	outputs := make([]RecognizeOutput, 0, len(args))
	for _, path := range args {
		out := RecognizeOutput{File: path}
		img, err := imaging.Open(path)
		if err != nil {
			out.Error = err.Error()
			outputs = append(outputs, out)
			continue
		}
		if top > 0 {
			out.Nearest = svc.Candidates(ctx, img, top)
		} else {
			out.Faces = svc.Recognize(ctx, img)
		}
		outputs = append(outputs, out)
	}

	if jsonOutput {
		return outputJSON(outputs)
	}
	for _, out := range outputs {
		printRecognizeOutput(out)
	}
	return nil
}

func printRecognizeOutput(out RecognizeOutput) {
	fmt.Printf("%s\n", out.File)
	if out.Error != "" {
		fmt.Printf("  error: %s\n\n", out.Error)
		return
	}

	faces := out.Faces
	for _, n := range out.Nearest {
		faces = append(faces, n.Result)
	}
	if len(faces) == 0 {
		fmt.Println("  no faces found")
		fmt.Println()
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "  NAME\tCONFIDENCE\tDISTANCE\tBOX")
	for _, f := range faces {
		fmt.Fprintf(w, "  %s\t%.3f\t%.4f\t%s\n", f.Label, f.Confidence, f.Distance, f.Box)
	}
	w.Flush()

	for i, n := range out.Nearest {
		fmt.Printf("  nearest to face %d:\n", i+1)
		for _, c := range n.Candidates {
			fmt.Printf("    %-20s %.4f (entry %d)\n", c.Label, c.Distance, c.Position)
		}
	}
	fmt.Println()
}
