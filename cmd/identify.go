package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var identifyCmd = &cobra.Command{
	Use:   "identify",
	Short: "Find the enrolled identity nearest to a face",
	Long: `Identify the single face in an image against all enrolled templates.

Reports the nearest identity when its distance is below the configured
threshold. Identification grants nothing and is not written to the audit log.`,
	RunE: runIdentify,
}

func init() {
	rootCmd.AddCommand(identifyCmd)

	identifyCmd.Flags().String("image", "", "Image containing exactly one face")
	identifyCmd.Flags().Bool("json", false, "Output result as JSON")
	_ = identifyCmd.MarkFlagRequired("image")
}

// IdentifyOutput is the JSON form of an identification.
type IdentifyOutput struct {
	MatchFound bool    `json:"match_found"`
	Identity   string  `json:"identity,omitempty"`
	Confidence int     `json:"confidence,omitempty"`
	Distance   float64 `json:"distance"`
	Compared   int     `json:"compared"`
}

func runIdentify(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	b, err := openBackend(ctx)
	if err != nil {
		return err
	}
	defer b.Close()
	b.loadIndex(ctx)

	probe, err := b.probeFromFile(ctx, mustGetString(cmd, "image"))
	if err != nil {
		return err
	}
	res, err := b.engine.Identify(ctx, probe)
	if err != nil {
		return fmt.Errorf("identify: %w", err)
	}

	if mustGetBool(cmd, "json") {
		return outputJSON(IdentifyOutput{
			MatchFound: res.Matched,
			Identity:   res.Identity,
			Confidence: res.Confidence,
			Distance:   res.Distance,
			Compared:   res.Compared,
		})
	}

	switch {
	case res.Compared == 0:
		fmt.Println("No faces are enrolled")
	case res.Matched:
		fmt.Printf("Identified %s (confidence %d%%, distance %.4f)\n", res.Identity, res.Confidence, res.Distance)
	default:
		fmt.Printf("No matching face found (nearest distance %.4f, threshold %.2f)\n", res.Distance, b.engine.Threshold())
	}
	return nil
}
