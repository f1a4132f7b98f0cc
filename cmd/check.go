package cmd

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/lab-access/internal/access"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Decide whether a person may enter a room",
	Long: `Verify the face in an image against the claimed identity's template and
check the room grant. Every decision is written to the audit log.

Example:
  lab-access check --identity alice --room LAB-101 --image door-cam.jpg`,
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)

	checkCmd.Flags().String("identity", "", "Claimed identity")
	checkCmd.Flags().String("room", "", "Room ID")
	checkCmd.Flags().String("image", "", "Image containing exactly one face")
	checkCmd.Flags().Bool("json", false, "Output decision as JSON")
	_ = checkCmd.MarkFlagRequired("identity")
	_ = checkCmd.MarkFlagRequired("room")
	_ = checkCmd.MarkFlagRequired("image")
}

func runCheck(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	b, err := openBackend(ctx)
	if err != nil {
		return err
	}
	defer b.Close()

	probe, err := b.probeFromFile(ctx, mustGetString(cmd, "image"))
	if err != nil {
		return err
	}

	decision, err := b.engine.CheckAccess(ctx, access.CheckRequest{
		ClaimedIdentity: mustGetString(cmd, "identity"),
		RoomID:          mustGetString(cmd, "room"),
		Probe:           probe,
	})
	if err != nil {
		return fmt.Errorf("check access: %w", err)
	}

	if mustGetBool(cmd, "json") {
		return outputJSON(attemptOutputFromDecision(decision))
	}

	if decision.Granted() {
		color.New(color.FgGreen, color.Bold).Printf("ACCESS GRANTED")
		confidence := 0
		if decision.Confidence != nil {
			confidence = *decision.Confidence
		}
		fmt.Printf(" %s -> %s (confidence %d%%)\n", decision.Identity, decision.RoomID, confidence)
	} else {
		color.New(color.FgRed, color.Bold).Printf("ACCESS DENIED")
		fmt.Printf(" %s -> %s: %s\n", decision.Identity, decision.RoomID, decision.Reason)
	}
	fmt.Printf("Attempt %s recorded at %s\n", decision.AttemptID, decision.Timestamp.Format("2006-01-02 15:04:05"))
	return nil
}

func attemptOutputFromDecision(d access.Decision) AttemptOutput {
	return AttemptOutput{
		ID:         d.AttemptID,
		Identity:   d.Identity,
		RoomID:     d.RoomID,
		Outcome:    string(d.Outcome),
		Reason:     d.Reason,
		Confidence: d.Confidence,
		Distance:   d.Distance,
		Timestamp:  d.Timestamp,
	}
}
