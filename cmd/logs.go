package cmd

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/lab-access/internal/database"
)

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Show recorded access attempts, newest first",
	RunE:  runLogs,
}

func init() {
	rootCmd.AddCommand(logsCmd)

	logsCmd.Flags().String("identity", "", "Only attempts claiming this identity")
	logsCmd.Flags().Int("limit", database.DefaultPageLimit, "Maximum attempts to show")
	logsCmd.Flags().Int("offset", 0, "Attempts to skip")
	logsCmd.Flags().Bool("json", false, "Output attempts as JSON")
}

// AttemptOutput is the JSON form of an audited access attempt.
type AttemptOutput struct {
	ID              string    `json:"id"`
	Identity        string    `json:"identity"`
	RoomID          string    `json:"room_id"`
	MatchedIdentity string    `json:"matched_identity,omitempty"`
	Outcome         string    `json:"outcome"`
	Reason          string    `json:"reason,omitempty"`
	Confidence      *int      `json:"confidence,omitempty"`
	Distance        *float64  `json:"distance,omitempty"`
	Timestamp       time.Time `json:"timestamp"`
}

func runLogs(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	b, err := openBackend(ctx)
	if err != nil {
		return err
	}
	defer b.Close()

	attempts, err := b.engine.QueryLogs(ctx, mustGetString(cmd, "identity"), database.Page{
		Limit:  mustGetInt(cmd, "limit"),
		Offset: mustGetInt(cmd, "offset"),
	})
	if err != nil {
		return fmt.Errorf("query logs: %w", err)
	}

	if mustGetBool(cmd, "json") {
		out := make([]AttemptOutput, 0, len(attempts))
		for _, a := range attempts {
			out = append(out, AttemptOutput{
				ID:              a.ID,
				Identity:        a.ClaimedIdentity,
				RoomID:          a.RoomID,
				MatchedIdentity: a.MatchedIdentity,
				Outcome:         string(a.Outcome),
				Reason:          a.DenialReason,
				Confidence:      a.Confidence,
				Distance:        a.Distance,
				Timestamp:       a.Timestamp,
			})
		}
		return outputJSON(out)
	}

	if len(attempts) == 0 {
		fmt.Println("No access attempts recorded")
		return nil
	}

	granted := color.New(color.FgGreen).SprintFunc()
	denied := color.New(color.FgRed).SprintFunc()

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tIDENTITY\tROOM\tOUTCOME\tCONFIDENCE\tREASON")
	for _, a := range attempts {
		outcome := granted(string(a.Outcome))
		if a.Outcome == database.OutcomeDenied {
			outcome = denied(string(a.Outcome))
		}
		confidence := "-"
		if a.Confidence != nil {
			confidence = strconv.Itoa(*a.Confidence) + "%"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			a.Timestamp.Local().Format("2006-01-02 15:04:05"),
			a.ClaimedIdentity, a.RoomID, outcome, confidence, a.DenialReason)
	}
	return w.Flush()
}
