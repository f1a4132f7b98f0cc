package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var roomsCmd = &cobra.Command{
	Use:   "rooms",
	Short: "Search laboratories in the campus directory",
	Long: `Search rooms in the campus directory (MariaDB) by name. Matching ignores
case and diacritics. Requires DIRECTORY_DATABASE_URL.`,
	RunE: runRooms,
}

func init() {
	rootCmd.AddCommand(roomsCmd)

	roomsCmd.Flags().String("name", "", "Name fragment to search for (empty lists all rooms)")
	roomsCmd.Flags().Bool("json", false, "Output rooms as JSON")
}

func runRooms(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	b, err := openBackend(ctx)
	if err != nil {
		return err
	}
	defer b.Close()

	if b.directory == nil {
		return errors.New("DIRECTORY_DATABASE_URL environment variable is required")
	}

	rooms, err := b.directory.FindRoomsByName(ctx, mustGetString(cmd, "name"))
	if err != nil {
		return fmt.Errorf("search rooms: %w", err)
	}

	if mustGetBool(cmd, "json") {
		return outputJSON(rooms)
	}
	if len(rooms) == 0 {
		fmt.Println("No rooms found")
		return nil
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tLOCATION\tCAPACITY")
	for _, r := range rooms {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\n", r.ID, r.Name, r.Location, r.Capacity)
	}
	return w.Flush()
}
