package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/lab-access/internal/constants"
	"github.com/kozaktomas/lab-access/internal/database"
)

var enrollCmd = &cobra.Command{
	Use:   "enroll",
	Short: "Enroll face templates",
	Long: `Enroll the face in an image as the single template of an identity.

With --dir every .jpg/.jpeg/.png file in the directory is enrolled, the
identity being the file name without extension. Identities that are
already enrolled are skipped; their first template is never replaced.

Examples:
  lab-access enroll --identity alice --image alice.jpg
  lab-access enroll --dir ./badges --concurrency 8`,
	RunE: runEnroll,
}

func init() {
	rootCmd.AddCommand(enrollCmd)

	enrollCmd.Flags().String("identity", "", "Identity to enroll")
	enrollCmd.Flags().String("image", "", "Image containing exactly one face")
	enrollCmd.Flags().String("dir", "", "Enroll every image in a directory (file name = identity)")
	enrollCmd.Flags().Int("concurrency", constants.WorkerPoolSize, "Number of parallel workers for --dir")
	enrollCmd.Flags().Bool("json", false, "Output results as JSON")
	enrollCmd.MarkFlagsMutuallyExclusive("dir", "image")
	enrollCmd.MarkFlagsMutuallyExclusive("dir", "identity")
}

// EnrollOutput is the JSON form of one enrollment result.
type EnrollOutput struct {
	Identity string `json:"identity"`
	Image    string `json:"image"`
	Status   string `json:"status"` // enrolled, skipped, failed
	Error    string `json:"error,omitempty"`
}

func runEnroll(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	identity := mustGetString(cmd, "identity")
	image := mustGetString(cmd, "image")
	dir := mustGetString(cmd, "dir")
	jsonOutput := mustGetBool(cmd, "json")

	if dir == "" && (identity == "" || image == "") {
		return errors.New("either --dir or both --identity and --image are required")
	}

	b, err := openBackend(ctx)
	if err != nil {
		return err
	}
	defer b.Close()

	if dir != "" {
		return enrollDirectory(ctx, b, dir, mustGetInt(cmd, "concurrency"), jsonOutput)
	}

	out := enrollOne(ctx, b, identity, image)
	if jsonOutput {
		return outputJSON(out)
	}
	switch out.Status {
	case "enrolled":
		fmt.Printf("Enrolled %s from %s\n", out.Identity, out.Image)
	case "skipped":
		fmt.Printf("%s is already enrolled, keeping the existing template\n", out.Identity)
	default:
		return fmt.Errorf("enrolling %s: %s", out.Identity, out.Error)
	}
	return nil
}

func enrollOne(ctx context.Context, b *backend, identity, image string) EnrollOutput {
	out := EnrollOutput{Identity: identity, Image: image}

	vector, err := b.probeFromFile(ctx, image)
	if err == nil {
		_, err = b.engine.Enroll(ctx, identity, vector, image)
	}
	switch {
	case err == nil:
		out.Status = "enrolled"
	case errors.Is(err, database.ErrAlreadyEnrolled):
		out.Status = "skipped"
	default:
		out.Status = "failed"
		out.Error = err.Error()
	}
	return out
}

func listImages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading directory: %w", err)
	}
	var images []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".jpg", ".jpeg", ".png":
			images = append(images, filepath.Join(dir, e.Name()))
		}
	}
	return images, nil
}

func identityFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func enrollDirectory(ctx context.Context, b *backend, dir string, concurrency int, jsonOutput bool) error {
	images, err := listImages(dir)
	if err != nil {
		return err
	}
	if len(images) == 0 {
		fmt.Printf("No images found in %s\n", dir)
		return nil
	}
	if concurrency < 1 {
		concurrency = 1
	}

	startTime := time.Now()
	if !jsonOutput {
		fmt.Printf("Enrolling %d images with %d workers\n\n", len(images), concurrency)
	}

	var bar *progressbar.ProgressBar
	if !jsonOutput {
		bar = progressbar.NewOptions(len(images),
			progressbar.OptionSetDescription("Enrolling"),
			progressbar.OptionShowCount(),
			progressbar.OptionShowIts(),
			progressbar.OptionSetItsString("images"),
			progressbar.OptionShowElapsedTimeOnFinish(),
			progressbar.OptionSetPredictTime(true),
			progressbar.OptionFullWidth(),
		)
	}

	var (
		enrolled atomic.Int64
		skipped  atomic.Int64
		failed   atomic.Int64
		wg       sync.WaitGroup
		mu       sync.Mutex
	)
	results := make([]EnrollOutput, len(images))
	sem := make(chan struct{}, concurrency)

	for i, image := range images {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, image string) {
			defer wg.Done()
			defer func() { <-sem }()

			out := enrollOne(ctx, b, identityFromPath(image), image)
			switch out.Status {
			case "enrolled":
				enrolled.Add(1)
			case "skipped":
				skipped.Add(1)
			default:
				failed.Add(1)
			}
			results[i] = out

			if bar != nil {
				mu.Lock()
				_ = bar.Add(1)
				mu.Unlock()
			}
		}(i, image)
	}
	wg.Wait()

	if jsonOutput {
		return outputJSON(results)
	}

	fmt.Printf("\n\nEnrollment complete in %s\n", formatDuration(time.Since(startTime)))
	fmt.Printf("  Enrolled: %d\n", enrolled.Load())
	fmt.Printf("  Already enrolled: %d\n", skipped.Load())
	fmt.Printf("  Failed: %d\n", failed.Load())
	for _, out := range results {
		if out.Status == "failed" {
			fmt.Printf("    %s: %s\n", out.Image, out.Error)
		}
	}
	if failed.Load() > 0 {
		return fmt.Errorf("%d of %d enrollments failed", failed.Load(), len(images))
	}
	return nil
}
