package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/marcus/tdo/internal/connector"
	"github.com/marcus/tdo/internal/db"
	"github.com/marcus/tdo/internal/models"
	"github.com/marcus/tdo/internal/output"
	tdsync "github.com/marcus/tdo/internal/sync"
)

// newRunner builds the upload runner for database. The connector must
// already be initialized.
func newRunner(database *db.DB, conn *connector.Connector) *tdsync.Runner {
	return tdsync.NewRunner(tdsync.RunnerConfig{
		Debounce:   cfg.Sync.Debounce,
		Interval:   cfg.Sync.Interval,
		BackoffMin: cfg.Sync.BackoffMin,
		BackoffMax: cfg.Sync.BackoffMax,
		WatchDir:   database.DataDir(),
		WatchFiles: []string{db.DBFile},
		Lock:       database.AcquireUploadLock,
	}, func(ctx context.Context) error {
		return conn.UploadData(ctx, database)
	}, database)
}

var syncCmd = &cobra.Command{
	Use:     "sync",
	Short:   "Upload queued changes",
	GroupID: "sync",
	Long: `Upload every queued local change to the remote store, oldest first.

Changes the server rejects permanently (constraint violations, bad data,
permission denied) are dropped from the queue and listed by 'tdo sync discarded'.
Network and server errors leave the queue untouched for the next attempt.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		database, err := openDB()
		if err != nil {
			return err
		}
		defer database.Close()

		ctx := cmd.Context()
		if status, _ := cmd.Flags().GetBool("status"); status {
			return printUploadState(ctx, database, cmd)
		}

		conn, backend, err := newConnector(database)
		if err != nil {
			return err
		}
		defer backend.Close()
		if err := conn.Init(ctx); err != nil {
			return err
		}
		if err := claimOfflineWrites(ctx, database, conn); err != nil {
			return err
		}

		runner := newRunner(database, conn)

		if watch, _ := cmd.Flags().GetBool("watch"); watch {
			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()
			output.Info("Watching for changes (Ctrl-C to stop)")
			return runner.Run(ctx)
		}

		n, err := runner.Drain(ctx)
		if err != nil {
			if n > 0 {
				output.Warning("Uploaded %d transaction(s) before failing", n)
			}
			return fmt.Errorf("upload: %w", err)
		}
		if n == 0 {
			fmt.Println("Nothing to upload")
			return nil
		}
		output.Success("Uploaded %d transaction(s)", n)
		return nil
	},
}

func printUploadState(ctx context.Context, database *db.DB, cmd *cobra.Command) error {
	state, err := database.GetUploadState(ctx)
	if err != nil {
		return err
	}
	if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
		return output.JSON(state)
	}
	fmt.Println(output.FormatUploadState(state))
	return nil
}

var syncDiscardedCmd = &cobra.Command{
	Use:   "discarded",
	Short: "Show changes the server rejected",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		database, err := openDB()
		if err != nil {
			return err
		}
		defer database.Close()

		limit, _ := cmd.Flags().GetInt("limit")
		discarded, err := database.ListDiscarded(cmd.Context(), limit)
		if err != nil {
			return err
		}
		if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
			if discarded == nil {
				discarded = []models.DiscardedOperation{}
			}
			return output.JSON(discarded)
		}
		if len(discarded) == 0 {
			fmt.Println("No discarded changes")
			return nil
		}
		fmt.Println(output.SectionHeader("DISCARDED"))
		for i := range discarded {
			fmt.Println(output.FormatDiscarded(&discarded[i]))
		}
		return nil
	},
}

func init() {
	syncCmd.Flags().Bool("watch", false, "keep running and upload after every local change")
	syncCmd.Flags().Bool("status", false, "show the upload queue instead of uploading")
	syncCmd.Flags().Bool("json", false, "output JSON (with --status)")

	syncDiscardedCmd.Flags().Int("limit", 20, "maximum entries to show (0 for all)")
	syncDiscardedCmd.Flags().Bool("json", false, "output JSON")

	syncCmd.AddCommand(syncDiscardedCmd)
	rootCmd.AddCommand(syncCmd)
}
