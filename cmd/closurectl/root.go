package main

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/pterm/pterm"
	"github.com/schoolerp/backend/internal/bootstrap"
	"github.com/schoolerp/backend/internal/domain/finance"
	"github.com/schoolerp/backend/internal/domain/shared"
	"github.com/schoolerp/backend/internal/infrastructure/config"
	"github.com/schoolerp/backend/internal/infrastructure/logger"
	"github.com/spf13/cobra"
)

type cliState struct {
	schoolID string
	year     string
	userID   string
	logLevel string

	app   *bootstrap.App
	scope shared.SchoolScope
}

// newRootCmd builds the command tree. Every subcommand connects to the
// configured database and acts inside one school and academic year. The
// returned func releases the connection, also after a failed command.
func newRootCmd() (*cobra.Command, func() error) {
	st := &cliState{}

	root := &cobra.Command{
		Use:   "closurectl",
		Short: "Operate school receipts and daily closures",
		Long: `closurectl issues receipt references, prints day ledgers, validates
daily closures and runs the treasury analysis against the configured
school finance database.

Configuration is read like the server does: config.toml, then
SCHOOLFIN_* environment variables, then an optional .env file.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return st.connect(cmd.Context())
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&st.schoolID, "school", "s", "", "School ID (UUID)")
	flags.StringVarP(&st.year, "year", "y", "", "Academic year, e.g. 2025-2026")
	flags.StringVarP(&st.userID, "user", "u", "", "Acting user ID (UUID), recorded on validations")
	flags.StringVar(&st.logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
	_ = root.MarkPersistentFlagRequired("school")
	_ = root.MarkPersistentFlagRequired("year")

	root.AddCommand(
		newReferenceCmd(st),
		newLedgerCmd(st),
		newClosureCmd(st),
		newTreasuryCmd(st),
	)
	return root, st.close
}

func (st *cliState) close() error {
	if st.app == nil {
		return nil
	}
	err := st.app.Close(context.Background())
	st.app = nil
	return err
}

func (st *cliState) connect(ctx context.Context) error {
	schoolID, err := uuid.Parse(st.schoolID)
	if err != nil {
		return fmt.Errorf("--school must be a UUID: %w", err)
	}
	if !finance.ValidAcademicYear(st.year) {
		return finance.ErrInvalidAcademicYear
	}
	userID := uuid.Nil
	if st.userID != "" {
		if userID, err = uuid.Parse(st.userID); err != nil {
			return fmt.Errorf("--user must be a UUID: %w", err)
		}
	}
	st.scope, err = shared.NewSchoolScope(schoolID, st.year, userID)
	if err != nil {
		return err
	}

	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log, err := logger.New(logger.Config{
		Level:  st.logLevel,
		Format: "console",
		Output: "stderr",
	})
	if err != nil {
		return err
	}

	st.app, err = bootstrap.New(ctx, cfg, log, bootstrap.Options{})
	return err
}

func printKeyValues(title string, rows [][]string) error {
	pterm.DefaultSection.Println(title)
	data := pterm.TableData{{"Field", "Value"}}
	data = append(data, rows...)
	return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
}
