package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/Voltaic314/GameLedger/code/api"
	"github.com/Voltaic314/GameLedger/code/config"
	"github.com/Voltaic314/GameLedger/code/core/words"
	"github.com/Voltaic314/GameLedger/code/db"
	"github.com/Voltaic314/GameLedger/code/db/seed"
	"github.com/Voltaic314/GameLedger/code/logging"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	// Global flags
	cfgPath string
	verbose bool

	cfg    *config.Config
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "ledger",
	Short: "GameLedger - record keeping for items, bonds and notes",
	Long: `GameLedger keeps game records (items, bond logs, creature configs, notes)
in a local relational store and serves them over a JSON API. Edits are applied
in memory at once and written to the store after a short debounce window.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == wordcountCmd.Name() {
			return nil
		}

		var err error
		cfg, err = config.Load(cfgPath)
		if err != nil {
			return err
		}
		if verbose {
			cfg.Logging.Level = "debug"
		}
		logger, err = logging.New(cfg.Logging)
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

// serveCmd runs the HTTP API
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the JSON API and the live change feed",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return api.StartServer(ctx, cfg, logger)
	},
}

var resetDB bool

// initDBCmd creates the schema
var initDBCmd = &cobra.Command{
	Use:   "init-db",
	Short: "Create the ledger tables (optionally from scratch)",
	RunE: func(cmd *cobra.Command, args []string) error {
		if resetDB {
			if cfg.Database.Driver == db.DriverPostgres {
				return fmt.Errorf("--reset only applies to file databases")
			}
			logger.Info("removing existing database", zap.String("path", cfg.Database.Path))
			if err := seed.RemoveDatabase(cfg.Database.Path); err != nil {
				return err
			}
		}

		database, err := db.NewDB(cfg.Database.Driver, cfg.Database.Path, logger)
		if err != nil {
			return err
		}
		defer database.Close()
		return seed.InitDB(cmd.Context(), database, logger)
	},
}

// wordcountCmd counts narrative words of a file or stdin
var wordcountCmd = &cobra.Command{
	Use:   "wordcount [file]",
	Short: "Count the words of a text outside quoted dialogue",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		in := cmd.InOrStdin()
		if len(args) == 1 {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			in = f
		}
		text, err := io.ReadAll(in)
		if err != nil {
			return fmt.Errorf("failed to read text: %w", err)
		}

		resp := words.Count(words.CountRequest{Text: string(text)})
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "words:        %d\n", resp.Words)
		fmt.Fprintf(out, "characters:   %d\n", resp.Characters)
		fmt.Fprintf(out, "quoted spans: %d\n", resp.QuotedSpans)
		fmt.Fprintf(out, "total words:  %d\n", resp.TotalWords)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "config.yaml", "path to the config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	initDBCmd.Flags().BoolVar(&resetDB, "reset", false, "delete the database file first")

	rootCmd.AddCommand(serveCmd, initDBCmd, wordcountCmd)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
