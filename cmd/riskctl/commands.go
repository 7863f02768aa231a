package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/pregnancycare-risk-service/internal/app"
	"github.com/pregnancycare-risk-service/internal/config"
	"github.com/pregnancycare-risk-service/internal/database"
	"github.com/pregnancycare-risk-service/internal/domain"
	"github.com/pregnancycare-risk-service/internal/setup"
)

func loggerFor(cmd *cobra.Command) *logrus.Logger {
	level, _ := cmd.Flags().GetString("log-level")
	return config.NewLogger(level, "text")
}

func loadManager(cmd *cobra.Command) (*config.Manager, error) {
	path, _ := cmd.Flags().GetString("config")
	return config.NewManagerWithFile(path)
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	withRunner := func(fn func(ctx context.Context, runner *database.MigrationRunner, out io.Writer) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			manager, err := loadManager(cmd)
			if err != nil {
				return err
			}
			path, _ := cmd.Flags().GetString("path")
			if path == "" {
				path = manager.GetConfig().Database.MigrationsPath
			}

			runner, err := database.NewMigrationRunner(manager.GetDatabaseURL(), path, loggerFor(cmd))
			if err != nil {
				return err
			}
			defer runner.Close()
			return fn(cmd.Context(), runner, cmd.OutOrStdout())
		}
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: withRunner(func(ctx context.Context, runner *database.MigrationRunner, out io.Writer) error {
			return runner.Up(ctx)
		}),
	}
	downCmd := &cobra.Command{
		Use:   "down",
		Short: "Roll back the last migration",
		RunE: withRunner(func(ctx context.Context, runner *database.MigrationRunner, out io.Writer) error {
			return runner.Down(ctx)
		}),
	}
	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print the applied migration version",
		RunE: withRunner(func(ctx context.Context, runner *database.MigrationRunner, out io.Writer) error {
			version, dirty, err := runner.Version()
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "version: %d dirty: %t\n", version, dirty)
			return nil
		}),
	}

	cmd.PersistentFlags().String("path", "", "migrations directory (default: database.migrations_path)")
	cmd.AddCommand(upCmd, downCmd, versionCmd)
	return cmd
}

func assessCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "assess",
		Short: "Assess one patient with the baseline models and print the record",
		Long: "Reads a patient input JSON document and runs a full assessment using the lite stack " +
			"(PREGNANCY_RISK_DATA_DIR or PREGNANCY_RISK_DATABASE_URL select where the record is stored).",
		RunE: func(cmd *cobra.Command, args []string) error {
			file, _ := cmd.Flags().GetString("file")
			input, err := readInput(cmd.InOrStdin(), file)
			if err != nil {
				return err
			}

			lite, err := app.NewLite(config.LoadLiteConfig(), nil, loggerFor(cmd))
			if err != nil {
				return err
			}
			defer lite.Close()

			var result any
			if scan, _ := cmd.Flags().GetBool("early-detection"); scan {
				result, err = lite.Service.ScanEarlyDetection(cmd.Context(), input)
			} else {
				result, err = lite.Service.Assess(cmd.Context(), input)
			}
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		},
	}
	cmd.Flags().StringP("file", "f", "", "patient input JSON file (- for stdin)")
	cmd.Flags().Bool("early-detection", false, "run the 14-day early-detection scan instead")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func readInput(stdin io.Reader, file string) (*domain.PatientInput, error) {
	var r io.Reader = stdin
	if file != "-" {
		f, err := os.Open(file)
		if err != nil {
			return nil, fmt.Errorf("opening input: %w", err)
		}
		defer f.Close()
		r = f
	}

	var input domain.PatientInput
	if err := json.NewDecoder(r).Decode(&input); err != nil {
		return nil, fmt.Errorf("decoding input: %w", err)
	}
	return &input, nil
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect service configuration",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Load and validate the configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			manager, err := loadManager(cmd)
			if err != nil {
				return err
			}
			if err := manager.Validate(); err != nil {
				return err
			}
			cfg := manager.GetConfig()
			fmt.Fprintf(cmd.OutOrStdout(), "configuration OK (environment %s, server %s:%d, models %s)\n",
				cfg.Environment, cfg.Server.Host, cfg.Server.Port, cfg.Models.BaseURL)
			return nil
		},
	})
	return cmd
}

func setupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Register the MCP server with a desktop MCP client",
	}

	clientCmd := &cobra.Command{
		Use:   "mcp-client",
		Short: "Add or update the MCP server entry in the client configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			var opts setup.Options
			opts.ConfigPath, _ = cmd.Flags().GetString("client-config")
			opts.BinaryPath, _ = cmd.Flags().GetString("binary")
			opts.DataDir, _ = cmd.Flags().GetString("data-dir")

			path, err := setup.Register(opts)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "registered %q in %s; restart the client to load it\n", setup.ServerName, path)
			return nil
		},
	}
	clientCmd.Flags().String("binary", "", "path to the mcp-server binary (default: search PATH and common locations)")
	clientCmd.Flags().String("data-dir", "", "data directory passed to the MCP server")

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show MCP client registration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("client-config")
			status, err := setup.GetStatus(path)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "client config: %s\nregistered:    %t\n", status.ConfigPath, status.Registered)
			if status.Registered {
				fmt.Fprintf(out, "binary:        %s\n", status.ServerPath)
			}
			for _, issue := range status.Issues {
				fmt.Fprintf(out, "issue:         %s\n", issue)
			}
			return nil
		},
	}

	cmd.PersistentFlags().String("client-config", "", "client configuration file (default: Claude Desktop)")
	cmd.AddCommand(clientCmd, statusCmd)
	return cmd
}
