package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"complaint-survival-audit/internal/config"
	"complaint-survival-audit/internal/pipeline"
	"complaint-survival-audit/internal/report"
	"complaint-survival-audit/internal/store"
)

var runFlags struct {
	input    string
	cfgPath  string
	seed     int64
	topN     int
	jsonOut  string
	alerts   string
	minTier  string
	plotsDir string
	db       bool
	dbSchema string
	dbTag    string
	initDB   bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full audit against a complaints CSV",
	RunE: func(cmd *cobra.Command, args []string) error {
		if runFlags.input == "" {
			return errors.New("--input is required")
		}

		cfg, err := config.Load(runFlags.cfgPath)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("seed") {
			cfg.Split.Seed = runFlags.seed
		}
		if cmd.Flags().Changed("top") {
			cfg.Report.TopN = runFlags.topN
		}
		if cmd.Flags().Changed("db-schema") {
			cfg.DB.Schema = runFlags.dbSchema
		}
		if cmd.Flags().Changed("db-tag") {
			cfg.DB.Tag = runFlags.dbTag
		}

		result, artifacts, err := pipeline.Run(cfg, runFlags.input)
		if err != nil {
			return err
		}

		report.Print(result)

		if runFlags.jsonOut != "" {
			if err := report.WriteJSON(result, runFlags.jsonOut); err != nil {
				return err
			}
			fmt.Printf("\nJSON report saved to %s\n", runFlags.jsonOut)
		}
		if runFlags.alerts != "" {
			if err := report.WriteAlertsCSV(result, runFlags.alerts, runFlags.minTier); err != nil {
				return err
			}
			fmt.Printf("Alert CSV saved to %s\n", runFlags.alerts)
		}
		if runFlags.plotsDir != "" {
			if err := report.WritePlots(result, artifacts, runFlags.plotsDir); err != nil {
				return err
			}
			fmt.Printf("Plots saved to %s\n", runFlags.plotsDir)
		}

		if runFlags.db || runFlags.initDB {
			if cfg.DB.URL == "" {
				return errors.New("database URL missing; set SURVAUDIT_DB_URL or DATABASE_URL")
			}
			storeCfg := store.Config{URL: cfg.DB.URL, Schema: cfg.DB.Schema, Tag: cfg.DB.Tag}
			seeded := false
			if runFlags.initDB {
				runID, err := store.Seed(result, storeCfg)
				if err != nil {
					return err
				}
				if runID != "" {
					seeded = true
					fmt.Printf("\nSeeded Postgres with initial audit run (run_id=%s)\n", runID)
				} else {
					fmt.Println("Audit data already present; skipping seed.")
				}
			}
			if runFlags.db {
				if seeded {
					fmt.Println("Skipped duplicate insert; current report already used for seed.")
				} else {
					runID, err := store.Store(result, storeCfg)
					if err != nil {
						return err
					}
					fmt.Printf("\nStored audit run in Postgres (run_id=%s)\n", runID)
				}
			}
		}
		return nil
	},
}

func init() {
	runCmd.Flags().StringVar(&runFlags.input, "input", "", "Path to complaints CSV")
	runCmd.Flags().StringVar(&runFlags.cfgPath, "config", "", "Path to YAML config (defaults used when empty)")
	runCmd.Flags().Int64Var(&runFlags.seed, "seed", 0, "Override the split/model seed")
	runCmd.Flags().IntVar(&runFlags.topN, "top", 0, "Top N slowest predicted complaints to show")
	runCmd.Flags().StringVar(&runFlags.jsonOut, "json", "", "Optional JSON output path")
	runCmd.Flags().StringVar(&runFlags.alerts, "alerts", "", "Optional CSV output for predicted-slow complaints")
	runCmd.Flags().StringVar(&runFlags.minTier, "min-tier", "overdue", "Minimum tier for alerts (on_pace, lagging, overdue, stalled)")
	runCmd.Flags().StringVar(&runFlags.plotsDir, "plots-dir", "", "Optional directory for plot PNGs")
	runCmd.Flags().BoolVar(&runFlags.db, "db", false, "Store report in Postgres (requires SURVAUDIT_DB_URL or DATABASE_URL)")
	runCmd.Flags().StringVar(&runFlags.dbSchema, "db-schema", "survaudit", "Postgres schema for audit tables")
	runCmd.Flags().StringVar(&runFlags.dbTag, "db-tag", "", "Optional label for this audit run")
	runCmd.Flags().BoolVar(&runFlags.initDB, "init-db", false, "Initialize database schema and seed data if empty")
}
