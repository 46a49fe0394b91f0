package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"imgmeasure/pkg/metrics"
	"imgmeasure/pkg/predict"
	"imgmeasure/process/batch"
	"imgmeasure/process/report"
	"imgmeasure/process/sanitize"
)

func (a *app) batchCmd() *cobra.Command {
	var noProgress bool
	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Predict every row of the dataset and write the output CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			pred, release, err := newPredictor(ctx, a.cfg, a.log, nil)
			if err != nil {
				return err
			}
			defer release()

			var sink batch.Sink
			if a.cfg.Database.DSN != "" {
				db, err := openDB(a.cfg.Database, a.log)
				if err != nil {
					return err
				}
				defer closeDB(db)
				sink = batch.NewGormSink(db)
			}

			newJob := func() *batch.Job {
				opts := batch.Options{Workers: a.cfg.Batch.Workers, Logger: a.log}
				if !noProgress {
					opts.Progress = (&progress{}).update
				}
				return &batch.Job{Predictor: pred, Options: opts, Sink: sink}
			}

			in, out := a.cfg.InputPath(), a.cfg.OutputPath()
			stats, err := newJob().Process(ctx, in, out)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s: %d rows, %d measured, %d empty, %d invalid entity, %d failed\n",
				out, stats.Total, stats.Measured, stats.Empty, stats.Invalid, stats.Failed)

			if !a.cfg.Batch.Watch {
				return nil
			}
			return batch.Watch(ctx, a.cfg.Dataset.Folder, func(ctx context.Context, path string) {
				if path == in {
					// rewritten default input goes to the configured output
					if _, err := newJob().Process(ctx, path, out); err != nil {
						a.log.Error("batch failed", zap.String("input", path), zap.Error(err))
					}
					return
				}
				if _, err := newJob().Process(ctx, path, batch.OutputPath(path)); err != nil {
					a.log.Error("batch failed", zap.String("input", path), zap.Error(err))
				}
			}, a.log)
		},
	}
	f := cmd.Flags()
	f.String("folder", "", "dataset folder (DATASET_FOLDER)")
	f.String("input", "", "dataset file, relative to the folder")
	f.String("output", "", "output file, relative to the folder")
	f.Int("workers", 0, "concurrent rows (default NumCPU)")
	f.Bool("watch", false, "keep running and process new CSV files in the folder")
	f.BoolVar(&noProgress, "no-progress", false, "disable the progress bar")
	_ = a.v.BindPFlag("dataset.folder", f.Lookup("folder"))
	_ = a.v.BindPFlag("dataset.input", f.Lookup("input"))
	_ = a.v.BindPFlag("dataset.output", f.Lookup("output"))
	_ = a.v.BindPFlag("batch.workers", f.Lookup("workers"))
	_ = a.v.BindPFlag("batch.watch", f.Lookup("watch"))
	return cmd
}

func (a *app) imageCmd() *cobra.Command {
	var showText bool
	cmd := &cobra.Command{
		Use:   "image <image-link> <entity-name>",
		Short: "Predict the measurement for one image",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			pred, release, err := newPredictor(cmd.Context(), a.cfg, a.log, nil)
			if err != nil {
				return err
			}
			defer release()
			out := pred.Evaluate(cmd.Context(), args[0], args[1])
			if showText {
				fmt.Fprintf(cmd.ErrOrStderr(), "--- recognized text ---\n%s\n---\n", out.Text)
			}
			if out.Err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), "warning:", out.Err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), out.Prediction)
			return nil
		},
	}
	cmd.Flags().BoolVar(&showText, "show-text", false, "print the recognized text to stderr")
	return cmd
}

func (a *app) textCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "text <entity-name> [text...]",
		Short: "Extract the measurement from text (reads stdin when no text is given)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw := strings.Join(args[1:], " ")
			if len(args) == 1 {
				b, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("read stdin: %w", err)
				}
				raw = string(b)
			}
			fmt.Fprintln(cmd.OutOrStdout(), predict.Extract(raw, args[0]))
			return nil
		},
	}
}

func (a *app) reportCmd() *cobra.Command {
	var runID string
	var runs int
	cmd := &cobra.Command{
		Use:   "report [output.csv]",
		Short: "Summarize a prediction output file or a stored run",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			w := cmd.OutOrStdout()
			if runID != "" || runs > 0 {
				db, err := openDB(a.cfg.Database, a.log)
				if err != nil {
					return err
				}
				defer closeDB(db)
				if runs > 0 {
					list, err := report.LatestRuns(db, runs)
					if err != nil {
						return err
					}
					report.PrintRuns(w, list)
					return nil
				}
				run, results, err := report.FromRun(db, runID)
				if err != nil {
					return err
				}
				fmt.Fprintf(w, "run %s (%s)\n", run.ID, run.InputPath)
				report.Summarize(results).Print(w)
				return nil
			}

			path := a.cfg.OutputPath()
			if len(args) == 1 {
				path = args[0]
			}
			results, err := report.ReadOutput(path)
			if err != nil {
				return err
			}
			fmt.Fprintln(w, path)
			report.Summarize(results).Print(w)
			return nil
		},
	}
	cmd.Flags().StringVar(&runID, "run", "", "summarize a stored run by id (needs DB_DSN)")
	cmd.Flags().IntVar(&runs, "runs", 0, "list the latest N stored runs (needs DB_DSN)")
	return cmd
}

func (a *app) serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve predictions over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m := metrics.New()
			pred, release, err := newPredictor(cmd.Context(), a.cfg, a.log, m)
			if err != nil {
				return err
			}
			defer release()
			if a.cfg.Server.JWTSecret == "" {
				a.log.Warn("JWT_SECRET not set; prediction endpoints are unauthenticated")
			}

			r := gin.New()
			r.Use(gin.Recovery())
			setupRoutes(r, &server{
				predictor: pred,
				metrics:   m,
				jwtSecret: []byte(a.cfg.Server.JWTSecret),
				log:       a.log,
			})
			return runServer(cmd.Context(), a.cfg.Server.Addr, r, a.log)
		},
	}
	cmd.Flags().String("addr", "", "listen address")
	_ = a.v.BindPFlag("server.addr", cmd.Flags().Lookup("addr"))
	return cmd
}

func (a *app) tokenCmd() *cobra.Command {
	var subject string
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for the HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if a.cfg.Server.JWTSecret == "" {
				return errors.New("server.jwt_secret (JWT_SECRET) is not set")
			}
			if ttl <= 0 {
				ttl = a.cfg.Server.TokenTTL
			}
			tok, err := issueToken([]byte(a.cfg.Server.JWTSecret), subject, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "batch", "token subject")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (default server.token_ttl)")
	return cmd
}

func (a *app) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the run tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			dbCfg := a.cfg.Database
			dbCfg.AutoMigrate = false
			db, err := openDB(dbCfg, a.log)
			if err != nil {
				return err
			}
			defer closeDB(db)
			if n := migrate(db, a.log); n > 0 {
				return fmt.Errorf("%d table(s) failed to migrate", n)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migration completed")
			return nil
		},
	}
}

func (a *app) pruneCmd() *cobra.Command {
	var olderThan time.Duration
	var yes bool
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete stored runs older than a given age (dry run unless --yes)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if olderThan <= 0 {
				return errors.New("--older-than must be positive")
			}
			db, err := openDB(a.cfg.Database, a.log)
			if err != nil {
				return err
			}
			defer closeDB(db)
			res, err := sanitize.PruneRuns(cmd.Context(), db, time.Now().Add(-olderThan), !yes)
			if err != nil {
				return err
			}
			verb := "deleted"
			if res.DryRun {
				verb = "would delete"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %d run(s) and %d prediction(s)\n", verb, res.Runs, res.Predictions)
			if res.DryRun && res.Runs > 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "pass --yes to delete")
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", 30*24*time.Hour, "age of runs to delete")
	cmd.Flags().BoolVar(&yes, "yes", false, "actually delete")
	return cmd
}
