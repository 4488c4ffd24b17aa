package main

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/IvanShishkin/tamperhound/internal/baseline"
	"github.com/IvanShishkin/tamperhound/internal/filesystem"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// baselineCmd groups the baseline authoring commands
func (a *app) baselineCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "baseline",
		Short: "Record and inspect baselines",
	}
	cmd.AddCommand(a.baselineInitCmd())
	cmd.AddCommand(a.baselineShowCmd())
	return cmd
}

// baselineInitCmd creates the baseline init command
func (a *app) baselineInitCmd() *cobra.Command {
	var (
		output         string
		algorithm      string
		recipients     []string
		followSymlinks bool
		exclude        []string
	)

	cmd := &cobra.Command{
		Use:   "init <path...>",
		Short: "Record a new baseline from the current file contents",
		Long: `Hash every file under the given paths and write a baseline document.
The output format follows the file name: .yaml, .json, .jsonc or .cbor,
optionally followed by .zst for compression and .age for encryption.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := a.loadConfig()
			if err != nil {
				return err
			}
			defer logger.Sync()

			if output == "" {
				output = cfg.Baseline.Path
			}
			if algorithm == "" {
				algorithm = cfg.HashAlgorithm
			}
			if len(recipients) == 0 {
				recipients = cfg.Baseline.Recipients
			}
			if len(exclude) == 0 {
				exclude = cfg.Exclude
			}

			resolver := filesystem.NewResolver(filesystem.Options{
				FollowSymlinks:  followSymlinks || cfg.FollowSymlinks,
				WalkDirectories: true,
				Exclude:         exclude,
			}, logger)
			res, err := resolver.Resolve(cmd.Context(), args)
			if err != nil {
				return err
			}
			if len(res.Errors) > 0 {
				errs := make([]error, 0, len(res.Errors))
				for _, e := range res.Errors {
					errs = append(errs, e)
				}
				return fmt.Errorf("cannot record baseline: %w", errors.Join(errs...))
			}

			recorder, err := baseline.NewRecorder(algorithm, logger)
			if err != nil {
				return err
			}
			entries, err := recorder.Record(cmd.Context(), res.Targets)
			if err != nil {
				return fmt.Errorf("cannot record baseline: %w", err)
			}

			store := baseline.NewFileStore(output, baseline.FileStoreOptions{Recipients: recipients}, logger)
			if err := store.Save(recorder.Document(entries)); err != nil {
				logger.Error("Failed to save baseline", zap.String("path", output), zap.Error(err))
				return err
			}

			fmt.Fprintf(a.stdout, "Recorded %d files to %s\n", len(entries), output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Baseline file to write (default: baseline.path from config)")
	cmd.Flags().StringVar(&algorithm, "algorithm", "", "Hash algorithm (default: sha256)")
	cmd.Flags().StringSliceVar(&recipients, "recipient", nil, "age recipient for .age baselines (repeatable)")
	cmd.Flags().BoolVar(&followSymlinks, "follow-symlinks", false, "Follow symbolic links while resolving paths")
	cmd.Flags().StringSliceVar(&exclude, "exclude", nil, "Directories to exclude (comma-separated)")

	return cmd
}

// baselineShowCmd creates the baseline show command
func (a *app) baselineShowCmd() *cobra.Command {
	var (
		path         string
		identityFile string
	)

	cmd := &cobra.Command{
		Use:   "show",
		Short: "List the entries of a baseline",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := a.loadConfig()
			if err != nil {
				return err
			}
			defer logger.Sync()

			if path == "" {
				path = cfg.Baseline.Path
			}
			if identityFile == "" {
				identityFile = cfg.Baseline.IdentityFile
			}

			store := baseline.NewStore(path, baseline.FileStoreOptions{IdentityFile: identityFile}, logger)
			b, err := store.Load(cmd.Context())
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(a.stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ALGORITHM\tDIGEST\tSIZE\tRECORDED\tPATH")
			for _, e := range b.Entries() {
				recorded := "-"
				if e.RecordedAt != nil {
					recorded = e.RecordedAt.Format("2006-01-02 15:04:05")
				}
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n", e.Algorithm, e.Digest, e.Size, recorded, e.Path)
			}
			if err := w.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "\n%d entries in %s\n", b.Len(), store.Source())
			return nil
		},
	}

	cmd.Flags().StringVarP(&path, "baseline", "b", "", "Baseline file (default: baseline.path from config)")
	cmd.Flags().StringVar(&identityFile, "identity", "", "age identity file for encrypted baselines")

	return cmd
}
