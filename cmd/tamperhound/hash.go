package main

import (
	"fmt"

	"github.com/IvanShishkin/tamperhound/internal/hasher"
	"github.com/spf13/cobra"
)

// hashCmd creates the hash command
func (a *app) hashCmd() *cobra.Command {
	var algorithm string

	cmd := &cobra.Command{
		Use:   "hash <file...>",
		Short: "Print the digest of files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, path := range args {
				digest, err := hasher.DigestFile(path, algorithm)
				if err != nil {
					return err
				}
				fmt.Fprintf(a.stdout, "%s  %s\n", digest, path)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&algorithm, "algorithm", hasher.Default, "Hash algorithm")

	return cmd
}

// algorithmsCmd creates the algorithms command
func (a *app) algorithmsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "algorithms",
		Short: "List supported hash algorithms",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(a.stdout, "SUPPORTED HASH ALGORITHMS:")
			for _, name := range hasher.Supported() {
				size, _ := hasher.Size(name)
				marker := " "
				if name == hasher.Default {
					marker = "✓"
				}
				fmt.Fprintf(a.stdout, "  %s %-8s %3d-bit digest\n", marker, name, size*8)
			}
			fmt.Fprintln(a.stdout, "")
			fmt.Fprintln(a.stdout, "  ✓ marks the default for new baselines. Each baseline entry records its")
			fmt.Fprintln(a.stdout, "  own algorithm, so baselines may mix algorithms across entries.")
		},
	}
}
