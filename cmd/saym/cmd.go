package main

import (
	"github.com/jpcastberg/saym/internal/config"
	"github.com/spf13/cobra"
)

func newCmd(cfg *config.Config) *cobra.Command {
	v := config.NewViper()

	cmd := &cobra.Command{
		Use:           "saym",
		Short:         "Backend for Saym, a two-player word association game.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		SilenceUsage:  true,
		Version:       releaseVersion,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.ApplyEnv(cmd.Flags(), v); err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}
	cfg.RegisterFlags(cmd.Flags())

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("saym v{{.Version}}\n")
	return cmd
}
