package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/banshee-data/exoquest/internal/config"
	"github.com/banshee-data/exoquest/internal/monitoring"
	"github.com/banshee-data/exoquest/internal/version"
)

// app carries state shared by the subcommands. cfg is populated by the root
// command's pre-run hook.
type app struct {
	v          *viper.Viper
	configFile string
	cfg        *config.Config
}

func newRootCmd(v *viper.Viper) *cobra.Command {
	a := &app{v: v}
	root := &cobra.Command{
		Use:          "exoquest",
		Short:        "Classify exoplanet transit signals with per-catalog random forests",
		SilenceUsage: true,
		Version:      version.Version,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(a.v, a.configFile)
			if err != nil {
				return err
			}
			if err := monitoring.Setup(cfg.Log.Level, cfg.Log.Format, cmd.ErrOrStderr()); err != nil {
				return err
			}
			a.cfg = cfg
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.configFile, "config", "", "configuration file (json, yaml or toml)")
	pf.String("log-level", "info", "log level (debug, info, warn, error)")
	pf.String("log-format", "text", "log format (text or json)")
	pf.String("artifacts-source", "dir", "artifact source (dir or s3)")
	pf.String("artifacts-dir", "models", "artifact directory when the source is dir")
	pf.String("db", "exoquest.db", "run history database; empty disables it")
	pf.Bool("demo", false, "enable the synthetic demo catalog")
	for key, flag := range map[string]string{
		"log.level":        "log-level",
		"log.format":       "log-format",
		"artifacts.source": "artifacts-source",
		"artifacts.dir":    "artifacts-dir",
		"db.path":          "db",
		"demo.enabled":     "demo",
	} {
		if err := v.BindPFlag(key, pf.Lookup(flag)); err != nil {
			panic(fmt.Sprintf("bind flag %s: %v", flag, err))
		}
	}

	root.AddCommand(
		a.newServeCmd(),
		a.newPredictCmd(),
		a.newArtifactsCmd(),
		a.newMigrateCmd(),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.String())
		},
	}
}
