package main

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/exoquest/internal/artifact"
	"github.com/banshee-data/exoquest/internal/catalog"
	"github.com/banshee-data/exoquest/internal/monitoring"
	"github.com/banshee-data/exoquest/internal/synth"
)

func (a *app) newArtifactsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "artifacts",
		Short: "Inspect and generate catalog artifacts",
	}
	cmd.AddCommand(a.newArtifactsValidateCmd(), a.newArtifactsSynthCmd())
	return cmd
}

func (a *app) newArtifactsValidateCmd() *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Load and check the artifacts of every catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := catalog.Known()
			if name != "" {
				id, err := catalog.Parse(name)
				if err != nil {
					return err
				}
				if id == catalog.Demo {
					return fmt.Errorf("the demo catalog has no stored artifacts")
				}
				ids = []catalog.ID{id}
			}
			src, err := a.cfg.ArtifactSource()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			failed := 0
			for _, id := range ids {
				schema := catalog.MustSchema(id)
				set, err := artifact.Load(cmd.Context(), src, schema)
				if err != nil {
					failed++
					fmt.Fprintf(out, "%-6s FAIL %v\n", id, err)
					continue
				}
				// A scaled all-mean row must evaluate through every tree.
				labels, err := set.Model.Predict(mat.NewDense(1, set.Scaler.Width(), nil))
				if err != nil {
					failed++
					fmt.Fprintf(out, "%-6s FAIL model: %v\n", id, err)
					continue
				}
				fmt.Fprintf(out, "%-6s ok   %d features, %d trees, mean row -> %s\n",
					id, set.Scaler.Width(), len(set.Model.Trees), labels[0])
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d catalogs failed validation", failed, len(ids))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&name, "catalog", "c", "", "validate only this catalog")
	return cmd
}

func (a *app) newArtifactsSynthCmd() *cobra.Command {
	var (
		name string
		opts = synth.DefaultOptions()
	)
	cmd := &cobra.Command{
		Use:   "synth",
		Short: "Write synthetic, untrained artifacts for a catalog",
		Long: `Generate random rows matching a catalog's schema, fit artifacts to them and
write the set to the configured artifact source. The resulting model is
untrained and only useful for wiring and load tests.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := catalog.Parse(name)
			if err != nil {
				return err
			}
			if id == catalog.Demo {
				return fmt.Errorf("the demo catalog is built at startup; pick kepler, k2 or tess")
			}
			schema := catalog.MustSchema(id)
			set, err := synth.Build(schema, opts)
			if err != nil {
				return err
			}
			dst, err := a.cfg.ArtifactSource()
			if err != nil {
				return err
			}
			if err := artifact.Save(cmd.Context(), dst, schema, set); err != nil {
				return err
			}
			monitoring.With(logrus.Fields{"catalog": id, "seed": opts.Seed, "destination": dst.String()}).Info("wrote synthetic artifacts")
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d artifacts for %s\n", len(artifact.Kinds(schema)), id)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVarP(&name, "catalog", "c", "", "catalog to generate (kepler, k2 or tess)")
	f.Uint64Var(&opts.Seed, "seed", 1, "random seed")
	f.IntVar(&opts.Rows, "rows", opts.Rows, "synthetic rows to fit on")
	f.IntVar(&opts.Trees, "trees", opts.Trees, "trees in the forest")
	f.IntVar(&opts.MaxDepth, "max-depth", opts.MaxDepth, "maximum tree depth")
	_ = cmd.MarkFlagRequired("catalog")
	return cmd
}
