package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/banshee-data/exoquest/internal/api"
	"github.com/banshee-data/exoquest/internal/batch"
	"github.com/banshee-data/exoquest/internal/monitoring"
	"github.com/banshee-data/exoquest/internal/results"
	"github.com/banshee-data/exoquest/internal/security"
)

type predictFlags struct {
	catalog string
	out     string
	server  string
}

func (a *app) newPredictCmd() *cobra.Command {
	var f predictFlags
	cmd := &cobra.Command{
		Use:   "predict <csv>",
		Short: "Classify the rows of a CSV file",
		Long: `Classify every row of a CSV file with one catalog's model and print the
results as JSON. With --server the file is uploaded to a running exoquest
server instead of being classified locally.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.predict(cmd, args[0], f)
		},
	}
	cmd.Flags().StringVarP(&f.catalog, "catalog", "c", "", "catalog to classify with (kepler, k2, tess or demo)")
	cmd.Flags().StringVarP(&f.out, "out", "o", "", "write results to this file instead of stdout")
	cmd.Flags().StringVar(&f.server, "server", "", "base URL of a remote exoquest server")
	_ = cmd.MarkFlagRequired("catalog")
	return cmd
}

func (a *app) predict(cmd *cobra.Command, path string, f predictFlags) error {
	if f.out != "" {
		if err := security.ValidateOutputPath(f.out); err != nil {
			return err
		}
	}
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	var resp *api.PredictResponse
	if f.server != "" {
		resp, err = api.NewClient(f.server, nil).Predict(cmd.Context(), f.catalog, filepath.Base(path), file)
	} else {
		resp, err = a.predictLocal(cmd, f.catalog, file)
	}
	if err != nil {
		return err
	}
	monitoring.With(logrus.Fields{
		"catalog": resp.ModelUsed,
		"rows":    resp.Total,
		"run_id":  resp.RunID,
		"counts":  results.Tally(resp.Results),
	}).Info("classified batch")

	var w io.Writer = cmd.OutOrStdout()
	if f.out != "" {
		out, err := os.Create(f.out)
		if err != nil {
			return err
		}
		defer out.Close()
		w = out
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(resp)
}

func (a *app) predictLocal(cmd *cobra.Command, model string, r io.Reader) (*api.PredictResponse, error) {
	d, err := newDispatcher(cmd.Context(), a.cfg)
	if err != nil {
		return nil, err
	}
	b, err := batch.ReadCSV(r)
	if err != nil {
		return nil, fmt.Errorf("invalid CSV: %w", err)
	}
	run, err := d.Run(cmd.Context(), model, b)
	if err != nil {
		return nil, err
	}
	if run.Demo {
		monitoring.Logger().Warn("demo catalog output is synthetic and untrained")
	}
	return &api.PredictResponse{
		Success:     true,
		Results:     run.Results,
		Total:       run.Total(),
		ModelUsed:   run.Catalog.String(),
		RunID:       run.ID.String(),
		Demo:        run.Demo,
		Synthesized: run.Synthesized,
	}, nil
}
