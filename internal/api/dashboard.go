package api

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/exoquest/internal/catalog"
	"github.com/banshee-data/exoquest/internal/httputil"
	"github.com/banshee-data/exoquest/internal/inference"
)

const echartsAssetsHost = "https://go-echarts.github.io/go-echarts-assets/assets/"

// NamedCount is one slice of the classification distribution.
type NamedCount struct {
	Name  string `json:"name"`
	Value int    `json:"value"`
}

// FeatureImportance is one bar of the importance chart.
type FeatureImportance struct {
	Feature    string  `json:"feature"`
	Importance float64 `json:"importance"`
}

// DashboardStats is the example training summary shown by the dashboard.
// The figures are fixed reference values, not measured by the service.
type DashboardStats struct {
	TrainingAccuracy           map[catalog.ID][]float64 `json:"training_accuracy"`
	TestingAccuracy            map[catalog.ID][]float64 `json:"testing_accuracy"`
	ClassificationDistribution []NamedCount             `json:"classification_distribution"`
	FeatureImportance          []FeatureImportance      `json:"feature_importance"`
}

// ExampleStats returns the reference dashboard figures.
func ExampleStats() DashboardStats {
	return DashboardStats{
		TrainingAccuracy: map[catalog.ID][]float64{
			catalog.Kepler: {92.1, 93.5, 94.8, 95.2, 96.1, 96.8},
			catalog.K2:     {90.5, 91.8, 93.2, 94.1, 94.9, 95.3},
			catalog.TESS:   {94.2, 95.1, 96.3, 96.8, 97.0, 97.2},
		},
		TestingAccuracy: map[catalog.ID][]float64{
			catalog.Kepler: {91.5, 92.8, 93.9, 94.5, 95.3, 96.2},
			catalog.K2:     {89.8, 90.9, 92.1, 93.2, 94.0, 94.8},
			catalog.TESS:   {93.5, 94.3, 95.5, 96.0, 96.5, 96.9},
		},
		ClassificationDistribution: []NamedCount{
			{inference.Confirmed, 5234},
			{inference.Candidate, 8956},
			{inference.FalsePositive, 3421},
		},
		FeatureImportance: []FeatureImportance{
			{"Transit Depth", 0.28},
			{"Orbital Period", 0.24},
			{"Planet Radius", 0.19},
			{"Transit Duration", 0.15},
			{"Equilibrium Temp", 0.14},
		},
	}
}

func (s *Server) dashboardStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	httputil.WriteJSONOK(w, ExampleStats())
}

func epochLabels(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = "Epoch " + strconv.Itoa(i+1)
	}
	return out
}

// dashboardChart renders the reference stats as an HTML page of charts.
func (s *Server) dashboardChart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	stats := ExampleStats()

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "420px", AssetsHost: echartsAssetsHost}),
		charts.WithTitleOpts(opts.Title{Title: "Model accuracy", Subtitle: "training (solid) and testing (dashed), percent"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithYAxisOpts(opts.YAxis{Min: 85, Max: 100}),
	)
	line.SetXAxis(epochLabels(len(stats.TrainingAccuracy[catalog.Kepler])))
	for _, id := range catalog.Known() {
		line.AddSeries(id.String()+" train", lineData(stats.TrainingAccuracy[id]))
		line.AddSeries(id.String()+" test", lineData(stats.TestingAccuracy[id]),
			charts.WithLineStyleOpts(opts.LineStyle{Type: "dashed"}))
	}

	pie := charts.NewPie()
	pie.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "420px", AssetsHost: echartsAssetsHost}),
		charts.WithTitleOpts(opts.Title{Title: "Classification distribution"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	slices := make([]opts.PieData, len(stats.ClassificationDistribution))
	for i, c := range stats.ClassificationDistribution {
		slices[i] = opts.PieData{Name: c.Name, Value: c.Value}
	}
	pie.AddSeries("dispositions", slices)

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "420px", AssetsHost: echartsAssetsHost}),
		charts.WithTitleOpts(opts.Title{Title: "Feature importance"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	names := make([]string, len(stats.FeatureImportance))
	bars := make([]opts.BarData, len(stats.FeatureImportance))
	for i, f := range stats.FeatureImportance {
		names[i] = f.Feature
		bars[i] = opts.BarData{Value: f.Importance}
	}
	bar.SetXAxis(names).AddSeries("importance", bars,
		charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}),
	)

	page := components.NewPage()
	page.PageTitle = "ExoQuest dashboard"
	page.SetAssetsHost(echartsAssetsHost)
	page.AddCharts(line, pie, bar)

	var buf bytes.Buffer
	if err := page.Render(&buf); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("render error: %v", err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

func lineData(vs []float64) []opts.LineData {
	out := make([]opts.LineData, len(vs))
	for i, v := range vs {
		out[i] = opts.LineData{Value: v}
	}
	return out
}

// AccuracyPlot draws the testing accuracy curves of stats as a PNG.
func AccuracyPlot(stats DashboardStats) ([]byte, error) {
	p := plot.New()
	p.Title.Text = "Testing accuracy"
	p.X.Label.Text = "Epoch"
	p.Y.Label.Text = "Accuracy (%)"

	var series []interface{}
	for _, id := range catalog.Known() {
		vs := stats.TestingAccuracy[id]
		pts := make(plotter.XYs, len(vs))
		for i, v := range vs {
			pts[i] = plotter.XY{X: float64(i + 1), Y: v}
		}
		series = append(series, id.String(), pts)
	}
	if err := plotutil.AddLinePoints(p, series...); err != nil {
		return nil, err
	}
	p.Legend.Top = true
	p.Legend.Left = true

	wt, err := p.WriterTo(6*vg.Inch, 4*vg.Inch, "png")
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if _, err := wt.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (s *Server) accuracyPlot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	png, err := AccuracyPlot(ExampleStats())
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("plot error: %v", err))
		return
	}
	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(png)
}
