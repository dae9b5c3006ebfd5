// Command claimrate trains a premium-rate regressor on the claims file, reports
// RMS and R² and predicts the rate of one sample policy.
//
// Configuration comes from CLAIMS_* environment variables (see config.Load),
// optionally preset by a .env file in the working directory.
// The report goes to stdout, logs to stderr.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/YuminosukeSato/claimrate/config"
	"github.com/YuminosukeSato/claimrate/dataset"
	"github.com/YuminosukeSato/claimrate/pipeline"
	"github.com/YuminosukeSato/claimrate/pkg/log"
	"github.com/YuminosukeSato/claimrate/report"
)

func main() {
	if err := run(os.Stdout); err != nil {
		log.GetLoggerWithName("claimrate").Error("claimrate failed", err)
		os.Exit(1)
	}
}

// samplePolicy is the record scored at the end of every run.
func samplePolicy() dataset.ClaimsRecord {
	return dataset.ClaimsRecord{
		InceptionDate:       "9/10/2018",
		ExpirationDate:      "9/10/209",
		PolicyStatus:        "Firm Order",
		PoliciesPerDocument: 1,
		NewRenewal:          "New",
		BusinessTypeCode:    "VVC",
		PostalCode:          "MK46 5JA",
	}
}

func run(stdout io.Writer) error {
	if err := config.LoadDotEnv(".env"); err != nil {
		return err
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := log.SetupLogger(cfg.LogLevel, cfg.LogFormat); err != nil {
		return err
	}
	logger := log.GetLoggerWithName("claimrate")

	filter, err := dataset.NewRecordFilter(cfg.RowFilter)
	if err != nil {
		return err
	}
	load := func() ([]dataset.ClaimsRecord, error) {
		records, err := dataset.LoadFile(cfg.DataPath, cfg.Separator)
		if err != nil {
			return nil, err
		}
		return filter.Filter(records)
	}

	// Step 1: load and train
	records, err := load()
	if err != nil {
		return err
	}
	model, err := pipeline.Train(records, cfg.Trainer, cfg.UnknownCategory)
	if err != nil {
		return err
	}
	for _, f := range model.TopFeatures(5) {
		logger.Debug("Feature importance", "feature", f.Name, "importance", f.Importance)
	}

	// Step 2: evaluate on a fresh read of the same file
	logger.Warn("Evaluating on the training file; metrics overstate generalization", log.PathKey, cfg.DataPath)
	evalRecords, err := load()
	if err != nil {
		return err
	}
	res, err := pipeline.Evaluate(model, evalRecords)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "****EVALUATION****\nRms (lower is better) = %v\n", res.RMS)
	fmt.Fprintf(stdout, "RSquared (closer to 1.0 is better)= %v\n", res.RSquared)

	if cfg.PlotPath != "" {
		pred, err := model.PredictBatch(evalRecords)
		if err != nil {
			return err
		}
		labels := make([]float64, len(evalRecords))
		for i, r := range evalRecords {
			labels[i] = r.Label()
		}
		if err := report.WritePredictionPlot(cfg.PlotPath, labels, pred); err != nil {
			return err
		}
	}
	if cfg.MetricsPath != "" {
		exporter := report.NewMetricsExporter()
		exporter.Observe(res, len(records), model.Featurizer().Width(), model.TrainDuration(),
			string(cfg.Trainer.Kind), model.Regressor().Name())
		if err := exporter.WriteTextfile(cfg.MetricsPath); err != nil {
			return err
		}
	}

	// Step 3: predict
	prediction, err := model.Predict(samplePolicy())
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "****PREDICTION****\nPredicted rate is: %v\n", prediction.PredictedRate)
	return nil
}
