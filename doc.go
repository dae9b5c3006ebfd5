// Package claimrate trains a premium-rate regressor on a tab-separated insurance
// claims file and scores new policies with it.
//
// A run loads the nine-column claims file, dictionarizes and one-hot encodes the
// five categorical columns, trains one learner, reports RMS and R² and predicts
// the rate of a sample policy:
//
//	CLAIMS_DATA_PATH=./claims.txt CLAIMS_TRAINER=fastforest go run ./cmd/claimrate
//
// # Packages
//
//   - dataset: ClaimsRecord, the TSV reader and the CEL row filter
//   - preprocessing: Dictionarizer, OneHotEncoder and the MinMaxScaler used by the linear learners
//   - pipeline: Featurizer, Train, Evaluate and Model.Predict
//   - sklearn/tree: the histogram tree builder shared by the ensembles
//   - sklearn/ensemble: gradient boosting (with DART), random forest and a boosted-stump GAM
//   - linear: Poisson GLM, SDCA ridge regression and OLS
//   - metrics: L1, L2, RMS and R²
//   - report: predicted-vs-actual plot and a Prometheus textfile
//   - config: CLAIMS_* environment configuration
//   - core/model: estimator interfaces and input validation
//   - core/parallel: worker fan-out used by the random forest and OLS
//   - pkg/errors, pkg/log: typed errors over cockroachdb/errors, zerolog logging
//
// # Library use
//
//	records, err := dataset.LoadFile("claims.txt", dataset.DefaultSeparator)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	m, err := pipeline.Train(records, config.DefaultTrainer(config.TrainerFastTree), preprocessing.UnknownIgnore)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	res, err := m.Predict(dataset.ClaimsRecord{NewRenewal: "New", PostalCode: "MK46 5JA"})
//
// Evaluation in cmd/claimrate runs on the training file itself, so the reported
// metrics are optimistic.
package claimrate
