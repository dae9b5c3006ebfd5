// Package config reads the run configuration from CLAIMS_* environment
// variables. Every variable has a default, so a bare run needs none of them.
package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/YuminosukeSato/claimrate/pkg/errors"
	"github.com/YuminosukeSato/claimrate/pkg/log"
	"github.com/YuminosukeSato/claimrate/preprocessing"
)

// TrainerKind selects the learner.
type TrainerKind string

const (
	// TrainerFastTree is gradient-boosted trees on the squared error
	TrainerFastTree TrainerKind = "fasttree"
	// TrainerFastTreeTweedie is gradient-boosted trees on the Tweedie deviance
	TrainerFastTreeTweedie TrainerKind = "fasttree_tweedie"
	// TrainerFastForest is a random forest
	TrainerFastForest TrainerKind = "fastforest"
	// TrainerPoisson is a Poisson GLM with an elastic-net penalty
	TrainerPoisson TrainerKind = "poisson"
	// TrainerSDCA is ridge regression trained by dual coordinate ascent
	TrainerSDCA TrainerKind = "sdca"
	// TrainerGAM is an additive model of boosted stumps
	TrainerGAM TrainerKind = "gam"
	// TrainerOLS is least squares with a small ridge term
	TrainerOLS TrainerKind = "ols"
)

// TrainerKinds lists every supported kind.
func TrainerKinds() []TrainerKind {
	return []TrainerKind{
		TrainerFastTree,
		TrainerFastTreeTweedie,
		TrainerFastForest,
		TrainerPoisson,
		TrainerSDCA,
		TrainerGAM,
		TrainerOLS,
	}
}

// ParseTrainerKind は大文字小文字を無視して TrainerKind に変換する
func ParseTrainerKind(s string) (TrainerKind, error) {
	k := TrainerKind(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range TrainerKinds() {
		if k == known {
			return k, nil
		}
	}
	return "", errors.NewValidationError("trainer", "unknown trainer kind", s)
}

// Trainer holds the learner choice and its hyperparameters. Fields a learner
// does not use are ignored.
type Trainer struct {
	Kind TrainerKind

	// tree ensembles
	NumTrees        int
	NumLeaves       int
	MinDataInLeaf   int
	DropoutRate     float64
	TweediePower    float64
	FeatureFraction float64
	NumThreads      int

	// shared
	LearningRate float64
	Seed         int64

	// iterative learners (GAM uses MaxIterations as its number of passes)
	MaxIterations int
	Tol           float64
	L1Weight      float64
	L2Weight      float64
}

// DefaultTrainer returns the hyperparameters a kind starts from.
func DefaultTrainer(kind TrainerKind) Trainer {
	t := Trainer{
		Kind:            kind,
		NumTrees:        100,
		NumLeaves:       20,
		MinDataInLeaf:   10,
		TweediePower:    1.5,
		FeatureFraction: 0.7,
		LearningRate:    0.2,
	}
	switch kind {
	case TrainerPoisson:
		t.MaxIterations = 1000
		t.Tol = 1e-7
		t.L1Weight = 0.8
		t.L2Weight = 0.2
		t.LearningRate = 0.1
	case TrainerSDCA:
		t.MaxIterations = 1000
		t.Tol = 1e-6
		t.L2Weight = 1e-4
	case TrainerGAM:
		t.MaxIterations = 500
		t.LearningRate = 0.02
	case TrainerOLS:
		t.L2Weight = 1e-6
	}
	return t
}

// Validate checks the ranges every learner agrees on.
func (t Trainer) Validate() error {
	if _, err := ParseTrainerKind(string(t.Kind)); err != nil {
		return err
	}
	switch {
	case t.NumTrees < 1:
		return errors.NewValidationError("num_trees", "must be >= 1", t.NumTrees)
	case t.NumLeaves < 2:
		return errors.NewValidationError("num_leaves", "must be >= 2", t.NumLeaves)
	case t.MinDataInLeaf < 1:
		return errors.NewValidationError("min_data_in_leaf", "must be >= 1", t.MinDataInLeaf)
	case t.DropoutRate < 0 || t.DropoutRate >= 1:
		return errors.NewValidationError("dropout_rate", "must be in [0, 1)", t.DropoutRate)
	case t.FeatureFraction <= 0 || t.FeatureFraction > 1:
		return errors.NewValidationError("feature_fraction", "must be in (0, 1]", t.FeatureFraction)
	case t.NumThreads < 0:
		return errors.NewValidationError("num_threads", "must be >= 0", t.NumThreads)
	case t.LearningRate <= 0:
		return errors.NewValidationError("learning_rate", "must be > 0", t.LearningRate)
	case t.L1Weight < 0:
		return errors.NewValidationError("l1_weight", "must be >= 0", t.L1Weight)
	case t.L2Weight < 0:
		return errors.NewValidationError("l2_weight", "must be >= 0", t.L2Weight)
	case t.Tol < 0:
		return errors.NewValidationError("tol", "must be >= 0", t.Tol)
	}
	return nil
}

// Config is everything cmd/claimrate needs for one run.
type Config struct {
	DataPath        string
	Separator       rune
	LogLevel        string
	LogFormat       string
	UnknownCategory preprocessing.HandleUnknown
	RowFilter       string
	PlotPath        string
	MetricsPath     string
	Trainer         Trainer
}

// Load builds a Config from the environment.
//
//	CLAIMS_DATA_PATH         ./claims.txt
//	CLAIMS_SEPARATOR         tab
//	CLAIMS_TRAINER           fasttree
//	CLAIMS_LOG_LEVEL         info
//	CLAIMS_LOG_FORMAT        console
//	CLAIMS_UNKNOWN_CATEGORY  ignore
//	CLAIMS_ROW_FILTER        (none)
//	CLAIMS_PLOT_PATH         (off)
//	CLAIMS_METRICS_PATH      (off)
//
// Hyperparameter overrides: CLAIMS_NUM_TREES, CLAIMS_NUM_LEAVES,
// CLAIMS_MIN_DATA_IN_LEAF, CLAIMS_NUM_THREADS, CLAIMS_LEARNING_RATE,
// CLAIMS_DROPOUT_RATE, CLAIMS_TWEEDIE_POWER, CLAIMS_FEATURE_FRACTION,
// CLAIMS_MAX_ITERATIONS, CLAIMS_TOL, CLAIMS_L1_WEIGHT, CLAIMS_L2_WEIGHT,
// CLAIMS_SEED.
func Load() (*Config, error) {
	cfg := &Config{
		DataPath:    getEnv("CLAIMS_DATA_PATH", "./claims.txt"),
		LogLevel:    getEnv("CLAIMS_LOG_LEVEL", "info"),
		LogFormat:   strings.ToLower(getEnv("CLAIMS_LOG_FORMAT", "console")),
		RowFilter:   os.Getenv("CLAIMS_ROW_FILTER"),
		PlotPath:    os.Getenv("CLAIMS_PLOT_PATH"),
		MetricsPath: os.Getenv("CLAIMS_METRICS_PATH"),
	}

	var err error
	if cfg.Separator, err = getEnvAsRune("CLAIMS_SEPARATOR", '\t'); err != nil {
		return nil, err
	}
	if _, err := log.ParseLevel(cfg.LogLevel); err != nil {
		return nil, err
	}
	if cfg.LogFormat != "console" && cfg.LogFormat != "json" {
		return nil, errors.NewValidationError("CLAIMS_LOG_FORMAT", "must be console or json", cfg.LogFormat)
	}
	if cfg.UnknownCategory, err = preprocessing.ParseHandleUnknown(getEnv("CLAIMS_UNKNOWN_CATEGORY", "ignore")); err != nil {
		return nil, err
	}

	kind, err := ParseTrainerKind(getEnv("CLAIMS_TRAINER", string(TrainerFastTree)))
	if err != nil {
		return nil, err
	}
	cfg.Trainer, err = loadTrainer(kind)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDotEnv copies the variables of a .env file into the environment.
// Variables that are already set win, and a missing file is not an error.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return errors.Wrapf(err, "load env file %s", path)
	}
	return nil
}

func loadTrainer(kind TrainerKind) (Trainer, error) {
	t := DefaultTrainer(kind)

	ints := []struct {
		key string
		dst *int
	}{
		{"CLAIMS_NUM_TREES", &t.NumTrees},
		{"CLAIMS_NUM_LEAVES", &t.NumLeaves},
		{"CLAIMS_MIN_DATA_IN_LEAF", &t.MinDataInLeaf},
		{"CLAIMS_NUM_THREADS", &t.NumThreads},
		{"CLAIMS_MAX_ITERATIONS", &t.MaxIterations},
	}
	for _, v := range ints {
		n, err := getEnvAsInt(v.key, *v.dst)
		if err != nil {
			return Trainer{}, err
		}
		*v.dst = n
	}

	floatVars := []struct {
		key string
		dst *float64
	}{
		{"CLAIMS_LEARNING_RATE", &t.LearningRate},
		{"CLAIMS_DROPOUT_RATE", &t.DropoutRate},
		{"CLAIMS_TWEEDIE_POWER", &t.TweediePower},
		{"CLAIMS_FEATURE_FRACTION", &t.FeatureFraction},
		{"CLAIMS_TOL", &t.Tol},
		{"CLAIMS_L1_WEIGHT", &t.L1Weight},
		{"CLAIMS_L2_WEIGHT", &t.L2Weight},
	}
	for _, v := range floatVars {
		f, err := getEnvAsFloat(v.key, *v.dst)
		if err != nil {
			return Trainer{}, err
		}
		*v.dst = f
	}

	seed, err := getEnvAsInt64("CLAIMS_SEED", t.Seed)
	if err != nil {
		return Trainer{}, err
	}
	t.Seed = seed

	if err := t.Validate(); err != nil {
		return Trainer{}, err
	}
	return t, nil
}

func getEnv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) (int, error) {
	valueStr := strings.TrimSpace(os.Getenv(key))
	if valueStr == "" {
		return defaultValue, nil
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return 0, errors.NewValidationError(key, "expected an integer", valueStr)
	}
	return value, nil
}

func getEnvAsInt64(key string, defaultValue int64) (int64, error) {
	valueStr := strings.TrimSpace(os.Getenv(key))
	if valueStr == "" {
		return defaultValue, nil
	}
	value, err := strconv.ParseInt(valueStr, 10, 64)
	if err != nil {
		return 0, errors.NewValidationError(key, "expected an integer", valueStr)
	}
	return value, nil
}

func getEnvAsFloat(key string, defaultValue float64) (float64, error) {
	valueStr := strings.TrimSpace(os.Getenv(key))
	if valueStr == "" {
		return defaultValue, nil
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return 0, errors.NewValidationError(key, "expected a number", valueStr)
	}
	return value, nil
}

// getEnvAsRune accepts a single character or the names "tab", "comma".
func getEnvAsRune(key string, defaultValue rune) (rune, error) {
	valueStr := os.Getenv(key)
	switch strings.ToLower(valueStr) {
	case "":
		return defaultValue, nil
	case "tab", `\t`:
		return '\t', nil
	case "comma":
		return ',', nil
	}
	r := []rune(valueStr)
	if len(r) != 1 {
		return 0, errors.NewValidationError(key, "expected a single character", valueStr)
	}
	return r[0], nil
}
