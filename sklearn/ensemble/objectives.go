package ensemble

import (
	"fmt"
	"math"

	"github.com/YuminosukeSato/claimrate/pkg/errors"
)

// ObjectiveFunction defines the loss a boosted ensemble minimizes.
// Predictions passed in are raw scores; Transform maps them to the label scale.
type ObjectiveFunction interface {
	// CalculateGradient calculates the gradient for a single sample
	CalculateGradient(prediction, target float64) float64

	// CalculateHessian calculates the hessian for a single sample
	CalculateHessian(prediction, target float64) float64

	// CalculateLoss calculates the loss for a single sample
	CalculateLoss(prediction, target float64) float64

	// GetInitScore returns the initial raw score for this objective
	GetInitScore(targets []float64) float64

	// Transform converts a raw score into a prediction
	Transform(raw float64) float64

	// Name returns the name of the objective
	Name() string
}

// Objective names accepted by CreateObjectiveFunction.
const (
	ObjectiveRegression = "regression"
	ObjectivePoisson    = "poisson"
	ObjectiveTweedie    = "tweedie"
)

// L2Objective implements squared error on the identity link.
type L2Objective struct{}

func NewL2Objective() *L2Objective {
	return &L2Objective{}
}

func (o *L2Objective) CalculateGradient(prediction, target float64) float64 {
	return prediction - target
}

func (o *L2Objective) CalculateHessian(prediction, target float64) float64 {
	return 1.0
}

func (o *L2Objective) CalculateLoss(prediction, target float64) float64 {
	diff := prediction - target
	return 0.5 * diff * diff
}

func (o *L2Objective) GetInitScore(targets []float64) float64 {
	return mean(targets)
}

func (o *L2Objective) Transform(raw float64) float64 {
	return raw
}

func (o *L2Objective) Name() string {
	return ObjectiveRegression
}

// PoissonObjective implements Poisson deviance on the log link.
type PoissonObjective struct{}

func NewPoissonObjective() *PoissonObjective {
	return &PoissonObjective{}
}

func (o *PoissonObjective) CalculateGradient(prediction, target float64) float64 {
	// exp(pred) - target
	return errors.StabilizeExp(prediction) - target
}

func (o *PoissonObjective) CalculateHessian(prediction, target float64) float64 {
	return errors.StabilizeExp(prediction)
}

func (o *PoissonObjective) CalculateLoss(prediction, target float64) float64 {
	return errors.StabilizeExp(prediction) - target*prediction
}

func (o *PoissonObjective) GetInitScore(targets []float64) float64 {
	return logMean(targets)
}

func (o *PoissonObjective) Transform(raw float64) float64 {
	return errors.StabilizeExp(raw)
}

func (o *PoissonObjective) Name() string {
	return ObjectivePoisson
}

// TweedieObjective implements the Tweedie deviance with variance power rho in (1, 2)
// on the log link. Labels are typically zero-inflated positive amounts such as premiums.
type TweedieObjective struct {
	VariancePower float64
}

func NewTweedieObjective(variancePower float64) *TweedieObjective {
	return &TweedieObjective{VariancePower: variancePower}
}

func (o *TweedieObjective) CalculateGradient(prediction, target float64) float64 {
	rho := o.VariancePower
	return -target*errors.StabilizeExp((1-rho)*prediction) + errors.StabilizeExp((2-rho)*prediction)
}

func (o *TweedieObjective) CalculateHessian(prediction, target float64) float64 {
	rho := o.VariancePower
	return -target*(1-rho)*errors.StabilizeExp((1-rho)*prediction) +
		(2-rho)*errors.StabilizeExp((2-rho)*prediction)
}

func (o *TweedieObjective) CalculateLoss(prediction, target float64) float64 {
	rho := o.VariancePower
	return -target*errors.StabilizeExp((1-rho)*prediction)/(1-rho) +
		errors.StabilizeExp((2-rho)*prediction)/(2-rho)
}

func (o *TweedieObjective) GetInitScore(targets []float64) float64 {
	return logMean(targets)
}

func (o *TweedieObjective) Transform(raw float64) float64 {
	return errors.StabilizeExp(raw)
}

func (o *TweedieObjective) Name() string {
	return ObjectiveTweedie
}

// CreateObjectiveFunction returns the objective registered under name.
func CreateObjectiveFunction(name string, tweedieVariancePower float64) (ObjectiveFunction, error) {
	switch name {
	case "", ObjectiveRegression, "l2":
		return NewL2Objective(), nil
	case ObjectivePoisson:
		return NewPoissonObjective(), nil
	case ObjectiveTweedie:
		if tweedieVariancePower <= 1 || tweedieVariancePower >= 2 {
			return nil, errors.NewValidationError("tweedie_variance_power", "must be in (1, 2)", tweedieVariancePower)
		}
		return NewTweedieObjective(tweedieVariancePower), nil
	default:
		return nil, errors.NewValidationError("objective",
			fmt.Sprintf("must be one of %s, %s, %s", ObjectiveRegression, ObjectivePoisson, ObjectiveTweedie), name)
	}
}

// usesLogLink reports whether the objective needs non-negative labels.
func usesLogLink(obj ObjectiveFunction) bool {
	return obj.Name() == ObjectivePoisson || obj.Name() == ObjectiveTweedie
}

// Helper functions

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0.0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func logMean(values []float64) float64 {
	m := mean(values)
	if m <= 0 {
		return -10.0 // Avoid log(0)
	}
	return math.Log(m)
}
