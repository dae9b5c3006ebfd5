package linear

import "github.com/YuminosukeSato/claimrate/pkg/errors"

// Params holds the solver settings shared by the linear learners. Each learner
// reads only the fields it documents.
type Params struct {
	// MaxIterations は最大反復回数 (SDCAではエポック数)
	MaxIterations int
	// Tol は収束判定の許容誤差
	Tol float64
	// L1Weight はL1正則化の強さ
	L1Weight float64
	// L2Weight はL2正則化の強さ
	L2Weight float64
	// LearningRate は初期ステップ幅
	LearningRate float64
	// Shuffle はエポックごとにサンプル順をシャッフルするか
	Shuffle bool
	// Seed はシャッフル用の乱数シード
	Seed int64
}

// Option is a function that configures a linear learner
type Option func(*Params)

// WithMaxIterations sets the iteration (or epoch) limit
func WithMaxIterations(n int) Option {
	return func(p *Params) {
		p.MaxIterations = n
	}
}

// WithTol sets the tolerance for the optimization
func WithTol(tol float64) Option {
	return func(p *Params) {
		p.Tol = tol
	}
}

// WithL1Weight sets the L1 penalty
func WithL1Weight(w float64) Option {
	return func(p *Params) {
		p.L1Weight = w
	}
}

// WithL2Weight sets the L2 penalty
func WithL2Weight(w float64) Option {
	return func(p *Params) {
		p.L2Weight = w
	}
}

// WithLearningRate sets the initial step size
func WithLearningRate(lr float64) Option {
	return func(p *Params) {
		p.LearningRate = lr
	}
}

// WithShuffle enables per-epoch shuffling
func WithShuffle(shuffle bool) Option {
	return func(p *Params) {
		p.Shuffle = shuffle
	}
}

// WithSeed sets the random seed
func WithSeed(seed int64) Option {
	return func(p *Params) {
		p.Seed = seed
	}
}

func (p *Params) apply(opts []Option) {
	for _, opt := range opts {
		opt(p)
	}
}

func (p *Params) validate(needL1, needLR bool) error {
	switch {
	case p.MaxIterations < 1:
		return errors.NewValidationError("max_iterations", "must be >= 1", p.MaxIterations)
	case p.Tol < 0:
		return errors.NewValidationError("tol", "must be >= 0", p.Tol)
	case p.L2Weight < 0:
		return errors.NewValidationError("l2_weight", "must be >= 0", p.L2Weight)
	case needL1 && p.L1Weight < 0:
		return errors.NewValidationError("l1_weight", "must be >= 0", p.L1Weight)
	case needLR && p.LearningRate <= 0:
		return errors.NewValidationError("learning_rate", "must be > 0", p.LearningRate)
	}
	return nil
}
