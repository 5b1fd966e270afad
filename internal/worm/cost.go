package worm

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Rejection reasons reported in a Verdict.
const (
	ReasonAccepted      = "accepted"
	ReasonCost          = "cost above threshold"
	ReasonAreaLow       = "area below minimum"
	ReasonAreaHigh      = "area above maximum"
	ReasonPathTooShort  = "path length below minimum"
	ReasonPathTooLong   = "path length above maximum"
	ReasonBadDimensions = "feature dimension mismatch"
)

// Candidate is a segmented shape proposed as a single worm, reduced to the
// features the trained statistics score against.
type Candidate struct {
	Angles     []float64 `json:"angles"`
	Area       float64   `json:"area"`
	PathLength float64   `json:"path_length"`
}

// Verdict is the outcome of scoring a candidate: the Mahalanobis-style
// cost and, when rejected, the first rule that failed.
type Verdict struct {
	Cost     float64 `json:"cost"`
	Accepted bool    `json:"accepted"`
	Reason   string  `json:"reason"`
}

// Scorer scores candidate shapes against a validated TrainingParams record.
// It caches the inverse covariance in dense form; a Scorer is safe for
// concurrent use because it is read-only after construction.
type Scorer struct {
	params *TrainingParams
	mean   *mat.VecDense
	invCov *mat.Dense
}

// NewScorer builds a Scorer. The params must pass Validate; an invalid
// record cannot produce meaningful costs.
func NewScorer(p *TrainingParams) (*Scorer, error) {
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("new scorer: %w", err)
	}
	return &Scorer{
		params: p,
		mean:   mat.NewVecDense(len(p.MeanAngles), append([]float64(nil), p.MeanAngles...)),
		invCov: p.covarianceDense(),
	}, nil
}

// Params returns the record this scorer was built from.
func (s *Scorer) Params() *TrainingParams { return s.params }

// Cost computes (x-mu)' * InvCov * (x-mu) for the given angle feature
// vector.
func (s *Scorer) Cost(angles []float64) (float64, error) {
	d := s.mean.Len()
	if len(angles) != d {
		return 0, fmt.Errorf("cost: feature vector has %d entries, want %d", len(angles), d)
	}

	diff := mat.NewVecDense(d, nil)
	diff.SubVec(mat.NewVecDense(d, append([]float64(nil), angles...)), s.mean)

	tmp := mat.NewVecDense(d, nil)
	tmp.MulVec(s.invCov, diff)
	return mat.Dot(diff, tmp), nil
}

// Accept applies the full acceptance rule: Mahalanobis cost within the
// trained threshold and size metrics within the trained bounds. The first
// failing rule is reported; cost is computed before the size checks so a
// rejected verdict still carries it when the dimensions allow.
func (s *Scorer) Accept(c Candidate) Verdict {
	cost, err := s.Cost(c.Angles)
	if err != nil {
		return Verdict{Reason: ReasonBadDimensions}
	}
	v := Verdict{Cost: cost}

	switch {
	case cost > s.params.CostThreshold:
		v.Reason = ReasonCost
	case c.Area < s.params.MinArea:
		v.Reason = ReasonAreaLow
	case c.Area > s.params.MaxArea:
		v.Reason = ReasonAreaHigh
	case c.PathLength < s.params.MinPathLength:
		v.Reason = ReasonPathTooShort
	case c.PathLength > s.params.MaxPathLength:
		v.Reason = ReasonPathTooLong
	default:
		v.Accepted = true
		v.Reason = ReasonAccepted
	}
	return v
}
