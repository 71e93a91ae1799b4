package model

import (
	"fmt"

	"gonum.org/v1/gonum/stat/distuv"

	"GridCast/internal/domain/models"
)

// QuantileStrategy derives the uncertainty spread around a point
// estimate. Which strategy a unit uses is declared per model descriptor,
// so the distribution shape stays a model-file concern.
type QuantileStrategy interface {
	Quantiles(point float64, levels []float64) []models.QuantileValue
}

// GaussianSpread produces quantiles of N(point, sigma): symmetric around
// the point estimate.
type GaussianSpread struct {
	Sigma float64
}

func (g GaussianSpread) Quantiles(point float64, levels []float64) []models.QuantileValue {
	dist := distuv.Normal{Mu: point, Sigma: g.Sigma}
	out := make([]models.QuantileValue, len(levels))
	for i, lv := range levels {
		out[i] = models.QuantileValue{Level: lv, Value: dist.Quantile(lv)}
	}
	return out
}

// TwoPieceSpread produces a skewed spread: the lower half-distribution
// uses SigmaDown, the upper half SigmaUp. The median is the point
// estimate itself. Price spikes make upside risk fatter than downside
// for most hours, which a symmetric spread understates.
type TwoPieceSpread struct {
	SigmaDown float64
	SigmaUp   float64
}

func (t TwoPieceSpread) Quantiles(point float64, levels []float64) []models.QuantileValue {
	lower := distuv.Normal{Mu: point, Sigma: t.SigmaDown}
	upper := distuv.Normal{Mu: point, Sigma: t.SigmaUp}
	out := make([]models.QuantileValue, len(levels))
	for i, lv := range levels {
		var v float64
		switch {
		case lv < 0.5:
			v = lower.Quantile(lv)
		case lv > 0.5:
			v = upper.Quantile(lv)
		default:
			v = point
		}
		out[i] = models.QuantileValue{Level: lv, Value: v}
	}
	return out
}

// Distribution kinds accepted in model descriptors.
const (
	DistGaussian = "gaussian"
	DistTwoPiece = "two_piece"
)

func strategyFor(desc models.ModelDescriptor) (QuantileStrategy, error) {
	switch desc.Distribution {
	case DistGaussian, "":
		if desc.ResidualSigma <= 0 {
			return nil, fmt.Errorf("residual_sigma must be positive, got %v", desc.ResidualSigma)
		}
		return GaussianSpread{Sigma: desc.ResidualSigma}, nil
	case DistTwoPiece:
		if desc.SigmaDown <= 0 || desc.SigmaUp <= 0 {
			return nil, fmt.Errorf("two_piece requires positive sigma_down and sigma_up")
		}
		return TwoPieceSpread{SigmaDown: desc.SigmaDown, SigmaUp: desc.SigmaUp}, nil
	default:
		return nil, fmt.Errorf("unknown distribution %q", desc.Distribution)
	}
}
