package market

import (
	"math"
	"strings"
)

type regime string

const (
	regimeBear    regime = "bear"
	regimeNeutral regime = "neutral"
	regimeBull    regime = "bull"
)

type dynamics struct {
	NoiseScale        float64
	ShockProb         float64
	ShockScale        float64
	ExtremeShockProb  float64
	ExtremeShockScale float64
	MeanReversion     float64
	AnchorNoiseScale  float64
	RegimeSwitchProb  float64
	MaxDropPerTick    float64
}

// NormalizeVolatility maps any input onto a known preset, defaulting to "mor".
func NormalizeVolatility(mode string) string {
	switch v := strings.ToLower(strings.TrimSpace(mode)); v {
	case "calm", "mor", "wild":
		return v
	default:
		return "mor"
	}
}

func volatilityParams(mode string) dynamics {
	switch NormalizeVolatility(mode) {
	case "calm":
		return dynamics{
			NoiseScale:        0.020,
			ShockProb:         0.05,
			ShockScale:        0.09,
			ExtremeShockProb:  0.008,
			ExtremeShockScale: 0.22,
			MeanReversion:     0.03,
			AnchorNoiseScale:  0.012,
			RegimeSwitchProb:  0.04,
			MaxDropPerTick:    1.20,
		}
	case "wild":
		return dynamics{
			NoiseScale:        0.060,
			ShockProb:         0.18,
			ShockScale:        0.20,
			ExtremeShockProb:  0.050,
			ExtremeShockScale: 0.60,
			MeanReversion:     0.010,
			AnchorNoiseScale:  0.038,
			RegimeSwitchProb:  0.11,
			MaxDropPerTick:    2.60,
		}
	default:
		return dynamics{
			NoiseScale:        0.038,
			ShockProb:         0.11,
			ShockScale:        0.14,
			ExtremeShockProb:  0.020,
			ExtremeShockScale: 0.35,
			MeanReversion:     0.018,
			AnchorNoiseScale:  0.022,
			RegimeSwitchProb:  0.07,
			MaxDropPerTick:    2.00,
		}
	}
}

// draw yields uniform [0,1) values. Every helper below consumes draws in a
// fixed order so a seeded oracle replays the same market.
type draw func() float64

// nextRegime picks bear, neutral or bull with equal odds.
func nextRegime(next draw) regime {
	switch u := next(); {
	case u < 1.0/3:
		return regimeBear
	case u < 2.0/3:
		return regimeNeutral
	default:
		return regimeBull
	}
}

// bias is the per-tick log drift a regime adds to every symbol.
func (r regime) bias() float64 {
	const step = 0.0085
	switch r {
	case regimeBull:
		return step
	case regimeBear:
		return -step
	}
	return 0
}

// jitter maps one draw onto [-scale, scale).
func jitter(next draw, scale float64) float64 {
	return scale * (2*next() - 1)
}

// shock fires with probability p. Its size grows with the square of one draw
// and its sign comes from another.
func shock(next draw, p, scale float64) float64 {
	if next() >= p {
		return 0
	}
	size := scale * (0.35 + 2.8*math.Pow(next(), 2))
	if next() < 0.5 {
		size = -size
	}
	return size
}

// anchorReturn moves the fair value a symbol reverts toward: a damped share
// of the regime bias, its own noise, and rare small shocks.
func (d dynamics) anchorReturn(r regime, next draw) float64 {
	ret := 0.30*r.bias() + jitter(next, d.AnchorNoiseScale)
	return ret + shock(next, d.ShockProb*0.20, d.ShockScale*0.40)
}

// priceReturn is bias plus noise plus a pull toward the anchor, then the
// regular and extreme shocks.
func (d dynamics) priceReturn(r regime, q Quote, next draw) float64 {
	ret := r.bias() + jitter(next, d.NoiseScale)
	if q.Anchor > 0 {
		ret += d.MeanReversion * float64(q.Anchor-q.Price) / float64(q.Anchor)
	}
	ret += shock(next, d.ShockProb, d.ShockScale)
	return ret + shock(next, d.ExtremeShockProb, d.ExtremeShockScale)
}

// compound applies a log return to a price. Losses are capped at maxDrop per
// tick; gains are not. The result stays within [MinPrice, MaxPrice].
func compound(price int64, ret, maxDrop float64) int64 {
	if price <= 0 {
		return MinPrice
	}
	ret = math.Max(ret, -maxDrop)
	next := math.Round(float64(price) * math.Exp(ret))
	switch {
	case next < float64(MinPrice):
		return MinPrice
	case next > float64(MaxPrice):
		return MaxPrice
	}
	return int64(next)
}
