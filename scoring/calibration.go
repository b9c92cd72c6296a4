package scoring

import (
	"fmt"
	"strings"
)

const (
	minCalibrated = 0.01
	maxCalibrated = 0.50
)

// Gravity holds the competitive signals that discount a raw model probability.
type Gravity struct {
	DTGap       float64 // target DT minus median DT
	TargetRefs  float64
	MedianRefs  float64
	GiantBrands int
	QueryTokens int
}

// NewGravity collects calibration signals for keyword.
func NewGravity(keyword string, targetDT, medianDT, targetRefs, medianRefs float64, giants int) Gravity {
	return Gravity{
		DTGap:       targetDT - medianDT,
		TargetRefs:  targetRefs,
		MedianRefs:  medianRefs,
		GiantBrands: giants,
		QueryTokens: len(strings.Fields(keyword)),
	}
}

func (g Gravity) dtFactor() float64 {
	switch {
	case g.DTGap >= 0:
		return 1
	case g.DTGap > -10:
		return 0.85
	case g.DTGap > -20:
		return 0.70
	default:
		return 0.50
	}
}

func (g Gravity) refFactor() float64 {
	if g.MedianRefs <= 0 {
		return 1
	}
	ratio := g.TargetRefs / g.MedianRefs
	switch {
	case ratio >= 1:
		return 1
	case ratio >= 0.5:
		return 0.9
	case ratio >= 0.2:
		return 0.75
	case ratio >= 0.05:
		return 0.40
	default:
		return 0.20
	}
}

func (g Gravity) brandFactor() float64 {
	switch {
	case g.GiantBrands >= 4:
		return 0.40
	case g.GiantBrands >= 2:
		return 0.70
	default:
		return 1
	}
}

func (g Gravity) headTermFactor() float64 {
	switch {
	case g.QueryTokens <= 2:
		return 0.50
	case g.QueryTokens <= 3:
		return 0.80
	default:
		return 1
	}
}

// Factor is the product of all penalizers.
func (g Gravity) Factor() float64 {
	return g.dtFactor() * g.refFactor() * g.brandFactor() * g.headTermFactor()
}

// Calibrate discounts raw and clamps the result to the realistic [1%, 50%] range.
func (g Gravity) Calibrate(raw float64) float64 {
	return clamp(raw*g.Factor(), minCalibrated, maxCalibrated)
}

// Explain describes tier and the factors that pushed the keyword into it.
func (g Gravity) Explain(tier OpportunityTier) string {
	var reasons []string

	points := fmt.Sprintf(" (DT -%d points)", absInt(int(g.DTGap)))
	switch {
	case g.DTGap < -20:
		reasons = append(reasons, "Significant authority gap"+points)
	case g.DTGap < -10:
		reasons = append(reasons, "Moderate authority gap"+points)
	case g.DTGap < 0:
		reasons = append(reasons, "Slight authority gap"+points)
	}

	switch {
	case g.GiantBrands >= 4:
		reasons = append(reasons, fmt.Sprintf("Highly dominated by giant brands (%d major brands)", g.GiantBrands))
	case g.GiantBrands >= 2:
		reasons = append(reasons, fmt.Sprintf("Some giant brand competition (%d major brands)", g.GiantBrands))
	}

	switch {
	case g.QueryTokens <= 2:
		reasons = append(reasons, "Very generic head term (highly competitive)")
	case g.QueryTokens <= 3:
		reasons = append(reasons, "Moderately generic term")
	}

	if len(reasons) == 0 {
		reasons = append(reasons, "Competitive but achievable with strong execution")
	}
	return fmt.Sprintf("%s. Factors: %s.", tier.Meaning(), strings.Join(reasons, ", "))
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
