package bias

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

// ChiSquarePValue computes the upper-tail p-value for a chi-square statistic.
func ChiSquarePValue(chiSquare float64, degreesOfFreedom int) float64 {
	if degreesOfFreedom <= 0 || chiSquare <= 0 {
		return 1.0
	}
	chiDist := distuv.ChiSquared{K: float64(degreesOfFreedom)}
	return 1 - chiDist.CDF(chiSquare)
}

// TwoProportionZ computes the z statistic and two-tailed p-value for the
// difference between two proportions under the pooled null.
func TwoProportionZ(successes1, n1, successes2, n2 int) (z, pValue float64) {
	if n1 == 0 || n2 == 0 {
		return 0, 1.0
	}

	p1 := float64(successes1) / float64(n1)
	p2 := float64(successes2) / float64(n2)
	pooled := float64(successes1+successes2) / float64(n1+n2)

	se := math.Sqrt(pooled * (1 - pooled) * (1/float64(n1) + 1/float64(n2)))
	if se == 0 {
		return 0, 1.0
	}

	z = (p1 - p2) / se
	pValue = 2 * (1 - distuv.UnitNormal.CDF(math.Abs(z)))
	return z, pValue
}

// CramersV computes the effect size for a chi-square test over an r x c
// contingency table: V = sqrt(chi2 / (n * min(r-1, c-1))).
func CramersV(chiSquare float64, n, rows, cols int) float64 {
	minDim := math.Min(float64(rows-1), float64(cols-1))
	if n <= 0 || minDim <= 0 {
		return 0
	}
	return math.Sqrt(chiSquare / (float64(n) * minDim))
}
