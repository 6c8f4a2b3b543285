package reliability

import (
	"math"
	"sort"

	"github.com/qualia-lab/qualia/internal/model"
)

// BuildMatrix converts per-pass code name lists into a presence matrix.
// Rows are keyed by normalized code name; each row holds one 0/1 entry
// per pass, in pass order.
func BuildMatrix(passes [][]string) map[string][]int {
	matrix := make(map[string][]int)
	for i, names := range passes {
		for _, name := range names {
			norm := model.NormalizeCodeName(name)
			if norm == "" {
				continue
			}
			row, ok := matrix[norm]
			if !ok {
				row = make([]int, len(passes))
				matrix[norm] = row
			}
			row[i] = 1
		}
	}
	return matrix
}

// Alignment splits matrix rows into codes observed by at least two passes
// and codes only one pass produced. Both lists are sorted.
func Alignment(matrix map[string][]int) (aligned, unmatched []string) {
	for name, row := range matrix {
		total := 0
		for _, v := range row {
			total += v
		}
		if total >= 2 {
			aligned = append(aligned, name)
		} else {
			unmatched = append(unmatched, name)
		}
	}
	sort.Strings(aligned)
	sort.Strings(unmatched)
	return aligned, unmatched
}

// PercentAgreement is the fraction of matrix rows where every pass agrees
// on presence or absence. An empty matrix counts as full agreement.
func PercentAgreement(matrix map[string][]int) float64 {
	if len(matrix) == 0 {
		return 1.0
	}
	agree := 0
	for _, row := range matrix {
		if unanimous(row) {
			agree++
		}
	}
	return float64(agree) / float64(len(matrix))
}

func unanimous(row []int) bool {
	for _, v := range row[1:] {
		if v != row[0] {
			return false
		}
	}
	return true
}

// CohensKappa computes chance-corrected agreement between exactly two
// passes. Rows must have two entries each. When expected agreement is 1
// (both passes marked everything present) kappa is defined as 1.
func CohensKappa(matrix map[string][]int) float64 {
	if len(matrix) == 0 {
		return 1.0
	}
	n := float64(len(matrix))
	observed := 0.0
	ones1, ones2 := 0.0, 0.0
	for _, row := range matrix {
		if len(row) != 2 {
			return 0.0
		}
		if row[0] == row[1] {
			observed++
		}
		ones1 += float64(row[0])
		ones2 += float64(row[1])
	}
	po := observed / n
	p1, p2 := ones1/n, ones2/n
	pe := p1*p2 + (1-p1)*(1-p2)
	if math.Abs(1-pe) < 1e-12 {
		return 1.0
	}
	return (po - pe) / (1 - pe)
}

// FleissKappa generalizes chance-corrected agreement to k passes over
// binary presence judgments.
func FleissKappa(matrix map[string][]int, k int) float64 {
	if len(matrix) == 0 || k < 2 {
		return 1.0
	}
	n := float64(len(matrix))
	kf := float64(k)

	sumPi := 0.0
	totalOnes := 0.0
	for _, row := range matrix {
		ones := 0.0
		for _, v := range row {
			ones += float64(v)
		}
		zeros := kf - ones
		sumPi += (ones*(ones-1) + zeros*(zeros-1)) / (kf * (kf - 1))
		totalOnes += ones
	}
	pBar := sumPi / n
	p1 := totalOnes / (n * kf)
	p0 := 1 - p1
	pe := p1*p1 + p0*p0
	if math.Abs(1-pe) < 1e-12 {
		return 1.0
	}
	return (pBar - pe) / (1 - pe)
}

// Interpret maps a kappa value onto the Landis-Koch agreement scale.
func Interpret(kappa float64) string {
	switch {
	case kappa < 0:
		return "poor"
	case kappa < 0.21:
		return "slight"
	case kappa < 0.41:
		return "fair"
	case kappa < 0.61:
		return "moderate"
	case kappa < 0.81:
		return "substantial"
	default:
		return "almost perfect"
	}
}

// ClassifyStability buckets a per-code presence fraction.
func ClassifyStability(score float64) model.StabilityClass {
	switch {
	case score >= 0.8:
		return model.StabilityStable
	case score >= 0.5:
		return model.StabilityModerate
	default:
		return model.StabilityUnstable
	}
}
