package reliability

import (
	"math"
	"testing"

	"github.com/qualia-lab/qualia/internal/model"
)

func TestBuildMatrix_NormalizesAndOrders(t *testing.T) {
	matrix := BuildMatrix([][]string{
		{"Coping Strategies", "family support"},
		{"coping strategies!", "new theme"},
	})

	if len(matrix) != 3 {
		t.Fatalf("Expected 3 rows, got %d", len(matrix))
	}

	row, ok := matrix["coping strategies"]
	if !ok {
		t.Fatal("Expected normalized row for coping strategies")
	}
	if row[0] != 1 || row[1] != 1 {
		t.Errorf("Expected presence in both passes, got %v", row)
	}

	if row := matrix["family support"]; row[0] != 1 || row[1] != 0 {
		t.Errorf("Expected family support only in pass 1, got %v", row)
	}
	if row := matrix["new theme"]; row[0] != 0 || row[1] != 1 {
		t.Errorf("Expected new theme only in pass 2, got %v", row)
	}
}

func TestBuildMatrix_OrderIndependentAlignment(t *testing.T) {
	a := BuildMatrix([][]string{{"x", "y"}, {"y", "z"}})
	b := BuildMatrix([][]string{{"y", "x"}, {"z", "y"}})

	alignedA, _ := Alignment(a)
	alignedB, _ := Alignment(b)

	if len(alignedA) != 1 || len(alignedB) != 1 || alignedA[0] != alignedB[0] {
		t.Errorf("Expected alignment independent of name order, got %v vs %v", alignedA, alignedB)
	}
}

func TestAlignment(t *testing.T) {
	matrix := map[string][]int{
		"shared":    {1, 1, 0},
		"singleton": {0, 1, 0},
		"common":    {1, 1, 1},
	}

	aligned, unmatched := Alignment(matrix)

	if len(aligned) != 2 || aligned[0] != "common" || aligned[1] != "shared" {
		t.Errorf("Expected sorted aligned [common shared], got %v", aligned)
	}
	if len(unmatched) != 1 || unmatched[0] != "singleton" {
		t.Errorf("Expected unmatched [singleton], got %v", unmatched)
	}
}

func TestCohensKappa_ModerateAgreement(t *testing.T) {
	// 10 rows: 4 agreements on presence, 3 on absence, 3 disagreements.
	// p_o = 0.7, p_e = 0.5*0.6 + 0.5*0.4 = 0.5, kappa = 0.4.
	matrix := map[string][]int{
		"a1": {1, 1}, "a2": {1, 1}, "a3": {1, 1}, "a4": {1, 1},
		"b1": {1, 0},
		"c1": {0, 0}, "c2": {0, 0}, "c3": {0, 0},
		"d1": {0, 1}, "d2": {0, 1},
	}

	kappa := CohensKappa(matrix)
	if math.Abs(kappa-0.4) > 1e-9 {
		t.Errorf("Expected kappa 0.4, got %f", kappa)
	}
}

func TestCohensKappa_PerfectAgreement(t *testing.T) {
	matrix := map[string][]int{
		"a": {1, 1},
		"b": {1, 1},
		"c": {0, 0},
	}
	if kappa := CohensKappa(matrix); kappa != 1.0 {
		t.Errorf("Expected kappa 1.0, got %f", kappa)
	}
}

func TestCohensKappa_DegenerateExpectedAgreement(t *testing.T) {
	// Both passes marked everything present: p_e = 1, which would divide
	// by zero. Unanimous raters are defined as perfect agreement.
	matrix := map[string][]int{
		"a": {1, 1},
		"b": {1, 1},
	}
	if kappa := CohensKappa(matrix); kappa != 1.0 {
		t.Errorf("Expected kappa 1.0 for degenerate case, got %f", kappa)
	}
}

func TestFleissKappa_MatchesCohensOnTwoPasses(t *testing.T) {
	matrix := map[string][]int{
		"a1": {1, 1}, "a2": {1, 1}, "a3": {1, 1}, "a4": {1, 1},
		"b1": {1, 0},
		"c1": {0, 0}, "c2": {0, 0}, "c3": {0, 0}, "c4": {0, 0},
		"d1": {0, 1},
	}

	cohen := CohensKappa(matrix)
	fleiss := FleissKappa(matrix, 2)

	// With equal marginals across two raters the two statistics coincide
	if math.Abs(cohen-fleiss) > 1e-9 {
		t.Errorf("Expected Cohen %f and Fleiss %f to match", cohen, fleiss)
	}
}

func TestFleissKappa_ThreePasses(t *testing.T) {
	matrix := map[string][]int{
		"a": {1, 1, 1},
		"b": {1, 1, 1},
		"c": {0, 0, 0},
		"d": {1, 1, 1},
	}
	if kappa := FleissKappa(matrix, 3); kappa != 1.0 {
		t.Errorf("Expected kappa 1.0 for unanimous passes, got %f", kappa)
	}
}

func TestPercentAgreement(t *testing.T) {
	matrix := map[string][]int{
		"a": {1, 1},
		"b": {0, 0},
		"c": {1, 0},
		"d": {0, 1},
	}
	if got := PercentAgreement(matrix); got != 0.5 {
		t.Errorf("Expected 0.5, got %f", got)
	}
}

func TestInterpret_LandisKochBuckets(t *testing.T) {
	tests := []struct {
		kappa    float64
		expected string
	}{
		{-0.1, "poor"},
		{0.1, "slight"},
		{0.205, "slight"}, // bucket edge: slight runs up to 0.21 exclusive
		{0.35, "fair"},
		{0.405, "fair"},
		{0.55, "moderate"},
		{0.605, "moderate"},
		{0.75, "substantial"},
		{0.805, "substantial"},
		{0.95, "almost perfect"},
	}
	for _, tt := range tests {
		if got := Interpret(tt.kappa); got != tt.expected {
			t.Errorf("Interpret(%f) = %q, want %q", tt.kappa, got, tt.expected)
		}
	}
}

func TestClassifyStability(t *testing.T) {
	tests := []struct {
		score    float64
		expected model.StabilityClass
	}{
		{1.0, model.StabilityStable},
		{0.8, model.StabilityStable},
		{0.67, model.StabilityModerate},
		{0.5, model.StabilityModerate},
		{0.33, model.StabilityUnstable},
	}
	for _, tt := range tests {
		if got := ClassifyStability(tt.score); got != tt.expected {
			t.Errorf("ClassifyStability(%f) = %q, want %q", tt.score, got, tt.expected)
		}
	}
}
