package bias

import (
	"context"
	"math"
	"testing"
	"time"

	"merlt/domain/bias"
	"merlt/domain/core"
	"merlt/domain/review"
	"merlt/internal/config"
)

func testConfig() config.BiasConfig {
	return config.BiasConfig{
		SignificanceLevel: 0.05,
		EffectThreshold:   0.10,
		MinSamples:        12,
	}
}

func sampleAt(position review.Position, category review.ProfessionalCategory, region string, offset int) Sample {
	return Sample{
		Position: position,
		Category: category,
		Region:   region,
		CastAt:   core.NewTimestamp(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(offset) * time.Minute)),
	}
}

// perfectlySplitByCategory builds samples where approval is fully determined
// by professional category: the strongest possible clustering signal.
func perfectlySplitByCategory(perGroup int) []Sample {
	var samples []Sample
	for i := 0; i < perGroup; i++ {
		samples = append(samples, sampleAt(review.PositionApprove, review.CategoryAcademic, "north", i))
		samples = append(samples, sampleAt(review.PositionReject, review.CategoryPractitioner, "south", i))
	}
	return samples
}

func TestProfessionalClustering_DetectsPerfectSplit(t *testing.T) {
	det := NewProfessionalClusteringDetector(testConfig())
	samples := perfectlySplitByCategory(15)

	report := det.Detect(context.Background(), "target-1", samples)
	if report == nil {
		t.Fatal("a perfect category/position split must be detected")
	}
	if report.Type != bias.TypeProfessionalClustering {
		t.Errorf("wrong report type: %s", report.Type)
	}
	if report.Severity != bias.SeverityHigh {
		t.Errorf("a perfect split (V=1.0) should grade high severity, got %s", report.Severity)
	}
	if report.Evidence.PValue > 0.05 {
		t.Errorf("perfect split should be significant, p=%f", report.Evidence.PValue)
	}
	if report.Evidence.SampleSize != 30 {
		t.Errorf("sample size should be 30, got %d", report.Evidence.SampleSize)
	}
}

func TestProfessionalClustering_BelowMinSamples(t *testing.T) {
	det := NewProfessionalClusteringDetector(testConfig())
	samples := perfectlySplitByCategory(5) // 10 samples < MinSamples 12

	if report := det.Detect(context.Background(), "target-1", samples); report != nil {
		t.Errorf("sparse data must emit nothing, got %+v", report)
	}
}

func TestProfessionalClustering_BalancedPopulationIsQuiet(t *testing.T) {
	det := NewProfessionalClusteringDetector(testConfig())

	// Approval independent of category: same rate in every group.
	var samples []Sample
	for i := 0; i < 10; i++ {
		samples = append(samples, sampleAt(review.PositionApprove, review.CategoryAcademic, "north", i))
		samples = append(samples, sampleAt(review.PositionReject, review.CategoryAcademic, "north", i))
		samples = append(samples, sampleAt(review.PositionApprove, review.CategoryPractitioner, "south", i))
		samples = append(samples, sampleAt(review.PositionReject, review.CategoryPractitioner, "south", i))
	}

	if report := det.Detect(context.Background(), "target-1", samples); report != nil {
		t.Errorf("independent outcomes must emit nothing, got %+v", report)
	}
}

func TestProfessionalClustering_SingleCategoryIsQuiet(t *testing.T) {
	det := NewProfessionalClusteringDetector(testConfig())

	var samples []Sample
	for i := 0; i < 20; i++ {
		pos := review.PositionApprove
		if i%2 == 0 {
			pos = review.PositionReject
		}
		samples = append(samples, sampleAt(pos, review.CategoryAcademic, "north", i))
	}

	if report := det.Detect(context.Background(), "target-1", samples); report != nil {
		t.Errorf("one category cannot cluster, got %+v", report)
	}
}

func TestGeographic_DetectsRegionalGap(t *testing.T) {
	det := NewGeographicDetector(testConfig())

	var samples []Sample
	for i := 0; i < 20; i++ {
		samples = append(samples, sampleAt(review.PositionApprove, review.CategoryAcademic, "north", i))
	}
	for i := 0; i < 20; i++ {
		samples = append(samples, sampleAt(review.PositionReject, review.CategoryAcademic, "south", i))
	}

	report := det.Detect(context.Background(), "target-1", samples)
	if report == nil {
		t.Fatal("a 100% vs 0% regional gap must be detected")
	}
	if report.Type != bias.TypeGeographic {
		t.Errorf("wrong report type: %s", report.Type)
	}
	if math.Abs(report.Evidence.EffectSize-1.0) > 1e-9 {
		t.Errorf("expected max gap 1.0, got %f", report.Evidence.EffectSize)
	}
	if report.Evidence.Groups["north"] != 1.0 || report.Evidence.Groups["south"] != 0.0 {
		t.Errorf("group approval shares wrong: %+v", report.Evidence.Groups)
	}
}

func TestGeographic_SingleRegionIsQuiet(t *testing.T) {
	det := NewGeographicDetector(testConfig())

	var samples []Sample
	for i := 0; i < 20; i++ {
		samples = append(samples, sampleAt(review.PositionApprove, review.CategoryAcademic, "north", i))
	}

	if report := det.Detect(context.Background(), "target-1", samples); report != nil {
		t.Errorf("one region cannot differ, got %+v", report)
	}
}

func TestTemporal_DetectsBandwagon(t *testing.T) {
	det := NewTemporalDetector(testConfig())

	// Early voters reject, late voters approve: textbook bandwagon drift.
	var samples []Sample
	for i := 0; i < 16; i++ {
		samples = append(samples, sampleAt(review.PositionReject, review.CategoryAcademic, "north", i))
	}
	for i := 16; i < 32; i++ {
		samples = append(samples, sampleAt(review.PositionApprove, review.CategoryAcademic, "north", i))
	}

	report := det.Detect(context.Background(), "target-1", samples)
	if report == nil {
		t.Fatal("a full early/late flip must be detected")
	}
	if report.Evidence.Groups["first_quartile"] != 0.0 {
		t.Errorf("first quartile should be all rejects, got %f", report.Evidence.Groups["first_quartile"])
	}
	if report.Evidence.Groups["last_quartile"] != 1.0 {
		t.Errorf("last quartile should be all approves, got %f", report.Evidence.Groups["last_quartile"])
	}
}

func TestTemporal_StableTimelineIsQuiet(t *testing.T) {
	det := NewTemporalDetector(testConfig())

	var samples []Sample
	for i := 0; i < 32; i++ {
		pos := review.PositionApprove
		if i%2 == 0 {
			pos = review.PositionReject
		}
		samples = append(samples, sampleAt(pos, review.CategoryAcademic, "north", i))
	}

	if report := det.Detect(context.Background(), "target-1", samples); report != nil {
		t.Errorf("a stable approval rate must emit nothing, got %+v", report)
	}
}

func TestAuditor_DeterministicOrder(t *testing.T) {
	auditor := NewAuditor(testConfig())

	// Samples skewed on both the category and region axes at once.
	var samples []Sample
	for i := 0; i < 15; i++ {
		samples = append(samples, sampleAt(review.PositionApprove, review.CategoryAcademic, "north", i))
		samples = append(samples, sampleAt(review.PositionReject, review.CategoryPractitioner, "south", i))
	}

	first := auditor.Detect(context.Background(), "target-1", samples)
	if len(first) < 2 {
		t.Fatalf("expected clustering and geographic findings, got %d reports", len(first))
	}
	for i := 0; i < 5; i++ {
		again := auditor.Detect(context.Background(), "target-1", samples)
		if len(again) != len(first) {
			t.Fatalf("report count changed across runs: %d vs %d", len(again), len(first))
		}
		for j := range again {
			if again[j].Type != first[j].Type {
				t.Fatalf("report order changed across runs at %d: %s vs %s", j, again[j].Type, first[j].Type)
			}
		}
	}
}

func TestBuildSamples_SkipsUnknownAndSorts(t *testing.T) {
	known := review.NewEvaluator("e1", "Known", 0.8, review.CategoryAcademic, "north")
	lookup := func(id core.EvaluatorID) *review.Evaluator {
		if id == "e1" {
			return known
		}
		return nil
	}

	later := core.NewTimestamp(time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC))
	earlier := core.NewTimestamp(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	votes := []review.Vote{
		{EvaluatorID: "e1", Position: review.PositionApprove, CastAt: later},
		{EvaluatorID: "ghost", Position: review.PositionReject, CastAt: earlier},
		{EvaluatorID: "e1", Position: review.PositionReject, CastAt: earlier},
	}

	samples := BuildSamples(votes, lookup)
	if len(samples) != 2 {
		t.Fatalf("unknown evaluator should be skipped, got %d samples", len(samples))
	}
	if samples[0].CastAt.After(samples[1].CastAt) {
		t.Error("samples must be ordered oldest first")
	}
	if samples[0].Category != review.CategoryAcademic || samples[0].Region != "north" {
		t.Errorf("sample attributes not joined from evaluator: %+v", samples[0])
	}
}

func TestTwoProportionZ_Sanity(t *testing.T) {
	// Identical proportions give z=0, p=1.
	z, p := TwoProportionZ(10, 20, 10, 20)
	if z != 0 || p != 1.0 {
		t.Errorf("identical proportions should be null: z=%f p=%f", z, p)
	}

	// A large gap over a decent n is significant.
	_, p = TwoProportionZ(19, 20, 2, 20)
	if p > 0.001 {
		t.Errorf("95%% vs 10%% over n=20 each should be highly significant, p=%f", p)
	}
}

func TestGradeSeverity(t *testing.T) {
	threshold := 0.10
	tests := []struct {
		effect float64
		want   bias.Severity
	}{
		{0.12, bias.SeverityLow},
		{0.20, bias.SeverityModerate},
		{0.29, bias.SeverityModerate},
		{0.30, bias.SeverityHigh},
		{0.95, bias.SeverityHigh},
	}
	for _, tt := range tests {
		if got := bias.GradeSeverity(tt.effect, threshold); got != tt.want {
			t.Errorf("GradeSeverity(%f) = %s, want %s", tt.effect, got, tt.want)
		}
	}
}
