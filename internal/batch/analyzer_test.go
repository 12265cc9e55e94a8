package batch

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedAnalyzer(now time.Time) *ValueAnalyzer {
	a := NewValueAnalyzer()
	a.now = func() time.Time { return now }
	return a
}

func TestValueAnalyzer_Score(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	in20 := now.Add(20 * time.Minute)
	in45 := now.Add(45 * time.Minute)
	in3h := now.Add(3 * time.Hour)

	tests := []struct {
		name     string
		jobType  JobType
		priority JobPriority
		metrics  BusinessMetrics
		want     float64
	}{
		{
			name:     "plain ocr job scores the base value",
			jobType:  JobTypeOCRProcessing,
			priority: PriorityNormal,
			want:     100.0,
		},
		{
			name:     "revenue bonus scales per thousand",
			jobType:  JobTypeOCRProcessing,
			priority: PriorityNormal,
			metrics:  BusinessMetrics{RevenueImpact: 2500},
			want:     102.5,
		},
		{
			name:     "revenue and customer bonuses are capped",
			jobType:  JobTypeCustomerData,
			priority: PriorityCritical,
			metrics:  BusinessMetrics{RevenueImpact: 1_000_000, CustomerCount: 10_000},
			want:     (100 + 5 + 3) * 1.5 * 2,
		},
		{
			name:     "tight sla stacks with deadline urgency",
			jobType:  JobTypeFinancialReport,
			priority: PriorityNormal,
			metrics:  BusinessMetrics{SLADeadline: &in20},
			want:     100 * 1.3 * 2 * 3,
		},
		{
			name:     "close sla gets the smaller multiplier",
			jobType:  JobTypeDataMigration,
			priority: PriorityLow,
			metrics:  BusinessMetrics{SLADeadline: &in45},
			want:     100 * 0.8 * 2 * 2,
		},
		{
			name:     "far deadline adds nothing",
			jobType:  JobTypeOCRProcessing,
			priority: PriorityNormal,
			metrics:  BusinessMetrics{SLADeadline: &in3h},
			want:     100.0,
		},
		{
			name:     "maintenance is discounted",
			jobType:  JobTypeSystemMaintenance,
			priority: PriorityLow,
			want:     60.0,
		},
		{
			name:     "high priority doubles the score",
			jobType:  JobTypeOCRProcessing,
			priority: PriorityHigh,
			want:     200.0,
		},
	}

	analyzer := fixedAnalyzer(now)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job := NewJob(tt.jobType, tt.priority, noopTask)
			job.Metrics = tt.metrics

			got := analyzer.Score(job)

			assert.InDelta(t, tt.want, got, 1e-9)
			assert.Equal(t, got, job.Score(), "score must be written back to the job")
		})
	}
}

func TestValueAnalyzer_HigherRevenueOutranksWithinType(t *testing.T) {
	analyzer := NewValueAnalyzer()

	small := NewJob(JobTypeOCRProcessing, PriorityNormal, noopTask)
	small.Metrics.RevenueImpact = 1000
	big := NewJob(JobTypeOCRProcessing, PriorityNormal, noopTask)
	big.Metrics.RevenueImpact = 4000

	assert.Greater(t, analyzer.Score(big), analyzer.Score(small))
}

func finishedJob(t *testing.T, jobType JobType, metrics BusinessMetrics, score float64, status JobStatus, runtime time.Duration) *Job {
	t.Helper()
	job := NewJob(jobType, PriorityNormal, noopTask)
	job.Metrics = metrics
	job.setScore(score)

	started := time.Now().Add(-runtime)
	require.True(t, job.transition(StatusPending, StatusRunning))
	job.markStarted(started)
	require.True(t, job.transition(StatusRunning, status))
	job.markCompleted(started.Add(runtime))
	return job
}

func TestValueAnalyzer_ROIAnalysis(t *testing.T) {
	analyzer := NewValueAnalyzer()

	finished := []*Job{
		finishedJob(t, JobTypeCustomerData, BusinessMetrics{RevenueImpact: 900, ProcessingCost: 100, CustomerCount: 40}, 320, StatusCompleted, 4*time.Minute),
		finishedJob(t, JobTypeCustomerData, BusinessMetrics{RevenueImpact: 100, ProcessingCost: 100, CustomerCount: 10}, 150, StatusCompleted, 2*time.Minute),
		finishedJob(t, JobTypeOCRProcessing, BusinessMetrics{RevenueImpact: 0, ProcessingCost: 50}, 100, StatusFailed, 6*time.Minute),
	}

	report := analyzer.ROIAnalysis(finished)

	require.True(t, report.HasData)
	assert.Equal(t, 3, report.TotalJobs)
	assert.InDelta(t, 1000.0, report.TotalRevenueImpact, 1e-9)
	assert.InDelta(t, 250.0, report.TotalProcessingCost, 1e-9)
	assert.Equal(t, 50, report.TotalCustomersAffected)
	assert.InDelta(t, 4.0, report.OverallROI, 1e-9)
	assert.InDelta(t, 100.0*2/3, report.SuccessRatePercent, 1e-9)
	assert.InDelta(t, 4.0, report.AvgCompletionMinutes, 1e-9)

	customer := report.TypeAnalysis[JobTypeCustomerData]
	assert.Equal(t, 2, customer.Count)
	assert.InDelta(t, 1000.0, customer.Revenue, 1e-9)
	assert.Equal(t, 50, customer.Customers)

	require.Len(t, report.TopValueJobs, 3)
	assert.Equal(t, finished[0].ID, report.TopValueJobs[0].JobID)
	assert.Equal(t, finished[2].ID, report.TopValueJobs[2].JobID)
}

func TestValueAnalyzer_ROIAnalysisTopFive(t *testing.T) {
	analyzer := NewValueAnalyzer()

	var finished []*Job
	for i := 0; i < 8; i++ {
		finished = append(finished, finishedJob(t, JobTypeOCRProcessing,
			BusinessMetrics{ProcessingCost: 10}, float64(100+i), StatusCompleted, time.Minute))
	}

	report := analyzer.ROIAnalysis(finished)

	require.Len(t, report.TopValueJobs, 5)
	assert.InDelta(t, 107.0, report.TopValueJobs[0].Score, 1e-9)
	assert.InDelta(t, 103.0, report.TopValueJobs[4].Score, 1e-9)
}

func TestValueAnalyzer_ROIAnalysisEmpty(t *testing.T) {
	report := NewValueAnalyzer().ROIAnalysis(nil)
	assert.False(t, report.HasData)
	assert.Zero(t, report.TotalJobs)
}

func TestROIReport_MarshalInfiniteROI(t *testing.T) {
	analyzer := NewValueAnalyzer()
	finished := []*Job{
		finishedJob(t, JobTypeOCRProcessing, BusinessMetrics{RevenueImpact: 500}, 100, StatusCompleted, time.Minute),
	}

	report := analyzer.ROIAnalysis(finished)
	require.True(t, math.IsInf(report.OverallROI, 1))

	raw, err := json.Marshal(report)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Nil(t, decoded["overall_roi"])
	assert.Equal(t, true, decoded["infinite_roi"])
}
