package batch

import (
	"encoding/json"
	"math"
	"sort"
	"time"
)

// Score composition constants. Revenue and customer bonuses are capped so a
// single extreme submission cannot dominate the ranking.
const (
	baseValue          = 100.0
	revenueBonusCap    = 5.0
	revenueBonusUnit   = 1000.0
	customerBonusCap   = 3.0
	customerBonusUnit  = 50.0
	urgencyMultiplier  = 2.0
	slaTightMultiplier = 3.0
	slaCloseMultiplier = 2.0
	slaTightWindow     = 30 * time.Minute
	slaCloseWindow     = time.Hour
)

// defaultTypeWeights ranks job categories by inherent business stakes.
var defaultTypeWeights = map[JobType]float64{
	JobTypeCustomerData:      1.5,
	JobTypeFinancialReport:   1.3,
	JobTypeOCRProcessing:     1.0,
	JobTypeDataMigration:     0.8,
	JobTypeSystemMaintenance: 0.6,
}

// ValueAnalyzer turns a job's declared business metrics into the scalar
// score the queue is ordered by. Scoring is a pure function of the job and
// the clock; the only side effect is writing the score back onto the job.
type ValueAnalyzer struct {
	typeWeights map[JobType]float64
	now         func() time.Time
}

// NewValueAnalyzer returns an analyzer with the default type weights.
func NewValueAnalyzer() *ValueAnalyzer {
	return &ValueAnalyzer{
		typeWeights: defaultTypeWeights,
		now:         time.Now,
	}
}

// Score computes the business value score for a job and stores it on the
// job's metrics. Scores are strictly positive and only meaningful relative
// to each other.
func (a *ValueAnalyzer) Score(job *Job) float64 {
	now := a.now()

	typeWeight, ok := a.typeWeights[job.Type]
	if !ok {
		typeWeight = 1.0
	}

	revenueBonus := math.Min(job.Metrics.RevenueImpact/revenueBonusUnit, revenueBonusCap)
	customerBonus := math.Min(float64(job.Metrics.CustomerCount)/customerBonusUnit, customerBonusCap)

	urgency := 1.0
	if job.urgent(now) {
		urgency = urgencyMultiplier
	}

	sla := 1.0
	if job.Metrics.SLADeadline != nil {
		switch left := job.Metrics.SLADeadline.Sub(now); {
		case left < slaTightWindow:
			sla = slaTightMultiplier
		case left < slaCloseWindow:
			sla = slaCloseMultiplier
		}
	}

	score := (baseValue + revenueBonus + customerBonus) * typeWeight * urgency * sla
	job.setScore(score)
	return score
}

// TypeBreakdown is the per-job-type slice of an ROI report.
type TypeBreakdown struct {
	Count     int     `json:"count"`
	Revenue   float64 `json:"revenue"`
	Cost      float64 `json:"cost"`
	Customers int     `json:"customers"`
}

// JobValueSummary identifies one of the top-value jobs in an ROI report.
type JobValueSummary struct {
	JobID         string  `json:"job_id"`
	Type          JobType `json:"type"`
	Score         float64 `json:"score"`
	RevenueImpact float64 `json:"revenue_impact"`
}

// ROIReport aggregates business outcomes over a set of finished jobs.
// OverallROI is +Inf when the total processing cost is zero.
type ROIReport struct {
	HasData                bool                      `json:"has_data"`
	OverallROI             float64                   `json:"-"`
	TotalRevenueImpact     float64                   `json:"total_revenue_impact"`
	TotalProcessingCost    float64                   `json:"total_processing_cost"`
	TotalCustomersAffected int                       `json:"total_customers_affected"`
	TotalJobs              int                       `json:"total_jobs"`
	SuccessRatePercent     float64                   `json:"success_rate_percent"`
	AvgCompletionMinutes   float64                   `json:"avg_completion_minutes"`
	TypeAnalysis           map[JobType]TypeBreakdown `json:"type_analysis"`
	TopValueJobs           []JobValueSummary         `json:"top_value_jobs"`
}

// MarshalJSON renders OverallROI as null with an infinite_roi marker when the
// total processing cost is zero, since IEEE infinities have no JSON encoding.
func (r ROIReport) MarshalJSON() ([]byte, error) {
	type alias ROIReport
	out := struct {
		alias
		OverallROI  *float64 `json:"overall_roi"`
		InfiniteROI bool     `json:"infinite_roi"`
	}{alias: alias(r)}
	if math.IsInf(r.OverallROI, 1) {
		out.InfiniteROI = true
	} else {
		roi := r.OverallROI
		out.OverallROI = &roi
	}
	return json.Marshal(out)
}

// ROIAnalysis aggregates revenue, cost, duration and success rate over the
// given finished jobs. It is read-only over the jobs it is handed.
func (a *ValueAnalyzer) ROIAnalysis(finished []*Job) ROIReport {
	if len(finished) == 0 {
		return ROIReport{}
	}

	report := ROIReport{
		HasData:      true,
		TotalJobs:    len(finished),
		TypeAnalysis: make(map[JobType]TypeBreakdown),
	}

	completed := 0
	var totalDuration time.Duration
	timed := 0

	for _, job := range finished {
		report.TotalRevenueImpact += job.Metrics.RevenueImpact
		report.TotalProcessingCost += job.Metrics.ProcessingCost
		report.TotalCustomersAffected += job.Metrics.CustomerCount

		bd := report.TypeAnalysis[job.Type]
		bd.Count++
		bd.Revenue += job.Metrics.RevenueImpact
		bd.Cost += job.Metrics.ProcessingCost
		bd.Customers += job.Metrics.CustomerCount
		report.TypeAnalysis[job.Type] = bd

		if job.Status() == StatusCompleted {
			completed++
		}
		started, done := job.StartedAt(), job.CompletedAt()
		if !started.IsZero() && !done.IsZero() {
			totalDuration += done.Sub(started)
			timed++
		}
	}

	if report.TotalProcessingCost > 0 {
		report.OverallROI = report.TotalRevenueImpact / report.TotalProcessingCost
	} else {
		report.OverallROI = math.Inf(1)
	}
	report.SuccessRatePercent = float64(completed) / float64(len(finished)) * 100
	if timed > 0 {
		report.AvgCompletionMinutes = totalDuration.Minutes() / float64(timed)
	}

	ranked := make([]*Job, len(finished))
	copy(ranked, finished)
	sort.SliceStable(ranked, func(i, k int) bool {
		return ranked[i].Score() > ranked[k].Score()
	})
	if len(ranked) > 5 {
		ranked = ranked[:5]
	}
	for _, job := range ranked {
		report.TopValueJobs = append(report.TopValueJobs, JobValueSummary{
			JobID:         job.ID,
			Type:          job.Type,
			Score:         job.Score(),
			RevenueImpact: job.Metrics.RevenueImpact,
		})
	}

	return report
}
