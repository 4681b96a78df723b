package dto

import (
	"time"

	"salesbi/internal/domain/pipeline"
)

// RunListRequest holds run listing parameters.
type RunListRequest struct {
	Limit int `form:"limit" binding:"omitempty,min=1,max=100"`
}

// RunResponse represents a pipeline run.
type RunResponse struct {
	ID               string            `json:"id"`
	Status           string            `json:"status"`
	StartedAt        time.Time         `json:"startedAt"`
	FinishedAt       time.Time         `json:"finishedAt"`
	Predicate        string            `json:"predicate"`
	Policy           string            `json:"policy"`
	SourceCounts     map[string]int    `json:"sourceCounts"`
	UnifiedCount     int               `json:"unifiedCount"`
	RemovedCount     int               `json:"removedCount"`
	QuarantinedCount int               `json:"quarantinedCount"`
	AnomalyCount     int               `json:"anomalyCount"`
	CleanedCount     int               `json:"cleanedCount"`
	PurgedCount      int64             `json:"purgedCount"`
	Revenue          string            `json:"revenue"`
	Summary          *pipeline.Summary `json:"summary,omitempty"`
}

// FromRun converts a domain run to response DTO.
func FromRun(r *pipeline.Run) RunResponse {
	return RunResponse{
		ID:               r.ID.String(),
		Status:           string(r.Status),
		StartedAt:        r.StartedAt,
		FinishedAt:       r.FinishedAt,
		Predicate:        r.Predicate,
		Policy:           r.Policy,
		SourceCounts:     r.SourceCounts,
		UnifiedCount:     r.UnifiedCount,
		RemovedCount:     r.RemovedCount,
		QuarantinedCount: r.QuarantinedCount,
		AnomalyCount:     r.AnomalyCount,
		CleanedCount:     r.CleanedCount,
		PurgedCount:      r.PurgedCount,
		Revenue:          Money(r.Revenue),
		Summary:          r.Summary,
	}
}

// FromRuns converts a run listing; summaries are omitted.
func FromRuns(runs []pipeline.Run) []RunResponse {
	out := make([]RunResponse, len(runs))
	for i := range runs {
		out[i] = FromRun(&runs[i])
		out[i].Summary = nil
	}
	return out
}
