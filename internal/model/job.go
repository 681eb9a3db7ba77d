package model

import "time"

// Job is the persisted lifecycle record of one processing request
type Job struct {
	ID              string          `json:"id"`
	UserID          string          `json:"userId"`
	Stage           ProcessingStage `json:"stage"`
	Info            string          `json:"info"`
	ProgressPercent int             `json:"progressPercent"`
	ErrorMessage    *string         `json:"errorMessage,omitempty"`
	StartedAt       time.Time       `json:"startedAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
	CompletedAt     *time.Time      `json:"completedAt,omitempty"`
}

// InFlight reports whether the job still holds the user's processing slot.
func (j *Job) InFlight() bool {
	return !j.Stage.IsTerminal()
}

// ProcessStartRequest is the body of POST /api/process/start
type ProcessStartRequest struct {
	VideoID     string   `json:"videoId" validate:"required"`
	AdIDs       []string `json:"adIds" validate:"omitempty,max=10,dive,required"`
	ShaderStyle string   `json:"shaderStyle" validate:"required"`
}

// ProcessStartResponse is returned once the job has been queued
type ProcessStartResponse struct {
	JobID   string          `json:"jobId"`
	Message string          `json:"message"`
	Status  ProcessingStage `json:"status"`
}

// ConflictResponse is returned when the user already has a job in flight
type ConflictResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// VideoTaskPayload is carried by the queued task and by push deliveries
type VideoTaskPayload struct {
	JobID       string       `json:"jobId"`
	UserID      string       `json:"userId"`
	VideoID     string       `json:"videoId"`
	AdIDs       []string     `json:"adIds"`
	ShaderStyle StyleProfile `json:"shaderStyle"`
	Assertion   string       `json:"assertion,omitempty"`
}

// WorkerResponse is the push-delivery reply
type WorkerResponse struct {
	Status           string `json:"status"`
	JobID            string `json:"jobId"`
	ProcessedVideoID string `json:"processedVideoId,omitempty"`
	FileURL          string `json:"fileUrl,omitempty"`
	Error            string `json:"error,omitempty"`
}
