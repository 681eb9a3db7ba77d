package model

import "time"

// ProcessedVideo is the result record written once a job uploads its output
type ProcessedVideo struct {
	ID                   string         `json:"id" dynamodbav:"id"`
	UserID               string         `json:"userId" dynamodbav:"userId"`
	JobID                string         `json:"jobId" dynamodbav:"jobId"`
	SourceVideoID        string         `json:"sourceVideoId" dynamodbav:"sourceVideoId"`
	ShaderStyle          StyleProfile   `json:"shaderStyle" dynamodbav:"shaderStyle"`
	FileName             string         `json:"fileName" dynamodbav:"fileName"`
	FileURL              string         `json:"fileUrl" dynamodbav:"fileUrl"`
	StoragePath          string         `json:"storagePath" dynamodbav:"storagePath"`
	AdInsertionPoints    []string       `json:"adInsertionPoints" dynamodbav:"adInsertionPoints"`
	Schedule             []ScheduleItem `json:"schedule" dynamodbav:"schedule"`
	VideoSummary         string         `json:"videoSummary" dynamodbav:"videoSummary"`
	ProcessingDurationMs int64          `json:"processingDurationMs" dynamodbav:"processingDurationMs"`
	ProcessedAt          time.Time      `json:"processedAt" dynamodbav:"processedAt"`
}

// ProcessedListResponse is returned by GET /api/library/processed
type ProcessedListResponse struct {
	Videos []ProcessedVideo `json:"videos"`
}
