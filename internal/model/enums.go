package model

import "strings"

// ProcessingStage is the lifecycle position of a job
type ProcessingStage string

const (
	StageQueued             ProcessingStage = "QUEUED"
	StageDownloading        ProcessingStage = "DOWNLOADING"
	StageAnalyzing          ProcessingStage = "ANALYZING"
	StageApplyingEffects    ProcessingStage = "APPLYING_EFFECTS"
	StageInsertingAds       ProcessingStage = "INSERTING_ADS"
	StageAddingAudioEffects ProcessingStage = "ADDING_AUDIO_EFFECTS"
	StageEncoding           ProcessingStage = "ENCODING"
	StageUploading          ProcessingStage = "UPLOADING"
	StageCompleted          ProcessingStage = "COMPLETED"
	StageFailed             ProcessingStage = "FAILED"
)

// Stages in display order.
var Stages = []ProcessingStage{
	StageQueued, StageDownloading, StageAnalyzing, StageApplyingEffects,
	StageInsertingAds, StageAddingAudioEffects, StageEncoding, StageUploading,
	StageCompleted, StageFailed,
}

// Order returns the display position of the stage, or -1 if unknown.
func (s ProcessingStage) Order() int {
	for i, st := range Stages {
		if st == s {
			return i
		}
	}
	return -1
}

// IsTerminal reports whether no further transitions may happen.
func (s ProcessingStage) IsTerminal() bool {
	return s == StageCompleted || s == StageFailed
}

// StyleProfile names a fixed bundle of visual filters
type StyleProfile string

const (
	StyleCRT    StyleProfile = "CRT"
	StyleVHS    StyleProfile = "VHS"
	StyleArcade StyleProfile = "ARCADE"
)

var ValidStyles = []StyleProfile{StyleCRT, StyleVHS, StyleArcade}

// ParseStyleProfile accepts any casing of a built-in style name.
func ParseStyleProfile(s string) (StyleProfile, bool) {
	up := StyleProfile(strings.ToUpper(strings.TrimSpace(s)))
	for _, v := range ValidStyles {
		if v == up {
			return v, true
		}
	}
	return "", false
}
