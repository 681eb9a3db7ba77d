package model

// SceneBreak is a content transition reported by the analyzer
type SceneBreak struct {
	StartTime   string `json:"startTime"`
	EndTime     string `json:"endTime"`
	Description string `json:"description"`
}

// InsertionPoint is an analyzer-suggested ad slot; Timestamp is M:SS or H:MM:SS
type InsertionPoint struct {
	Timestamp string `json:"timestamp"`
	Priority  int    `json:"priority"`
	Reason    string `json:"reason"`
}

// AnalysisResult is what the content analyzer returns for a video
type AnalysisResult struct {
	SceneBreaks       []SceneBreak     `json:"sceneBreaks"`
	AdInsertionPoints []InsertionPoint `json:"adInsertionPoints"`
	VideoSummary      string           `json:"videoSummary"`
	Categories        []string         `json:"categories,omitempty"`
	Sentiment         string           `json:"sentiment,omitempty"`
}

// Sentiments the analyzer may report for a video.
var Sentiments = []string{"positive", "negative", "neutral", "mixed"}
