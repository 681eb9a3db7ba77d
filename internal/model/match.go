package model

// BreakPoint is a suggested ad insertion location
type BreakPoint struct {
	TimestampSeconds    float64  `json:"timestampSeconds" yaml:"timestampSeconds"`
	Priority            int      `json:"priority" yaml:"priority"`
	Reason              string   `json:"reason,omitempty" yaml:"reason"`
	SuggestedCategories []string `json:"suggestedCategories,omitempty" yaml:"suggestedCategories"`
}

// VideoProfile is the content description ads are matched against
type VideoProfile struct {
	VideoID         string       `json:"videoId" yaml:"videoId"`
	Categories      []string     `json:"categories" yaml:"categories"`
	Sentiment       string       `json:"sentiment,omitempty" yaml:"sentiment"`
	DurationSeconds float64      `json:"durationSeconds,omitempty" yaml:"durationSeconds"`
	BreakPoints     []BreakPoint `json:"breakPoints" yaml:"breakPoints"`
}

// MatchResult scores one ad against one video
type MatchResult struct {
	AdID              string   `json:"adId"`
	OverallScore      float64  `json:"overallScore"`
	CategoryScore     float64  `json:"categoryScore"`
	ToneScore         float64  `json:"toneScore"`
	EraScore          float64  `json:"eraScore"`
	EnergyScore       float64  `json:"energyScore"`
	MatchedCategories []string `json:"matchedCategories"`
	Reason            string   `json:"reason"`

	// DurationSeconds is carried through so schedules can report ad length.
	DurationSeconds float64 `json:"-"`
}

// ScheduleItem places one ad at one timestamp
type ScheduleItem struct {
	AdID            string  `json:"adId"`
	InsertAtSeconds float64 `json:"insertAtSeconds"`
	DurationSeconds float64 `json:"durationSeconds"`
	Score           float64 `json:"score"`
	Reason          string  `json:"reason"`
}

// MatchRequest is the body of POST /api/match
type MatchRequest struct {
	VideoID string   `json:"videoId" validate:"required"`
	AdIDs   []string `json:"adIds" validate:"required,min=1,max=50,dive,required"`
	MaxAds  *int     `json:"maxAds,omitempty" validate:"omitempty,min=1,max=20"`
}

// MatchResponse holds the ranking and the resulting schedule
type MatchResponse struct {
	VideoID  string         `json:"videoId"`
	Rankings []MatchResult  `json:"rankings"`
	Schedule []ScheduleItem `json:"schedule"`
}
