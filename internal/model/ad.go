package model

// DefaultAdDurationSeconds is used when an ad's length is unknown.
const DefaultAdDurationSeconds = 30

// AdCandidate is the matching snapshot of an uploaded ad
type AdCandidate struct {
	ID              string   `json:"id" yaml:"id"`
	Categories      []string `json:"categories" yaml:"categories"`
	Tone            string   `json:"tone,omitempty" yaml:"tone"`
	EraStyle        string   `json:"eraStyle,omitempty" yaml:"eraStyle"`
	EnergyLevel     *int     `json:"energyLevel,omitempty" yaml:"energyLevel"`
	DurationSeconds float64  `json:"durationSeconds,omitempty" yaml:"durationSeconds"`
}

// Duration returns the ad length, falling back to the default.
func (a AdCandidate) Duration() float64 {
	if a.DurationSeconds <= 0 {
		return DefaultAdDurationSeconds
	}
	return a.DurationSeconds
}

// SourceVideo is a user's uploaded video as known to the catalog
type SourceVideo struct {
	ID          string `json:"id"`
	UserID      string `json:"userId"`
	FileName    string `json:"fileName"`
	StoragePath string `json:"storagePath"`
}

// AdAsset is a user's uploaded ad file as known to the catalog
type AdAsset struct {
	ID          string `json:"id"`
	UserID      string `json:"userId"`
	FileName    string `json:"fileName"`
	StoragePath string `json:"storagePath"`
}
