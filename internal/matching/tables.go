package matching

// Weights of the overall score. They sum to 1.
const (
	WeightCategory = 0.40
	WeightTone     = 0.25
	WeightEra      = 0.20
	WeightEnergy   = 0.15
)

// NeutralScore is used whenever an attribute is missing or unknown.
const NeutralScore = 0.5

// toneCompatibility maps ad tone -> video sentiment -> score. Keys are case-folded.
var toneCompatibility = map[string]map[string]float64{
	"humorous":    {"positive": 1.0, "neutral": 0.7, "negative": 0.3, "mixed": 0.8},
	"serious":     {"positive": 0.6, "neutral": 0.9, "negative": 0.8, "mixed": 0.7},
	"nostalgic":   {"positive": 0.9, "neutral": 0.8, "negative": 0.5, "mixed": 0.8},
	"exciting":    {"positive": 1.0, "neutral": 0.6, "negative": 0.4, "mixed": 0.7},
	"calm":        {"positive": 0.8, "neutral": 1.0, "negative": 0.4, "mixed": 0.6},
	"informative": {"positive": 0.7, "neutral": 1.0, "negative": 0.6, "mixed": 0.8},
}

// eraScores favours retro looks.
var eraScores = map[string]float64{
	"1950s":        1.0,
	"1960s":        1.0,
	"1970s":        1.0,
	"1980s":        1.0,
	"1990s":        0.9,
	"modern-retro": 0.8,
	"modern":       0.5,
}
