package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"google.golang.org/genai"

	"github.com/retrocast/api/internal/apperror"
	"github.com/retrocast/api/internal/config"
	"github.com/retrocast/api/internal/model"
)

// ContentAnalyzer finds scene breaks and ad slots in a local video.
type ContentAnalyzer interface {
	Analyze(ctx context.Context, videoPath string, style model.StyleProfile) (*model.AnalysisResult, error)
}

type geminiFiles interface {
	Upload(ctx context.Context, r io.Reader, cfg *genai.UploadFileConfig) (*genai.File, error)
	Get(ctx context.Context, name string, cfg *genai.GetFileConfig) (*genai.File, error)
	Delete(ctx context.Context, name string, cfg *genai.DeleteFileConfig) (*genai.DeleteFileResponse, error)
}

type geminiModels interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiClient uploads the video through the Files API, waits for it to become
// usable, then asks the model for a structured analysis.
type GeminiClient struct {
	files        geminiFiles
	models       geminiModels
	model        string
	pollInterval time.Duration
	pollAttempts int
}

func NewGeminiClient(ctx context.Context, cfg *config.GeminiConfig) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY not set")
	}
	c, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return newGeminiClient(c.Files, c.Models, cfg), nil
}

func newGeminiClient(files geminiFiles, models geminiModels, cfg *config.GeminiConfig) *GeminiClient {
	g := &GeminiClient{
		files:        files,
		models:       models,
		model:        cfg.Model,
		pollInterval: cfg.PollInterval,
		pollAttempts: cfg.PollAttempts,
	}
	if g.model == "" {
		g.model = "gemini-2.5-flash"
	}
	if g.pollAttempts <= 0 {
		g.pollAttempts = 60
	}
	return g
}

// Analyze returns insertion points sorted by priority, highest first.
func (g *GeminiClient) Analyze(ctx context.Context, videoPath string, style model.StyleProfile) (*model.AnalysisResult, error) {
	file, err := g.upload(ctx, videoPath)
	if err != nil {
		return nil, err
	}
	defer func() {
		if _, err := g.files.Delete(context.WithoutCancel(ctx), file.Name, nil); err != nil {
			log.Warn().Err(err).Str("file", file.Name).Msg("Failed to delete uploaded analysis file")
		}
	}()

	if err := g.waitActive(ctx, file); err != nil {
		return nil, err
	}

	contents := []*genai.Content{{
		Role: "user",
		Parts: []*genai.Part{
			{FileData: &genai.FileData{FileURI: file.URI, MIMEType: file.MIMEType}},
			{Text: analysisPrompt(style)},
		},
	}}
	cfg := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   analysisSchema,
	}

	start := time.Now()
	resp, err := g.models.GenerateContent(ctx, g.model, contents, cfg)
	if err != nil {
		return nil, apperror.External("Video analysis failed", err)
	}
	if resp == nil || resp.Text() == "" {
		return nil, apperror.External("Video analysis failed", fmt.Errorf("empty response"))
	}

	result, err := parseAnalysis(resp.Text())
	if err != nil {
		return nil, apperror.External("Video analysis failed", err)
	}

	log.Info().
		Int("scenes", len(result.SceneBreaks)).
		Int("ad_points", len(result.AdInsertionPoints)).
		Dur("duration", time.Since(start)).
		Msg("Gemini analysis complete")
	return result, nil
}

func (g *GeminiClient) upload(ctx context.Context, videoPath string) (*genai.File, error) {
	f, err := os.Open(videoPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	file, err := g.files.Upload(ctx, f, &genai.UploadFileConfig{MIMEType: contentTypeFor(videoPath)})
	if err != nil {
		return nil, apperror.External("Failed to upload video for analysis", err)
	}
	log.Debug().Str("name", file.Name).Str("uri", file.URI).Msg("Video uploaded, waiting for processing")
	return file, nil
}

// waitActive polls until the uploaded file leaves PROCESSING.
func (g *GeminiClient) waitActive(ctx context.Context, file *genai.File) error {
	current := file
	for attempt := 0; current.State == genai.FileStateProcessing; attempt++ {
		if attempt >= g.pollAttempts {
			return apperror.AnalyzerTimeout(fmt.Sprintf("File processing timed out after %d attempts", g.pollAttempts))
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(g.pollInterval):
		}

		next, err := g.files.Get(ctx, file.Name, nil)
		if err != nil {
			return apperror.External("Failed to get file state", err)
		}
		current = next
	}

	if current.State == genai.FileStateFailed {
		return apperror.External("Video processing failed", fmt.Errorf("file %s in state %s", file.Name, current.State))
	}
	if current.URI != "" {
		file.URI = current.URI
	}
	if current.MIMEType != "" {
		file.MIMEType = current.MIMEType
	}
	return nil
}

func parseAnalysis(text string) (*model.AnalysisResult, error) {
	var result model.AnalysisResult
	if err := json.Unmarshal([]byte(strings.TrimSpace(text)), &result); err != nil {
		return nil, fmt.Errorf("parse analysis: %w", err)
	}
	sort.SliceStable(result.AdInsertionPoints, func(i, j int) bool {
		return result.AdInsertionPoints[i].Priority > result.AdInsertionPoints[j].Priority
	})
	return &result, nil
}

func analysisPrompt(style model.StyleProfile) string {
	return fmt.Sprintf(`You are a video analysis assistant that finds advertisement insertion points for retro TV-style productions.

Analyze this video and provide:

1. Scene breaks: 5-10 natural transitions, each with start and end timestamps ("M:SS" or "H:MM:SS") and a short description.
2. Ad insertion points: 2-5 locations at natural pauses, spaced apart, avoiding mid-sentence or mid-action cuts. Give each a timestamp ("M:SS" or "H:MM:SS"), a priority from 1 to 10 (10 is ideal) and a short reason.
3. Video summary: one sentence describing the content.
4. Categories: up to 5 lowercase content categories such as automotive, food, tech, sports, gaming.
5. Sentiment: the overall mood of the video, one of %[1]s.

The video will be rendered with retro %[2]s effects to look like 80s/90s TV. Commercial breaks of that era came every 5-8 minutes of content.

Return ONLY the JSON object described by the schema.`, strings.Join(model.Sentiments, ", "), style)
}

var analysisSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"sceneBreaks": {
			Type: genai.TypeArray,
			Items: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"startTime":   {Type: genai.TypeString},
					"endTime":     {Type: genai.TypeString},
					"description": {Type: genai.TypeString},
				},
				Required: []string{"startTime", "endTime", "description"},
			},
		},
		"adInsertionPoints": {
			Type: genai.TypeArray,
			Items: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"timestamp": {Type: genai.TypeString},
					"priority":  {Type: genai.TypeInteger},
					"reason":    {Type: genai.TypeString},
				},
				Required: []string{"timestamp", "priority", "reason"},
			},
		},
		"videoSummary": {Type: genai.TypeString},
		"categories": {
			Type:  genai.TypeArray,
			Items: &genai.Schema{Type: genai.TypeString},
		},
		"sentiment": {Type: genai.TypeString, Enum: model.Sentiments},
	},
	Required: []string{"sceneBreaks", "adInsertionPoints", "videoSummary"},
}
