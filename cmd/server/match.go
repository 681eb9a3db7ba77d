package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/retrocast/api/internal/matching"
	"github.com/retrocast/api/internal/model"
)

var fixtureFlag string

var matchCmd = &cobra.Command{
	Use:   "match",
	Short: "Rank ads and build a schedule from a fixture file",
	Long: `Reads a YAML or JSON fixture describing one video and a set of ads and
prints the ranking and schedule as JSON.

Fixture layout:
  video:
    videoId: demo
    categories: [gaming]
    sentiment: positive
    breakPoints:
      - {timestampSeconds: 100, priority: 9}
  ads:
    - {id: ad-1, categories: [gaming], tone: exciting, eraStyle: 1980s}
  maxAds: 3`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMatchFile(fixtureFlag, cmd.OutOrStdout())
	},
}

func init() {
	matchCmd.Flags().StringVarP(&fixtureFlag, "file", "f", "", "Fixture file (YAML or JSON)")
	_ = matchCmd.MarkFlagRequired("file")
}

type matchFixture struct {
	Video  model.VideoProfile  `yaml:"video"`
	Ads    []model.AdCandidate `yaml:"ads"`
	MaxAds int                 `yaml:"maxAds"`
}

func runMatchFile(path string, out io.Writer) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	// JSON is valid YAML, so one decoder covers both.
	var fx matchFixture
	if err := yaml.Unmarshal(data, &fx); err != nil {
		return fmt.Errorf("parse fixture %s: %w", path, err)
	}
	if fx.MaxAds <= 0 {
		fx.MaxAds = matching.DefaultMaxAds
	}

	ranked := matching.Rank(fx.Ads, fx.Video)
	resp := model.MatchResponse{
		VideoID:  fx.Video.VideoID,
		Rankings: ranked,
		Schedule: matching.BuildSchedule(ranked, fx.Video.BreakPoints, fx.MaxAds),
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(resp)
}
