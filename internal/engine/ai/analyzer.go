package ai

import (
	"context"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"
	"traction/internal/engine/meetings"
	"traction/internal/platform/models"
)

// MeetingInsights is the analysis attached to an imported interaction.
type MeetingInsights struct {
	Summary         string   `json:"summary"`
	Sentiment       string   `json:"sentiment"`
	ActionItems     []string `json:"action_items,omitempty"`
	SuggestedTopics []string `json:"suggested_topics,omitempty"`
	Source          string   `json:"source"` // "provider" or "heuristic"
}

// Client is an external AI provider. Implementations may fail or be absent;
// the analyzer never propagates that to the caller.
type Client interface {
	AnalyzeTranscript(ctx context.Context, transcript string) (*MeetingInsights, error)
}

// Analyzer produces meeting insights, degrading to a deterministic keyword
// heuristic whenever the AI provider is disabled, unconfigured or failing.
// Callers always get a usable result.
type Analyzer struct {
	client Client
}

func NewAnalyzer(client Client) *Analyzer {
	return &Analyzer{client: client}
}

func (a *Analyzer) AnalyzeMeeting(ctx context.Context, settings *models.TenantSettings, interaction *meetings.Interaction) *MeetingInsights {
	if settings != nil && settings.AIFeatureEnabled("meeting_analysis") && a.client != nil {
		insights, err := a.client.AnalyzeTranscript(ctx, interaction.Transcript)
		if err == nil && insights != nil {
			insights.Source = "provider"
			return insights
		}
		log.Warn().Err(err).Str("interaction_id", interaction.ID).Msg("ai analysis failed, falling back to heuristic")
	}
	return heuristicInsights(interaction)
}

var actionMarkers = []string{"action item", "we will", "i will", "we'll", "i'll", "next step", "follow up", "todo"}

var positiveWords = map[string]bool{
	"great": true, "good": true, "excited": true, "progress": true,
	"agreed": true, "win": true, "growth": true, "closed": true,
}

var negativeWords = map[string]bool{
	"concern": true, "blocked": true, "risk": true, "delay": true,
	"problem": true, "churn": true, "missed": true, "issue": true,
}

func heuristicInsights(interaction *meetings.Interaction) *MeetingInsights {
	insights := &MeetingInsights{
		Summary:   interaction.Summary,
		Sentiment: "neutral",
		Source:    "heuristic",
	}
	if insights.Summary == "" {
		insights.Summary = firstLine(interaction.Transcript)
	}

	positive, negative := 0, 0
	for _, line := range strings.Split(interaction.Transcript, "\n") {
		lower := strings.ToLower(line)
		for _, marker := range actionMarkers {
			if strings.Contains(lower, marker) {
				insights.ActionItems = append(insights.ActionItems, strings.TrimSpace(line))
				break
			}
		}
		for _, word := range strings.FieldsFunc(lower, func(r rune) bool {
			return !('a' <= r && r <= 'z') && r != '\''
		}) {
			if positiveWords[word] {
				positive++
			}
			if negativeWords[word] {
				negative++
			}
		}
	}

	if positive > negative {
		insights.Sentiment = "positive"
	} else if negative > positive {
		insights.Sentiment = "negative"
	}

	insights.SuggestedTopics = topWords(interaction.Transcript, 3)
	return insights
}

var stopWords = map[string]bool{
	"the": true, "and": true, "that": true, "this": true, "with": true,
	"for": true, "have": true, "will": true, "from": true, "your": true,
	"about": true, "there": true, "what": true, "just": true, "they": true,
}

func topWords(text string, n int) []string {
	counts := map[string]int{}
	for _, word := range strings.Fields(strings.ToLower(text)) {
		word = strings.Trim(word, ".,!?:;\"'")
		if len(word) < 4 || stopWords[word] {
			continue
		}
		counts[word]++
	}

	type wc struct {
		word  string
		count int
	}
	var sorted []wc
	for w, c := range counts {
		if c > 1 {
			sorted = append(sorted, wc{w, c})
		}
	}
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].count != sorted[j].count {
			return sorted[i].count > sorted[j].count
		}
		return sorted[i].word < sorted[j].word
	})

	var out []string
	for i := 0; i < len(sorted) && i < n; i++ {
		out = append(out, sorted[i].word)
	}
	return out
}

func firstLine(text string) string {
	for _, line := range strings.Split(text, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			if len(trimmed) > 200 {
				return trimmed[:200]
			}
			return trimmed
		}
	}
	return ""
}
