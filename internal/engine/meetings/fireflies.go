package meetings

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"traction/internal/pkg/errors"
)

const (
	listMeetingsQuery = `query Transcripts($fromDate: DateTime, $toDate: DateTime) {
		transcripts(fromDate: $fromDate, toDate: $toDate) {
			id title date participants
		}
	}`

	getTranscriptQuery = `query Transcript($transcriptId: String!) {
		transcript(id: $transcriptId) {
			id title date participants summary { overview }
			sentences { text speaker_name }
		}
	}`
)

// FirefliesClient talks to the Fireflies GraphQL endpoint with a per-tenant
// API key.
type FirefliesClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewFirefliesClient(baseURL, apiKey string, timeout time.Duration) *FirefliesClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &FirefliesClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
}

type graphqlRequest struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables,omitempty"`
}

type graphqlError struct {
	Message string `json:"message"`
}

func (c *FirefliesClient) do(ctx context.Context, query string, variables map[string]interface{}, data interface{}) error {
	body, err := json.Marshal(graphqlRequest{Query: query, Variables: variables})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return errors.External("transcription provider unreachable")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errors.External(fmt.Sprintf("transcription provider returned status %d", resp.StatusCode))
	}

	var envelope struct {
		Data   json.RawMessage `json:"data"`
		Errors []graphqlError  `json:"errors"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return errors.External("transcription provider returned malformed response")
	}
	if len(envelope.Errors) > 0 {
		return errors.External("transcription provider rejected the request")
	}
	return json.Unmarshal(envelope.Data, data)
}

type firefliesTranscriptMeta struct {
	ID           string   `json:"id"`
	Title        string   `json:"title"`
	Date         int64    `json:"date"`
	Participants []string `json:"participants"`
}

func (c *FirefliesClient) ListMeetings(ctx context.Context, from, to time.Time) ([]ProviderMeeting, error) {
	var data struct {
		Transcripts []firefliesTranscriptMeta `json:"transcripts"`
	}
	vars := map[string]interface{}{
		"fromDate": from.UTC().Format(time.RFC3339),
		"toDate":   to.UTC().Format(time.RFC3339),
	}
	if err := c.do(ctx, listMeetingsQuery, vars, &data); err != nil {
		return nil, err
	}

	meetings := make([]ProviderMeeting, 0, len(data.Transcripts))
	for _, t := range data.Transcripts {
		meetings = append(meetings, ProviderMeeting{
			TranscriptID:      t.ID,
			Title:             t.Title,
			Date:              t.Date / 1000, // fireflies reports epoch millis
			ParticipantEmails: t.Participants,
		})
	}
	return meetings, nil
}

func (c *FirefliesClient) GetTranscript(ctx context.Context, id string) (*ProviderTranscript, error) {
	var data struct {
		Transcript struct {
			firefliesTranscriptMeta
			Summary struct {
				Overview string `json:"overview"`
			} `json:"summary"`
			Sentences []struct {
				Text        string `json:"text"`
				SpeakerName string `json:"speaker_name"`
			} `json:"sentences"`
		} `json:"transcript"`
	}
	vars := map[string]interface{}{"transcriptId": id}
	if err := c.do(ctx, getTranscriptQuery, vars, &data); err != nil {
		return nil, err
	}
	if data.Transcript.ID == "" {
		return nil, errors.NotFound("transcript")
	}

	var sb strings.Builder
	for _, s := range data.Transcript.Sentences {
		if s.SpeakerName != "" {
			sb.WriteString(s.SpeakerName)
			sb.WriteString(": ")
		}
		sb.WriteString(s.Text)
		sb.WriteString("\n")
	}

	return &ProviderTranscript{
		TranscriptID:      data.Transcript.ID,
		Title:             data.Transcript.Title,
		Date:              data.Transcript.Date / 1000,
		Text:              sb.String(),
		Summary:           data.Transcript.Summary.Overview,
		ParticipantEmails: data.Transcript.Participants,
	}, nil
}
