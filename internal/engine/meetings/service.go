package meetings

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"traction/internal/engine/companies"
	"traction/internal/engine/contacts"
	"traction/internal/pkg/errors"
	"traction/internal/platform/database"
	"traction/internal/platform/models"
	"traction/internal/platform/repositories"
)

// Service runs the staged meeting import pipeline for one tenant.
type Service struct {
	db        *database.TenantDB
	repo      *Repository
	contacts  *contacts.Repository
	companies *companies.Repository
	settings  *repositories.SettingsRepository
	provider  Provider
	lookback  time.Duration
	now       func() time.Time
}

func NewService(db *database.TenantDB, repo *Repository, contactsRepo *contacts.Repository,
	companiesRepo *companies.Repository, settingsRepo *repositories.SettingsRepository,
	provider Provider, lookback time.Duration) *Service {
	if lookback <= 0 {
		lookback = 90 * 24 * time.Hour
	}
	return &Service{
		db:        db,
		repo:      repo,
		contacts:  contactsRepo,
		companies: companiesRepo,
		settings:  settingsRepo,
		provider:  provider,
		lookback:  lookback,
		now:       time.Now,
	}
}

// Sync fetches meetings since the last high-water mark, skips anything
// already staged or imported, and stages the rest for review. Participant
// matching is informational only; a meeting with no known contacts is staged
// all the same. Safe to re-run at any time: the dedup check is the sole
// correctness mechanism against repeated or concurrent invocations.
func (s *Service) Sync(ctx context.Context, settings *models.TenantSettings) (*SyncResult, error) {
	if settings == nil || !settings.FeatureFireflies {
		return nil, errors.NotConfigured("meeting import is not enabled for this organization")
	}

	to := s.now()
	var from time.Time
	switch {
	case settings.LastSyncAt != nil:
		from = time.Unix(*settings.LastSyncAt, 0)
	case settings.SyncStartDate != nil:
		from = time.Unix(*settings.SyncStartDate, 0)
	default:
		from = to.Add(-s.lookback)
	}

	fetched, err := s.provider.ListMeetings(ctx, from, to)
	if err != nil {
		return nil, err
	}

	result := &SyncResult{Fetched: len(fetched)}
	for _, meeting := range fetched {
		exists, err := s.repo.TranscriptExists(ctx, meeting.TranscriptID)
		if err != nil {
			return result, err
		}
		if exists {
			result.Skipped++
			continue
		}

		matches, err := s.contacts.MatchByEmails(ctx, meeting.ParticipantEmails)
		if err != nil {
			return result, err
		}
		matchType := "none"
		var matchedIDs []string
		if len(matches) > 0 {
			matchType = "email"
			seen := map[string]bool{}
			for _, contactID := range matches {
				if !seen[contactID] {
					seen[contactID] = true
					matchedIDs = append(matchedIDs, contactID)
				}
			}
		}

		staged := &StagedMeeting{
			ID:                    newStagedID(),
			TenantID:              s.db.TenantID(),
			FirefliesTranscriptID: meeting.TranscriptID,
			Title:                 meeting.Title,
			MeetingDate:           meeting.Date,
			Participants:          meeting.ParticipantEmails,
			MatchType:             matchType,
			MatchedContactIDs:     matchedIDs,
			ImportStatus:          ImportStatusPending,
			CreatedAt:             s.now().Unix(),
		}
		if err := s.repo.Stage(ctx, staged); err != nil {
			// A concurrent sync may have staged this transcript between the
			// dedup check and the insert; the unique index makes that a skip.
			if errors.KindOf(err) == errors.KindDuplicate {
				result.Skipped++
				continue
			}
			return result, err
		}
		result.Staged++
	}

	if result.Fetched > 0 {
		if err := s.settings.UpdateLastSync(s.db.TenantID(), to.Unix()); err != nil {
			return result, err
		}
	}
	return result, nil
}

// Promote imports the selected staged meetings. Items are processed
// sequentially and independently; a failed item stays pending and is safe to
// retry on a later batch.
func (s *Service) Promote(ctx context.Context, ids []string, actor string) ([]PromoteResult, int) {
	results := make([]PromoteResult, 0, len(ids))
	imported := 0

	for _, id := range ids {
		res := s.promoteOne(ctx, id, actor)
		if res.Imported {
			imported++
		}
		results = append(results, res)
	}
	return results, imported
}

func (s *Service) promoteOne(ctx context.Context, id, actor string) PromoteResult {
	result := PromoteResult{StagedID: id}

	staged, err := s.repo.GetStaged(ctx, id)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	if staged == nil {
		result.Error = errors.NotFound("staged meeting").Error()
		return result
	}
	if staged.ImportStatus != ImportStatusPending {
		result.Error = "staged meeting is not pending"
		return result
	}

	// Heavy call, deferred to promotion time. Failure here leaves the staged
	// row pending and resumable.
	transcript, err := s.provider.GetTranscript(ctx, staged.FirefliesTranscriptID)
	if err != nil {
		log.Warn().Err(err).Str("staged_id", id).Msg("transcript fetch failed during promotion")
		result.Error = err.Error()
		return result
	}

	companyIDs, err := s.companies.CompaniesForContacts(ctx, staged.MatchedContactIDs)
	if err != nil {
		result.Error = err.Error()
		return result
	}

	interaction := &Interaction{
		ID:                    "int_" + uuid.NewString(),
		TenantID:              s.db.TenantID(),
		FirefliesTranscriptID: staged.FirefliesTranscriptID,
		Title:                 transcript.Title,
		OccurredAt:            transcript.Date,
		Transcript:            transcript.Text,
		Summary:               transcript.Summary,
		CreatedBy:             actor,
		CreatedAt:             s.now().Unix(),
	}
	if interaction.Title == "" {
		interaction.Title = staged.Title
	}
	if interaction.OccurredAt == 0 {
		interaction.OccurredAt = staged.MeetingDate
	}

	if err := s.repo.promoteStaged(ctx, staged, interaction, staged.MatchedContactIDs, companyIDs); err != nil {
		result.Error = err.Error()
		return result
	}

	result.Imported = true
	result.InteractionID = interaction.ID
	return result
}

func (s *Service) Exclude(ctx context.Context, id, actor string) error {
	return s.repo.Exclude(ctx, id, actor)
}

func (s *Service) UndoExclude(ctx context.Context, id string) error {
	return s.repo.UndoExclude(ctx, id)
}

func (s *Service) ListStaged(ctx context.Context, status string) ([]*StagedMeeting, error) {
	return s.repo.ListStaged(ctx, status)
}
