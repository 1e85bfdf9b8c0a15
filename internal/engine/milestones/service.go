package milestones

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"traction/internal/pkg/errors"
	"traction/internal/platform/database"
	"traction/internal/platform/models"
)

type Service struct {
	db   *database.TenantDB
	repo *Repository
}

func NewService(db *database.TenantDB, repo *Repository) *Service {
	return &Service{db: db, repo: repo}
}

// SetCurrent moves a company to a new milestone. With BackfillPrior, every
// earlier definition in the target's track that the company has not yet
// passed gets its own history row, chained from the previous one; the final
// row records the transition into the target. Exactly one history row is
// appended per milestone change, including the very first (from null).
func (s *Service) SetCurrent(ctx context.Context, settings *models.TenantSettings, companyID, definitionID, changedBy string, opts ProgressOptions) (*CompanyMilestone, error) {
	target, err := s.repo.GetDefinition(ctx, definitionID)
	if err != nil {
		return nil, err
	}
	if target == nil {
		return nil, errors.NotFound("milestone definition")
	}

	track, err := s.trackByID(ctx, target.TrackID)
	if err != nil {
		return nil, err
	}
	if track == nil {
		return nil, errors.NotFound("milestone track")
	}
	if settings != nil && !settings.TrackEnabled(track.Slug) {
		return nil, errors.NotConfigured("milestone track is not enabled for this organization")
	}

	var result *CompanyMilestone
	err = s.db.WithTx(ctx, func(tx *database.TenantTx) error {
		row, err := tx.QueryRowContext(ctx, `
			SELECT id FROM companies WHERE id = ? AND tenant_id = :tenant_id
		`, companyID)
		if err != nil {
			return err
		}
		var id string
		if err := row.Scan(&id); err != nil {
			if err == sql.ErrNoRows {
				return errors.NotFound("company")
			}
			return err
		}

		current, err := s.repo.GetCurrent(ctx, tx, companyID)
		if err != nil {
			return err
		}

		var fromID *string
		var currentDef *Definition
		if current != nil {
			v := current.DefinitionID
			fromID = &v
			currentDef, err = s.definitionInTx(ctx, tx, current.DefinitionID)
			if err != nil {
				return err
			}
		}

		now := time.Now().Unix()

		if opts.BackfillPrior {
			defs, err := s.definitionsInTx(ctx, tx, target.TrackID)
			if err != nil {
				return err
			}
			startAfter := -1
			if currentDef != nil && currentDef.TrackID == target.TrackID {
				startAfter = currentDef.OrderPosition
			}
			for _, d := range defs {
				if d.OrderPosition <= startAfter || d.OrderPosition >= target.OrderPosition {
					continue
				}
				entry := &HistoryEntry{
					ID:              "mh_" + uuid.NewString(),
					CompanyID:       companyID,
					FromMilestoneID: fromID,
					ToMilestoneID:   d.ID,
					ChangedAt:       now,
					ChangedBy:       changedBy,
					Metadata:        `{"backfilled":true}`,
				}
				if err := s.repo.appendHistory(ctx, tx, entry); err != nil {
					return err
				}
				v := d.ID
				fromID = &v
			}
		}

		entry := &HistoryEntry{
			ID:              "mh_" + uuid.NewString(),
			CompanyID:       companyID,
			FromMilestoneID: fromID,
			ToMilestoneID:   target.ID,
			ChangedAt:       now,
			ChangedBy:       changedBy,
			Metadata:        "{}",
		}
		if err := s.repo.appendHistory(ctx, tx, entry); err != nil {
			return err
		}

		cm := &CompanyMilestone{
			CompanyID:    companyID,
			TenantID:     s.db.TenantID(),
			DefinitionID: target.ID,
			Status:       "in_progress",
			IsVerified:   opts.Verified,
			Notes:        opts.Notes,
			UpdatedAt:    now,
		}
		if opts.MarkCompleted {
			cm.Status = "completed"
			cm.CompletedAt = &now
		}
		if err := s.repo.upsertCurrent(ctx, tx, cm); err != nil {
			return err
		}
		result = cm
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Service) trackByID(ctx context.Context, id string) (*Track, error) {
	row, err := s.db.QueryRowContext(ctx, `
		SELECT id, name, slug, created_at FROM milestone_tracks WHERE id = ?
	`, id)
	if err != nil {
		return nil, err
	}
	t := &Track{}
	if err := row.Scan(&t.ID, &t.Name, &t.Slug, &t.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return t, nil
}

func (s *Service) definitionInTx(ctx context.Context, tx *database.TenantTx, id string) (*Definition, error) {
	row, err := tx.QueryRowContext(ctx, `
		SELECT id, track_id, name, order_position, evidence_description, objective_signal, created_at
		FROM milestone_definitions WHERE id = ?
	`, id)
	if err != nil {
		return nil, err
	}
	return scanDefinition(row)
}

func (s *Service) definitionsInTx(ctx context.Context, tx *database.TenantTx, trackID string) ([]*Definition, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT id, track_id, name, order_position, evidence_description, objective_signal, created_at
		FROM milestone_definitions WHERE track_id = ? ORDER BY order_position ASC
	`, trackID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var defs []*Definition
	for rows.Next() {
		d := &Definition{}
		if err := rows.Scan(&d.ID, &d.TrackID, &d.Name, &d.OrderPosition, &d.EvidenceDescription, &d.ObjectiveSignal, &d.CreatedAt); err != nil {
			return nil, err
		}
		defs = append(defs, d)
	}
	return defs, rows.Err()
}
