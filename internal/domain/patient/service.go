package patient

import (
	"context"
	"errors"

	"github.com/hmtp/hmtp/internal/domain/audit"
	"github.com/hmtp/hmtp/internal/platform/db"
)

type Service struct {
	repo  Repository
	tx    db.Transactor
	audit *audit.Recorder
}

func NewService(repo Repository, tx db.Transactor, rec *audit.Recorder) *Service {
	return &Service{repo: repo, tx: tx, audit: rec}
}

func (s *Service) Create(ctx context.Context, p *Patient) error {
	if err := p.validate(); err != nil {
		return err
	}
	return s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, p); err != nil {
			return err
		}
		return s.audit.Record(ctx, audit.Event{
			Action:       audit.ActionCreatePatient,
			ResourceType: audit.ResourcePatient,
			ResourceID:   p.ID,
			Details:      map[string]any{"first_name": p.FirstName, "last_name": p.LastName},
		})
	})
}

func (s *Service) Get(ctx context.Context, id int64) (*Patient, error) {
	return s.repo.GetByID(ctx, id)
}

// Exists reports whether id names a patient of the context tenant.
func (s *Service) Exists(ctx context.Context, id int64) (bool, error) {
	_, err := s.repo.GetByID(ctx, id)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}

func (s *Service) Update(ctx context.Context, id int64, u Update) (*Patient, error) {
	var out *Patient
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		p, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		u.apply(p)
		if err := p.validate(); err != nil {
			return err
		}
		if err := s.repo.Update(ctx, p); err != nil {
			return err
		}
		out = p
		return s.audit.Record(ctx, audit.Event{
			Action:       audit.ActionUpdatePatient,
			ResourceType: audit.ResourcePatient,
			ResourceID:   p.ID,
			Details:      u,
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Delete(ctx, id); err != nil {
			return err
		}
		return s.audit.Record(ctx, audit.Event{
			Action:       audit.ActionDeletePatient,
			ResourceType: audit.ResourcePatient,
			ResourceID:   id,
		})
	})
}

func (s *Service) List(ctx context.Context, search string, limit, offset int) ([]*Patient, int, error) {
	return s.repo.List(ctx, search, limit, offset)
}
