package pharmacy

import "context"

type MedicineRepository interface {
	Create(ctx context.Context, m *Medicine) error
	GetByID(ctx context.Context, id int64) (*Medicine, error)
	Update(ctx context.Context, m *Medicine) error
	List(ctx context.Context, search string, limit, offset int) ([]*Medicine, int, error)
	// Decrement atomically removes qty units and returns the remaining
	// stock. It fails with ErrInsufficientStock, leaving the row untouched,
	// when fewer than qty units are on hand.
	Decrement(ctx context.Context, id int64, qty int) (int, error)
}

type PrescriptionRepository interface {
	Create(ctx context.Context, p *Prescription) error
	GetByID(ctx context.Context, id int64) (*Prescription, error)
	UpdateStatus(ctx context.Context, id int64, status string) (*Prescription, error)
	ListByPatient(ctx context.Context, patientID int64, limit, offset int) ([]*Prescription, int, error)
}
