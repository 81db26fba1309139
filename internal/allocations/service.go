package allocations

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/angelmondragon/labstock-backend/internal/catalog"
	"github.com/angelmondragon/labstock-backend/internal/ledger"
	"github.com/angelmondragon/labstock-backend/internal/projects"
	"github.com/angelmondragon/labstock-backend/internal/stock"
	"github.com/angelmondragon/labstock-backend/pkg/db"
	"github.com/angelmondragon/labstock-backend/pkg/db/models"
	"github.com/angelmondragon/labstock-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/labstock-backend/pkg/errors"
	"github.com/angelmondragon/labstock-backend/pkg/logger"
	"github.com/angelmondragon/labstock-backend/pkg/outbox"
	"github.com/angelmondragon/labstock-backend/pkg/outbox/payloads"
	"gorm.io/gorm"
)

const (
	defaultReleaseNote = "released"
	defaultConsumeNote = "consumed"
)

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// ServiceParams groups dependencies for the allocation engine.
type ServiceParams struct {
	Runner   *db.Runner
	Repo     Repository
	Catalog  *catalog.Service
	Projects *projects.Service
	Stock    *stock.Service
	Ledger   ledger.Service
	Outbox   outboxPublisher
	Logger   *logger.Logger
	// StrictRelease refuses to release allocations that are no longer reserved.
	StrictRelease bool
}

// Service runs the reservation state machine: reserved -> consumed | released.
type Service struct {
	runner        *db.Runner
	repo          Repository
	catalog       *catalog.Service
	projects      *projects.Service
	stock         *stock.Service
	ledger        ledger.Service
	outbox        outboxPublisher
	logg          *logger.Logger
	strictRelease bool
}

// NewService builds the allocation engine.
func NewService(params ServiceParams) (*Service, error) {
	switch {
	case params.Runner == nil:
		return nil, errors.New("runner is required")
	case params.Catalog == nil:
		return nil, errors.New("catalog service is required")
	case params.Projects == nil:
		return nil, errors.New("project service is required")
	case params.Stock == nil:
		return nil, errors.New("stock service is required")
	case params.Ledger == nil:
		return nil, errors.New("ledger service is required")
	case params.Outbox == nil:
		return nil, errors.New("outbox publisher is required")
	}
	repo := params.Repo
	if repo == nil {
		repo = NewRepository(params.Runner.DB())
	}
	return &Service{
		runner:        params.Runner,
		repo:          repo,
		catalog:       params.Catalog,
		projects:      params.Projects,
		stock:         params.Stock,
		ledger:        params.Ledger,
		outbox:        params.Outbox,
		logg:          params.Logger,
		strictRelease: params.StrictRelease,
	}, nil
}

// WithTx binds the engine to an enclosing transaction.
func (s *Service) WithTx(tx *gorm.DB) *Service {
	bound := *s
	bound.runner = s.runner.WithTx(tx)
	bound.repo = s.repo.WithTx(tx)
	bound.catalog = s.catalog.WithTx(tx)
	bound.projects = s.projects.WithTx(tx)
	bound.stock = s.stock.WithTx(tx)
	return &bound
}

// Reserve claims qty of a part for a project. The part row is locked before
// the coverage check so concurrent reservations of the same part serialize;
// the loser fails with OVER_RESERVATION instead of waiting for stock.
func (s *Service) Reserve(ctx context.Context, input ReserveInput) (*models.Allocation, error) {
	input.ProjectCode = strings.TrimSpace(input.ProjectCode)
	input.MPN = strings.TrimSpace(input.MPN)
	input.Location = strings.TrimSpace(input.Location)
	input.Note = strings.TrimSpace(input.Note)
	switch {
	case input.ProjectCode == "":
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "project code is required")
	case input.MPN == "":
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "mpn is required")
	case input.Qty <= 0:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reserve qty must be a positive integer")
	}

	var alloc *models.Allocation
	err := s.runner.Run(ctx, "reserve", func(tx *gorm.DB) error {
		b := s.WithTx(tx)
		part, err := b.catalog.LockPart(ctx, input.MPN)
		if err != nil {
			return err
		}
		project, err := b.projects.GetProject(ctx, input.ProjectCode)
		if err != nil {
			return err
		}
		if input.Location != "" {
			if err := b.catalog.AssertLocationExists(ctx, input.Location); err != nil {
				return err
			}
		}
		cov, err := b.stock.Coverage(ctx, part.ID, input.Location)
		if err != nil {
			return err
		}
		if !cov.Allows(input.Qty) {
			return cov.Violation(part, input.Qty, "reserving")
		}

		alloc = &models.Allocation{
			ProjectID: project.ID,
			PartID:    part.ID,
			Location:  optional(input.Location),
			Qty:       input.Qty,
			Status:    enums.AllocationReserved,
			Note:      input.Note,
		}
		if err := b.repo.Create(ctx, alloc); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create allocation")
		}
		doc, err := b.ledger.RecordDocument(ctx, tx, ledger.DocumentInput{
			DocType:      enums.LedgerDocReserve,
			ProjectID:    &project.ID,
			AllocationID: &alloc.ID,
			ToLocation:   input.Location,
			Operator:     input.Operator,
			Note:         input.Note,
			Lines:        []ledger.DocumentLineInput{{PartID: part.ID, Qty: input.Qty}},
		})
		if err != nil {
			return err
		}
		return b.emit(ctx, tx, enums.EventAllocationReserved, input.Operator, payloads.AllocationEvent{
			AllocationID: alloc.ID,
			DocumentID:   doc.ID,
			ProjectID:    project.ID,
			ProjectCode:  project.Code,
			PartID:       part.ID,
			MPN:          part.MPN,
			Location:     input.Location,
			Qty:          input.Qty,
			Status:       enums.AllocationReserved,
		})
	})
	if err != nil {
		return nil, err
	}

	if s.logg != nil {
		logCtx := s.logg.WithProject(ctx, input.ProjectCode)
		logCtx = s.logg.WithFields(logCtx, map[string]any{
			"allocation_id": alloc.ID,
			"mpn":           input.MPN,
			"location":      input.Location,
			"qty":           input.Qty,
		})
		s.logg.Info(logCtx, "allocation reserved")
	}
	return alloc, nil
}

// Release returns an allocation's claim to the pool. Stock is untouched.
func (s *Service) Release(ctx context.Context, id int64, note, operator string) (*models.Allocation, error) {
	note = defaultNote(note, defaultReleaseNote)

	var alloc *models.Allocation
	err := s.runner.Run(ctx, "release", func(tx *gorm.DB) error {
		b := s.WithTx(tx)
		current, part, err := b.lockAllocation(ctx, id)
		if err != nil {
			return err
		}
		if s.strictRelease && current.Status != enums.AllocationReserved {
			return pkgerrors.Newf(pkgerrors.CodeStateConflict, "allocation %d is %s, only reserved allocations can be released", id, current.Status).
				WithDetails(map[string]any{"allocation_id": id, "status": current.Status})
		}

		current.Note = appendNote(current.Note, note)
		current.Status = enums.AllocationReleased
		if err := b.repo.UpdateStatus(ctx, current.ID, current.Status, current.Note); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update allocation")
		}
		project, err := b.projects.GetProjectByID(ctx, current.ProjectID)
		if err != nil {
			return err
		}
		location := deref(current.Location)
		doc, err := b.ledger.RecordDocument(ctx, tx, ledger.DocumentInput{
			DocType:      enums.LedgerDocRelease,
			ProjectID:    &current.ProjectID,
			AllocationID: &current.ID,
			FromLocation: location,
			Operator:     operator,
			Note:         note,
			Lines:        []ledger.DocumentLineInput{{PartID: current.PartID, Qty: current.Qty}},
		})
		if err != nil {
			return err
		}
		alloc = current
		return b.emit(ctx, tx, enums.EventAllocationReleased, operator, payloads.AllocationEvent{
			AllocationID: current.ID,
			DocumentID:   doc.ID,
			ProjectID:    current.ProjectID,
			ProjectCode:  project.Code,
			PartID:       current.PartID,
			MPN:          part.MPN,
			Location:     location,
			Qty:          current.Qty,
			Status:       enums.AllocationReleased,
		})
	})
	if err != nil {
		return nil, err
	}

	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{"allocation_id": id, "qty": alloc.Qty})
		s.logg.Info(logCtx, "allocation released")
	}
	return alloc, nil
}

// Consume turns a located reservation into an issue: the allocation becomes
// consumed and its quantity leaves the stock line it was reserved at.
func (s *Service) Consume(ctx context.Context, id int64, note, operator string) (*models.Allocation, error) {
	note = defaultNote(note, defaultConsumeNote)

	var alloc *models.Allocation
	err := s.runner.Run(ctx, "consume", func(tx *gorm.DB) error {
		b := s.WithTx(tx)
		current, part, err := b.lockAllocation(ctx, id)
		if err != nil {
			return err
		}
		if current.Status != enums.AllocationReserved {
			return pkgerrors.Newf(pkgerrors.CodeStateConflict, "allocation %d is %s, only reserved allocations can be consumed", id, current.Status).
				WithDetails(map[string]any{"allocation_id": id, "status": current.Status})
		}
		location := deref(current.Location)
		if location == "" {
			return pkgerrors.Newf(pkgerrors.CodeStateConflict, "allocation %d has no location to consume from", id).
				WithDetails(map[string]any{"allocation_id": id})
		}

		current.Note = appendNote(current.Note, note)
		current.Status = enums.AllocationConsumed
		if err := b.repo.UpdateStatus(ctx, current.ID, current.Status, current.Note); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update allocation")
		}
		// stock and claims drop by the same qty, so coverage is unchanged
		line, err := b.stock.ApplyDelta(ctx, current.PartID, location, -current.Qty, "", "")
		if err != nil {
			return err
		}

		project, err := b.projects.GetProjectByID(ctx, current.ProjectID)
		if err != nil {
			return err
		}
		doc, err := b.ledger.RecordDocument(ctx, tx, ledger.DocumentInput{
			DocType:      enums.LedgerDocConsume,
			ProjectID:    &current.ProjectID,
			AllocationID: &current.ID,
			FromLocation: location,
			Operator:     operator,
			Note:         note,
			Lines:        []ledger.DocumentLineInput{{PartID: current.PartID, Qty: current.Qty}},
		})
		if err != nil {
			return err
		}
		if _, err := b.ledger.RecordTxn(ctx, tx, ledger.TxnInput{
			TxnType:   enums.TxnOut,
			ProjectID: &current.ProjectID,
			Operator:  operator,
			Note:      note,
			Lines: []ledger.TxnLineInput{{
				PartID:    current.PartID,
				MPN:       part.MPN,
				Location:  location,
				QtyDelta:  -current.Qty,
				Condition: line.Condition,
				Note:      note,
			}},
		}); err != nil {
			return err
		}
		alloc = current
		return b.emit(ctx, tx, enums.EventAllocationConsumed, operator, payloads.AllocationEvent{
			AllocationID: current.ID,
			DocumentID:   doc.ID,
			ProjectID:    current.ProjectID,
			ProjectCode:  project.Code,
			PartID:       current.PartID,
			MPN:          part.MPN,
			Location:     location,
			Qty:          current.Qty,
			Status:       enums.AllocationConsumed,
		})
	})
	if err != nil {
		return nil, err
	}

	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{"allocation_id": id, "qty": alloc.Qty})
		s.logg.Info(logCtx, "allocation consumed")
	}
	return alloc, nil
}

// Get loads an allocation by id.
func (s *Service) Get(ctx context.Context, id int64) (*models.Allocation, error) {
	alloc, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, allocationLookupError(err, id)
	}
	return alloc, nil
}

// ListByProject returns a project's allocations, newest first.
func (s *Service) ListByProject(ctx context.Context, code string) ([]models.AllocationDetail, error) {
	rows, err := s.repo.ListDetailByProject(ctx, strings.TrimSpace(code))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list allocations")
	}
	return rows, nil
}

// Availability reports how much of a part can still be reserved, globally
// and at location when one is given.
func (s *Service) Availability(ctx context.Context, mpn, location string) (*Availability, error) {
	location = strings.TrimSpace(location)
	part, err := s.catalog.GetPart(ctx, mpn)
	if err != nil {
		return nil, err
	}
	if location != "" {
		if err := s.catalog.AssertLocationExists(ctx, location); err != nil {
			return nil, err
		}
	}
	cov, err := s.stock.Coverage(ctx, part.ID, location)
	if err != nil {
		return nil, err
	}
	lines, err := s.stock.Levels(ctx, part.MPN)
	if err != nil {
		return nil, err
	}
	out := &Availability{MPN: part.MPN, Coverage: cov, Levels: make([]stock.Level, 0, len(lines))}
	for _, line := range lines {
		out.Levels = append(out.Levels, stock.Level{Location: line.Location, Qty: line.Qty, Condition: line.Condition})
	}
	return out, nil
}

// lockAllocation takes the part lock first, matching the order Reserve uses,
// then locks the allocation row itself.
func (s *Service) lockAllocation(ctx context.Context, id int64) (*models.Allocation, *models.Part, error) {
	if id <= 0 {
		return nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "allocation id must be positive")
	}
	probe, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, nil, allocationLookupError(err, id)
	}
	part, err := s.catalog.LockPartByID(ctx, probe.PartID)
	if err != nil {
		return nil, nil, err
	}
	alloc, err := s.repo.LockByID(ctx, id)
	if err != nil {
		return nil, nil, allocationLookupError(err, id)
	}
	return alloc, part, nil
}

func (s *Service) emit(ctx context.Context, tx *gorm.DB, eventType enums.OutboxEventType, operator string, data payloads.AllocationEvent) error {
	err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateAllocation,
		AggregateID:   strconv.FormatInt(data.AllocationID, 10),
		Actor:         &outbox.ActorRef{Operator: operator, Source: "allocations"},
		Data:          data,
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit allocation event")
	}
	return nil
}

func allocationLookupError(err error, id int64) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.Newf(pkgerrors.CodeNotFound, "allocation %d not found", id)
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load allocation")
}

func appendNote(current, note string) string {
	current = strings.TrimSpace(current)
	if current == "" {
		return note
	}
	return current + " | " + note
}

func defaultNote(note, fallback string) string {
	if note = strings.TrimSpace(note); note != "" {
		return note
	}
	return fallback
}

func optional(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

func deref(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
