package stock

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/angelmondragon/labstock-backend/internal/catalog"
	"github.com/angelmondragon/labstock-backend/internal/ledger"
	"github.com/angelmondragon/labstock-backend/internal/projects"
	"github.com/angelmondragon/labstock-backend/pkg/db"
	"github.com/angelmondragon/labstock-backend/pkg/db/models"
	"github.com/angelmondragon/labstock-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/labstock-backend/pkg/errors"
	"github.com/angelmondragon/labstock-backend/pkg/logger"
	"github.com/angelmondragon/labstock-backend/pkg/outbox"
	"github.com/angelmondragon/labstock-backend/pkg/outbox/payloads"
	"gorm.io/gorm"
)

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// ServiceParams groups dependencies for the stock service.
type ServiceParams struct {
	Runner   *db.Runner
	Repo     Repository
	Catalog  *catalog.Service
	Projects *projects.Service
	Ledger   ledger.Service
	Outbox   outboxPublisher
	Logger   *logger.Logger
}

// Service moves stock. Every movement locks the part, checks that the
// reservations stay covered, applies the delta and writes both audit logs
// plus an outbox event in one atomic scope.
type Service struct {
	runner   *db.Runner
	repo     Repository
	catalog  *catalog.Service
	projects *projects.Service
	ledger   ledger.Service
	outbox   outboxPublisher
	logg     *logger.Logger
}

// NewService builds a stock service.
func NewService(params ServiceParams) (*Service, error) {
	switch {
	case params.Runner == nil:
		return nil, errors.New("runner is required")
	case params.Catalog == nil:
		return nil, errors.New("catalog service is required")
	case params.Projects == nil:
		return nil, errors.New("project service is required")
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
		runner:   params.Runner,
		repo:     repo,
		catalog:  params.Catalog,
		projects: params.Projects,
		ledger:   params.Ledger,
		outbox:   params.Outbox,
		logg:     params.Logger,
	}, nil
}

// WithTx binds the service to an enclosing transaction.
func (s *Service) WithTx(tx *gorm.DB) *Service {
	return &Service{
		runner:   s.runner.WithTx(tx),
		repo:     s.repo.WithTx(tx),
		catalog:  s.catalog.WithTx(tx),
		projects: s.projects.WithTx(tx),
		ledger:   s.ledger,
		outbox:   s.outbox,
		logg:     s.logg,
	}
}

// In receives stock.
func (s *Service) In(ctx context.Context, input InInput) (*MovementResult, error) {
	input.MPN = strings.TrimSpace(input.MPN)
	input.Location = strings.TrimSpace(input.Location)
	if err := validateMovement(input.MPN, input.Qty, "in"); err != nil {
		return nil, err
	}
	if input.UnitCost.Valid && input.UnitCost.Decimal.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unit cost must not be negative")
	}

	var result *MovementResult
	err := s.runner.Run(ctx, "stock_in", func(tx *gorm.DB) error {
		b := s.WithTx(tx)
		part, err := b.prepare(ctx, input.MPN, input.Location)
		if err != nil {
			return err
		}
		projectID, err := b.resolveProject(ctx, input.ProjectCode)
		if err != nil {
			return err
		}
		line, err := b.repo.ApplyDelta(ctx, part.ID, input.Location, input.Qty, input.Condition, input.Note)
		if err != nil {
			return err
		}
		doc, err := b.ledger.RecordDocument(ctx, tx, ledger.DocumentInput{
			DocType:    enums.LedgerDocIn,
			ProjectID:  projectID,
			ToLocation: input.Location,
			Ref:        input.Ref,
			Operator:   input.Operator,
			Note:       input.Note,
			Lines:      []ledger.DocumentLineInput{{PartID: part.ID, Qty: input.Qty, UnitCost: input.UnitCost}},
		})
		if err != nil {
			return err
		}
		txn, err := b.ledger.RecordTxn(ctx, tx, ledger.TxnInput{
			TxnType:   enums.TxnIn,
			ProjectID: projectID,
			Ref:       input.Ref,
			Operator:  input.Operator,
			Note:      input.Note,
			Lines: []ledger.TxnLineInput{{
				PartID:    part.ID,
				MPN:       part.MPN,
				Location:  input.Location,
				QtyDelta:  input.Qty,
				Condition: line.Condition,
				Note:      input.Note,
			}},
		})
		if err != nil {
			return err
		}
		result = &MovementResult{DocumentID: doc.ID, TxnID: txn.ID, PartID: part.ID, Levels: []Level{levelOf(line)}}
		return b.emit(ctx, tx, enums.EventStockReceived, input.Operator, payloads.StockMovementEvent{
			DocumentID:  doc.ID,
			TxnID:       txn.ID,
			DocType:     enums.LedgerDocIn,
			PartID:      part.ID,
			MPN:         part.MPN,
			ToLocation:  input.Location,
			Qty:         input.Qty,
			ProjectCode: strings.TrimSpace(input.ProjectCode),
			Ref:         input.Ref,
		})
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Out issues stock.
func (s *Service) Out(ctx context.Context, input OutInput) (*MovementResult, error) {
	input.MPN = strings.TrimSpace(input.MPN)
	input.Location = strings.TrimSpace(input.Location)
	if err := validateMovement(input.MPN, input.Qty, "out"); err != nil {
		return nil, err
	}

	var result *MovementResult
	err := s.runner.Run(ctx, "stock_out", func(tx *gorm.DB) error {
		b := s.WithTx(tx)
		part, err := b.prepare(ctx, input.MPN, input.Location)
		if err != nil {
			return err
		}
		projectID, err := b.resolveProject(ctx, input.ProjectCode)
		if err != nil {
			return err
		}
		if err := b.guardDecrement(ctx, part, input.Location, input.Qty); err != nil {
			return err
		}
		line, err := b.repo.ApplyDelta(ctx, part.ID, input.Location, -input.Qty, "", input.Note)
		if err != nil {
			return err
		}
		doc, err := b.ledger.RecordDocument(ctx, tx, ledger.DocumentInput{
			DocType:      enums.LedgerDocOut,
			ProjectID:    projectID,
			FromLocation: input.Location,
			Ref:          input.Ref,
			Operator:     input.Operator,
			Note:         input.Note,
			Lines:        []ledger.DocumentLineInput{{PartID: part.ID, Qty: input.Qty}},
		})
		if err != nil {
			return err
		}
		txn, err := b.ledger.RecordTxn(ctx, tx, ledger.TxnInput{
			TxnType:   enums.TxnOut,
			ProjectID: projectID,
			Ref:       input.Ref,
			Operator:  input.Operator,
			Note:      input.Note,
			Lines: []ledger.TxnLineInput{{
				PartID:    part.ID,
				MPN:       part.MPN,
				Location:  input.Location,
				QtyDelta:  -input.Qty,
				Condition: line.Condition,
				Note:      input.Note,
			}},
		})
		if err != nil {
			return err
		}
		result = &MovementResult{DocumentID: doc.ID, TxnID: txn.ID, PartID: part.ID, Levels: []Level{levelOf(line)}}
		return b.emit(ctx, tx, enums.EventStockIssued, input.Operator, payloads.StockMovementEvent{
			DocumentID:   doc.ID,
			TxnID:        txn.ID,
			DocType:      enums.LedgerDocOut,
			PartID:       part.ID,
			MPN:          part.MPN,
			FromLocation: input.Location,
			Qty:          input.Qty,
			ProjectCode:  strings.TrimSpace(input.ProjectCode),
			Ref:          input.Ref,
		})
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Move transfers stock from one location to another. The source line must
// already exist; the destination inherits its condition.
func (s *Service) Move(ctx context.Context, input MoveInput) (*MovementResult, error) {
	input.MPN = strings.TrimSpace(input.MPN)
	input.FromLocation = strings.TrimSpace(input.FromLocation)
	input.ToLocation = strings.TrimSpace(input.ToLocation)
	if err := validateMovement(input.MPN, input.Qty, "move"); err != nil {
		return nil, err
	}
	if input.FromLocation == "" || input.ToLocation == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "from and to locations are required")
	}
	if input.FromLocation == input.ToLocation {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "from and to locations must differ")
	}

	var result *MovementResult
	err := s.runner.Run(ctx, "stock_move", func(tx *gorm.DB) error {
		b := s.WithTx(tx)
		part, err := b.prepare(ctx, input.MPN, input.FromLocation)
		if err != nil {
			return err
		}
		if err := b.catalog.AssertLocationExists(ctx, input.ToLocation); err != nil {
			return err
		}
		src, err := b.repo.FindLine(ctx, part.ID, input.FromLocation)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.Newf(pkgerrors.CodeNotFound, "no stock record for %s at %s", part.MPN, input.FromLocation)
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load source stock line")
		}
		if src.Qty < input.Qty {
			return pkgerrors.Newf(pkgerrors.CodeInsufficientStock, "insufficient stock at %s: have %d, need %d", input.FromLocation, src.Qty, input.Qty)
		}
		// totals are unchanged by a move, so only the source location can be uncovered
		cov, err := b.Coverage(ctx, part.ID, input.FromLocation)
		if err != nil {
			return err
		}
		if input.Qty > cov.AvailableAt {
			return cov.Violation(part, input.Qty, "moving")
		}

		from, err := b.repo.ApplyDelta(ctx, part.ID, input.FromLocation, -input.Qty, "", "")
		if err != nil {
			return err
		}
		to, err := b.repo.ApplyDelta(ctx, part.ID, input.ToLocation, input.Qty, src.Condition, input.Note)
		if err != nil {
			return err
		}
		doc, err := b.ledger.RecordDocument(ctx, tx, ledger.DocumentInput{
			DocType:      enums.LedgerDocMove,
			FromLocation: input.FromLocation,
			ToLocation:   input.ToLocation,
			Ref:          input.Ref,
			Operator:     input.Operator,
			Note:         input.Note,
			Lines:        []ledger.DocumentLineInput{{PartID: part.ID, Qty: input.Qty}},
		})
		if err != nil {
			return err
		}
		txn, err := b.ledger.RecordTxn(ctx, tx, ledger.TxnInput{
			TxnType:  enums.TxnMove,
			Ref:      input.Ref,
			Operator: input.Operator,
			Note:     input.Note,
			Lines: []ledger.TxnLineInput{
				{PartID: part.ID, MPN: part.MPN, Location: input.FromLocation, QtyDelta: -input.Qty, Condition: src.Condition, Note: input.Note},
				{PartID: part.ID, MPN: part.MPN, Location: input.ToLocation, QtyDelta: input.Qty, Condition: to.Condition, Note: input.Note},
			},
		})
		if err != nil {
			return err
		}
		result = &MovementResult{
			DocumentID: doc.ID,
			TxnID:      txn.ID,
			PartID:     part.ID,
			Levels:     []Level{levelOf(from), levelOf(to)},
		}
		return b.emit(ctx, tx, enums.EventStockMoved, input.Operator, payloads.StockMovementEvent{
			DocumentID:   doc.ID,
			TxnID:        txn.ID,
			DocType:      enums.LedgerDocMove,
			PartID:       part.ID,
			MPN:          part.MPN,
			FromLocation: input.FromLocation,
			ToLocation:   input.ToLocation,
			Qty:          input.Qty,
			Ref:          input.Ref,
		})
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Adjust corrects a stock line up or down. The note is mandatory.
func (s *Service) Adjust(ctx context.Context, input AdjustInput) (*MovementResult, error) {
	input.MPN = strings.TrimSpace(input.MPN)
	input.Location = strings.TrimSpace(input.Location)
	input.Note = strings.TrimSpace(input.Note)
	if input.MPN == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "mpn is required")
	}
	if input.Add < 0 || input.Sub < 0 || (input.Add > 0) == (input.Sub > 0) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "exactly one of add or sub must be positive")
	}
	if input.Note == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "adjustments require a note")
	}

	qty, delta, direction := input.Add, input.Add, "add"
	if input.Sub > 0 {
		qty, delta, direction = input.Sub, -input.Sub, "sub"
	}

	var result *MovementResult
	err := s.runner.Run(ctx, "stock_adjust", func(tx *gorm.DB) error {
		b := s.WithTx(tx)
		part, err := b.prepare(ctx, input.MPN, input.Location)
		if err != nil {
			return err
		}
		if delta < 0 {
			if err := b.guardDecrement(ctx, part, input.Location, qty); err != nil {
				return err
			}
		}
		line, err := b.repo.ApplyDelta(ctx, part.ID, input.Location, delta, "", input.Note)
		if err != nil {
			return err
		}
		docInput := ledger.DocumentInput{
			DocType:  enums.LedgerDocAdjust,
			Ref:      input.Ref,
			Operator: input.Operator,
			Note:     input.Note,
			Lines:    []ledger.DocumentLineInput{{PartID: part.ID, Qty: qty, Note: direction}},
		}
		event := payloads.StockMovementEvent{
			DocType: enums.LedgerDocAdjust,
			PartID:  part.ID,
			MPN:     part.MPN,
			Qty:     delta,
			Ref:     input.Ref,
		}
		if delta > 0 {
			docInput.ToLocation = input.Location
			event.ToLocation = input.Location
		} else {
			docInput.FromLocation = input.Location
			event.FromLocation = input.Location
		}
		doc, err := b.ledger.RecordDocument(ctx, tx, docInput)
		if err != nil {
			return err
		}
		txn, err := b.ledger.RecordTxn(ctx, tx, ledger.TxnInput{
			TxnType:  enums.TxnAdjust,
			Ref:      input.Ref,
			Operator: input.Operator,
			Note:     input.Note,
			Lines: []ledger.TxnLineInput{{
				PartID:    part.ID,
				MPN:       part.MPN,
				Location:  input.Location,
				QtyDelta:  delta,
				Condition: line.Condition,
				Note:      direction,
			}},
		})
		if err != nil {
			return err
		}
		result = &MovementResult{DocumentID: doc.ID, TxnID: txn.ID, PartID: part.ID, Levels: []Level{levelOf(line)}}
		event.DocumentID = doc.ID
		event.TxnID = txn.ID
		return b.emit(ctx, tx, enums.EventStockAdjusted, input.Operator, event)
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ApplyDelta exposes the stock primitive to callers that already hold the
// part lock inside their own scope. Use it on a service bound with WithTx.
func (s *Service) ApplyDelta(ctx context.Context, partID int64, location string, delta int, condition, note string) (*models.StockLine, error) {
	return s.repo.ApplyDelta(ctx, partID, location, delta, condition, note)
}

// FindLine returns the stock line of a part at a location.
func (s *Service) FindLine(ctx context.Context, partID int64, location string) (*models.StockLine, error) {
	line, err := s.repo.FindLine(ctx, partID, location)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Newf(pkgerrors.CodeNotFound, "no stock record at %s", location)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load stock line")
	}
	return line, nil
}

// Levels lists every stock line of a part.
func (s *Service) Levels(ctx context.Context, mpn string) ([]models.StockLine, error) {
	part, err := s.catalog.GetPart(ctx, mpn)
	if err != nil {
		return nil, err
	}
	lines, err := s.repo.ListLines(ctx, part.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list stock lines")
	}
	return lines, nil
}

// prepare locks the part and checks that the location exists.
func (s *Service) prepare(ctx context.Context, mpn, location string) (*models.Part, error) {
	part, err := s.catalog.LockPart(ctx, mpn)
	if err != nil {
		return nil, err
	}
	if err := s.catalog.AssertLocationExists(ctx, location); err != nil {
		return nil, err
	}
	return part, nil
}

func (s *Service) resolveProject(ctx context.Context, code string) (*int64, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, nil
	}
	project, err := s.projects.GetProject(ctx, code)
	if err != nil {
		return nil, err
	}
	return &project.ID, nil
}

func (s *Service) emit(ctx context.Context, tx *gorm.DB, eventType enums.OutboxEventType, operator string, data payloads.StockMovementEvent) error {
	event := outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregatePart,
		AggregateID:   strconv.FormatInt(data.PartID, 10),
		Actor:         &outbox.ActorRef{Operator: operator, Source: "stock"},
		Data:          data,
	}
	if err := s.outbox.Emit(ctx, tx, event); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit stock event")
	}
	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"event":    string(eventType),
			"mpn":      data.MPN,
			"qty":      data.Qty,
			"document": data.DocumentID,
		})
		s.logg.Debug(logCtx, "stock movement recorded")
	}
	return nil
}

func validateMovement(mpn string, qty int, kind string) error {
	if mpn == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "mpn is required")
	}
	if qty <= 0 {
		return pkgerrors.Newf(pkgerrors.CodeValidation, "stock %s qty must be a positive integer", kind)
	}
	return nil
}

func levelOf(line *models.StockLine) Level {
	return Level{Location: line.Location, Qty: line.Qty, Condition: line.Condition}
}
