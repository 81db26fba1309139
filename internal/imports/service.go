package imports

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/angelmondragon/labstock-backend/internal/stock"
	"github.com/angelmondragon/labstock-backend/pkg/db"
	"github.com/angelmondragon/labstock-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/labstock-backend/pkg/errors"
	"github.com/angelmondragon/labstock-backend/pkg/logger"
	"github.com/angelmondragon/labstock-backend/pkg/outbox"
	"github.com/angelmondragon/labstock-backend/pkg/outbox/payloads"
	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"
)

const defaultAdjustNote = "batch adjust"

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// ServiceParams groups dependencies for the import coordinator.
type ServiceParams struct {
	Runner  *db.Runner
	Stock   *stock.Service
	Outbox  outboxPublisher
	Logger  *logger.Logger
	MaxRows int
}

// Service applies batches of stock movements under a strict or lenient policy.
type Service struct {
	runner  *db.Runner
	stock   *stock.Service
	outbox  outboxPublisher
	logg    *logger.Logger
	maxRows int
}

// NewService builds the import coordinator.
func NewService(params ServiceParams) (*Service, error) {
	switch {
	case params.Runner == nil:
		return nil, errors.New("runner is required")
	case params.Stock == nil:
		return nil, errors.New("stock service is required")
	case params.Outbox == nil:
		return nil, errors.New("outbox publisher is required")
	}
	return &Service{
		runner:  params.Runner,
		stock:   params.Stock,
		outbox:  params.Outbox,
		logg:    params.Logger,
		maxRows: params.MaxRows,
	}, nil
}

// errStrictAbort unwinds the batch scope after the first strict-mode failure.
var errStrictAbort = errors.New("strict import aborted")

// Import applies rows inside one outer atomic scope, each row in its own
// savepoint. Strict mode discards the whole batch on the first failure and
// returns that row's error. Lenient mode rolls back only the failing rows,
// commits the rest and returns PARTIAL_IMPORT_FAILURE when any row failed.
// The report is returned in every case.
func (s *Service) Import(ctx context.Context, rows []Row, mode enums.ImportMode) (*Report, error) {
	if mode == "" {
		mode = enums.ImportStrict
	}
	if !mode.IsValid() {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid import mode %q", mode)
	}
	if s.maxRows > 0 && len(rows) > s.maxRows {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "batch of %d rows exceeds the limit of %d", len(rows), s.maxRows)
	}

	report := &Report{BatchID: uuid.New(), Mode: mode, Total: len(rows)}
	var rowErrs []error

	err := s.runner.Run(ctx, "import_batch", func(tx *gorm.DB) error {
		// the runner may re-run this scope after a busy failure
		report.Skipped, report.Succeeded, report.Failures, rowErrs = 0, 0, nil, nil

		bound := s.stock.WithTx(tx)
		for i, row := range rows {
			if row.blank() {
				report.Skipped++
				continue
			}
			if err := applyRow(ctx, bound, row); err != nil {
				report.Failures = append(report.Failures, newFailure(i+1, row, err))
				rowErrs = append(rowErrs, fmt.Errorf("row %d: %w", i+1, err))
				if mode == enums.ImportStrict {
					return errStrictAbort
				}
				continue
			}
			report.Succeeded++
		}
		report.Committed = true
		return s.emitCompleted(ctx, tx, report)
	})

	switch {
	case errors.Is(err, errStrictAbort):
		report.Committed = false
		report.Succeeded = 0
		s.emitAfterRollback(ctx, report)
		s.logSummary(ctx, report)
		first := report.Failures[0]
		return report, pkgerrors.Wrap(first.Code, rowErrs[0],
			fmt.Sprintf("import aborted at row %d%s: %s", first.Index, locatorSuffix(first.Locator), first.Error)).
			WithDetails(report.Failures)
	case err != nil:
		report.Committed = false
		report.Succeeded = 0
		return report, err
	}

	s.logSummary(ctx, report)
	if len(report.Failures) > 0 {
		return report, pkgerrors.Wrap(pkgerrors.CodePartialImport, multierr.Combine(rowErrs...),
			fmt.Sprintf("%d of %d rows failed", len(report.Failures), report.Total)).
			WithDetails(report.Failures)
	}
	return report, nil
}

func applyRow(ctx context.Context, stk *stock.Service, row Row) error {
	movement, err := enums.ParseMovementType(row.Type)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "row type must be IN, OUT or ADJUST")
	}
	switch movement {
	case enums.MovementIn:
		_, err = stk.In(ctx, stock.InInput{
			MPN:         row.MPN,
			Location:    row.Location,
			Qty:         row.Qty,
			Condition:   row.Condition,
			ProjectCode: row.ProjectCode,
			Ref:         row.Ref,
			Operator:    row.Operator,
			Note:        row.Note,
		})
	case enums.MovementOut:
		_, err = stk.Out(ctx, stock.OutInput{
			MPN:         row.MPN,
			Location:    row.Location,
			Qty:         row.Qty,
			ProjectCode: row.ProjectCode,
			Ref:         row.Ref,
			Operator:    row.Operator,
			Note:        row.Note,
		})
	case enums.MovementAdjust:
		note := strings.TrimSpace(row.Note)
		if note == "" {
			note = defaultAdjustNote
		}
		_, err = stk.Adjust(ctx, stock.AdjustInput{
			MPN:      row.MPN,
			Location: row.Location,
			Add:      row.Qty,
			Ref:      row.Ref,
			Operator: row.Operator,
			Note:     note,
		})
	}
	return err
}

func newFailure(index int, row Row, err error) Failure {
	msg := err.Error()
	if typed := pkgerrors.As(err); typed != nil {
		msg = typed.Message()
	}
	return Failure{
		Index:   index,
		Locator: row.Locator,
		Code:    pkgerrors.CodeOf(err),
		Error:   msg,
		Values:  row,
	}
}

func (s *Service) emitCompleted(ctx context.Context, tx *gorm.DB, report *Report) error {
	err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventImportBatchFinished,
		AggregateType: enums.AggregateImportBatch,
		AggregateID:   report.BatchID.String(),
		Actor:         &outbox.ActorRef{Source: "import"},
		Data: payloads.ImportCompletedEvent{
			BatchID:   report.BatchID,
			Mode:      report.Mode,
			Total:     report.Total,
			Skipped:   report.Skipped,
			Succeeded: report.Succeeded,
			Failed:    len(report.Failures),
			Committed: report.Committed,
		},
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit import event")
	}
	return nil
}

// emitAfterRollback records the outcome of a discarded batch in a scope of
// its own. A failure here is logged and does not mask the row error.
func (s *Service) emitAfterRollback(ctx context.Context, report *Report) {
	err := s.runner.Run(ctx, "import_report", func(tx *gorm.DB) error {
		return s.emitCompleted(ctx, tx, report)
	})
	if err != nil && s.logg != nil {
		s.logg.Error(s.logg.WithField(ctx, "batch_id", report.BatchID.String()), "record aborted import", err)
	}
}

func (s *Service) logSummary(ctx context.Context, report *Report) {
	if s.logg == nil {
		return
	}
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"batch_id":  report.BatchID.String(),
		"mode":      string(report.Mode),
		"total":     report.Total,
		"skipped":   report.Skipped,
		"succeeded": report.Succeeded,
		"failed":    len(report.Failures),
		"committed": report.Committed,
	})
	if len(report.Failures) > 0 {
		s.logg.Warn(logCtx, "import finished with failures")
		return
	}
	s.logg.Info(logCtx, "import finished")
}

func locatorSuffix(locator string) string {
	if locator == "" {
		return ""
	}
	return " (" + locator + ")"
}
