package ledger

import (
	"context"
	"fmt"
	"strings"

	"github.com/angelmondragon/labstock-backend/pkg/db/models"
	"github.com/angelmondragon/labstock-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/labstock-backend/pkg/errors"
	"github.com/angelmondragon/labstock-backend/pkg/pagination"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Service appends to and reads from the ledger. The two writes are
// independent; callers compose them inside their own atomic scope.
type Service interface {
	RecordDocument(ctx context.Context, tx *gorm.DB, input DocumentInput) (*models.LedgerDocument, error)
	RecordTxn(ctx context.Context, tx *gorm.DB, input TxnInput) (*models.InventoryTxn, error)
	List(ctx context.Context, filter Filter) ([]Entry, string, error)
	ListTxns(ctx context.Context, filter TxnFilter) ([]TxnEntry, string, error)
	History(ctx context.Context, allocationID int64) ([]models.LedgerDocument, error)
}

type service struct {
	repo Repository
}

// DocumentInput captures one ledger document and its lines.
type DocumentInput struct {
	DocType      enums.LedgerDocType
	ProjectID    *int64
	AllocationID *int64
	FromLocation string
	ToLocation   string
	Ref          string
	Operator     string
	Note         string
	Lines        []DocumentLineInput
}

// DocumentLineInput is one part quantity on a document.
type DocumentLineInput struct {
	PartID   int64
	Qty      int
	UnitCost decimal.NullDecimal
	Note     string
}

// TxnInput captures one inventory txn and its signed lines.
type TxnInput struct {
	TxnType   enums.TxnType
	ProjectID *int64
	Ref       string
	Operator  string
	Note      string
	Lines     []TxnLineInput
}

// TxnLineInput is one signed stock delta.
type TxnLineInput struct {
	PartID    int64
	MPN       string
	Location  string
	QtyDelta  int
	Condition string
	Note      string
}

// NewService wires a ledger service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) RecordDocument(ctx context.Context, tx *gorm.DB, input DocumentInput) (*models.LedgerDocument, error) {
	if tx == nil {
		return nil, fmt.Errorf("transaction required")
	}
	if !input.DocType.IsValid() {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid ledger doc type %q", input.DocType)
	}
	if len(input.Lines) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "ledger document needs at least one line")
	}

	doc := &models.LedgerDocument{
		DocType:      input.DocType,
		ProjectID:    input.ProjectID,
		AllocationID: input.AllocationID,
		FromLocation: optional(input.FromLocation),
		ToLocation:   optional(input.ToLocation),
		Ref:          input.Ref,
		Operator:     input.Operator,
		Note:         input.Note,
	}
	for _, line := range input.Lines {
		if line.PartID == 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "ledger line part is required")
		}
		if line.Qty <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "ledger qty must be a positive integer")
		}
		doc.Lines = append(doc.Lines, models.LedgerLine{
			PartID:   line.PartID,
			Qty:      line.Qty,
			UnitCost: line.UnitCost,
			Note:     line.Note,
		})
	}

	if err := s.repo.WithTx(tx).CreateDocument(ctx, doc); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "write ledger document")
	}
	return doc, nil
}

func (s *service) RecordTxn(ctx context.Context, tx *gorm.DB, input TxnInput) (*models.InventoryTxn, error) {
	if tx == nil {
		return nil, fmt.Errorf("transaction required")
	}
	if !input.TxnType.IsValid() {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid txn type %q", input.TxnType)
	}
	if len(input.Lines) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "inventory txn needs at least one line")
	}

	txn := &models.InventoryTxn{
		TxnType:   input.TxnType,
		ProjectID: input.ProjectID,
		Ref:       input.Ref,
		Operator:  input.Operator,
		Note:      input.Note,
	}
	for _, line := range input.Lines {
		if line.QtyDelta == 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "txn qty delta must be non-zero")
		}
		if strings.TrimSpace(line.Location) == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "txn line location is required")
		}
		txn.Lines = append(txn.Lines, models.InventoryTxnLine{
			PartID:      line.PartID,
			MPNSnapshot: line.MPN,
			Location:    line.Location,
			QtyDelta:    line.QtyDelta,
			Condition:   line.Condition,
			Note:        line.Note,
		})
	}

	if err := s.repo.WithTx(tx).CreateTxn(ctx, txn); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "write inventory txn")
	}
	return txn, nil
}

// List returns ledger entries newest first, plus the cursor for the next page.
func (s *service) List(ctx context.Context, filter Filter) ([]Entry, string, error) {
	cursor, err := pagination.ParseCursor(filter.Cursor)
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	if cursor != nil {
		filter.BeforeID = cursor.ID
	}
	limit := filter.Limit
	filter.Limit = pagination.LimitWithBuffer(limit)

	rows, err := s.repo.ListEntries(ctx, filter)
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list ledger")
	}
	page, next := trimGroups(rows, limit, func(e Entry) int64 { return e.DocumentID })
	return page, next, nil
}

// ListTxns returns inventory txn lines newest first.
func (s *service) ListTxns(ctx context.Context, filter TxnFilter) ([]TxnEntry, string, error) {
	cursor, err := pagination.ParseCursor(filter.Cursor)
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	if cursor != nil {
		filter.BeforeID = cursor.ID
	}
	limit := filter.Limit
	filter.Limit = pagination.LimitWithBuffer(limit)

	rows, err := s.repo.ListTxnEntries(ctx, filter)
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list inventory txns")
	}
	page, next := trimGroups(rows, limit, func(e TxnEntry) int64 { return e.TxnID })
	return page, next, nil
}

// History returns every document written for an allocation, oldest first.
func (s *service) History(ctx context.Context, allocationID int64) ([]models.LedgerDocument, error) {
	docs, err := s.repo.ListDocumentsByAllocation(ctx, allocationID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load allocation history")
	}
	return docs, nil
}

// trimGroups keeps the rows of the first limit header ids. rows arrive
// grouped by header, newest first, with at most limit+1 distinct headers.
func trimGroups[T any](rows []T, limit int, idOf func(T) int64) ([]T, string) {
	limit = pagination.NormalizeLimit(limit)
	seen := 0
	var last int64
	for i, row := range rows {
		id := idOf(row)
		if i == 0 || id != last {
			seen++
			if seen > limit {
				return rows[:i], pagination.EncodeCursor(pagination.Cursor{ID: last})
			}
			last = id
		}
	}
	return rows, ""
}

func optional(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}
