package ledger

import (
	"context"
	"strings"

	"github.com/angelmondragon/labstock-backend/pkg/db/models"
	"gorm.io/gorm"
)

// Repository manages persistence for the append-only ledger and txn logs.
// It exposes no update or delete path.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateDocument(ctx context.Context, doc *models.LedgerDocument) error
	CreateTxn(ctx context.Context, txn *models.InventoryTxn) error
	ListEntries(ctx context.Context, filter Filter) ([]Entry, error)
	ListTxnEntries(ctx context.Context, filter TxnFilter) ([]TxnEntry, error)
	ListDocumentsByAllocation(ctx context.Context, allocationID int64) ([]models.LedgerDocument, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a ledger repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateDocument(ctx context.Context, doc *models.LedgerDocument) error {
	return r.db.WithContext(ctx).Create(doc).Error
}

func (r *repository) CreateTxn(ctx context.Context, txn *models.InventoryTxn) error {
	return r.db.WithContext(ctx).Create(txn).Error
}

// ListEntries returns the lines of at most filter.Limit documents, newest
// document first.
func (r *repository) ListEntries(ctx context.Context, filter Filter) ([]Entry, error) {
	scope := func(q *gorm.DB) *gorm.DB {
		q = q.Joins("JOIN ledger_lines AS l ON l.document_id = d.id").
			Joins("JOIN parts AS p ON p.id = l.part_id").
			Joins("LEFT JOIN projects AS pr ON pr.id = d.project_id")
		if code := strings.TrimSpace(filter.ProjectCode); code != "" {
			q = q.Where("pr.code = ?", code)
		}
		if mpn := strings.TrimSpace(filter.MPN); mpn != "" {
			q = q.Where("p.mpn = ?", mpn)
		}
		if filter.DocType != "" {
			q = q.Where("d.doc_type = ?", filter.DocType)
		}
		if filter.AllocationID != nil {
			q = q.Where("d.allocation_id = ?", *filter.AllocationID)
		}
		if !filter.Since.IsZero() {
			q = q.Where("d.created_at >= ?", filter.Since.UTC())
		}
		if !filter.Until.IsZero() {
			q = q.Where("d.created_at < ?", filter.Until.UTC())
		}
		if filter.BeforeID > 0 {
			q = q.Where("d.id < ?", filter.BeforeID)
		}
		return q
	}

	ids, err := r.headerIDs(ctx, "ledger_documents AS d", "d.id", filter.Limit, scope)
	if err != nil || len(ids) == 0 {
		return nil, err
	}

	var rows []Entry
	err = scope(r.db.WithContext(ctx).Table("ledger_documents AS d")).
		Select(`d.id AS document_id, d.doc_type, d.created_at, d.allocation_id,
			pr.code AS project_code, p.mpn, p.name AS part_name, l.qty, l.unit_cost,
			d.from_location, d.to_location, d.ref, d.operator, d.note, l.note AS line_note`).
		Where("d.id IN ?", ids).
		Order("d.id DESC").
		Order("l.id ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// ListTxnEntries returns the lines of at most filter.Limit txns, newest txn
// first. A move txn's two lines are never split across pages.
func (r *repository) ListTxnEntries(ctx context.Context, filter TxnFilter) ([]TxnEntry, error) {
	scope := func(q *gorm.DB) *gorm.DB {
		q = q.Joins("JOIN inventory_txn_lines AS tl ON tl.txn_id = t.id").
			Joins("LEFT JOIN projects AS pr ON pr.id = t.project_id")
		if code := strings.TrimSpace(filter.ProjectCode); code != "" {
			q = q.Where("pr.code = ?", code)
		}
		if mpn := strings.TrimSpace(filter.MPN); mpn != "" {
			q = q.Where("tl.mpn_snapshot = ?", mpn)
		}
		if loc := strings.TrimSpace(filter.Location); loc != "" {
			q = q.Where("tl.location = ?", loc)
		}
		if filter.TxnType != "" {
			q = q.Where("t.txn_type = ?", filter.TxnType)
		}
		if !filter.Since.IsZero() {
			q = q.Where("t.created_at >= ?", filter.Since.UTC())
		}
		if !filter.Until.IsZero() {
			q = q.Where("t.created_at < ?", filter.Until.UTC())
		}
		if filter.BeforeID > 0 {
			q = q.Where("t.id < ?", filter.BeforeID)
		}
		return q
	}

	ids, err := r.headerIDs(ctx, "inventory_txns AS t", "t.id", filter.Limit, scope)
	if err != nil || len(ids) == 0 {
		return nil, err
	}

	var rows []TxnEntry
	err = scope(r.db.WithContext(ctx).Table("inventory_txns AS t")).
		Select(`t.id AS txn_id, t.txn_type, t.created_at, pr.code AS project_code,
			t.ref, t.operator, t.note, tl.part_id, tl.mpn_snapshot, tl.location,
			tl.qty_delta, tl.condition, tl.note AS line_note`).
		Where("t.id IN ?", ids).
		Order("t.id DESC").
		Order("tl.id ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) headerIDs(ctx context.Context, table, idCol string, limit int, scope func(*gorm.DB) *gorm.DB) ([]int64, error) {
	q := scope(r.db.WithContext(ctx).Table(table)).
		Distinct(idCol).
		Order(idCol + " DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var ids []int64
	if err := q.Pluck(idCol, &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *repository) ListDocumentsByAllocation(ctx context.Context, allocationID int64) ([]models.LedgerDocument, error) {
	var docs []models.LedgerDocument
	if err := r.db.WithContext(ctx).
		Preload("Lines").
		Where("allocation_id = ?", allocationID).
		Order("id ASC").
		Find(&docs).Error; err != nil {
		return nil, err
	}
	return docs, nil
}
