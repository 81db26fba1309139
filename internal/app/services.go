// Package app assembles the domain services on one database handle.
package app

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/angelmondragon/labstock-backend/internal/allocations"
	"github.com/angelmondragon/labstock-backend/internal/catalog"
	"github.com/angelmondragon/labstock-backend/internal/imports"
	"github.com/angelmondragon/labstock-backend/internal/ledger"
	"github.com/angelmondragon/labstock-backend/internal/projects"
	"github.com/angelmondragon/labstock-backend/internal/stock"
	"github.com/angelmondragon/labstock-backend/pkg/config"
	"github.com/angelmondragon/labstock-backend/pkg/db"
	"github.com/angelmondragon/labstock-backend/pkg/logger"
	"github.com/angelmondragon/labstock-backend/pkg/outbox"
)

// Params configures NewServices. Observer may be nil.
type Params struct {
	DB         *gorm.DB
	Retrier    db.Retrier
	Observer   db.Observer
	Logger     *logger.Logger
	Allocation config.AllocationConfig
	Import     config.ImportConfig
}

// Services is the wired domain layer.
type Services struct {
	Runner      *db.Runner
	Outbox      *outbox.Service
	Ledger      ledger.Service
	Catalog     *catalog.Service
	Projects    *projects.Service
	Stock       *stock.Service
	Allocations *allocations.Service
	Imports     *imports.Service
}

func NewServices(p Params) (*Services, error) {
	if p.DB == nil {
		return nil, fmt.Errorf("database handle is required")
	}
	runner := db.NewRunner(p.DB, p.Retrier, p.Observer)
	publisher := outbox.NewService(outbox.NewRepository(p.DB), p.Logger)

	led, err := ledger.NewService(ledger.NewRepository(p.DB))
	if err != nil {
		return nil, fmt.Errorf("ledger service: %w", err)
	}
	cat, err := catalog.NewService(catalog.ServiceParams{Runner: runner, Logger: p.Logger})
	if err != nil {
		return nil, fmt.Errorf("catalog service: %w", err)
	}
	proj, err := projects.NewService(projects.ServiceParams{Runner: runner, Catalog: cat, Logger: p.Logger})
	if err != nil {
		return nil, fmt.Errorf("projects service: %w", err)
	}
	stk, err := stock.NewService(stock.ServiceParams{
		Runner:   runner,
		Catalog:  cat,
		Projects: proj,
		Ledger:   led,
		Outbox:   publisher,
		Logger:   p.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("stock service: %w", err)
	}
	alloc, err := allocations.NewService(allocations.ServiceParams{
		Runner:        runner,
		Catalog:       cat,
		Projects:      proj,
		Stock:         stk,
		Ledger:        led,
		Outbox:        publisher,
		Logger:        p.Logger,
		StrictRelease: p.Allocation.StrictRelease,
	})
	if err != nil {
		return nil, fmt.Errorf("allocations service: %w", err)
	}
	proj.SetAllocationLister(alloc)

	imp, err := imports.NewService(imports.ServiceParams{
		Runner:  runner,
		Stock:   stk,
		Outbox:  publisher,
		Logger:  p.Logger,
		MaxRows: p.Import.MaxRows,
	})
	if err != nil {
		return nil, fmt.Errorf("imports service: %w", err)
	}

	return &Services{
		Runner:      runner,
		Outbox:      publisher,
		Ledger:      led,
		Catalog:     cat,
		Projects:    proj,
		Stock:       stk,
		Allocations: alloc,
		Imports:     imp,
	}, nil
}
