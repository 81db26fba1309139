package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/angelmondragon/labstock-backend/pkg/db"
	"github.com/angelmondragon/labstock-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/labstock-backend/pkg/errors"
	"github.com/angelmondragon/labstock-backend/pkg/logger"
	"gorm.io/gorm"
)

const (
	defaultUnit              = "pcs"
	defaultPositionsPerShelf = 10
)

// ServiceParams groups dependencies for the catalog service.
type ServiceParams struct {
	Runner *db.Runner
	Repo   Repository
	Logger *logger.Logger
}

// Service manages parts and storage locations.
type Service struct {
	runner *db.Runner
	repo   Repository
	logg   *logger.Logger
}

// NewService builds a catalog service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Runner == nil {
		return nil, errors.New("runner is required")
	}
	repo := params.Repo
	if repo == nil {
		repo = NewRepository(params.Runner.DB())
	}
	return &Service{runner: params.Runner, repo: repo, logg: params.Logger}, nil
}

// WithTx binds the service to an enclosing transaction.
func (s *Service) WithTx(tx *gorm.DB) *Service {
	return &Service{runner: s.runner.WithTx(tx), repo: s.repo.WithTx(tx), logg: s.logg}
}

// UpsertPart creates the part when the mpn is unseen, otherwise merges the
// non-blank fields over the stored row.
func (s *Service) UpsertPart(ctx context.Context, mpn string, fields PartFields) (PartResult, error) {
	mpn = strings.TrimSpace(mpn)
	if mpn == "" {
		return PartResult{}, pkgerrors.New(pkgerrors.CodeValidation, "mpn is required")
	}

	var result PartResult
	err := s.runner.Run(ctx, "upsert_part", func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		part, err := repo.FindPartByMPN(ctx, mpn)
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			part = &models.Part{MPN: mpn, Name: mpn, Unit: defaultUnit}
			if _, err := mergePartFields(part, fields); err != nil {
				return err
			}
			if err := repo.CreatePart(ctx, part); err != nil {
				if db.IsUniqueViolation(err, "") {
					return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "part created concurrently")
				}
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create part")
			}
			result = PartResult{ID: part.ID, Created: true}
			return nil
		case err != nil:
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load part")
		}

		changed, err := mergePartFields(part, fields)
		if err != nil {
			return err
		}
		if changed {
			if err := repo.SavePart(ctx, part); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update part")
			}
		}
		result = PartResult{ID: part.ID}
		return nil
	})
	if err != nil {
		return PartResult{}, err
	}
	return result, nil
}

// mergePartFields applies every non-nil field. A blank value clears an
// optional field; name and unit cannot be blank.
func mergePartFields(part *models.Part, fields PartFields) (bool, error) {
	changed := false
	set := func(dst *string, src *string) {
		if src == nil {
			return
		}
		v := strings.TrimSpace(*src)
		if v == *dst {
			return
		}
		*dst = v
		changed = true
	}
	for name, src := range map[string]*string{"name": fields.Name, "unit": fields.Unit} {
		if src != nil && strings.TrimSpace(*src) == "" {
			return false, pkgerrors.Newf(pkgerrors.CodeValidation, "part %s cannot be blank", name)
		}
	}
	set(&part.Name, fields.Name)
	set(&part.Category, fields.Category)
	set(&part.Package, fields.Package)
	set(&part.Params, fields.Params)
	set(&part.Unit, fields.Unit)
	set(&part.URL, fields.URL)
	set(&part.Datasheet, fields.Datasheet)
	set(&part.Note, fields.Note)
	return changed, nil
}

// GetPart loads a part by mpn.
func (s *Service) GetPart(ctx context.Context, mpn string) (*models.Part, error) {
	mpn = strings.TrimSpace(mpn)
	if mpn == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "mpn is required")
	}
	part, err := s.repo.FindPartByMPN(ctx, mpn)
	if err != nil {
		return nil, partLookupError(err, mpn)
	}
	return part, nil
}

// LockPart loads a part by mpn and takes its row lock for the rest of the
// enclosing transaction. Call it on a service bound with WithTx.
func (s *Service) LockPart(ctx context.Context, mpn string) (*models.Part, error) {
	mpn = strings.TrimSpace(mpn)
	if mpn == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "mpn is required")
	}
	part, err := s.repo.LockPartByMPN(ctx, mpn)
	if err != nil {
		return nil, partLookupError(err, mpn)
	}
	return part, nil
}

// LockPartByID is LockPart keyed by id.
func (s *Service) LockPartByID(ctx context.Context, id int64) (*models.Part, error) {
	part, err := s.repo.LockPartByID(ctx, id)
	if err != nil {
		return nil, partLookupError(err, fmt.Sprintf("#%d", id))
	}
	return part, nil
}

func partLookupError(err error, ref string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.Newf(pkgerrors.CodeNotFound, "part %s not found", ref)
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load part")
}

// ListParts searches the catalog.
func (s *Service) ListParts(ctx context.Context, filter PartFilter) ([]models.Part, error) {
	parts, err := s.repo.ListParts(ctx, filter)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list parts")
	}
	return parts, nil
}

// AssertLocationExists fails with NOT_FOUND for an unknown location code.
func (s *Service) AssertLocationExists(ctx context.Context, code string) error {
	code = strings.TrimSpace(code)
	if code == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "location is required")
	}
	if _, err := s.repo.FindLocation(ctx, code); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Newf(pkgerrors.CodeNotFound, "location %s not found", code)
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load location")
	}
	return nil
}

// CreateLocation inserts the location unless it already exists.
func (s *Service) CreateLocation(ctx context.Context, code, note string) (bool, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "location code is required")
	}
	var created bool
	err := s.runner.Run(ctx, "create_location", func(tx *gorm.DB) error {
		ok, err := s.repo.WithTx(tx).InsertLocationIfAbsent(ctx, &models.Location{Code: code, Note: strings.TrimSpace(note)})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert location")
		}
		created = ok
		return nil
	})
	return created, err
}

// ListLocations returns locations whose code starts with prefix.
func (s *Service) ListLocations(ctx context.Context, prefix string) ([]models.Location, error) {
	locs, err := s.repo.ListLocations(ctx, prefix)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list locations")
	}
	return locs, nil
}

// ProvisionLocations ensures every room-cabinet-shelf-position code exists
// and returns how many codes were processed, created or not.
func (s *Service) ProvisionLocations(ctx context.Context, input ProvisionInput) (int, error) {
	locs, processed, err := buildLocations(input)
	if err != nil {
		return 0, err
	}

	err = s.runner.Run(ctx, "provision_locations", func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).UpsertLocations(ctx, locs, input.OverwriteNote); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "provision locations")
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	if s.logg != nil {
		ctx = s.logg.WithFields(ctx, map[string]any{
			"room":      input.Room,
			"processed": processed,
			"overwrite": input.OverwriteNote,
		})
		s.logg.Info(ctx, "locations provisioned")
	}
	return processed, nil
}

// buildLocations expands input into unique location rows. processed counts
// every generated code, including repeats from duplicated cabinets.
func buildLocations(input ProvisionInput) (locs []models.Location, processed int, err error) {
	room := strings.TrimSpace(input.Room)
	if room == "" {
		return nil, 0, pkgerrors.New(pkgerrors.CodeValidation, "room is required")
	}
	if len(input.Cabinets) == 0 {
		return nil, 0, pkgerrors.New(pkgerrors.CodeValidation, "at least one cabinet is required")
	}
	positions := input.PositionsPerShelf
	if positions == 0 {
		positions = defaultPositionsPerShelf
	}
	if positions < 0 {
		return nil, 0, pkgerrors.New(pkgerrors.CodeValidation, "positions per shelf must be positive")
	}

	seen := make(map[string]struct{})
	for _, cab := range input.Cabinets {
		code := strings.TrimSpace(cab.Code)
		if code == "" {
			return nil, 0, pkgerrors.New(pkgerrors.CodeValidation, "cabinet code is required")
		}
		if cab.Shelves <= 0 {
			return nil, 0, pkgerrors.Newf(pkgerrors.CodeValidation, "cabinet %s needs at least one shelf", code)
		}
		cabNote := strings.TrimSpace(cab.Note)
		for shelf := 1; shelf <= cab.Shelves; shelf++ {
			for pos := 1; pos <= positions; pos++ {
				note := fmt.Sprintf("%s %s shelf %d pos %02d", room, code, shelf, pos)
				if cabNote != "" {
					note += " | " + cabNote
				}
				processed++
				loc := fmt.Sprintf("%s-%s-S%02d-P%02d", room, code, shelf, pos)
				if _, dup := seen[loc]; dup {
					continue
				}
				seen[loc] = struct{}{}
				locs = append(locs, models.Location{Code: loc, Note: note})
			}
		}
	}
	return locs, processed, nil
}
