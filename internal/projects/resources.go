package projects

import (
	"context"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/angelmondragon/labstock-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/labstock-backend/pkg/errors"
	"gorm.io/gorm"
)

var urlSchemes = map[string]bool{"http": true, "https": true, "file": true, "ssh": true, "git": true}

// schemes that must name a host
var hostSchemes = map[string]bool{"http": true, "https": true, "ssh": true, "git": true}

// checkURI reports whether uri is usable and why. URLs are judged on form
// alone; anything else is treated as a local path and must exist unless
// noCheck is set.
func checkURI(uri string, noCheck bool) (bool, string) {
	uri = strings.TrimSpace(uri)
	if uri == "" {
		return false, "uri is required"
	}
	if u, err := url.Parse(uri); err == nil && urlSchemes[u.Scheme] {
		if hostSchemes[u.Scheme] && u.Host == "" {
			return false, "malformed url"
		}
		return true, "url"
	}
	if noCheck {
		return true, "skip"
	}
	if _, err := os.Stat(expandHome(uri)); err == nil {
		return true, "ok"
	}
	return false, "path does not exist: " + uri
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

// UpsertResource links a resource to a project. An existing link with the same
// type and uri has its name, directory flag, tags and note replaced.
func (s *Service) UpsertResource(ctx context.Context, input ResourceInput) (*models.ProjectResource, error) {
	input.ResourceType = strings.TrimSpace(input.ResourceType)
	input.URI = strings.TrimSpace(input.URI)
	if input.ResourceType == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "resource type is required")
	}
	if ok, detail := checkURI(input.URI, input.NoCheck); !ok {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, detail)
	}

	var stored *models.ProjectResource
	err := s.runner.Run(ctx, "upsert_resource", func(tx *gorm.DB) error {
		bound := s.WithTx(tx)
		project, err := bound.GetProject(ctx, input.ProjectCode)
		if err != nil {
			return err
		}
		res := &models.ProjectResource{
			ProjectID:    project.ID,
			ResourceType: input.ResourceType,
			Name:         strings.TrimSpace(input.Name),
			URI:          input.URI,
			IsDir:        input.IsDir,
			Tags:         strings.TrimSpace(input.Tags),
			Note:         strings.TrimSpace(input.Note),
		}
		if err := bound.repo.UpsertResource(ctx, res); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "upsert resource")
		}
		// the conflict path leaves res.ID unset on some dialects
		stored, err = bound.repo.FindResource(ctx, project.ID, res.ResourceType, res.URI)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload resource")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return stored, nil
}

// ListResources returns a project's resources ordered by type, then name.
// An empty resourceType lists every type.
func (s *Service) ListResources(ctx context.Context, code, resourceType string) ([]models.ProjectResource, error) {
	project, err := s.GetProject(ctx, code)
	if err != nil {
		return nil, err
	}
	rows, err := s.repo.ListResources(ctx, project.ID, strings.TrimSpace(resourceType))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list resources")
	}
	return rows, nil
}

// RemoveResource deletes a resource link by id.
func (s *Service) RemoveResource(ctx context.Context, id int64) error {
	if id <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "resource id must be positive")
	}
	return s.runner.Run(ctx, "remove_resource", func(tx *gorm.DB) error {
		n, err := s.repo.WithTx(tx).DeleteResource(ctx, id)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete resource")
		}
		if n == 0 {
			return pkgerrors.Newf(pkgerrors.CodeNotFound, "resource %d not found", id)
		}
		return nil
	})
}

// CheckResources reports, for each of a project's resources, whether its uri
// is still reachable.
func (s *Service) CheckResources(ctx context.Context, code string) ([]ResourceCheck, error) {
	rows, err := s.ListResources(ctx, code, "")
	if err != nil {
		return nil, err
	}
	out := make([]ResourceCheck, 0, len(rows))
	for _, r := range rows {
		ok, detail := checkURI(r.URI, false)
		out = append(out, ResourceCheck{
			ID:           r.ID,
			ResourceType: r.ResourceType,
			Name:         r.Name,
			URI:          r.URI,
			OK:           ok,
			Detail:       detail,
		})
	}
	if s.logg != nil {
		broken := 0
		for _, c := range out {
			if !c.OK {
				broken++
			}
		}
		if broken > 0 {
			s.logg.Warn(s.logg.WithFields(ctx, map[string]any{"project": code, "broken": broken}), "project resources unreachable")
		}
	}
	return out, nil
}
