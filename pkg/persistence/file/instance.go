package file

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/pathwayhq/pathway/pkg/models"
	"github.com/pathwayhq/pathway/pkg/persistence"
)

// InstanceRepository stores one JSON document per instance. Queries load
// everything and filter in memory, which is fine for development-scale
// data.
type InstanceRepository struct {
	root string
}

func (r *InstanceRepository) path(id string) string {
	return filepath.Join(r.root, "instances", id+".json")
}

func (r *InstanceRepository) Save(ctx context.Context, instance *models.Instance) error {
	if err := writeJSON(r.path(instance.ID), instance); err != nil {
		return persistence.NewStoreError("Save", "instance", instance.ID, err)
	}

	return nil
}

func (r *InstanceRepository) GetByID(ctx context.Context, id string) (*models.Instance, error) {
	var instance models.Instance

	err := readJSON(r.path(id), &instance)
	if os.IsNotExist(err) {
		return nil, persistence.NewStoreError("Get", "instance", id, persistence.ErrInstanceNotFound)
	}

	if err != nil {
		return nil, persistence.NewStoreError("Get", "instance", id, err)
	}

	return &instance, nil
}

func (r *InstanceRepository) Update(ctx context.Context, id string, update persistence.InstanceUpdate) error {
	instance, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}

	applyUpdate(instance, update)

	if err := writeJSON(r.path(id), instance); err != nil {
		return persistence.NewStoreError("Update", "instance", id, err)
	}

	return nil
}

func applyUpdate(instance *models.Instance, update persistence.InstanceUpdate) {
	if update.Status != nil {
		instance.Status = *update.Status
	}

	if update.CurrentState != nil {
		instance.CurrentState = *update.CurrentState
	}

	if update.Data != nil {
		instance.Data = update.Data
	}

	if update.History != nil {
		instance.History = update.History
	}

	if update.Error != nil {
		instance.Error = *update.Error
	}

	if update.StartedAt != nil {
		instance.StartedAt = update.StartedAt
	}

	if update.CompletedAt != nil {
		instance.CompletedAt = update.CompletedAt
	}
}

func (r *InstanceRepository) Query(ctx context.Context, filter persistence.InstanceFilter) ([]*models.Instance, error) {
	all, err := r.loadAll(ctx)
	if err != nil {
		return nil, err
	}

	filtered := make([]*models.Instance, 0, len(all))

	for _, instance := range all {
		if matchesFilter(instance, filter) {
			filtered = append(filtered, instance)
		}
	}

	if err := sortInstances(filtered, filter.SortBy, filter.SortOrder); err != nil {
		return nil, err
	}

	return paginate(filtered, filter.Skip, filter.Limit), nil
}

func (r *InstanceRepository) loadAll(ctx context.Context) ([]*models.Instance, error) {
	dir := os.DirFS(filepath.Join(r.root, "instances"))

	files, err := fs.Glob(dir, "*.json")
	if err != nil {
		return nil, persistence.NewStoreError("Query", "instance", "", err)
	}

	instances := make([]*models.Instance, 0, len(files))

	for _, file := range files {
		instance, err := r.GetByID(ctx, strings.TrimSuffix(file, ".json"))
		if err != nil {
			return nil, err
		}

		instances = append(instances, instance)
	}

	return instances, nil
}

func matchesFilter(instance *models.Instance, filter persistence.InstanceFilter) bool {
	if filter.WorkflowID != "" && instance.WorkflowID != filter.WorkflowID {
		return false
	}

	if filter.StartedBy != "" && instance.StartedBy != filter.StartedBy {
		return false
	}

	if len(filter.Statuses) > 0 {
		matched := false

		for _, status := range filter.Statuses {
			if instance.Status == status {
				matched = true

				break
			}
		}

		if !matched {
			return false
		}
	}

	return true
}

func sortInstances(instances []*models.Instance, sortBy, sortOrder string) error {
	if sortBy == "" {
		sortBy = "created_at"
	}

	if sortOrder == "" {
		sortOrder = persistence.SortDesc
	}

	if sortOrder != persistence.SortAsc && sortOrder != persistence.SortDesc {
		return persistence.NewStoreError("Query", "instance", "", persistence.ErrInvalidFilter)
	}

	var less func(a, b *models.Instance) bool

	switch sortBy {
	case "created_at":
		less = func(a, b *models.Instance) bool { return a.CreatedAt.Before(b.CreatedAt) }
	case "started_at":
		less = func(a, b *models.Instance) bool { return timePtrBefore(a.StartedAt, b.StartedAt) }
	case "completed_at":
		less = func(a, b *models.Instance) bool { return timePtrBefore(a.CompletedAt, b.CompletedAt) }
	case "workflow_id":
		less = func(a, b *models.Instance) bool { return a.WorkflowID < b.WorkflowID }
	case "status":
		less = func(a, b *models.Instance) bool { return a.Status < b.Status }
	default:
		return persistence.NewStoreError("Query", "instance", "", persistence.ErrInvalidFilter)
	}

	sort.SliceStable(instances, func(i, j int) bool {
		if sortOrder == persistence.SortAsc {
			return less(instances[i], instances[j])
		}

		return less(instances[j], instances[i])
	})

	return nil
}

func timePtrBefore(a, b *time.Time) bool {
	if a == nil {
		return b != nil
	}

	if b == nil {
		return false
	}

	return a.Before(*b)
}

func paginate(instances []*models.Instance, skip, limit int) []*models.Instance {
	if skip < 0 {
		skip = 0
	}

	if skip >= len(instances) {
		return []*models.Instance{}
	}

	instances = instances[skip:]

	if limit > 0 && limit < len(instances) {
		instances = instances[:limit]
	}

	return instances
}
