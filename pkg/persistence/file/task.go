package file

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pathwayhq/pathway/pkg/models"
	"github.com/pathwayhq/pathway/pkg/persistence"
)

// TaskRepository stores one JSON document per task.
type TaskRepository struct {
	root string
}

func (r *TaskRepository) path(id string) string {
	return filepath.Join(r.root, "tasks", id+".json")
}

func (r *TaskRepository) Save(ctx context.Context, task *models.Task) error {
	if err := writeJSON(r.path(task.ID), task); err != nil {
		return persistence.NewStoreError("Save", "task", task.ID, err)
	}

	return nil
}

func (r *TaskRepository) GetByID(ctx context.Context, id string) (*models.Task, error) {
	var task models.Task

	err := readJSON(r.path(id), &task)
	if os.IsNotExist(err) {
		return nil, persistence.NewStoreError("Get", "task", id, persistence.ErrTaskNotFound)
	}

	if err != nil {
		return nil, persistence.NewStoreError("Get", "task", id, err)
	}

	return &task, nil
}

func (r *TaskRepository) Update(ctx context.Context, task *models.Task) error {
	if _, err := r.GetByID(ctx, task.ID); err != nil {
		return err
	}

	return r.Save(ctx, task)
}

func (r *TaskRepository) ListByInstance(ctx context.Context, instanceID string) ([]*models.Task, error) {
	dir := os.DirFS(filepath.Join(r.root, "tasks"))

	files, err := fs.Glob(dir, "*.json")
	if err != nil {
		return nil, persistence.NewStoreError("List", "task", instanceID, err)
	}

	tasks := make([]*models.Task, 0)

	for _, file := range files {
		task, err := r.GetByID(ctx, strings.TrimSuffix(file, ".json"))
		if err != nil {
			return nil, err
		}

		if task.InstanceID == instanceID {
			tasks = append(tasks, task)
		}
	}

	sort.Slice(tasks, func(i, j int) bool { return tasks[i].CreatedAt.Before(tasks[j].CreatedAt) })

	return tasks, nil
}
