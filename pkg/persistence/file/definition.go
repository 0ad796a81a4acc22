package file

import (
	"context"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/pathwayhq/pathway/pkg/models"
	"github.com/pathwayhq/pathway/pkg/persistence"
)

// DefinitionRepository stores every version of a definition in one JSON
// document per flow name, in save order. "Latest" is therefore always the
// last record, which matches the contract: most-recently-saved, not highest
// semver.
type DefinitionRepository struct {
	root string
}

type definitionRecord struct {
	Flow    *models.Flow `json:"flow"`
	SavedAt time.Time    `json:"saved_at"`
}

func (r *DefinitionRepository) path(name string) string {
	return filepath.Join(r.root, "definitions", url.PathEscape(name)+".json")
}

func (r *DefinitionRepository) load(name string) ([]definitionRecord, error) {
	var records []definitionRecord

	err := readJSON(r.path(name), &records)
	if os.IsNotExist(err) {
		return nil, nil
	}

	if err != nil {
		return nil, err
	}

	return records, nil
}

// Save stores a definition version. Re-saving an existing (name, version)
// replaces it and moves it to the end of the save order.
func (r *DefinitionRepository) Save(ctx context.Context, flow *models.Flow) error {
	records, err := r.load(flow.Name)
	if err != nil {
		return persistence.NewStoreError("Save", "definition", flow.Name, err)
	}

	kept := records[:0]

	for _, record := range records {
		if record.Flow.Version != flow.Version {
			kept = append(kept, record)
		}
	}

	kept = append(kept, definitionRecord{Flow: flow, SavedAt: time.Now().UTC()})

	if err := writeJSON(r.path(flow.Name), kept); err != nil {
		return persistence.NewStoreError("Save", "definition", flow.Name, err)
	}

	return nil
}

// Get returns the named definition. An empty version selects the
// most-recently-saved one.
func (r *DefinitionRepository) Get(ctx context.Context, name, version string) (*models.Flow, error) {
	records, err := r.load(name)
	if err != nil {
		return nil, persistence.NewStoreError("Get", "definition", name, err)
	}

	if len(records) == 0 {
		return nil, persistence.NewStoreError("Get", "definition", name, persistence.ErrDefinitionNotFound)
	}

	if version == "" {
		return records[len(records)-1].Flow, nil
	}

	for _, record := range records {
		if record.Flow.Version == version {
			return record.Flow, nil
		}
	}

	return nil, persistence.NewStoreError("Get", "definition", name, persistence.ErrDefinitionNotFound)
}

// List returns the latest version of every stored definition, sorted by
// name for stable output.
func (r *DefinitionRepository) List(ctx context.Context) ([]*models.Flow, error) {
	dir := os.DirFS(filepath.Join(r.root, "definitions"))

	files, err := fs.Glob(dir, "*.json")
	if err != nil {
		return nil, persistence.NewStoreError("List", "definition", "", err)
	}

	flows := make([]*models.Flow, 0, len(files))

	for _, file := range files {
		name, err := url.PathUnescape(strings.TrimSuffix(file, ".json"))
		if err != nil {
			continue
		}

		flow, err := r.Get(ctx, name, "")
		if err != nil {
			return nil, err
		}

		flows = append(flows, flow)
	}

	sort.Slice(flows, func(i, j int) bool { return flows[i].Name < flows[j].Name })

	return flows, nil
}
