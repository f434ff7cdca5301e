package product

import (
	"sort"
	"strings"
	"sync"

	productDatamodel "github.com/frahmantamala/kit-checkout/internal/core/datamodel/product"
)

// CatalogRepository keeps the kit catalog in memory; kits come from configuration
// and are never written at runtime.
type CatalogRepository struct {
	mu    sync.RWMutex
	kits  map[string]*productDatamodel.Kit
	order []string
}

func NewCatalogRepository(kits []*Kit) RepositoryAPI {
	r := &CatalogRepository{kits: make(map[string]*productDatamodel.Kit, len(kits))}
	for _, k := range kits {
		r.kits[k.ID] = ToDataModel(k)
		r.order = append(r.order, k.ID)
	}
	return r
}

func (r *CatalogRepository) GetAll() ([]*productDatamodel.Kit, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kits := make([]*productDatamodel.Kit, 0, len(r.order))
	for _, id := range r.order {
		kits = append(kits, r.kits[id])
	}
	return kits, nil
}

func (r *CatalogRepository) GetByID(id string) (*productDatamodel.Kit, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kit, ok := r.kits[id]
	if !ok {
		return nil, nil
	}
	return kit, nil
}

// GetByReference returns the kit whose reference prefix is the longest match for ref.
func (r *CatalogRepository) GetByReference(ref string) (*productDatamodel.Kit, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	candidates := make([]*productDatamodel.Kit, 0, 1)
	for _, kit := range r.kits {
		if kit.ReferencePrefix != "" && strings.HasPrefix(ref, kit.ReferencePrefix) {
			candidates = append(candidates, kit)
		}
	}
	if len(candidates) == 0 {
		return nil, nil
	}
	sort.Slice(candidates, func(i, j int) bool {
		return len(candidates[i].ReferencePrefix) > len(candidates[j].ReferencePrefix)
	})
	return candidates[0], nil
}
