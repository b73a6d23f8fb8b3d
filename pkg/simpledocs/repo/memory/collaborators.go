package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/tendant/simple-docs/pkg/simpledocs"
)

// TenantStore is an in-memory simpledocs.TenantStore, seeded by tests and
// local servers. Tenant administration itself lives outside the library.
type TenantStore struct {
	mu      sync.RWMutex
	tenants map[uuid.UUID]*simpledocs.Tenant
}

// NewTenantStore creates an empty in-memory tenant store
func NewTenantStore() *TenantStore {
	return &TenantStore{tenants: make(map[uuid.UUID]*simpledocs.Tenant)}
}

// PutTenant inserts or replaces a tenant
func (s *TenantStore) PutTenant(tenant *simpledocs.Tenant) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tenantCopy := *tenant
	s.tenants[tenant.ID] = &tenantCopy
}

func (s *TenantStore) GetTenant(ctx context.Context, id uuid.UUID) (*simpledocs.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tenant, exists := s.tenants[id]
	if !exists {
		return nil, simpledocs.ErrTenantNotFound
	}
	tenantCopy := *tenant
	return &tenantCopy, nil
}

// DocumentTypeStore is an in-memory simpledocs.DocumentTypeStore.
type DocumentTypeStore struct {
	mu    sync.RWMutex
	types map[uuid.UUID]*simpledocs.DocumentType
}

// NewDocumentTypeStore creates an empty in-memory document-type store
func NewDocumentTypeStore() *DocumentTypeStore {
	return &DocumentTypeStore{types: make(map[uuid.UUID]*simpledocs.DocumentType)}
}

// PutDocumentType inserts or replaces a document type
func (s *DocumentTypeStore) PutDocumentType(docType *simpledocs.DocumentType) {
	s.mu.Lock()
	defer s.mu.Unlock()
	typeCopy := *docType
	s.types[docType.ID] = &typeCopy
}

func (s *DocumentTypeStore) GetDocumentType(ctx context.Context, id uuid.UUID) (*simpledocs.DocumentType, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	docType, exists := s.types[id]
	if !exists {
		return nil, simpledocs.ErrDocumentTypeNotFound
	}
	typeCopy := *docType
	return &typeCopy, nil
}
