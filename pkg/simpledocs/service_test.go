package simpledocs_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-docs/pkg/simpledocs"
	"github.com/tendant/simple-docs/pkg/simpledocs/blobkey"
	"github.com/tendant/simple-docs/pkg/simpledocs/repo/memory"
	memorystorage "github.com/tendant/simple-docs/pkg/simpledocs/storage/memory"
)

func TestServiceCreation(t *testing.T) {
	tenants := memory.NewTenantStore()
	docTypes := memory.NewDocumentTypeStore()

	tests := []struct {
		name        string
		options     []simpledocs.Option
		expectError bool
	}{
		{
			name:        "no options should fail",
			options:     []simpledocs.Option{},
			expectError: true,
		},
		{
			name: "missing blob store should fail",
			options: []simpledocs.Option{
				simpledocs.WithRepository(memory.New()),
				simpledocs.WithTenantStore(tenants),
				simpledocs.WithDocumentTypeStore(docTypes),
			},
			expectError: true,
		},
		{
			name: "missing collaborators should fail",
			options: []simpledocs.Option{
				simpledocs.WithRepository(memory.New()),
				simpledocs.WithBlobStore("memory", memorystorage.New()),
			},
			expectError: true,
		},
		{
			name: "full wiring should succeed",
			options: []simpledocs.Option{
				simpledocs.WithRepository(memory.New()),
				simpledocs.WithTenantStore(tenants),
				simpledocs.WithDocumentTypeStore(docTypes),
				simpledocs.WithBlobStore("memory", memorystorage.New()),
			},
			expectError: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := simpledocs.New(tt.options...)

			if tt.expectError {
				assert.Error(t, err)
				assert.Nil(t, svc)
			} else {
				assert.NoError(t, err)
				assert.NotNil(t, svc)
			}
		})
	}
}

type testEnv struct {
	svc       simpledocs.Service
	store     simpledocs.BlobStore
	tenantID  uuid.UUID
	docTypeID uuid.UUID
	extTypeID uuid.UUID
}

func setupTestService(t *testing.T, extraOptions ...simpledocs.Option) *testEnv {
	t.Helper()

	env := &testEnv{
		store:     memorystorage.New(),
		tenantID:  uuid.New(),
		docTypeID: uuid.New(),
		extTypeID: uuid.New(),
	}

	now := time.Now().UTC()
	tenants := memory.NewTenantStore()
	tenants.PutTenant(&simpledocs.Tenant{
		ID: env.tenantID, Name: "acme", IsActive: true, CreatedAt: now, UpdatedAt: now,
	})

	docTypes := memory.NewDocumentTypeStore()
	docTypes.PutDocumentType(&simpledocs.DocumentType{
		ID: env.docTypeID, Name: "invoice", CreatedAt: now, UpdatedAt: now,
	})
	docTypes.PutDocumentType(&simpledocs.DocumentType{
		ID: env.extTypeID, Name: "contract", HasExtension: true, CreatedAt: now, UpdatedAt: now,
	})

	options := append([]simpledocs.Option{
		simpledocs.WithRepository(memory.New()),
		simpledocs.WithTenantStore(tenants),
		simpledocs.WithDocumentTypeStore(docTypes),
		simpledocs.WithBlobStore("memory", env.store),
	}, extraOptions...)

	svc, err := simpledocs.New(options...)
	require.NoError(t, err)
	env.svc = svc
	return env
}

func (e *testEnv) createDocument(t *testing.T, title string, content []byte) *simpledocs.Document {
	t.Helper()
	doc, err := e.svc.CreateDocument(context.Background(), simpledocs.CreateDocumentRequest{
		TenantID:       e.tenantID,
		DocumentTypeID: e.docTypeID,
		Title:          title,
		Content:        bytes.NewReader(content),
		FileName:       title + ".pdf",
		MimeType:       "application/pdf",
		Actor:          "tester",
	})
	require.NoError(t, err)
	return doc
}

func TestCreateDocument(t *testing.T) {
	env := setupTestService(t)
	ctx := context.Background()
	content := []byte("invoice body v1")

	doc := env.createDocument(t, "Invoice-001", content)

	assert.Positive(t, doc.ID)
	assert.Equal(t, env.tenantID, doc.TenantID)
	assert.Equal(t, 1, doc.Version)
	assert.True(t, doc.IsCurrentVersion)
	assert.Nil(t, doc.ParentDocumentID)
	assert.Equal(t, simpledocs.HashBytes(content), doc.ContentHash)
	assert.Equal(t, int64(len(content)), doc.FileSizeBytes)
	assert.Equal(t, "memory", doc.BlobBackend)
	assert.Contains(t, doc.BlobPath, "tenants/"+env.tenantID.String())
	assert.Contains(t, doc.BlobPath, doc.ContentHash)

	exists, err := env.store.Exists(ctx, doc.BlobPath)
	require.NoError(t, err)
	assert.True(t, exists)

	t.Run("DownloadRoundTrip", func(t *testing.T) {
		reader, err := env.svc.DownloadDocument(ctx, doc.ID)
		require.NoError(t, err)
		defer reader.Close()

		data, err := io.ReadAll(reader)
		require.NoError(t, err)
		assert.Equal(t, content, data)
		assert.Equal(t, doc.ContentHash, simpledocs.HashBytes(data))
	})
}

func TestCreateDocumentValidation(t *testing.T) {
	env := setupTestService(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		req   simpledocs.CreateDocumentRequest
		field string
	}{
		{
			name: "blank title",
			req: simpledocs.CreateDocumentRequest{
				TenantID:       env.tenantID,
				DocumentTypeID: env.docTypeID,
				Title:          "   ",
				FileName:       "a.pdf",
				Content:        bytes.NewReader([]byte("x")),
			},
			field: "title",
		},
		{
			name: "nil content",
			req: simpledocs.CreateDocumentRequest{
				TenantID:       env.tenantID,
				DocumentTypeID: env.docTypeID,
				Title:          "Doc",
				FileName:       "a.pdf",
			},
			field: "content",
		},
		{
			name: "empty content",
			req: simpledocs.CreateDocumentRequest{
				TenantID:       env.tenantID,
				DocumentTypeID: env.docTypeID,
				Title:          "Doc",
				FileName:       "a.pdf",
				Content:        bytes.NewReader(nil),
			},
			field: "content",
		},
		{
			name: "missing tenant id",
			req: simpledocs.CreateDocumentRequest{
				DocumentTypeID: env.docTypeID,
				Title:          "Doc",
				FileName:       "a.pdf",
				Content:        bytes.NewReader([]byte("x")),
			},
			field: "tenant_id",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.svc.CreateDocument(ctx, tt.req)
			var validationErr *simpledocs.ValidationError
			require.ErrorAs(t, err, &validationErr)
			assert.Equal(t, tt.field, validationErr.Field)
		})
	}
}

func TestCreateDocumentCollaboratorChecks(t *testing.T) {
	env := setupTestService(t)
	ctx := context.Background()

	t.Run("UnknownTenant", func(t *testing.T) {
		_, err := env.svc.CreateDocument(ctx, simpledocs.CreateDocumentRequest{
			TenantID:       uuid.New(),
			DocumentTypeID: env.docTypeID,
			Title:          "Doc",
			FileName:       "a.pdf",
			Content:        bytes.NewReader([]byte("x")),
		})
		assert.ErrorIs(t, err, simpledocs.ErrTenantNotFound)
	})

	t.Run("UnknownDocumentType", func(t *testing.T) {
		_, err := env.svc.CreateDocument(ctx, simpledocs.CreateDocumentRequest{
			TenantID:       env.tenantID,
			DocumentTypeID: uuid.New(),
			Title:          "Doc",
			FileName:       "a.pdf",
			Content:        bytes.NewReader([]byte("x")),
		})
		assert.ErrorIs(t, err, simpledocs.ErrDocumentTypeNotFound)
	})

	t.Run("InactiveTenant", func(t *testing.T) {
		inactiveID := uuid.New()
		now := time.Now().UTC()
		tenants := memory.NewTenantStore()
		tenants.PutTenant(&simpledocs.Tenant{ID: inactiveID, Name: "dormant", CreatedAt: now, UpdatedAt: now})
		docTypes := memory.NewDocumentTypeStore()
		docTypes.PutDocumentType(&simpledocs.DocumentType{ID: env.docTypeID, Name: "invoice"})

		svc, err := simpledocs.New(
			simpledocs.WithRepository(memory.New()),
			simpledocs.WithTenantStore(tenants),
			simpledocs.WithDocumentTypeStore(docTypes),
			simpledocs.WithBlobStore("memory", memorystorage.New()),
		)
		require.NoError(t, err)

		_, err = svc.CreateDocument(ctx, simpledocs.CreateDocumentRequest{
			TenantID:       inactiveID,
			DocumentTypeID: env.docTypeID,
			Title:          "Doc",
			FileName:       "a.pdf",
			Content:        bytes.NewReader([]byte("x")),
		})
		var conflictErr *simpledocs.ConflictError
		assert.ErrorAs(t, err, &conflictErr)
	})
}

func TestCreateVersion(t *testing.T) {
	env := setupTestService(t)
	ctx := context.Background()

	root := env.createDocument(t, "Invoice-001", []byte("v1 bytes"))

	v2, err := env.svc.CreateVersion(ctx, simpledocs.CreateVersionRequest{
		DocumentID: root.ID,
		Content:    bytes.NewReader([]byte("v2 bytes")),
		FileName:   "invoice-001-r2.pdf",
		Actor:      "tester",
	})
	require.NoError(t, err)

	assert.Equal(t, 2, v2.Version)
	assert.True(t, v2.IsCurrentVersion)
	require.NotNil(t, v2.ParentDocumentID)
	assert.Equal(t, root.ID, *v2.ParentDocumentID)
	assert.Equal(t, root.Title, v2.Title)

	t.Run("PreviousVersionDemoted", func(t *testing.T) {
		prev, err := env.svc.GetDocument(ctx, root.ID)
		require.NoError(t, err)
		assert.False(t, prev.IsCurrentVersion)
	})

	t.Run("VersionNumbersAreMonotonic", func(t *testing.T) {
		v3, err := env.svc.CreateVersion(ctx, simpledocs.CreateVersionRequest{
			DocumentID: root.ID,
			Content:    bytes.NewReader([]byte("v3 bytes")),
			FileName:   "invoice-001-r3.pdf",
		})
		require.NoError(t, err)
		assert.Equal(t, 3, v3.Version)

		chain, err := env.svc.GetVersionChain(ctx, root.ID)
		require.NoError(t, err)
		require.Len(t, chain, 3)
		for i, doc := range chain {
			assert.Equal(t, i+1, doc.Version)
			assert.Equal(t, doc.Version == 3, doc.IsCurrentVersion)
		}
	})

	t.Run("ChainReachableFromAnyVersion", func(t *testing.T) {
		chain, err := env.svc.GetVersionChain(ctx, v2.ID)
		require.NoError(t, err)
		assert.Len(t, chain, 3)
	})

	t.Run("VersionViaChildAppendsToSameChain", func(t *testing.T) {
		v4, err := env.svc.CreateVersion(ctx, simpledocs.CreateVersionRequest{
			DocumentID: v2.ID,
			Content:    bytes.NewReader([]byte("v4 bytes")),
			FileName:   "invoice-001-r4.pdf",
		})
		require.NoError(t, err)
		assert.Equal(t, 4, v4.Version)
		assert.Equal(t, root.ID, *v4.ParentDocumentID)
	})

	t.Run("VersionOnDeletedDocumentConflicts", func(t *testing.T) {
		other := env.createDocument(t, "Doomed", []byte("doomed"))
		require.NoError(t, env.svc.SoftDelete(ctx, simpledocs.SoftDeleteRequest{DocumentID: other.ID}))

		_, err := env.svc.CreateVersion(ctx, simpledocs.CreateVersionRequest{
			DocumentID: other.ID,
			Content:    bytes.NewReader([]byte("more")),
			FileName:   "x.pdf",
		})
		var conflictErr *simpledocs.ConflictError
		assert.ErrorAs(t, err, &conflictErr)
	})
}

func TestCreateVersionDedup(t *testing.T) {
	env := setupTestService(t)
	ctx := context.Background()
	content := []byte("stable bytes")

	root := env.createDocument(t, "Contract", content)

	// Re-uploading the current version's exact bytes is a no-op returning the
	// current version.
	same, err := env.svc.CreateVersion(ctx, simpledocs.CreateVersionRequest{
		DocumentID: root.ID,
		Content:    bytes.NewReader(content),
		FileName:   "contract-copy.pdf",
	})
	require.NoError(t, err)
	assert.Equal(t, root.ID, same.ID)
	assert.Equal(t, 1, same.Version)

	chain, err := env.svc.GetVersionChain(ctx, root.ID)
	require.NoError(t, err)
	assert.Len(t, chain, 1)

	t.Run("OlderVersionMatchStillAppends", func(t *testing.T) {
		v2, err := env.svc.CreateVersion(ctx, simpledocs.CreateVersionRequest{
			DocumentID: root.ID,
			Content:    bytes.NewReader([]byte("changed bytes")),
			FileName:   "contract-r2.pdf",
		})
		require.NoError(t, err)
		assert.Equal(t, 2, v2.Version)

		// Content now matches version 1, not the current version 2.
		v3, err := env.svc.CreateVersion(ctx, simpledocs.CreateVersionRequest{
			DocumentID: root.ID,
			Content:    bytes.NewReader(content),
			FileName:   "contract-r3.pdf",
		})
		require.NoError(t, err)
		assert.Equal(t, 3, v3.Version)
		assert.Equal(t, root.ContentHash, v3.ContentHash)
	})
}

func TestSoftDeleteAndRestore(t *testing.T) {
	env := setupTestService(t)
	ctx := context.Background()

	doc := env.createDocument(t, "Ledger", []byte("ledger bytes"))

	require.NoError(t, env.svc.SoftDelete(ctx, simpledocs.SoftDeleteRequest{
		DocumentID: doc.ID,
		Actor:      "auditor",
		Reason:     "filed in error",
	}))

	deleted, err := env.svc.GetDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.True(t, deleted.IsDeleted)
	assert.NotNil(t, deleted.DeletedAt)
	assert.Equal(t, "auditor", deleted.DeletedBy)
	assert.Equal(t, "filed in error", deleted.DeletedReason)

	t.Run("BlobSurvivesSoftDelete", func(t *testing.T) {
		exists, err := env.store.Exists(ctx, doc.BlobPath)
		require.NoError(t, err)
		assert.True(t, exists)
	})

	t.Run("DownloadBlockedWhileDeleted", func(t *testing.T) {
		_, err := env.svc.DownloadDocument(ctx, doc.ID)
		var conflictErr *simpledocs.ConflictError
		assert.ErrorAs(t, err, &conflictErr)
	})

	t.Run("DeleteTwiceIsNoop", func(t *testing.T) {
		assert.NoError(t, env.svc.SoftDelete(ctx, simpledocs.SoftDeleteRequest{DocumentID: doc.ID}))
	})

	t.Run("HiddenFromDefaultListing", func(t *testing.T) {
		docs, err := env.svc.ListDocuments(ctx, simpledocs.ListDocumentsRequest{TenantID: env.tenantID})
		require.NoError(t, err)
		for _, d := range docs {
			assert.NotEqual(t, doc.ID, d.ID)
		}

		docs, err = env.svc.ListDocuments(ctx, simpledocs.ListDocumentsRequest{
			TenantID: env.tenantID,
			Filters:  simpledocs.DocumentListFilters{IncludeDeleted: true},
		})
		require.NoError(t, err)
		found := false
		for _, d := range docs {
			found = found || d.ID == doc.ID
		}
		assert.True(t, found)
	})

	t.Run("Restore", func(t *testing.T) {
		require.NoError(t, env.svc.Restore(ctx, doc.ID))

		restored, err := env.svc.GetDocument(ctx, doc.ID)
		require.NoError(t, err)
		assert.False(t, restored.IsDeleted)
		assert.Nil(t, restored.DeletedAt)
		assert.Empty(t, restored.DeletedBy)

		reader, err := env.svc.DownloadDocument(ctx, doc.ID)
		require.NoError(t, err)
		defer reader.Close()
		data, err := io.ReadAll(reader)
		require.NoError(t, err)
		assert.Equal(t, []byte("ledger bytes"), data)
	})

	t.Run("RestoreNonDeletedConflicts", func(t *testing.T) {
		err := env.svc.Restore(ctx, doc.ID)
		var conflictErr *simpledocs.ConflictError
		assert.ErrorAs(t, err, &conflictErr)
	})
}

func TestArchive(t *testing.T) {
	env := setupTestService(t)
	ctx := context.Background()

	doc := env.createDocument(t, "Old Report", []byte("report"))

	require.NoError(t, env.svc.Archive(ctx, doc.ID))

	archived, err := env.svc.GetDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.True(t, archived.IsArchived)
	assert.NotNil(t, archived.ArchivedAt)

	t.Run("ArchiveTwiceIsNoop", func(t *testing.T) {
		assert.NoError(t, env.svc.Archive(ctx, doc.ID))
	})

	t.Run("ArchivedStaysDownloadable", func(t *testing.T) {
		reader, err := env.svc.DownloadDocument(ctx, doc.ID)
		require.NoError(t, err)
		reader.Close()
	})

	t.Run("ArchiveDeletedConflicts", func(t *testing.T) {
		doomed := env.createDocument(t, "Doomed", []byte("doomed report"))
		require.NoError(t, env.svc.SoftDelete(ctx, simpledocs.SoftDeleteRequest{DocumentID: doomed.ID}))

		err := env.svc.Archive(ctx, doomed.ID)
		var conflictErr *simpledocs.ConflictError
		assert.ErrorAs(t, err, &conflictErr)
	})
}

func TestPermanentlyDelete(t *testing.T) {
	env := setupTestService(t)
	ctx := context.Background()

	doc := env.createDocument(t, "Purge Me", []byte("purge bytes"))

	require.NoError(t, env.svc.PermanentlyDelete(ctx, doc.ID))

	_, err := env.svc.GetDocument(ctx, doc.ID)
	assert.ErrorIs(t, err, simpledocs.ErrDocumentNotFound)

	exists, err := env.store.Exists(ctx, doc.BlobPath)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestPermanentlyDeleteSharedBlob(t *testing.T) {
	env := setupTestService(t)
	ctx := context.Background()
	content := []byte("shared bytes")

	// Identical content in the same tenant and type collapses onto one
	// content-addressed object.
	first := env.createDocument(t, "Copy A", content)
	second := env.createDocument(t, "Copy B", content)
	require.Equal(t, first.BlobPath, second.BlobPath)

	require.NoError(t, env.svc.PermanentlyDelete(ctx, first.ID))

	exists, err := env.store.Exists(ctx, first.BlobPath)
	require.NoError(t, err)
	assert.True(t, exists, "blob must survive while another document references it")

	require.NoError(t, env.svc.PermanentlyDelete(ctx, second.ID))

	exists, err = env.store.Exists(ctx, second.BlobPath)
	require.NoError(t, err)
	assert.False(t, exists, "last reference removes the blob")
}

// failingDeleteStore wraps a blob store and fails deletes on demand.
type failingDeleteStore struct {
	simpledocs.BlobStore
	failDelete bool
}

func (s *failingDeleteStore) Delete(ctx context.Context, objectKey string) (bool, error) {
	if s.failDelete {
		return false, errors.New("backend unavailable")
	}
	return s.BlobStore.Delete(ctx, objectKey)
}

func TestPermanentlyDeleteAtomicity(t *testing.T) {
	flaky := &failingDeleteStore{BlobStore: memorystorage.New()}
	env := &testEnv{
		store:     flaky,
		tenantID:  uuid.New(),
		docTypeID: uuid.New(),
	}

	now := time.Now().UTC()
	tenants := memory.NewTenantStore()
	tenants.PutTenant(&simpledocs.Tenant{ID: env.tenantID, Name: "acme", IsActive: true, CreatedAt: now, UpdatedAt: now})
	docTypes := memory.NewDocumentTypeStore()
	docTypes.PutDocumentType(&simpledocs.DocumentType{ID: env.docTypeID, Name: "invoice"})

	svc, err := simpledocs.New(
		simpledocs.WithRepository(memory.New()),
		simpledocs.WithTenantStore(tenants),
		simpledocs.WithDocumentTypeStore(docTypes),
		simpledocs.WithBlobStore("flaky", flaky),
	)
	require.NoError(t, err)
	env.svc = svc

	ctx := context.Background()
	doc := env.createDocument(t, "Sticky", []byte("sticky bytes"))

	flaky.failDelete = true
	err = env.svc.PermanentlyDelete(ctx, doc.ID)
	require.Error(t, err)

	// The failed blob delete aborts the whole operation: the row survives and
	// the blob is still there.
	survivor, getErr := env.svc.GetDocument(ctx, doc.ID)
	require.NoError(t, getErr)
	assert.Equal(t, doc.ID, survivor.ID)

	exists, existsErr := flaky.BlobStore.Exists(ctx, doc.BlobPath)
	require.NoError(t, existsErr)
	assert.True(t, exists)

	t.Run("SucceedsOnceBackendRecovers", func(t *testing.T) {
		flaky.failDelete = false
		require.NoError(t, env.svc.PermanentlyDelete(ctx, doc.ID))

		_, err := env.svc.GetDocument(ctx, doc.ID)
		assert.ErrorIs(t, err, simpledocs.ErrDocumentNotFound)
	})
}

func TestFindDuplicates(t *testing.T) {
	env := setupTestService(t)
	ctx := context.Background()
	content := []byte("duplicated payload")

	first := env.createDocument(t, "Original", content)
	second := env.createDocument(t, "Duplicate", content)
	env.createDocument(t, "Unrelated", []byte("something else"))

	dupes, err := env.svc.FindDuplicates(ctx, first.ContentHash)
	require.NoError(t, err)
	require.Len(t, dupes, 2)
	assert.Equal(t, first.ID, dupes[0].ID)
	assert.Equal(t, second.ID, dupes[1].ID)

	t.Run("IncludesSoftDeleted", func(t *testing.T) {
		require.NoError(t, env.svc.SoftDelete(ctx, simpledocs.SoftDeleteRequest{DocumentID: second.ID}))

		dupes, err := env.svc.FindDuplicates(ctx, first.ContentHash)
		require.NoError(t, err)
		assert.Len(t, dupes, 2)
	})
}

func TestDocumentExtensions(t *testing.T) {
	env := setupTestService(t)
	ctx := context.Background()

	contract, err := env.svc.CreateDocument(ctx, simpledocs.CreateDocumentRequest{
		TenantID:       env.tenantID,
		DocumentTypeID: env.extTypeID,
		Title:          "MSA",
		Content:        bytes.NewReader([]byte("contract body")),
		FileName:       "msa.pdf",
	})
	require.NoError(t, err)

	payload := map[string]interface{}{"counterparty": "Globex", "renewal": true}
	require.NoError(t, env.svc.SetDocumentExtension(ctx, simpledocs.SetExtensionRequest{
		DocumentID: contract.ID,
		Payload:    payload,
	}))

	ext, err := env.svc.GetDocumentExtension(ctx, contract.ID)
	require.NoError(t, err)
	assert.Equal(t, "contract", ext.TypeName)
	assert.Equal(t, "Globex", ext.Payload["counterparty"])

	t.Run("TypeWithoutExtensionConflicts", func(t *testing.T) {
		invoice := env.createDocument(t, "Invoice", []byte("invoice"))
		err := env.svc.SetDocumentExtension(ctx, simpledocs.SetExtensionRequest{
			DocumentID: invoice.ID,
			Payload:    map[string]interface{}{"x": 1},
		})
		var conflictErr *simpledocs.ConflictError
		assert.ErrorAs(t, err, &conflictErr)
	})

	t.Run("MissingExtension", func(t *testing.T) {
		other, err := env.svc.CreateDocument(ctx, simpledocs.CreateDocumentRequest{
			TenantID:       env.tenantID,
			DocumentTypeID: env.extTypeID,
			Title:          "NDA",
			Content:        bytes.NewReader([]byte("nda body")),
			FileName:       "nda.pdf",
		})
		require.NoError(t, err)

		_, err = env.svc.GetDocumentExtension(ctx, other.ID)
		assert.ErrorIs(t, err, simpledocs.ErrExtensionNotFound)
	})
}

func TestSearchStaleness(t *testing.T) {
	env := setupTestService(t)
	ctx := context.Background()

	doc := env.createDocument(t, "Indexed Doc", []byte("index me"))

	stale, err := env.svc.ListStaleDocuments(ctx, 10)
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, doc.ID, stale[0].ID)

	require.NoError(t, env.svc.MarkIndexed(ctx, doc.ID, "42"))

	stale, err = env.svc.ListStaleDocuments(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, stale)

	t.Run("UpdateReStalesDocument", func(t *testing.T) {
		require.NoError(t, env.svc.SoftDelete(ctx, simpledocs.SoftDeleteRequest{DocumentID: doc.ID}))

		stale, err := env.svc.ListStaleDocuments(ctx, 10)
		require.NoError(t, err)
		require.Len(t, stale, 1)
		assert.Equal(t, "42", stale[0].SearchIndexID)
	})
}

func TestGetTemporaryAccessURLUnsupported(t *testing.T) {
	env := setupTestService(t)

	doc := env.createDocument(t, "Presign Me", []byte("bytes"))

	_, err := env.svc.GetTemporaryAccessURL(context.Background(), doc.ID, time.Minute)
	var storageErr *simpledocs.StorageError
	require.ErrorAs(t, err, &storageErr)
	assert.Equal(t, "presign", storageErr.Op)
}

func TestDocumentLifecycleScenario(t *testing.T) {
	env := setupTestService(t)
	ctx := context.Background()

	// Upload, revise, fat-finger a duplicate upload, delete, restore, archive.
	invoice := env.createDocument(t, "Invoice-001", []byte("draft"))

	final, err := env.svc.CreateVersion(ctx, simpledocs.CreateVersionRequest{
		DocumentID: invoice.ID,
		Content:    bytes.NewReader([]byte("final")),
		FileName:   "invoice-001-final.pdf",
		Actor:      "alice",
	})
	require.NoError(t, err)
	assert.Equal(t, 2, final.Version)

	dup, err := env.svc.CreateVersion(ctx, simpledocs.CreateVersionRequest{
		DocumentID: invoice.ID,
		Content:    bytes.NewReader([]byte("final")),
		FileName:   "invoice-001-final (1).pdf",
		Actor:      "alice",
	})
	require.NoError(t, err)
	assert.Equal(t, final.ID, dup.ID, "duplicate upload returns the current version")

	require.NoError(t, env.svc.SoftDelete(ctx, simpledocs.SoftDeleteRequest{
		DocumentID: final.ID, Actor: "bob", Reason: "wrong amount",
	}))
	require.NoError(t, env.svc.Restore(ctx, final.ID))
	require.NoError(t, env.svc.Archive(ctx, final.ID))

	chain, err := env.svc.GetVersionChain(ctx, invoice.ID)
	require.NoError(t, err)
	require.Len(t, chain, 2)
	assert.True(t, chain[1].IsCurrentVersion)
	assert.True(t, chain[1].IsArchived)
	assert.False(t, chain[1].IsDeleted)
}

// putCountingStore wraps a blob store and counts writes.
type putCountingStore struct {
	simpledocs.BlobStore
	puts int
}

func (s *putCountingStore) Put(ctx context.Context, objectKey string, reader io.Reader, mimeType string) (string, error) {
	s.puts++
	return s.BlobStore.Put(ctx, objectKey, reader, mimeType)
}

func TestEmptyContentRejectedBeforeStoreIO(t *testing.T) {
	store := &putCountingStore{BlobStore: memorystorage.New()}
	env := setupTestService(t, simpledocs.WithBlobStore("memory", store))
	ctx := context.Background()

	_, err := env.svc.CreateDocument(ctx, simpledocs.CreateDocumentRequest{
		TenantID:       env.tenantID,
		DocumentTypeID: env.docTypeID,
		Title:          "Empty",
		Content:        bytes.NewReader(nil),
		FileName:       "empty.pdf",
	})
	var validationErr *simpledocs.ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, "content", validationErr.Field)
	assert.Zero(t, store.puts, "empty content must be rejected before any blob write")

	t.Run("CreateVersion", func(t *testing.T) {
		doc := env.createDocument(t, "Full", []byte("some bytes"))
		before := store.puts

		_, err := env.svc.CreateVersion(ctx, simpledocs.CreateVersionRequest{
			DocumentID: doc.ID,
			Content:    bytes.NewReader(nil),
			FileName:   "full-r2.pdf",
		})
		require.ErrorAs(t, err, &validationErr)
		assert.Equal(t, "content", validationErr.Field)
		assert.Equal(t, before, store.puts)
	})
}

// failingTxRepository wraps a repository and fails transactions on demand.
type failingTxRepository struct {
	simpledocs.Repository
	failTx bool
}

func (r *failingTxRepository) WithTx(ctx context.Context, fn func(tx simpledocs.Repository) error) error {
	if r.failTx {
		return errors.New("connection reset")
	}
	return r.Repository.WithTx(ctx, fn)
}

// conflictingRepository fails WithTx with a version conflict a set number of
// times before delegating.
type conflictingRepository struct {
	simpledocs.Repository
	conflicts int
}

func (r *conflictingRepository) WithTx(ctx context.Context, fn func(tx simpledocs.Repository) error) error {
	if r.conflicts > 0 {
		r.conflicts--
		return simpledocs.ErrVersionConflict
	}
	return r.Repository.WithTx(ctx, fn)
}

func flatKeyGenerator() *blobkey.CustomFuncGenerator {
	return &blobkey.CustomFuncGenerator{
		FinalFunc: func(_, _ uuid.UUID, _ time.Time, contentHash string) string {
			return "final/" + contentHash
		},
		StagingFunc: func(uploadID uuid.UUID) string {
			return "staging/" + uploadID.String()
		},
	}
}

func TestUploadCompensationOnMetadataFailure(t *testing.T) {
	repo := &failingTxRepository{Repository: memory.New()}
	env := setupTestService(t,
		simpledocs.WithRepository(repo),
		simpledocs.WithBlobKeyGenerator(flatKeyGenerator()),
	)
	ctx := context.Background()

	content := []byte("doomed bytes")
	repo.failTx = true
	_, err := env.svc.CreateDocument(ctx, simpledocs.CreateDocumentRequest{
		TenantID:       env.tenantID,
		DocumentTypeID: env.docTypeID,
		Title:          "Doomed",
		Content:        bytes.NewReader(content),
		FileName:       "doomed.pdf",
	})
	var docErr *simpledocs.DocumentError
	require.ErrorAs(t, err, &docErr)
	repo.failTx = false

	// The promoted blob was compensated away and no row was committed.
	exists, err := env.store.Exists(ctx, "final/"+simpledocs.HashBytes(content))
	require.NoError(t, err)
	assert.False(t, exists)

	docs, err := env.svc.ListDocuments(ctx, simpledocs.ListDocumentsRequest{TenantID: env.tenantID})
	require.NoError(t, err)
	assert.Empty(t, docs)

	t.Run("CreateVersion", func(t *testing.T) {
		root := env.createDocument(t, "Survivor", []byte("v1 bytes"))

		v2Content := []byte("v2 bytes")
		repo.failTx = true
		_, err := env.svc.CreateVersion(ctx, simpledocs.CreateVersionRequest{
			DocumentID: root.ID,
			Content:    bytes.NewReader(v2Content),
			FileName:   "survivor-r2.pdf",
		})
		require.Error(t, err)
		repo.failTx = false

		exists, err := env.store.Exists(ctx, "final/"+simpledocs.HashBytes(v2Content))
		require.NoError(t, err)
		assert.False(t, exists)

		chain, err := env.svc.GetVersionChain(ctx, root.ID)
		require.NoError(t, err)
		require.Len(t, chain, 1)
		assert.True(t, chain[0].IsCurrentVersion)
	})
}

func TestCompensationSparesReferencedBlob(t *testing.T) {
	inner := memory.New()
	repo := &failingTxRepository{Repository: inner}
	env := setupTestService(t,
		simpledocs.WithRepository(repo),
		simpledocs.WithBlobKeyGenerator(flatKeyGenerator()),
	)
	ctx := context.Background()

	content := []byte("shared saga bytes")
	hash := simpledocs.HashBytes(content)
	now := time.Now().UTC()

	// A concurrent writer of the same bytes committed its row between this
	// writer's promote and its failed metadata commit.
	require.NoError(t, inner.CreateDocument(ctx, &simpledocs.Document{
		TenantID:         env.tenantID,
		DocumentTypeID:   env.docTypeID,
		OriginalFileName: "first.pdf",
		ContentHash:      hash,
		BlobBackend:      "memory",
		BlobPath:         "final/" + hash,
		Title:            "Committed First",
		Version:          1,
		IsCurrentVersion: true,
		CreatedAt:        now,
		UpdatedAt:        now,
	}))

	repo.failTx = true
	_, err := env.svc.CreateDocument(ctx, simpledocs.CreateDocumentRequest{
		TenantID:       env.tenantID,
		DocumentTypeID: env.docTypeID,
		Title:          "Loser",
		Content:        bytes.NewReader(content),
		FileName:       "loser.pdf",
	})
	require.Error(t, err)
	repo.failTx = false

	// Compensation sees the surviving reference and leaves the blob alone.
	exists, err := env.store.Exists(ctx, "final/"+hash)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestCreateVersionRetriesOnVersionConflict(t *testing.T) {
	repo := &conflictingRepository{Repository: memory.New()}
	env := setupTestService(t, simpledocs.WithRepository(repo))
	ctx := context.Background()

	root := env.createDocument(t, "Contested", []byte("v1"))

	// The first transaction attempt loses the (chain, version) uniqueness
	// race; the retry recomputes the next version and succeeds.
	repo.conflicts = 1
	v2, err := env.svc.CreateVersion(ctx, simpledocs.CreateVersionRequest{
		DocumentID: root.ID,
		Content:    bytes.NewReader([]byte("v2")),
		FileName:   "contested-r2.pdf",
	})
	require.NoError(t, err)
	assert.Equal(t, 2, v2.Version)
	assert.Zero(t, repo.conflicts)

	t.Run("PersistentConflictSurfaces", func(t *testing.T) {
		repo.conflicts = 2
		_, err := env.svc.CreateVersion(ctx, simpledocs.CreateVersionRequest{
			DocumentID: root.ID,
			Content:    bytes.NewReader([]byte("v3")),
			FileName:   "contested-r3.pdf",
		})
		assert.ErrorIs(t, err, simpledocs.ErrVersionConflict)
		repo.conflicts = 0
	})
}
