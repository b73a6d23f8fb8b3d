package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-docs/pkg/simpledocs"
	"github.com/tendant/simple-docs/pkg/simpledocs/repo/memory"
	memorystorage "github.com/tendant/simple-docs/pkg/simpledocs/storage/memory"
)

// recordingNotifier stands in for the search backend.
type recordingNotifier struct {
	fail    bool
	indexed []int64
	removed []string
}

func (n *recordingNotifier) IndexDocument(ctx context.Context, doc *simpledocs.Document) (string, error) {
	if n.fail {
		return "", errors.New("search host unavailable")
	}
	n.indexed = append(n.indexed, doc.ID)
	return fmt.Sprintf("%d", doc.ID), nil
}

func (n *recordingNotifier) RemoveDocument(ctx context.Context, searchIndexID string) error {
	if n.fail {
		return errors.New("search host unavailable")
	}
	n.removed = append(n.removed, searchIndexID)
	return nil
}

func setupReindexerTest(t *testing.T) (simpledocs.Service, uuid.UUID, uuid.UUID) {
	t.Helper()

	tenantID := uuid.New()
	docTypeID := uuid.New()
	now := time.Now().UTC()

	tenants := memory.NewTenantStore()
	tenants.PutTenant(&simpledocs.Tenant{
		ID: tenantID, Name: "acme", IsActive: true, CreatedAt: now, UpdatedAt: now,
	})
	docTypes := memory.NewDocumentTypeStore()
	docTypes.PutDocumentType(&simpledocs.DocumentType{
		ID: docTypeID, Name: "invoice", CreatedAt: now, UpdatedAt: now,
	})

	svc, err := simpledocs.New(
		simpledocs.WithRepository(memory.New()),
		simpledocs.WithTenantStore(tenants),
		simpledocs.WithDocumentTypeStore(docTypes),
		simpledocs.WithBlobStore("memory", memorystorage.New()),
	)
	require.NoError(t, err)
	return svc, tenantID, docTypeID
}

func createStaleDocument(t *testing.T, svc simpledocs.Service, tenantID, docTypeID uuid.UUID, title string) *simpledocs.Document {
	t.Helper()
	doc, err := svc.CreateDocument(context.Background(), simpledocs.CreateDocumentRequest{
		TenantID:       tenantID,
		DocumentTypeID: docTypeID,
		Title:          title,
		FileName:       title + ".pdf",
		Content:        bytes.NewReader([]byte(title + " body")),
	})
	require.NoError(t, err)
	return doc
}

func TestReindexPassDrainsStaleSet(t *testing.T) {
	svc, tenantID, docTypeID := setupReindexerTest(t)
	ctx := context.Background()

	createStaleDocument(t, svc, tenantID, docTypeID, "First")
	createStaleDocument(t, svc, tenantID, docTypeID, "Second")

	notifier := &recordingNotifier{}
	total, err := reindexPass(ctx, svc, notifier, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Len(t, notifier.indexed, 2)

	stale, err := svc.ListStaleDocuments(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, stale)
}

func TestReindexPassStopsWithoutProgress(t *testing.T) {
	svc, tenantID, docTypeID := setupReindexerTest(t)
	ctx := context.Background()

	doc := createStaleDocument(t, svc, tenantID, docTypeID, "Stuck")

	// Every index call fails, so the stale set never shrinks; the pass must
	// return instead of re-listing the same document forever.
	notifier := &recordingNotifier{fail: true}
	total, err := reindexPass(ctx, svc, notifier, 10)
	require.Error(t, err)
	assert.Zero(t, total)

	stale, err := svc.ListStaleDocuments(ctx, 10)
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, doc.ID, stale[0].ID)
}

func TestReindexPassRemovesDeletedDocuments(t *testing.T) {
	svc, tenantID, docTypeID := setupReindexerTest(t)
	ctx := context.Background()

	doc := createStaleDocument(t, svc, tenantID, docTypeID, "Ephemeral")

	notifier := &recordingNotifier{}
	_, err := reindexPass(ctx, svc, notifier, 10)
	require.NoError(t, err)

	require.NoError(t, svc.SoftDelete(ctx, simpledocs.SoftDeleteRequest{
		DocumentID: doc.ID, Actor: "janitor",
	}))

	total, err := reindexPass(ctx, svc, notifier, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, []string{fmt.Sprintf("%d", doc.ID)}, notifier.removed)

	stale, err := svc.ListStaleDocuments(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, stale)
}
