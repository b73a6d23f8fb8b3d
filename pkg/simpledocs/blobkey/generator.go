package blobkey

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Generator defines the interface for blob key derivation strategies.
type Generator interface {
	// FinalKey derives the permanent, content-addressed key for an upload.
	FinalKey(tenantID, documentTypeID uuid.UUID, at time.Time, contentHash string) string

	// StagingKey derives a throwaway key for an in-flight upload whose hash
	// is not yet known.
	StagingKey(uploadID uuid.UUID) string
}

// DateShardedGenerator derives keys of the form
// tenants/{tenant}/{type}/{yyyy}/{mm}/{dd}/{hash}: tenant isolation first,
// then date sharding, with the content hash as the object name so identical
// same-day uploads collapse onto one object.
type DateShardedGenerator struct {
	// Prefix is prepended to every key when set (e.g. "docs").
	Prefix string
}

// NewDateShardedGenerator returns the recommended generator for new
// installations.
func NewDateShardedGenerator() *DateShardedGenerator {
	return &DateShardedGenerator{}
}

func (g *DateShardedGenerator) FinalKey(tenantID, documentTypeID uuid.UUID, at time.Time, contentHash string) string {
	at = at.UTC()
	key := fmt.Sprintf("tenants/%s/%s/%04d/%02d/%02d/%s",
		tenantID, documentTypeID, at.Year(), at.Month(), at.Day(),
		sanitizePathComponent(contentHash))
	if g.Prefix != "" {
		return fmt.Sprintf("%s/%s", strings.Trim(g.Prefix, "/"), key)
	}
	return key
}

func (g *DateShardedGenerator) StagingKey(uploadID uuid.UUID) string {
	key := fmt.Sprintf("staging/%s", uploadID)
	if g.Prefix != "" {
		return fmt.Sprintf("%s/%s", strings.Trim(g.Prefix, "/"), key)
	}
	return key
}

// CustomFuncGenerator allows users to provide their own derivation functions.
type CustomFuncGenerator struct {
	FinalFunc   func(tenantID, documentTypeID uuid.UUID, at time.Time, contentHash string) string
	StagingFunc func(uploadID uuid.UUID) string
}

func (g *CustomFuncGenerator) FinalKey(tenantID, documentTypeID uuid.UUID, at time.Time, contentHash string) string {
	return g.FinalFunc(tenantID, documentTypeID, at, contentHash)
}

func (g *CustomFuncGenerator) StagingKey(uploadID uuid.UUID) string {
	return g.StagingFunc(uploadID)
}

func sanitizePathComponent(component string) string {
	replacer := strings.NewReplacer(
		"/", "_",
		"\\", "_",
		":", "_",
		"*", "_",
		"?", "_",
		"\"", "_",
		"<", "_",
		">", "_",
		"|", "_",
		" ", "_",
	)
	return strings.ToLower(replacer.Replace(component))
}
