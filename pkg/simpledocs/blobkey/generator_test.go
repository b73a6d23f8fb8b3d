package blobkey_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/tendant/simple-docs/pkg/simpledocs/blobkey"
)

func TestDateShardedGeneratorFinalKey(t *testing.T) {
	g := blobkey.NewDateShardedGenerator()

	tenantID := uuid.MustParse("11111111-2222-3333-4444-555555555555")
	typeID := uuid.MustParse("aaaaaaaa-bbbb-cccc-dddd-eeeeeeeeeeee")
	at := time.Date(2024, time.March, 7, 15, 4, 5, 0, time.UTC)

	key := g.FinalKey(tenantID, typeID, at, "deadbeef")

	assert.Equal(t,
		fmt.Sprintf("tenants/%s/%s/2024/03/07/deadbeef", tenantID, typeID),
		key)
}

func TestDateShardedGeneratorNormalizesTime(t *testing.T) {
	g := blobkey.NewDateShardedGenerator()

	tenantID := uuid.New()
	typeID := uuid.New()

	// Late evening in a western zone is already the next day in UTC.
	loc := time.FixedZone("UTC-8", -8*3600)
	local := time.Date(2024, time.December, 31, 22, 0, 0, 0, loc)

	key := g.FinalKey(tenantID, typeID, local, "cafe")
	assert.Contains(t, key, "/2025/01/01/")
}

func TestDateShardedGeneratorPrefix(t *testing.T) {
	g := &blobkey.DateShardedGenerator{Prefix: "/docs/"}

	key := g.FinalKey(uuid.New(), uuid.New(), time.Now(), "ff00")
	assert.Contains(t, key, "docs/tenants/")
	assert.NotContains(t, key, "//")

	staging := g.StagingKey(uuid.New())
	assert.Contains(t, staging, "docs/staging/")
}

func TestDateShardedGeneratorSanitizesHash(t *testing.T) {
	g := blobkey.NewDateShardedGenerator()

	key := g.FinalKey(uuid.New(), uuid.New(), time.Now(), "AB/CD EF")
	assert.Contains(t, key, "ab_cd_ef")
}

func TestStagingKeysAreUnique(t *testing.T) {
	g := blobkey.NewDateShardedGenerator()

	a := g.StagingKey(uuid.New())
	b := g.StagingKey(uuid.New())
	assert.NotEqual(t, a, b)
}

func TestCustomFuncGenerator(t *testing.T) {
	g := &blobkey.CustomFuncGenerator{
		FinalFunc: func(tenantID, typeID uuid.UUID, at time.Time, hash string) string {
			return "flat/" + hash
		},
		StagingFunc: func(uploadID uuid.UUID) string {
			return "tmp/" + uploadID.String()
		},
	}

	assert.Equal(t, "flat/abcd", g.FinalKey(uuid.New(), uuid.New(), time.Now(), "abcd"))
	assert.Contains(t, g.StagingKey(uuid.New()), "tmp/")
}
