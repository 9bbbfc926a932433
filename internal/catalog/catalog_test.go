package catalog

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rswag/pod-backend/internal/domain/fulfillment"
)

const stickerMetadata = `name: Sticker A
status: active
price: "3.50"
products:
  - provider: prodigi
    sku: GLOBAL-STI-KIS-4X4
    variants: ["3x4", "4x4"]
`

const teeMetadata = `name: Tee A
status: active
price: "24.00"
products:
  - provider: printful
    sku: "71"
    placement: front_large
    variants: ["S", "M", "L", "XL"]
`

func writeDesign(t *testing.T, root, category, slug, metadata string) {
	t.Helper()
	dir := filepath.Join(root, category, slug)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "metadata.yaml"), []byte(metadata), 0o644))
}

func TestGet(t *testing.T) {
	root := t.TempDir()
	writeDesign(t, root, "stickers", "sticker-a", stickerMetadata)
	svc := NewService(root, "https://cdn.example.com/designs")

	d, err := svc.Get(context.Background(), "sticker-a")
	require.NoError(t, err)
	assert.Equal(t, "Sticker A", d.Name)
	assert.Equal(t, "sticker-a", d.Slug)
	assert.Equal(t, "stickers", d.Category)

	price, err := d.UnitPrice()
	require.NoError(t, err)
	assert.Equal(t, "3.50", price.StringFixed(2))
}

func TestGet_NotFound(t *testing.T) {
	svc := NewService(t.TempDir(), "https://cdn.example.com/designs")

	_, err := svc.Get(context.Background(), "nope")
	require.ErrorIs(t, err, ErrDesignNotFound)
}

func TestGet_SearchesAllCategories(t *testing.T) {
	root := t.TempDir()
	writeDesign(t, root, "stickers", "sticker-a", stickerMetadata)
	writeDesign(t, root, "apparel", "tee-a", teeMetadata)
	svc := NewService(root, "https://cdn.example.com/designs")

	d, err := svc.Get(context.Background(), "tee-a")
	require.NoError(t, err)
	assert.Equal(t, "apparel", d.Category)
}

func TestGet_CachesUntilInvalidated(t *testing.T) {
	root := t.TempDir()
	writeDesign(t, root, "stickers", "sticker-a", stickerMetadata)
	svc := NewService(root, "https://cdn.example.com/designs")

	_, err := svc.Get(context.Background(), "sticker-a")
	require.NoError(t, err)

	// The cached copy survives a disk edit until invalidation.
	writeDesign(t, root, "stickers", "sticker-a", teeMetadata)
	d, err := svc.Get(context.Background(), "sticker-a")
	require.NoError(t, err)
	assert.Equal(t, "Sticker A", d.Name)

	svc.Invalidate("sticker-a")
	d, err = svc.Get(context.Background(), "sticker-a")
	require.NoError(t, err)
	assert.Equal(t, "Tee A", d.Name)
}

func TestGetFulfillmentConfig(t *testing.T) {
	root := t.TempDir()
	writeDesign(t, root, "apparel", "tee-a", teeMetadata)
	svc := NewService(root, "https://cdn.example.com/designs")

	cfg, err := svc.GetFulfillmentConfig(context.Background(), "tee-a")
	require.NoError(t, err)
	assert.Equal(t, "printful", cfg.Provider)
	assert.Equal(t, "71", cfg.ProductID)
	assert.Equal(t, "front_large", cfg.Placement)
}

func TestGetFulfillmentConfig_MissingConfig(t *testing.T) {
	root := t.TempDir()
	writeDesign(t, root, "misc", "bare", "name: Bare\nprice: \"1.00\"\n")
	svc := NewService(root, "https://cdn.example.com/designs")

	_, err := svc.GetFulfillmentConfig(context.Background(), "bare")
	require.ErrorIs(t, err, fulfillment.ErrNoFulfillmentConfig)

	_, err = svc.GetFulfillmentConfig(context.Background(), "absent")
	require.ErrorIs(t, err, fulfillment.ErrNoFulfillmentConfig)
}

func TestImageURL(t *testing.T) {
	svc := NewService(t.TempDir(), "https://cdn.example.com/designs/")
	assert.Equal(t, "https://cdn.example.com/designs/sticker-a.png", svc.ImageURL("sticker-a"))
}

func TestUnitPrice_Unpriced(t *testing.T) {
	d := &Design{Slug: "free"}
	_, err := d.UnitPrice()
	require.Error(t, err)
}
