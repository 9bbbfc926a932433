// Package catalog reads product designs from the designs directory and
// resolves their fulfillment routing configuration.
//
// Layout: <root>/<category>/<slug>/metadata.yaml. The metadata file names
// the POD provider and the provider-native product identifier each design
// is printed with.
package catalog

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/rswag/pod-backend/internal/domain/fulfillment"
	"github.com/rswag/pod-backend/pkg/cache"
)

// ErrDesignNotFound is returned when no design directory matches a slug.
var ErrDesignNotFound = errors.New("design not found")

// designCacheTTL bounds staleness of design metadata reads. Metadata edits
// land within this window without a restart; Invalidate forces them sooner.
const designCacheTTL = 10 * time.Minute

// Design is one sellable design loaded from metadata.yaml.
type Design struct {
	Slug     string    `yaml:"-"`
	Name     string    `yaml:"name"`
	Status   string    `yaml:"status"`
	Category string    `yaml:"-"`
	Price    string    `yaml:"price"`
	Products []Product `yaml:"products"`
}

// UnitPrice parses the design's list price. Designs without a price are not
// sellable through the cart.
func (d *Design) UnitPrice() (decimal.Decimal, error) {
	if d.Price == "" {
		return decimal.Zero, errors.Errorf("design %q has no price", d.Slug)
	}
	p, err := decimal.NewFromString(d.Price)
	if err != nil {
		return decimal.Zero, errors.Wrapf(err, "design %q price", d.Slug)
	}
	return p, nil
}

// Product is one printable form of a design at a specific POD provider.
type Product struct {
	// Provider names the POD provider ("printful", "prodigi").
	Provider string `yaml:"provider"`
	// SKU is the provider-native product identifier: a numeric catalog
	// product id for Printful, a full SKU for Prodigi.
	SKU string `yaml:"sku"`
	// Placement is the print placement for image-based providers.
	Placement string   `yaml:"placement"`
	Variants  []string `yaml:"variants"`
}

// Service loads designs from disk with a TTL-bounded cache.
type Service struct {
	root         string
	imageBaseURL string
	designs      *cache.Cache[string, *Design]
}

var _ fulfillment.Catalog = (*Service)(nil)

// NewService creates a catalog Service reading from root. imageBaseURL is
// the public base under which design images are served; providers fetch
// print assets from there.
func NewService(root, imageBaseURL string) *Service {
	return &Service{
		root:         root,
		imageBaseURL: strings.TrimRight(imageBaseURL, "/"),
		designs:      cache.New[string, *Design](designCacheTTL),
	}
}

// Get returns the design with the given slug, or ErrDesignNotFound.
func (s *Service) Get(_ context.Context, slug string) (*Design, error) {
	if d, ok := s.designs.Get(slug); ok {
		return d, nil
	}

	categories, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("read designs root %q: %w", s.root, err)
	}

	for _, cat := range categories {
		if !cat.IsDir() {
			continue
		}
		path := filepath.Join(s.root, cat.Name(), slug, "metadata.yaml")
		raw, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("read %q: %w", path, err)
		}

		var d Design
		if err := yaml.Unmarshal(raw, &d); err != nil {
			return nil, fmt.Errorf("parse %q: %w", path, err)
		}
		d.Slug = slug
		d.Category = cat.Name()

		s.designs.Set(slug, &d)
		return &d, nil
	}

	return nil, errors.Wrap(ErrDesignNotFound, slug)
}

// Invalidate drops a cached design so the next Get re-reads it from disk.
func (s *Service) Invalidate(slug string) {
	s.designs.Invalidate(slug)
}

// GetFulfillmentConfig returns the fulfillment routing entry for a product
// slug: the first provider entry of the design's product list.
func (s *Service) GetFulfillmentConfig(ctx context.Context, slug string) (*fulfillment.Config, error) {
	d, err := s.Get(ctx, slug)
	if err != nil {
		if errors.Is(err, ErrDesignNotFound) {
			return nil, errors.Wrap(fulfillment.ErrNoFulfillmentConfig, slug)
		}
		return nil, err
	}
	if len(d.Products) == 0 || d.Products[0].Provider == "" || d.Products[0].SKU == "" {
		return nil, errors.Wrap(fulfillment.ErrNoFulfillmentConfig, slug)
	}

	p := d.Products[0]
	return &fulfillment.Config{
		Provider:  p.Provider,
		ProductID: p.SKU,
		Placement: p.Placement,
	}, nil
}

// ImageURL returns the public URL of a design's print-ready image.
func (s *Service) ImageURL(slug string) string {
	return fmt.Sprintf("%s/%s.png", s.imageBaseURL, slug)
}
