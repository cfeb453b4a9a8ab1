// Package catalog defines the product record and its image-free projection.
package catalog

import (
	"strings"
	"time"

	"github.com/ariefcatur/go-storefront/internal/storeerr"
)

// Product is the full catalog record. Image and Images hold self-contained
// encoded payloads, not URLs, so they dominate the record size.
type Product struct {
	ID            string    `json:"id"`
	Brand         string    `json:"brand"`
	Title         string    `json:"title"`
	Price         float64   `json:"price"`
	OriginalPrice *float64  `json:"originalPrice,omitempty"`
	Category      string    `json:"category"`
	Sizes         []string  `json:"sizes"`
	Colors        []string  `json:"colors"`
	Image         string    `json:"image,omitempty"`
	Images        []string  `json:"images,omitempty"`
	SKU           string    `json:"sku"`
	Barcode       string    `json:"barcode"`
	TotalStock    int       `json:"totalStock"`
	CreatedAt     time.Time `json:"createdAt"`
	// HasImages is set on metadata-only records where the payloads were left out.
	HasImages bool `json:"hasImages,omitempty"`
}

// Meta is the trimmed projection written to the local cache. It has no image
// fields at all.
type Meta struct {
	ID            string    `json:"id"`
	Brand         string    `json:"brand"`
	Title         string    `json:"title"`
	Price         float64   `json:"price"`
	OriginalPrice *float64  `json:"originalPrice,omitempty"`
	Category      string    `json:"category"`
	Sizes         []string  `json:"sizes"`
	Colors        []string  `json:"colors"`
	SKU           string    `json:"sku"`
	Barcode       string    `json:"barcode"`
	TotalStock    int       `json:"totalStock"`
	CreatedAt     time.Time `json:"createdAt"`
	HasImages     bool      `json:"hasImages"`
}

func (p Product) Validate() error {
	if strings.TrimSpace(p.Title) == "" {
		return storeerr.InvalidInput("product title is required")
	}
	if p.Price <= 0 {
		return storeerr.InvalidInput("product price must be positive, got %v", p.Price)
	}
	if p.OriginalPrice != nil && *p.OriginalPrice < 0 {
		return storeerr.InvalidInput("original price must not be negative")
	}
	if p.TotalStock < 0 {
		return storeerr.InvalidInput("total stock must not be negative, got %d", p.TotalStock)
	}
	return nil
}

// WithImages reports whether the record carries image data or knows it has some.
func (p Product) WithImages() bool {
	return len(p.Images) > 0 || p.HasImages
}

// ImagesOmitted reports a record that knows it has images but carries none,
// such as one rebuilt from Meta. Writing it back must not clear the images.
func (p Product) ImagesOmitted() bool {
	return p.HasImages && len(p.Images) == 0 && p.Image == ""
}

// KeepImages fills an image-less record from prev, the stored version of the
// same product.
func (p Product) KeepImages(prev Product) Product {
	if !p.ImagesOmitted() || (len(prev.Images) == 0 && prev.Image == "") {
		return p
	}
	p.Image = prev.Image
	p.Images = append([]string(nil), prev.Images...)
	return p
}

func (p Product) Meta() Meta {
	return Meta{
		ID:            p.ID,
		Brand:         p.Brand,
		Title:         p.Title,
		Price:         p.Price,
		OriginalPrice: p.OriginalPrice,
		Category:      p.Category,
		Sizes:         p.Sizes,
		Colors:        p.Colors,
		SKU:           p.SKU,
		Barcode:       p.Barcode,
		TotalStock:    p.TotalStock,
		CreatedAt:     p.CreatedAt,
		HasImages:     p.WithImages(),
	}
}

// Product rebuilds a placeholder record without image payloads.
func (m Meta) Product() Product {
	return Product{
		ID:            m.ID,
		Brand:         m.Brand,
		Title:         m.Title,
		Price:         m.Price,
		OriginalPrice: m.OriginalPrice,
		Category:      m.Category,
		Sizes:         m.Sizes,
		Colors:        m.Colors,
		SKU:           m.SKU,
		Barcode:       m.Barcode,
		TotalStock:    m.TotalStock,
		CreatedAt:     m.CreatedAt,
		HasImages:     m.HasImages,
	}
}

func Metas(ps []Product) []Meta {
	out := make([]Meta, 0, len(ps))
	for _, p := range ps {
		out = append(out, p.Meta())
	}
	return out
}

// CleanImages drops empty payloads and fills Image from the list when missing.
func (p Product) CleanImages() Product {
	if len(p.Images) > 0 {
		kept := make([]string, 0, len(p.Images))
		for _, img := range p.Images {
			if strings.TrimSpace(img) != "" {
				kept = append(kept, img)
			}
		}
		p.Images = kept
	}
	if p.Image == "" && len(p.Images) > 0 {
		p.Image = p.Images[0]
	}
	return p
}
