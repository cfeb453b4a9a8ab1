package remote

import (
	"time"

	"github.com/ariefcatur/go-storefront/internal/catalog"
)

func sampleProduct() catalog.Product {
	return catalog.Product{
		ID:         "1714557600000",
		Title:      "Slim Jeans",
		Price:      1999,
		TotalStock: 3,
		CreatedAt:  time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
	}
}
