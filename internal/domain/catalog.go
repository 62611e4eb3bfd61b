package domain

// Category is the top level of a business catalog.
type Category struct {
	ID            int64
	BusinessID    int64
	Name          string
	Subcategories []Subcategory
}

// Subcategory groups either sub-subcategories or products attached directly to it.
type Subcategory struct {
	ID               int64
	CategoryID       int64
	Name             string
	Subsubcategories []Subsubcategory
	Products         []Product
}

// Subsubcategory is the optional third catalog level.
type Subsubcategory struct {
	ID            int64
	SubcategoryID int64
	Name          string
	Products      []Product
}

// Product is a sellable item; customers buy one of its variants.
type Product struct {
	ID               int64
	SubcategoryID    int64
	SubsubcategoryID int64
	Name             string
	Description      string
	BasePrice        float64
	IsActive         bool
	Variants         []Variant
}

// Variant is a purchasable unit of a product with its own price, stock and unit.
type Variant struct {
	ID        int64
	ProductID int64
	Name      string
	Price     float64
	Stock     float64
	Unit      string
	SKU       string
	IsActive  bool
}

// Catalog is the full category tree of one business, loaded fresh per message.
type Catalog struct {
	BusinessID int64
	Categories []Category
}
