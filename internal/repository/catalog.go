package repository

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"

	"github.com/Proton-105/chatshop/internal/domain"
)

// CatalogRepository loads the full catalog tree of a business. Inactive products and variants are
// included; the navigator filters them.
type CatalogRepository struct {
	db  dbtx
	log *slog.Logger
}

// NewCatalogRepository creates a pgx-backed catalog repository.
func NewCatalogRepository(db dbtx, log *slog.Logger) *CatalogRepository {
	if log == nil {
		log = slog.Default()
	}

	return &CatalogRepository{db: db, log: log}
}

// Catalog returns the category tree of businessID.
func (r *CatalogRepository) Catalog(ctx context.Context, businessID int64) (*domain.Catalog, error) {
	cats, err := r.categories(ctx, businessID)
	if err != nil {
		return nil, err
	}
	subs, err := r.subcategories(ctx, businessID)
	if err != nil {
		return nil, err
	}
	subsubs, err := r.subsubcategories(ctx, businessID)
	if err != nil {
		return nil, err
	}
	products, err := r.products(ctx, businessID)
	if err != nil {
		return nil, err
	}
	variants, err := r.variants(ctx, businessID)
	if err != nil {
		return nil, err
	}

	byProduct := make(map[int64][]domain.Variant)
	for _, v := range variants {
		byProduct[v.ProductID] = append(byProduct[v.ProductID], v)
	}

	direct := make(map[int64][]domain.Product)
	nested := make(map[int64][]domain.Product)
	for _, p := range products {
		p.Variants = byProduct[p.ID]
		if p.SubsubcategoryID != 0 {
			nested[p.SubsubcategoryID] = append(nested[p.SubsubcategoryID], p)
		} else {
			direct[p.SubcategoryID] = append(direct[p.SubcategoryID], p)
		}
	}

	bySub := make(map[int64][]domain.Subsubcategory)
	for _, ss := range subsubs {
		ss.Products = nested[ss.ID]
		bySub[ss.SubcategoryID] = append(bySub[ss.SubcategoryID], ss)
	}

	byCat := make(map[int64][]domain.Subcategory)
	for _, s := range subs {
		s.Subsubcategories = bySub[s.ID]
		s.Products = direct[s.ID]
		byCat[s.CategoryID] = append(byCat[s.CategoryID], s)
	}

	for i := range cats {
		cats[i].Subcategories = byCat[cats[i].ID]
	}

	return &domain.Catalog{BusinessID: businessID, Categories: cats}, nil
}

func (r *CatalogRepository) categories(ctx context.Context, businessID int64) ([]domain.Category, error) {
	const query = `
		SELECT id, business_id, name
		FROM categories
		WHERE business_id = $1
		ORDER BY sort_order, id
	`

	rows, err := r.db.Query(ctx, query, businessID)
	if err != nil {
		return nil, r.fail("categories", businessID, err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Category, error) {
		var c domain.Category
		err := row.Scan(&c.ID, &c.BusinessID, &c.Name)
		return c, err
	})
	if err != nil {
		return nil, r.fail("categories", businessID, err)
	}
	return out, nil
}

func (r *CatalogRepository) subcategories(ctx context.Context, businessID int64) ([]domain.Subcategory, error) {
	const query = `
		SELECT s.id, s.category_id, s.name
		FROM subcategories s
		JOIN categories c ON c.id = s.category_id
		WHERE c.business_id = $1
		ORDER BY s.sort_order, s.id
	`

	rows, err := r.db.Query(ctx, query, businessID)
	if err != nil {
		return nil, r.fail("subcategories", businessID, err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Subcategory, error) {
		var s domain.Subcategory
		err := row.Scan(&s.ID, &s.CategoryID, &s.Name)
		return s, err
	})
	if err != nil {
		return nil, r.fail("subcategories", businessID, err)
	}
	return out, nil
}

func (r *CatalogRepository) subsubcategories(ctx context.Context, businessID int64) ([]domain.Subsubcategory, error) {
	const query = `
		SELECT ss.id, ss.subcategory_id, ss.name
		FROM subsubcategories ss
		JOIN subcategories s ON s.id = ss.subcategory_id
		JOIN categories c ON c.id = s.category_id
		WHERE c.business_id = $1
		ORDER BY ss.sort_order, ss.id
	`

	rows, err := r.db.Query(ctx, query, businessID)
	if err != nil {
		return nil, r.fail("subsubcategories", businessID, err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Subsubcategory, error) {
		var ss domain.Subsubcategory
		err := row.Scan(&ss.ID, &ss.SubcategoryID, &ss.Name)
		return ss, err
	})
	if err != nil {
		return nil, r.fail("subsubcategories", businessID, err)
	}
	return out, nil
}

func (r *CatalogRepository) products(ctx context.Context, businessID int64) ([]domain.Product, error) {
	const query = `
		SELECT id, subcategory_id, COALESCE(subsubcategory_id, 0), name, description, base_price, is_active
		FROM products
		WHERE business_id = $1
		ORDER BY sort_order, id
	`

	rows, err := r.db.Query(ctx, query, businessID)
	if err != nil {
		return nil, r.fail("products", businessID, err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Product, error) {
		var p domain.Product
		err := row.Scan(&p.ID, &p.SubcategoryID, &p.SubsubcategoryID, &p.Name, &p.Description, &p.BasePrice, &p.IsActive)
		return p, err
	})
	if err != nil {
		return nil, r.fail("products", businessID, err)
	}
	return out, nil
}

func (r *CatalogRepository) variants(ctx context.Context, businessID int64) ([]domain.Variant, error) {
	const query = `
		SELECT v.id, v.product_id, v.name, v.price, v.stock, v.unit, v.sku, v.is_active
		FROM product_variants v
		JOIN products p ON p.id = v.product_id
		WHERE p.business_id = $1
		ORDER BY v.sort_order, v.id
	`

	rows, err := r.db.Query(ctx, query, businessID)
	if err != nil {
		return nil, r.fail("variants", businessID, err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Variant, error) {
		var v domain.Variant
		err := row.Scan(&v.ID, &v.ProductID, &v.Name, &v.Price, &v.Stock, &v.Unit, &v.SKU, &v.IsActive)
		return v, err
	})
	if err != nil {
		return nil, r.fail("variants", businessID, err)
	}
	return out, nil
}

func (r *CatalogRepository) fail(what string, businessID int64, err error) error {
	r.log.Error("failed to load catalog", slog.String("part", what), slog.Int64("business_id", businessID), slog.Any("error", err))
	return fmt.Errorf("select %s: %w", what, err)
}
