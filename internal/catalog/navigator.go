// Package catalog walks a business catalog tree one level at a time.
//
// Every function works on the catalog passed in; option lists are recomputed on each call and
// never stored between messages.
package catalog

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/samber/lo"

	"github.com/Proton-105/chatshop/internal/domain"
)

var (
	// ErrInvalidChoice is returned when input does not match a listed option.
	ErrInvalidChoice = errors.New("invalid choice")
	// ErrNoItems is returned when a level has nothing to choose from.
	ErrNoItems = errors.New("no items")
	// ErrNotFound is returned when the selection references a node that no longer exists.
	ErrNotFound = errors.New("catalog node not found")
)

// DirectKey selects the products attached directly to a subcategory.
const DirectKey = "A"

// Level is a step of the drill-down.
type Level int

const (
	LevelCategory Level = iota
	LevelSubcategory
	LevelSubsubcategory
	LevelProduct
	LevelVariant
)

func (l Level) String() string {
	switch l {
	case LevelCategory:
		return "category"
	case LevelSubcategory:
		return "subcategory"
	case LevelSubsubcategory:
		return "subsubcategory"
	case LevelProduct:
		return "product"
	case LevelVariant:
		return "variant"
	default:
		return "level(" + strconv.Itoa(int(l)) + ")"
	}
}

// Selection is the path chosen so far. Zero ids mean "not chosen".
type Selection struct {
	CategoryID       int64 `json:"category_id,omitempty"`
	SubcategoryID    int64 `json:"subcategory_id,omitempty"`
	SubsubcategoryID int64 `json:"subsubcategory_id,omitempty"`
	Direct           bool  `json:"direct,omitempty"`
	ProductID        int64 `json:"product_id,omitempty"`
	VariantID        int64 `json:"variant_id,omitempty"`
}

// Truncate drops every choice made at level and below.
func (s Selection) Truncate(level Level) Selection {
	switch level {
	case LevelCategory:
		return Selection{}
	case LevelSubcategory:
		return Selection{CategoryID: s.CategoryID}
	case LevelSubsubcategory:
		return Selection{CategoryID: s.CategoryID, SubcategoryID: s.SubcategoryID}
	case LevelProduct:
		s.ProductID, s.VariantID = 0, 0
		return s
	case LevelVariant:
		s.VariantID = 0
		return s
	}
	return s
}

// Option is one numbered line of a choice list.
type Option struct {
	Key   string
	ID    int64
	Label string
}

// Step is the prompt the customer has to answer next.
type Step struct {
	Level     Level
	Selection Selection
	Options   []Option
	// Skipped lists levels passed automatically because they had a single child.
	Skipped []Level
}

// Open computes the options at level for sel, descending automatically through category,
// subcategory and sub-subcategory levels that have exactly one child.
func Open(cat *domain.Catalog, level Level, sel Selection) (Step, error) {
	step := Step{Level: level, Selection: sel.Truncate(level)}

	for {
		opts, err := options(cat, step.Level, step.Selection)
		if err != nil {
			return step, err
		}
		if len(opts) == 0 {
			return step, fmt.Errorf("%s: %w", step.Level, ErrNoItems)
		}

		if step.Level == LevelSubsubcategory && len(opts) == 1 && opts[0].Key == DirectKey {
			step.Skipped = append(step.Skipped, step.Level)
			step.Selection.Direct = true
			step.Level = LevelProduct
			continue
		}

		if len(opts) == 1 && autoDescends(step.Level) {
			next, err := apply(cat, step.Level, step.Selection, opts[0])
			if err != nil {
				return step, err
			}
			step.Skipped = append(step.Skipped, step.Level)
			step.Selection = next
			step.Level = step.Level + 1
			continue
		}

		step.Options = opts
		return step, nil
	}
}

// Choose resolves input at level against freshly computed options and returns the extended selection.
func Choose(cat *domain.Catalog, level Level, sel Selection, input string) (Selection, error) {
	opts, err := options(cat, level, sel.Truncate(level))
	if err != nil {
		return sel, err
	}

	key := strings.ToUpper(strings.TrimSpace(input))
	opt, ok := lo.Find(opts, func(o Option) bool { return o.Key == key })
	if !ok {
		return sel, fmt.Errorf("%w: %q at %s", ErrInvalidChoice, input, level)
	}

	return apply(cat, level, sel.Truncate(level), opt)
}

// Next returns the level that follows a choice made at level.
func Next(level Level) Level {
	if level >= LevelVariant {
		return LevelVariant
	}
	return level + 1
}

func autoDescends(level Level) bool {
	return level == LevelCategory || level == LevelSubcategory || level == LevelSubsubcategory
}

func apply(cat *domain.Catalog, level Level, sel Selection, opt Option) (Selection, error) {
	switch level {
	case LevelCategory:
		sel.CategoryID = opt.ID
	case LevelSubcategory:
		sel.SubcategoryID = opt.ID
	case LevelSubsubcategory:
		if opt.Key == DirectKey {
			sel.Direct = true
			sel.SubsubcategoryID = 0
		} else {
			sel.SubsubcategoryID = opt.ID
		}
	case LevelProduct:
		sel.ProductID = opt.ID
	case LevelVariant:
		sel.VariantID = opt.ID
	default:
		return sel, fmt.Errorf("apply %s: %w", level, ErrInvalidChoice)
	}
	return sel, nil
}

func options(cat *domain.Catalog, level Level, sel Selection) ([]Option, error) {
	if cat == nil {
		return nil, ErrNotFound
	}

	switch level {
	case LevelCategory:
		return numbered(cat.Categories, func(c domain.Category) (int64, string) { return c.ID, c.Name }), nil

	case LevelSubcategory:
		c, err := FindCategory(cat, sel.CategoryID)
		if err != nil {
			return nil, err
		}
		return numbered(c.Subcategories, func(s domain.Subcategory) (int64, string) { return s.ID, s.Name }), nil

	case LevelSubsubcategory:
		sub, err := FindSubcategory(cat, sel.CategoryID, sel.SubcategoryID)
		if err != nil {
			return nil, err
		}
		opts := numbered(sub.Subsubcategories, func(s domain.Subsubcategory) (int64, string) { return s.ID, s.Name })
		if len(ActiveProducts(sub.Products)) > 0 {
			opts = append(opts, Option{Key: DirectKey, Label: sub.Name})
		}
		return opts, nil

	case LevelProduct:
		products, err := productsFor(cat, sel)
		if err != nil {
			return nil, err
		}
		return numbered(ActiveProducts(products), func(p domain.Product) (int64, string) {
			return p.ID, fmt.Sprintf("%s — %s", p.Name, FormatPrice(p.BasePrice))
		}), nil

	case LevelVariant:
		p, err := FindProduct(cat, sel)
		if err != nil {
			return nil, err
		}
		return numbered(ActiveVariants(p.Variants), func(v domain.Variant) (int64, string) {
			return v.ID, fmt.Sprintf("%s — %s", v.Name, FormatPrice(v.Price))
		}), nil
	}

	return nil, fmt.Errorf("options for %s: %w", level, ErrNotFound)
}

func numbered[T any](items []T, describe func(T) (int64, string)) []Option {
	return lo.Map(items, func(item T, i int) Option {
		id, label := describe(item)
		return Option{Key: strconv.Itoa(i + 1), ID: id, Label: label}
	})
}

func productsFor(cat *domain.Catalog, sel Selection) ([]domain.Product, error) {
	sub, err := FindSubcategory(cat, sel.CategoryID, sel.SubcategoryID)
	if err != nil {
		return nil, err
	}
	if sel.Direct || len(sub.Subsubcategories) == 0 {
		return sub.Products, nil
	}
	ss, ok := lo.Find(sub.Subsubcategories, func(s domain.Subsubcategory) bool { return s.ID == sel.SubsubcategoryID })
	if !ok {
		return nil, fmt.Errorf("subsubcategory %d: %w", sel.SubsubcategoryID, ErrNotFound)
	}
	return ss.Products, nil
}

// ActiveProducts filters out inactive products.
func ActiveProducts(products []domain.Product) []domain.Product {
	return lo.Filter(products, func(p domain.Product, _ int) bool { return p.IsActive })
}

// ActiveVariants filters out inactive variants.
func ActiveVariants(variants []domain.Variant) []domain.Variant {
	return lo.Filter(variants, func(v domain.Variant, _ int) bool { return v.IsActive })
}

// FindCategory looks up a category by id.
func FindCategory(cat *domain.Catalog, id int64) (domain.Category, error) {
	c, ok := lo.Find(cat.Categories, func(c domain.Category) bool { return c.ID == id })
	if !ok {
		return domain.Category{}, fmt.Errorf("category %d: %w", id, ErrNotFound)
	}
	return c, nil
}

// FindSubcategory looks up a subcategory under its category.
func FindSubcategory(cat *domain.Catalog, categoryID, id int64) (domain.Subcategory, error) {
	c, err := FindCategory(cat, categoryID)
	if err != nil {
		return domain.Subcategory{}, err
	}
	s, ok := lo.Find(c.Subcategories, func(s domain.Subcategory) bool { return s.ID == id })
	if !ok {
		return domain.Subcategory{}, fmt.Errorf("subcategory %d: %w", id, ErrNotFound)
	}
	return s, nil
}

// FindProduct looks up the selected product.
func FindProduct(cat *domain.Catalog, sel Selection) (domain.Product, error) {
	products, err := productsFor(cat, sel)
	if err != nil {
		return domain.Product{}, err
	}
	p, ok := lo.Find(products, func(p domain.Product) bool { return p.ID == sel.ProductID && p.IsActive })
	if !ok {
		return domain.Product{}, fmt.Errorf("product %d: %w", sel.ProductID, ErrNotFound)
	}
	return p, nil
}

// FindVariant looks up the selected variant.
func FindVariant(cat *domain.Catalog, sel Selection) (domain.Product, domain.Variant, error) {
	p, err := FindProduct(cat, sel)
	if err != nil {
		return domain.Product{}, domain.Variant{}, err
	}
	v, ok := lo.Find(p.Variants, func(v domain.Variant) bool { return v.ID == sel.VariantID && v.IsActive })
	if !ok {
		return p, domain.Variant{}, fmt.Errorf("variant %d: %w", sel.VariantID, ErrNotFound)
	}
	return p, v, nil
}
