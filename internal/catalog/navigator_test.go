package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/chatshop/internal/domain"
)

func fixture() *domain.Catalog {
	return &domain.Catalog{
		BusinessID: 1,
		Categories: []domain.Category{
			{
				ID:   10,
				Name: "Groceries",
				Subcategories: []domain.Subcategory{
					{
						ID:   100,
						Name: "Rice",
						Products: []domain.Product{
							{ID: 1000, Name: "Samba", BasePrice: 250, IsActive: true, Variants: []domain.Variant{
								{ID: 1, Name: "1kg bag", Price: 250, Stock: 10, Unit: "kg", IsActive: true},
								{ID: 2, Name: "5kg bag", Price: 240, Stock: 4, Unit: "kg", IsActive: true},
							}},
							{ID: 1001, Name: "Nadu", BasePrice: 200, IsActive: true, Variants: []domain.Variant{
								{ID: 3, Name: "loose", Price: 0.2, Stock: 5000, Unit: "g", IsActive: true},
								{ID: 4, Name: "old", Price: 1, Stock: 1, Unit: "g", IsActive: false},
							}},
							{ID: 1002, Name: "Discontinued", IsActive: false},
						},
					},
				},
			},
			{
				ID:   20,
				Name: "Drinks",
				Subcategories: []domain.Subcategory{
					{
						ID:   200,
						Name: "Juice",
						Subsubcategories: []domain.Subsubcategory{
							{ID: 2000, Name: "Fresh", Products: []domain.Product{
								{ID: 3000, Name: "Orange", BasePrice: 300, IsActive: true, Variants: []domain.Variant{
									{ID: 5, Name: "1l", Price: 300, Stock: 6, Unit: "l", IsActive: true},
								}},
							}},
							{ID: 2001, Name: "Empty"},
						},
						Products: []domain.Product{
							{ID: 3001, Name: "Mixed", BasePrice: 150, IsActive: true},
						},
					},
					{ID: 201, Name: "Soda"},
				},
			},
		},
	}
}

func TestOpenAutoDescendsSingleChild(t *testing.T) {
	t.Parallel()

	cat := fixture()
	sel, err := Choose(cat, LevelCategory, Selection{}, "1")
	require.NoError(t, err)

	step, err := Open(cat, LevelSubcategory, sel)
	require.NoError(t, err)

	assert.Equal(t, LevelProduct, step.Level)
	assert.Equal(t, []Level{LevelSubcategory, LevelSubsubcategory}, step.Skipped)
	assert.True(t, step.Selection.Direct)
	require.Len(t, step.Options, 2)
	assert.Equal(t, "Samba — Rs.250.00", step.Options[0].Label)
	assert.Equal(t, "Nadu — Rs.200.00", step.Options[1].Label)
}

func TestOpenOffersDirectProducts(t *testing.T) {
	t.Parallel()

	cat := fixture()
	sel := Selection{CategoryID: 20, SubcategoryID: 200}

	step, err := Open(cat, LevelSubsubcategory, sel)
	require.NoError(t, err)
	require.Len(t, step.Options, 3)
	assert.Equal(t, DirectKey, step.Options[2].Key)

	direct, err := Choose(cat, LevelSubsubcategory, sel, "a")
	require.NoError(t, err)
	assert.True(t, direct.Direct)

	products, err := Open(cat, LevelProduct, direct)
	require.NoError(t, err)
	require.Len(t, products.Options, 1)
	assert.Equal(t, int64(3001), products.Options[0].ID)
}

func TestOpenReportsNoItems(t *testing.T) {
	t.Parallel()

	cat := fixture()

	_, err := Open(cat, LevelSubsubcategory, Selection{CategoryID: 20, SubcategoryID: 201})
	assert.ErrorIs(t, err, ErrNoItems)

	_, err = Open(cat, LevelProduct, Selection{CategoryID: 20, SubcategoryID: 200, SubsubcategoryID: 2001})
	assert.ErrorIs(t, err, ErrNoItems)

	_, err = Open(cat, LevelVariant, Selection{CategoryID: 20, SubcategoryID: 200, Direct: true, ProductID: 3001})
	assert.ErrorIs(t, err, ErrNoItems)
}

func TestChooseRejectsInvalidInput(t *testing.T) {
	t.Parallel()

	cat := fixture()
	sel := Selection{CategoryID: 10, SubcategoryID: 100, Direct: true}

	tests := []struct {
		name  string
		input string
	}{
		{name: "out of range", input: "3"},
		{name: "zero", input: "0"},
		{name: "text", input: "rice"},
		{name: "direct key at product level", input: "A"},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got, err := Choose(cat, LevelProduct, sel, tc.input)
			assert.ErrorIs(t, err, ErrInvalidChoice)
			assert.Equal(t, sel, got)
		})
	}
}

func TestInactiveVariantsHidden(t *testing.T) {
	t.Parallel()

	cat := fixture()
	sel := Selection{CategoryID: 10, SubcategoryID: 100, Direct: true, ProductID: 1001}

	step, err := Open(cat, LevelVariant, sel)
	require.NoError(t, err)
	require.Len(t, step.Options, 1)
	assert.Equal(t, int64(3), step.Options[0].ID)

	sel.VariantID = 4
	_, _, err = FindVariant(cat, sel)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBackNavigationRestoresSameChoices(t *testing.T) {
	t.Parallel()

	cat := fixture()

	before, err := Open(cat, LevelVariant, Selection{CategoryID: 10, SubcategoryID: 100, Direct: true, ProductID: 1000})
	require.NoError(t, err)

	sel, err := Choose(cat, LevelVariant, before.Selection, "2")
	require.NoError(t, err)
	assert.Equal(t, int64(2), sel.VariantID)

	after, err := Open(cat, LevelVariant, sel)
	require.NoError(t, err)

	assert.Equal(t, before.Options, after.Options)
	assert.Zero(t, after.Selection.VariantID)
}

func TestRenderOptions(t *testing.T) {
	t.Parallel()

	out := RenderOptions([]Option{{Key: "1", Label: "Rice"}, {Key: "A", Label: "All"}})
	assert.Equal(t, "1. Rice\nA. All", out)
}
