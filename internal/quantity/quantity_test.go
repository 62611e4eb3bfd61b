package quantity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/chatshop/internal/domain"
)

func TestParse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		input       string
		variantUnit string
		wantBase    float64
		wantUnit    string
		wantErr     error
	}{
		{name: "kilograms to grams", input: "2kg", variantUnit: "g", wantBase: 2000, wantUnit: "kg"},
		{name: "space before unit", input: " 1.5 l ", variantUnit: "ml", wantBase: 1500, wantUnit: "l"},
		{name: "no unit uses variant unit", input: "3", variantUnit: "pcs", wantBase: 3, wantUnit: "pcs"},
		{name: "no unit weight variant", input: "250", variantUnit: "g", wantBase: 250, wantUnit: "g"},
		{name: "uppercase unit", input: "2KG", variantUnit: "kg", wantBase: 2000, wantUnit: "kg"},
		{name: "zero rejected", input: "0", variantUnit: "pcs", wantErr: ErrInvalidQuantity},
		{name: "negative rejected", input: "-2", variantUnit: "pcs", wantErr: ErrInvalidQuantity},
		{name: "text rejected", input: "two", variantUnit: "pcs", wantErr: ErrInvalidQuantity},
		{name: "fractional pieces rejected", input: "1.5", variantUnit: "pcs", wantErr: ErrInvalidQuantity},
		{name: "weight for count variant", input: "2kg", variantUnit: "pcs", wantErr: ErrUnitMismatch},
		{name: "volume for weight variant", input: "1l", variantUnit: "kg", wantErr: ErrUnitMismatch},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			q, err := Parse(tc.input, tc.variantUnit)
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tc.wantBase, q.Base, 1e-9)
			assert.Equal(t, tc.wantUnit, q.Unit)
		})
	}
}

func TestFormatRoundTrip(t *testing.T) {
	t.Parallel()

	q, err := Parse("2kg", "g")
	require.NoError(t, err)

	assert.InDelta(t, 2000, q.Base, 1e-9)
	assert.Equal(t, "2.00 kg", q.String())
	assert.Equal(t, "3 pcs", Format(3, "pcs"))
	assert.Equal(t, "0.50 l", Format(0.5, "l"))
}

func TestCheckStockBoundary(t *testing.T) {
	t.Parallel()

	weighted := domain.Variant{Unit: "kg", Stock: 2.5}
	counted := domain.Variant{Unit: "pcs", Stock: 3}

	exact, err := Parse("2.5", "kg")
	require.NoError(t, err)
	inVariant, err := CheckStock(exact, weighted)
	require.NoError(t, err)
	assert.InDelta(t, 2.5, inVariant, 1e-9)

	grams, err := Parse("2500g", "kg")
	require.NoError(t, err)
	_, err = CheckStock(grams, weighted)
	assert.NoError(t, err)

	over, err := Parse("2.51", "kg")
	require.NoError(t, err)
	_, err = CheckStock(over, weighted)
	assert.ErrorIs(t, err, ErrInsufficientStock)

	three, err := Parse("3", "pcs")
	require.NoError(t, err)
	_, err = CheckStock(three, counted)
	assert.NoError(t, err)

	four, err := Parse("4", "pcs")
	require.NoError(t, err)
	_, err = CheckStock(four, counted)
	assert.ErrorIs(t, err, ErrInsufficientStock)
}

func TestClassUnitType(t *testing.T) {
	t.Parallel()

	assert.Equal(t, domain.UnitTypeWeight, ClassOf("KG").UnitType())
	assert.Equal(t, domain.UnitTypeVolume, ClassOf("ml").UnitType())
	assert.Equal(t, domain.UnitTypeCount, ClassOf("packets").UnitType())
	assert.Equal(t, domain.UnitTypeCount, ClassOf("").UnitType())
}
