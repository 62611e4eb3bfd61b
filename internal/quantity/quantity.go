// Package quantity parses free-text quantities and converts them between a customer's unit and a
// variant's pricing unit.
package quantity

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/Proton-105/chatshop/internal/domain"
)

var (
	// ErrInvalidQuantity is returned for non-numeric, zero or negative input.
	ErrInvalidQuantity = errors.New("invalid quantity")
	// ErrUnitMismatch is returned when the entered unit belongs to another unit class than the variant.
	ErrUnitMismatch = errors.New("unit does not match variant")
	// ErrInsufficientStock is returned when the normalized quantity exceeds available stock.
	ErrInsufficientStock = errors.New("not enough stock")
)

// Class is a unit system: pieces, grams or millilitres.
type Class int

const (
	ClassCount Class = iota
	ClassWeight
	ClassVolume
)

// UnitType maps a class onto the delivery-fee band key.
func (c Class) UnitType() domain.UnitType {
	switch c {
	case ClassWeight:
		return domain.UnitTypeWeight
	case ClassVolume:
		return domain.UnitTypeVolume
	default:
		return domain.UnitTypeCount
	}
}

const epsilon = 1e-9

var inputPattern = regexp.MustCompile(`^([0-9]+(?:\.[0-9]+)?|\.[0-9]+)\s*(ml|l|g|kg|pcs|packets)?$`)

// factors holds the multiplier from a unit to its class base unit.
var factors = map[string]float64{
	"g":  1,
	"kg": 1000,
	"ml": 1,
	"l":  1000,
}

// ClassOf returns the unit class of a unit token. Unknown tokens count as pieces.
func ClassOf(unit string) Class {
	switch strings.ToLower(strings.TrimSpace(unit)) {
	case "g", "kg":
		return ClassWeight
	case "ml", "l":
		return ClassVolume
	default:
		return ClassCount
	}
}

// ToBase converts value expressed in unit to grams, millilitres or pieces.
func ToBase(value float64, unit string) float64 {
	if f, ok := factors[strings.ToLower(strings.TrimSpace(unit))]; ok {
		return value * f
	}
	return value
}

// Quantity is a parsed customer quantity.
type Quantity struct {
	// Value is the number as the customer typed it.
	Value float64
	// Unit is the unit the customer typed, or the variant unit when none was given.
	Unit string
	// Base is Value in the class base unit (g, ml or pieces).
	Base float64
	// Class is the unit class of Unit.
	Class Class
}

// Parse reads "<number><optional unit>" and resolves a missing unit to variantUnit.
func Parse(input, variantUnit string) (Quantity, error) {
	s := strings.ToLower(strings.TrimSpace(input))
	m := inputPattern.FindStringSubmatch(s)
	if m == nil {
		return Quantity{}, fmt.Errorf("%w: %q", ErrInvalidQuantity, input)
	}

	value, err := strconv.ParseFloat(m[1], 64)
	if err != nil || value <= 0 || math.IsInf(value, 0) {
		return Quantity{}, fmt.Errorf("%w: %q", ErrInvalidQuantity, input)
	}

	unit := m[2]
	if unit == "" {
		unit = strings.ToLower(strings.TrimSpace(variantUnit))
	}
	if unit == "" {
		unit = "pcs"
	}

	class := ClassOf(unit)
	if class != ClassOf(variantUnit) {
		return Quantity{}, fmt.Errorf("%w: %s vs %s", ErrUnitMismatch, unit, variantUnit)
	}
	if class == ClassCount && value != math.Trunc(value) {
		return Quantity{}, fmt.Errorf("%w: fractional pieces %q", ErrInvalidQuantity, input)
	}

	return Quantity{
		Value: value,
		Unit:  unit,
		Base:  ToBase(value, unit),
		Class: class,
	}, nil
}

// Of rebuilds a quantity from a stored value and unit.
func Of(value float64, unit string) Quantity {
	return Quantity{Value: value, Unit: unit, Base: ToBase(value, unit), Class: ClassOf(unit)}
}

// InUnit converts the quantity into the given unit of the same class.
func (q Quantity) InUnit(unit string) float64 {
	per := ToBase(1, unit)
	if per == 0 {
		return q.Base
	}
	return q.Base / per
}

// String renders the quantity for display, e.g. "2.00 kg" or "3 pcs".
func (q Quantity) String() string {
	return Format(q.Value, q.Unit)
}

// Format renders value with two decimals for weight and volume units and as a whole number otherwise.
func Format(value float64, unit string) string {
	if ClassOf(unit) == ClassCount {
		return strconv.FormatFloat(value, 'f', -1, 64) + " " + unit
	}
	return strconv.FormatFloat(value, 'f', 2, 64) + " " + unit
}

// CheckStock converts q into the variant unit and reports ErrInsufficientStock when it exceeds stock.
// It returns the quantity in the variant unit.
func CheckStock(q Quantity, variant domain.Variant) (float64, error) {
	inVariant := q.InUnit(variant.Unit)
	if inVariant > variant.Stock+epsilon {
		return inVariant, fmt.Errorf("%w: requested %s, available %s",
			ErrInsufficientStock, q, Format(variant.Stock, variant.Unit))
	}
	return inVariant, nil
}
