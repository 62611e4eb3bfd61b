package engine

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/Proton-105/chatshop/internal/catalog"
	"github.com/Proton-105/chatshop/internal/domain"
	"github.com/Proton-105/chatshop/internal/quantity"
	"github.com/Proton-105/chatshop/internal/state"
)

var levelStates = map[catalog.Level]state.State{
	catalog.LevelCategory:       state.StateSelectCategory,
	catalog.LevelSubcategory:    state.StateSelectSubcategory,
	catalog.LevelSubsubcategory: state.StateSelectSubsubcategory,
	catalog.LevelProduct:        state.StateSelectProduct,
	catalog.LevelVariant:        state.StateSelectVariant,
}

func (e *Engine) loadCatalog(t *turn) (*domain.Catalog, error) {
	cat, err := e.deps.Catalogs.Catalog(t.ctx, t.businessID())
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	return cat, nil
}

// openCatalog starts a fresh drill-down from the main menu.
func (e *Engine) openCatalog(t *turn) error {
	cat, err := e.loadCatalog(t)
	if err != nil {
		return err
	}

	step, err := catalog.Open(cat, catalog.LevelCategory, catalog.Selection{})
	if errors.Is(err, catalog.ErrNoItems) {
		t.say("catalog_no_items")
		return t.prompt()
	}
	if err != nil {
		return err
	}

	t.s.Context.Catalog = &state.CatalogFrame{Selection: step.Selection}
	t.s.Forward(levelStates[step.Level])
	t.renderStep(step)
	return nil
}

func (e *Engine) catalogHandler(level catalog.Level) func(*turn) error {
	return func(t *turn) error {
		cat, err := e.loadCatalog(t)
		if err != nil {
			return err
		}

		frame := t.s.Context.CatalogOrNew()
		sel, err := catalog.Choose(cat, level, frame.Selection, t.text)
		if errors.Is(err, catalog.ErrInvalidChoice) {
			t.say("invalid_choice")
			return t.prompt()
		}
		if err != nil {
			return err
		}

		if level == catalog.LevelVariant {
			frame.Selection = sel
			frame.Quantity = nil
			frame.CheckoutKey = ""
			return t.enter(state.StateEnterQuantity)
		}

		step, err := catalog.Open(cat, catalog.Next(level), sel)
		if errors.Is(err, catalog.ErrNoItems) {
			t.say("catalog_no_items")
			return t.prompt()
		}
		if err != nil {
			return err
		}

		frame.Selection = step.Selection
		t.s.Forward(levelStates[step.Level])
		t.renderStep(step)
		return nil
	}
}

// promptLevel recomputes the options of a catalog level from the live catalog.
func (t *turn) promptLevel(level catalog.Level) error {
	cat, err := t.e.loadCatalog(t)
	if err != nil {
		return err
	}

	frame := t.s.Context.CatalogOrNew()
	step, err := catalog.Open(cat, level, frame.Selection)
	if errors.Is(err, catalog.ErrNoItems) {
		t.say("catalog_no_items")
		return t.resetToMainMenu()
	}
	if err != nil {
		return err
	}

	frame.Selection = step.Selection
	t.s.State = levelStates[step.Level]
	t.renderStep(step)
	return nil
}

func (t *turn) renderStep(step catalog.Step) {
	keys := make([]string, 0, len(step.Options)+1)
	for _, o := range step.Options {
		keys = append(keys, o.Key)
	}
	t.sayf("select_"+step.Level.String(), map[string]any{
		"options": catalog.RenderOptions(step.Options),
	}, withBack(keys)...)
}

// selectedVariant resolves the chosen variant against the live catalog.
func (t *turn) selectedVariant() (domain.Product, domain.Variant, error) {
	sel, err := t.s.Context.Variant()
	if err != nil {
		return domain.Product{}, domain.Variant{}, err
	}
	cat, err := t.e.loadCatalog(t)
	if err != nil {
		return domain.Product{}, domain.Variant{}, err
	}
	return catalog.FindVariant(cat, sel)
}

// handleQuantity accepts the quantity only when it fits the variant unit class and the live stock.
// Rejected input leaves the context as it was.
func (e *Engine) handleQuantity(t *turn) error {
	_, v, err := t.selectedVariant()
	if err != nil {
		return err
	}

	q, err := quantity.Parse(t.text, v.Unit)
	switch {
	case errors.Is(err, quantity.ErrUnitMismatch):
		t.sayf("quantity_unit_mismatch", map[string]any{"unit": v.Unit}, backKey)
		return nil
	case err != nil:
		t.sayf("quantity_invalid", map[string]any{"unit": v.Unit}, backKey)
		return nil
	}

	if _, err := quantity.CheckStock(q, v); err != nil {
		t.sayf("quantity_insufficient_stock", map[string]any{
			"requested": q.String(),
			"available": quantity.Format(v.Stock, v.Unit),
		}, backKey)
		return nil
	}

	t.s.Context.Catalog.Quantity = &state.QuantityInput{Value: q.Value, Unit: q.Unit}
	t.s.Context.Catalog.CheckoutKey = uuid.NewString()
	t.s.Context.CustomerOrNew()
	return t.enter(state.StateCollectName)
}

func (t *turn) promptQuantity() error {
	p, v, err := t.selectedVariant()
	if err != nil {
		return err
	}
	t.send(catalog.RenderVariant(p, v))
	t.sayf("enter_quantity", map[string]any{"unit": v.Unit}, backKey)
	return nil
}
