package catalog

import (
	"fmt"
	"strings"

	"github.com/Proton-105/chatshop/internal/domain"
	"github.com/Proton-105/chatshop/internal/quantity"
)

// FormatPrice renders an amount in the shop currency.
func FormatPrice(amount float64) string {
	return fmt.Sprintf("Rs.%.2f", amount)
}

// RenderOptions renders one "key. label" line per option.
func RenderOptions(opts []Option) string {
	var b strings.Builder
	for i, o := range opts {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%s. %s", o.Key, o.Label)
	}
	return b.String()
}

// RenderVariant describes a selected variant before quantity entry.
func RenderVariant(p domain.Product, v domain.Variant) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s - %s\n", p.Name, v.Name)
	fmt.Fprintf(&b, "Price: %s / %s\n", FormatPrice(v.Price), v.Unit)
	fmt.Fprintf(&b, "Stock: %s", quantity.Format(v.Stock, v.Unit))
	if v.SKU != "" {
		fmt.Fprintf(&b, "\nSKU: %s", v.SKU)
	}
	return b.String()
}
