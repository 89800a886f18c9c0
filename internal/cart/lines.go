package cart

import (
	"github.com/shopspring/decimal"

	"storefront/internal/models"
)

// Total returns Σ(price × quantity) over items.
func Total(items []models.CartItem) float64 {
	sum := decimal.Zero
	for _, item := range items {
		line := decimal.NewFromFloat(item.Price).Mul(decimal.NewFromInt(int64(item.Quantity)))
		sum = sum.Add(line)
	}
	total, _ := sum.Float64()
	return total
}

// addLine increments the quantity of the line named item.Name, or appends
// item when no such line exists.
func addLine(items []models.CartItem, item models.CartItem) []models.CartItem {
	for i := range items {
		if items[i].Name == item.Name {
			items[i].Quantity += item.Quantity
			return items
		}
	}
	return append(items, item)
}

// setQuantity reports false when no line is named name.
func setQuantity(items []models.CartItem, name string, quantity int) bool {
	found := false
	for i := range items {
		if items[i].Name == name {
			items[i].Quantity = quantity
			found = true
		}
	}
	return found
}

func removeLines(items []models.CartItem, name string) []models.CartItem {
	kept := make([]models.CartItem, 0, len(items))
	for _, item := range items {
		if item.Name == name {
			continue
		}
		kept = append(kept, item)
	}
	return kept
}

// mergeLines folds every guest line into dst by name.
func mergeLines(dst, guest []models.CartItem) []models.CartItem {
	for _, item := range guest {
		dst = addLine(dst, item)
	}
	return dst
}
