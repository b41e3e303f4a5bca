package checkout

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/google/uuid"

	pkgerrors "github.com/angelmondragon/orderflow-backend/pkg/errors"
)

// MaxLineQuantity caps a single product line in one checkout.
const MaxLineQuantity = 10000

// LineItem is one requested product and quantity.
type LineItem struct {
	ProductID uuid.UUID
	Quantity  int
}

// LineViolationDetail exposes a rejected line to callers.
type LineViolationDetail struct {
	Index     int       `json:"index"`
	ProductID uuid.UUID `json:"product_id"`
	Quantity  int       `json:"quantity"`
	Reason    string    `json:"reason"`
}

// StockShortfallDetail describes a product that cannot cover the request.
type StockShortfallDetail struct {
	ProductID uuid.UUID `json:"product_id"`
	Requested int       `json:"requested"`
	Available int       `json:"available"`
}

// NormalizeLines validates raw lines and folds duplicate products together.
// The result is ordered by product id.
func NormalizeLines(items []LineItem) ([]LineItem, error) {
	if len(items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "checkout requires at least one item")
	}

	var violations []LineViolationDetail
	totals := make(map[uuid.UUID]int, len(items))
	for i, item := range items {
		switch {
		case item.ProductID == uuid.Nil:
			violations = append(violations, LineViolationDetail{Index: i, Quantity: item.Quantity, Reason: "product id required"})
		case item.Quantity <= 0:
			violations = append(violations, LineViolationDetail{Index: i, ProductID: item.ProductID, Quantity: item.Quantity, Reason: "quantity must be positive"})
		default:
			totals[item.ProductID] += item.Quantity
		}
	}
	if len(violations) > 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("%d invalid checkout item(s)", len(violations))).WithDetails(map[string]any{
			"violations": violations,
		})
	}

	lines := make([]LineItem, 0, len(totals))
	for id, qty := range totals {
		if qty > MaxLineQuantity {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("quantity for product %s exceeds %d", id, MaxLineQuantity)).WithDetails(map[string]any{
				"product_id": id.String(),
				"quantity":   qty,
			})
		}
		lines = append(lines, LineItem{ProductID: id, Quantity: qty})
	}
	sort.Slice(lines, func(i, j int) bool {
		return bytes.Compare(lines[i].ProductID[:], lines[j].ProductID[:]) < 0
	})
	return lines, nil
}
