package products

import pkgerrors "github.com/angelmondragon/orderflow-backend/pkg/errors"

var (
	ErrProductNotFound   = pkgerrors.Sentinel(pkgerrors.CodeNotFound, "product_not_found", "product not found")
	ErrProductInactive   = pkgerrors.Sentinel(pkgerrors.CodeValidation, "product_inactive", "product is not available")
	ErrInsufficientStock = pkgerrors.Sentinel(pkgerrors.CodeValidation, "insufficient_stock", "insufficient stock")
)
