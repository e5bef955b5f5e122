package redisx

import "fmt"

const (
	// Cart quantities: hash cart:{cart_id} -> {line_key: qty}
	KeyCartQty = "cart:%s"

	// Cart line detail: hash cart:{cart_id}:sku -> {line_key: json CartLine}
	KeyCartLines = "cart:%s:sku"
)

func CartQtyKey(cartID string) string   { return fmt.Sprintf(KeyCartQty, cartID) }
func CartLinesKey(cartID string) string { return fmt.Sprintf(KeyCartLines, cartID) }
