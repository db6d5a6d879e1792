// Package dimension decides which physical dimensions a cart line ships with.
// Resolution is pure: explicit complete dimensions on the item win, otherwise
// the category size map is consulted, otherwise the item is unresolvable and
// the whole cart cannot be quoted.
package dimension

import (
	"github.com/wreckyard/checkout/internal/domain"
	"github.com/wreckyard/checkout/internal/sizemap"
)

// ResolvedItem pairs a cart line with the dimensions it will ship under and
// where those dimensions came from.
type ResolvedItem struct {
	Item   domain.LineItem
	Dims   domain.Dimensions
	Source Source
}

// Source records which rule produced an item's dimensions.
type Source string

const (
	SourceExplicit Source = "explicit"
	SourceSizeMap  Source = "size_map"
)

// Resolve determines shipping dimensions for a single line item. Explicit
// complete dimensions always win; a size-map hit covers items with partial or
// absent dimensions. Returns false when neither rule applies.
func Resolve(item domain.LineItem, sizes *sizemap.Map) (ResolvedItem, bool) {
	if item.Dims != nil && item.Dims.Valid() {
		return ResolvedItem{Item: item, Dims: *item.Dims, Source: SourceExplicit}, true
	}
	if sizes != nil {
		if e, ok := sizes.Lookup(item.Category); ok {
			return ResolvedItem{Item: item, Dims: e.Dims(), Source: SourceSizeMap}, true
		}
	}
	return ResolvedItem{}, false
}

// ResolveCart resolves every line in the cart. The unresolved list carries the
// display names of items that could not be sized; quoting proceeds only when
// it is empty.
func ResolveCart(items []domain.LineItem, sizes *sizemap.Map) (resolved []ResolvedItem, unresolved []string) {
	resolved = make([]ResolvedItem, 0, len(items))
	for _, item := range items {
		ri, ok := Resolve(item, sizes)
		if !ok {
			unresolved = append(unresolved, item.Name)
			continue
		}
		resolved = append(resolved, ri)
	}
	return resolved, unresolved
}
