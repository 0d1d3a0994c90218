// Package coins holds the denomination registry and the per-frame value
// aggregation for the coin counter.
//
// # Registry
//
// A Registry is a closed, ordered set of denominations. The order is part of
// the contract with the classifier model: output index i of the model maps to
// the i-th registry entry. Registries are validated on construction (unique
// class identifiers, non-empty labels, non-negative values) and are read-only
// afterwards, so a single Registry can be shared by every frame cycle.
//
// Looking up an index or class that the registry does not contain returns an
// error wrapping ErrUnknownDenomination. Callers must treat it as a
// configuration defect, never as "contributes nothing".
//
// # Aggregation
//
// Accepted and Total are pure functions over a frame's classifications.
// Totals are recomputed from scratch for every frame; nothing in this package
// accumulates state across frames.
package coins
