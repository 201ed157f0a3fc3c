// Package reconcile computes the instruction set that turns a persisted
// nested collection into an edited one.
//
// The diff is a content diff, not a structural one: two items with the
// same id differ only when their reference, quantity, unit price or notes
// differ after normalization. Display names, computed prices and other
// derived fields never produce an update.
//
//	d := reconcile.DiffProducts(persisted, edited)
//	// d.Creates: edited items without a recognised id
//	// d.Updates: edited items whose persisted counterpart differs
//	// d.Deletes: persisted ids absent from the edited collection
package reconcile
