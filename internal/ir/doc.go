// Package ir provides the record model shared by every marcshift package.
//
// This package contains the ordered multi-valued record (Record), the
// sealed Value union (Scalar, List, *Record), the grouped wire shape, and
// canonical serialization. All other internal packages import ir; ir
// imports nothing internal.
//
// Key design constraints:
//   - Keys repeat; every occurrence keeps its position
//   - The container never infers cardinality: callers decide between a
//     single value and a List
//   - OrderKey ("__order__") is the only place occurrence order survives
//     the grouped wire shape
//   - Structural modifiers ("$ind1", "$ind2") live in rule results only;
//     the engine splices them into raw keys
package ir
