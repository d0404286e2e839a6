// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package rowbinary

// NullVariant is the discriminant the wire uses for a NULL inside a
// Variant column.
const NullVariant = 255

// Variant is the host representation of a Variant column: the
// discriminant selecting one of the declared alternative types and the
// value decoded as that type's natural Go representation. A NULL
// variant has Index NullVariant and a nil Value.
//
// Variant columns require schema metadata: the discriminant is
// meaningless without the declared type list, so a Variant field
// cannot be used with an unvalidated Metadata.
type Variant struct {
	Index uint8
	Value any
}

// IsNull reports whether the variant holds NULL.
func (v Variant) IsNull() bool {
	return v.Index == NullVariant
}
