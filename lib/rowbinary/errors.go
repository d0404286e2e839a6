// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package rowbinary

import "fmt"

// MismatchError reports that a column's schema type cannot be
// represented by the host type bound to it. It is raised before any
// byte of the offending value is consumed.
type MismatchError struct {
	// Column is the column being decoded or encoded.
	Column string

	// SchemaType is the column's type in the server's spelling.
	SchemaType string

	// Requested is the host representation the row asked for, in Go
	// terms.
	Requested string
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("column %q of type %s cannot be represented as %s",
		e.Column, e.SchemaType, e.Requested)
}
