package io

// Edit descriptor kinds. Apart from ListDirected these are the descriptor
// letters themselves.
const (
	// ListDirected marks a field delimited by the statement's own
	// tokenizer rather than a fixed width.
	ListDirected byte = 'l'

	DescriptorA byte = 'A'
	DescriptorB byte = 'B'
	DescriptorD byte = 'D'
	DescriptorE byte = 'E'
	DescriptorF byte = 'F'
	DescriptorG byte = 'G'
	DescriptorI byte = 'I'
	DescriptorL byte = 'L'
	DescriptorO byte = 'O'
	DescriptorZ byte = 'Z'
)

// DataEdit governs the conversion of one data item between text and binary.
// It is immutable for the duration of that item's edit.
type DataEdit struct {
	Descriptor byte

	// Width is the field width in characters; zero means the field is
	// delimited by content (list-directed or nonstandard 0-width editing).
	Width int

	// Digits is the descriptor's fractional-digit count d. For real input
	// with no explicit decimal point it locates the assumed point.
	Digits int

	Modes MutableModes
}

// ListDirectedEdit returns the edit used for list-directed items under the
// given modes.
func ListDirectedEdit(modes MutableModes) DataEdit {
	return DataEdit{Descriptor: ListDirected, Modes: modes}
}

// IsListDirected reports whether the field has no fixed width.
func (e *DataEdit) IsListDirected() bool {
	return e.Descriptor == ListDirected || e.Width == 0
}
