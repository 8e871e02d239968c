package io

// Dimension describes one axis of a character array descriptor.
type Dimension struct {
	LowerBound int64
	Extent     int64
	ByteStride int64
}

// Descriptor addresses a caller-owned character array as a sequence of
// fixed-length records, one per element, traversed by subscript. The
// descriptor borrows the storage; it never owns it.
type Descriptor struct {
	base         []byte
	elementBytes int64
	dims         []Dimension
}

// NewCharDescriptor builds a contiguous column-major descriptor over buf
// with the given element length and extents. A descriptor with no extents
// addresses a single scalar record.
func NewCharDescriptor(buf []byte, elementBytes int64, extents ...int64) Descriptor {
	d := Descriptor{base: buf, elementBytes: elementBytes}
	stride := elementBytes
	for _, extent := range extents {
		d.dims = append(d.dims, Dimension{LowerBound: 1, Extent: extent, ByteStride: stride})
		stride *= extent
	}
	return d
}

// ElementBytes returns the length of one record.
func (d *Descriptor) ElementBytes() int64 { return d.elementBytes }

// Elements returns the record count.
func (d *Descriptor) Elements() int64 {
	n := int64(1)
	for _, dim := range d.dims {
		n *= dim.Extent
	}
	return n
}

// SizeInBytes returns the total extent of the addressed storage.
func (d *Descriptor) SizeInBytes() int64 { return d.Elements() * d.elementBytes }

// GetLowerBounds fills at with the subscript of the first element.
func (d *Descriptor) GetLowerBounds(at []int64) {
	for j, dim := range d.dims {
		at[j] = dim.LowerBound
	}
}

// Rank returns the number of dimensions (zero for a scalar).
func (d *Descriptor) Rank() int { return len(d.dims) }

// Element returns the record addressed by the subscript.
func (d *Descriptor) Element(at []int64) []byte {
	var offset int64
	for j, dim := range d.dims {
		offset += (at[j] - dim.LowerBound) * dim.ByteStride
	}
	return d.base[offset : offset+d.elementBytes]
}

// IncrementSubscripts advances at to the next element in column-major
// order, reporting false once the subscript wraps past the last element.
func (d *Descriptor) IncrementSubscripts(at []int64) bool {
	for j, dim := range d.dims {
		at[j]++
		if at[j] < dim.LowerBound+dim.Extent {
			return true
		}
		at[j] = dim.LowerBound
	}
	return false
}
