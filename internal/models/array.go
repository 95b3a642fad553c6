package models

import (
	"fmt"
)

// Array is a dense real-valued array in row-major order.
// Image stacks are rank 3 (samples, rows, columns) and reference images are rank 2.
type Array struct {
	// Shape holds the extent of every axis, slowest varying first
	Shape []int

	// Data is the flat row-major storage, len(Data) == product(Shape)
	Data []float64
}

// NewArray allocates a zero-filled array of the given shape
func NewArray(shape ...int) *Array {
	n := 1
	for _, s := range shape {
		n *= s
	}
	dims := make([]int, len(shape))
	copy(dims, shape)
	return &Array{Shape: dims, Data: make([]float64, n)}
}

// NewStack allocates an (n, h, w) image stack
func NewStack(n, h, w int) *Array {
	return NewArray(n, h, w)
}

// NewImage allocates an (h, w) image
func NewImage(h, w int) *Array {
	return NewArray(h, w)
}

// FromData wraps data with the given shape. It fails if the sizes disagree.
func FromData(data []float64, shape ...int) (*Array, error) {
	n := 1
	for _, s := range shape {
		n *= s
	}
	if n != len(data) {
		return nil, fmt.Errorf("shape %v needs %d values, got %d", shape, n, len(data))
	}
	dims := make([]int, len(shape))
	copy(dims, shape)
	return &Array{Shape: dims, Data: data}, nil
}

// Rank returns the number of axes
func (a *Array) Rank() int {
	return len(a.Shape)
}

// Len returns the number of elements
func (a *Array) Len() int {
	return len(a.Data)
}

// Samples returns the leading axis length of a stack, or 1 for an image
func (a *Array) Samples() int {
	if a.Rank() == 3 {
		return a.Shape[0]
	}
	return 1
}

// Height returns the row count of an image or stack
func (a *Array) Height() int {
	return a.Shape[a.Rank()-2]
}

// Width returns the column count of an image or stack
func (a *Array) Width() int {
	return a.Shape[a.Rank()-1]
}

// offset converts a multi-index into a flat index
func (a *Array) offset(idx []int) int {
	if len(idx) != len(a.Shape) {
		panic(fmt.Sprintf("models: index rank %d for array rank %d", len(idx), len(a.Shape)))
	}
	off := 0
	for i, v := range idx {
		if v < 0 || v >= a.Shape[i] {
			panic(fmt.Sprintf("models: index %v out of range for shape %v", idx, a.Shape))
		}
		off = off*a.Shape[i] + v
	}
	return off
}

// At returns the element at idx
func (a *Array) At(idx ...int) float64 {
	return a.Data[a.offset(idx)]
}

// Set stores v at idx
func (a *Array) Set(v float64, idx ...int) {
	a.Data[a.offset(idx)] = v
}

// Sample returns the i-th image of a stack as a view sharing storage.
// On a rank-2 array only i == 0 is valid and the receiver's data is returned.
func (a *Array) Sample(i int) []float64 {
	plane := a.Height() * a.Width()
	if a.Rank() == 2 {
		if i != 0 {
			panic("models: sample index out of range for image")
		}
		return a.Data
	}
	return a.Data[i*plane : (i+1)*plane]
}

// Clone returns a deep copy
func (a *Array) Clone() *Array {
	out := NewArray(a.Shape...)
	copy(out.Data, a.Data)
	return out
}

// SameShape reports whether both arrays have identical shapes
func (a *Array) SameShape(b *Array) bool {
	if len(a.Shape) != len(b.Shape) {
		return false
	}
	for i := range a.Shape {
		if a.Shape[i] != b.Shape[i] {
			return false
		}
	}
	return true
}
