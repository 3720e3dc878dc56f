package ode

import (
	"errors"
	"fmt"
)

// Domain errors for solver construction and solve calls.
var (
	// ErrShape indicates mismatched or non-square matrix dimensions.
	ErrShape = errors.New("ode: matrix or vector shape mismatch")

	// ErrDegenerateMode indicates a mode with negative squared frequency
	// (non-physical stiffness or mass input).
	ErrDegenerateMode = errors.New("ode: degenerate mode (negative frequency)")

	// ErrUnsupportedOrder indicates an unrecognized force-interpolation order.
	ErrUnsupportedOrder = errors.New("ode: unsupported interpolation order")
)

// ShapeError reports the offending dimensions of a shape validation failure.
type ShapeError struct {
	What string
	Want int
	Got  int
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("ode: %s: want dimension %d, got %d", e.What, e.Want, e.Got)
}

func (e *ShapeError) Unwrap() error { return ErrShape }

// DegenerateModeError identifies the mode whose eigenvalue came out negative.
type DegenerateModeError struct {
	Mode   int
	Omega2 float64
}

func (e *DegenerateModeError) Error() string {
	return fmt.Sprintf("ode: mode %d has negative squared frequency %g", e.Mode, e.Omega2)
}

func (e *DegenerateModeError) Unwrap() error { return ErrDegenerateMode }

// InstabilityWarning flags a near-singular numerical condition that was
// resolved by the perturbation-robust branch. Warnings are collected on the
// solver, never returned as errors.
type InstabilityWarning struct {
	Mode    int
	Message string
}

func (w InstabilityWarning) String() string {
	return fmt.Sprintf("mode %d: %s", w.Mode, w.Message)
}
