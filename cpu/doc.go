// Package cpu implements the KL27 virtual machine core.
//
// The CPU owns a flat 16 MiB byte-addressable memory unit, eight 16-bit
// general purpose registers plus the MAR, MVR and PC special registers, a
// bounded value stack, and two fixed-capacity diagnostic rings (recent
// instructions and recent side effects) that a front-end polls between
// steps. Programs are installed into memory from a K27 container image and
// interpreted by a synchronous fetch-execute cycle.
//
// Runtime failures never surface to the caller of Step; they move the CPU
// into the terminal errored state, which only a reset leaves.
package cpu
