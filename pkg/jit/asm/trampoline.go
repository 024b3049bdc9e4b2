//go:build linux && amd64

// Package asm provides the Go assembly entry into generated code.
// This is a separate package to keep assembly out of the compiler package.
package asm

// CallNative calls fn with the System V argument registers rdi, rsi, rdx, rcx
// and r8 set to vm, prev, method, module and args, running it on the native
// stack whose top is stack. It returns rax.
//
// Generated code and helpers never call back into Go, so the goroutine is not
// preempted while fn runs.
func CallNative(fn, stack, vm, prev, method, module, args uintptr) uintptr
