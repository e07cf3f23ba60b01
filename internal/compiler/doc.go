// Package compiler is the bridge between the engine and the restricted
// JavaScript evaluator (goja).
//
// It owns three concerns:
//
//   - Compile turns source text into an opaque, reusable Unit, or fails
//     with a CompileError carrying a list of diagnostics. Compilation is a
//     pure function of the source text.
//   - Capabilities is the enumerable table of host bindings every runtime
//     receives (the safe base), plus the globals removed from every
//     runtime. The engine passes the table through without inspecting it.
//   - NewRuntime builds a hardened runtime from a Capabilities table.
//
// Diagnostics are plain strings of the form
//
//	Line 3:7: SyntaxError: Unexpected token )
//
// and are forwarded verbatim to clients.
package compiler
