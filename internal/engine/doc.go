// Package engine implements the request loop of the script engine.
//
// The engine reads one JSON request per line, dispatches it by opcode and
// writes exactly one JSON response per line. Handlers either return a
// result or one *EngineError; the loop is the only place that turns errors
// into error responses. Any other handler error is a defect and stops the
// loop.
//
// Opcodes:
//
//	exit         stop serving; no response
//	loadlibrary  read, compile and run a library, merging its globals
//	validate     compile source and report diagnostics
//	setcpulimit  lower the soft CPU-time limit and arm the CPU trap
//	setmemlimit  lower the soft address-space limit
//	invoke       run source against the environment and call a function
//
// The loop is single-threaded. The CPU trap is the only other goroutine
// that writes output; both go through one wire.Writer.
package engine
