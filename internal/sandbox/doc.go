// Package sandbox holds the shared environment that library code is loaded
// into and invoked against.
//
// Every library runs in its own goja runtime. Before it runs, the runtime
// receives a copy of the current environment:
//
//   - values produced by the same runtime are installed directly
//   - functions from another runtime are installed as bridges that copy
//     arguments into the owning runtime and copy the result back
//   - plain objects and arrays are deep-copied
//   - primitives are shared
//
// After a successful run, every global the library created or replaced is
// merged into the environment. A later library overwrites earlier bindings of
// the same name. A library that fails leaves the environment untouched.
//
// An Environment is driven by a single goroutine (the engine's message loop)
// and is not safe for concurrent use.
package sandbox
