// Package limits applies process resource ceilings and watches for the
// CPU-time signal the kernel sends when the soft CPU limit is crossed.
//
// Only the soft limit is ever changed. The hard limit stays where the
// parent process put it, so a ceiling can be lowered and raised again within
// the same session.
package limits
