// Package harness replays protocol scenarios against an in-process engine.
//
// A scenario is a YAML file listing request lines and the response each
// one should produce. The harness runs every line through one engine, the
// same way a host process would over stdin, with a fake resource limiter
// and an in-memory journal. It then checks per-step expectations and
// scenario-level assertions about the final environment, the applied
// limits and the journal.
//
// Request lines may contain $LIBS, which expands to the scenario's
// library fixture directory. Transcripts print $LIBS in place of that
// directory so golden files are portable.
//
// To regenerate golden transcripts, run:
//
//	go test ./internal/harness -update
package harness
