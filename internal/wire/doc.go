// Package wire implements the line-oriented JSON protocol spoken on the
// engine's standard streams.
//
// Every request is one JSON object on one line:
//
//	{"opcode": "validate", "source": "function f() {}"}
//
// Every response is one JSON object on one line, either a success envelope
//
//	{"status":"success","result":{...}}
//
// or an error envelope carrying a numeric code and kind-specific fields
//
//	{"status":"error","code":13,"message":"Missing attribute","attribute_name":"source"}
//
// The package also provides canonical JSON and domain-separated content
// hashes, used to give journal records stable identities.
//
// wire imports nothing internal.
package wire
