// Package calc evaluates arithmetic expressions against a fixed whitelist.
//
// Input is parsed with a full expression grammar so that anything outside
// the whitelist is recognised and refused instead of misread. Evaluation
// walks the tree and executes only numeric literals, the operators
// + - * / // % ** (and unary + -), the constants pi and e, and the functions
// sqrt, log, log10, sin, cos, tan, abs and round. Nothing else resolves: there
// is no attribute access, no indexing and no way to reach a host function.
//
// Calculate is the one-call entry point and always returns a string:
//
//	calc.Calculate("2 + 2")   // "4"
//	calc.Calculate("1 / 4")   // "0.25"
//	calc.Calculate("x + 1")   // "ERROR: Unsupported expression"
//
// All functions in this package are pure and safe for concurrent use.
package calc
