// Package match classifies captured stdout and stderr against a declarative
// Expectation.
//
// Matching is pure apart from the diagnostic dump each evaluation writes to
// the Matcher's writer: the expectation, both channels with every line
// prefixed by "    | ", and a one-line verdict. A failure can be read from
// the log alone.
//
// Any expectation that does not target stderr fails when stderr is not
// empty, whatever stdout holds.
//
// Both channels and literal patterns are compared in Unicode NFC, so a
// decomposed literal matches composed output. Regex patterns are compiled
// as written.
package match
