// Package scenario runs replica-status scenario matrices.
//
// A Scenario declares the replica layout before an operation, the layout
// expected after it and the expected process output. The Engine drives one
// scenario through a fixed sequence:
//
//	setup -> execute -> verify output -> verify state -> teardown
//
// Setup creates a fresh object in its own collection and forces each
// location's status; teardown removes the collection whatever happened
// before it. State is always read back from the Session, never cached.
//
// Matrices are loaded from YAML or CUE files with LoadMatrix and run with
// Engine.RunMatrix, or with RunMatrixT inside go test.
package scenario
