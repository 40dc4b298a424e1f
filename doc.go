// Package usrgen defines how schemas become generated source files.
//
// A [Generator] renders one target format. Generators are constructed from
// a [Registry] of factories, one per target, and run by a [Pipeline] that
// emits the base model and every variant of each schema, applies
// postprocessors and collects the results in an [FS]. An FS can be written
// to disk or compared against what is already there.
package usrgen
