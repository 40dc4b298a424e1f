// Package usr defines the Universal Schema Representation: the canonical,
// target-independent form of a declared data shape.
//
// A [Schema] owns an ordered list of [Field] values and an ordered list of
// [Variant] views. Every field carries exactly one canonical [Type], whose
// root [Kind] comes from a closed set. Values in this package are built by
// the parser and treated as immutable afterwards, so they can be shared
// freely between concurrently running generators.
package usr
