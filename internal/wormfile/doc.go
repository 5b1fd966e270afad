// Package wormfile reads and writes the training-data XML document that
// carries a frozen worm-shape statistical summary between the offline
// training procedure and the untangling scorer.
//
// The format is a strict ordered sequence of numeric elements under a
// single training-data root. Decode enforces the structural contract
// (order, cardinality, lexical numeric types) and reports every violation
// it finds as a FormatErrors list; cross-field semantics live on
// worm.TrainingParams.Validate so producers and consumers share one
// definition of a usable record.
package wormfile
