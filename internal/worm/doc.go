// Package worm holds the domain model for worm-shape untangling: the
// TrainingParams statistical record, the skeleton geometry used to derive
// angle feature vectors, the offline training procedure, and the
// Mahalanobis-style scorer that accepts or rejects candidate shapes.
package worm
