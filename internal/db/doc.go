// Package db contains the SQLite persistence layer: the database handle,
// embedded schema migrations, and repository types for training-data
// records and their score log.
//
// All read/write SQL belongs here rather than in the domain layer, which
// keeps the worm packages free of storage noise and makes the stores easy
// to exercise against a throwaway database in tests.
package db
