// Package index holds embedded customer records in memory and answers
// top-k similarity queries over them with an exact linear scan.
//
// An Index is safe for concurrent use: queries share a read lock and
// inserts and commits take the write lock.
package index
