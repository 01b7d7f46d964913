// Package vector provides per-lecture in-memory vector indexes with
// brute-force cosine search.
package vector

// Hit is a single retrieval result: a chunk with its similarity score and
// original position in the lecture.
type Hit struct {
	Content  string
	Score    float64
	Position int
}
