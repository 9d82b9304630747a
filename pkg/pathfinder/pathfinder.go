// Package pathfinder holds utilities for obtaining nodes from response bodies
// in different data formats. Found nodes feed the capture storage from which
// templates of subsequent calls read their values.
package pathfinder

// PathFinder describes ability to obtain node(s) from data in fixed data format.
type PathFinder interface {
	// Find obtains data from bytes according to given expression.
	Find(expr string, bytes []byte) (any, error)
}
