// Package gol is a Geographic Object Library: a memory-mapped, page-oriented
// blob store with a quadtree spatial index, a bytecode matcher for tag
// predicates, and a persistent query pipeline over the two.
//
// Key features:
//   - Page-oriented BlobStore with a two-level free table and crash-safe
//     single-writer transactions
//   - Quadtree tile index with Mercator bounding-box pruning
//   - Bytecode VM compiling GOQL tag-expression predicates, fail-closed on
//     any corrupted program
//   - Persistent Features query handle: every filter/query method returns a
//     new value, nothing is mutated or cached
//
// Basic usage:
//
//	store, err := gol.Open("/path/to/db.gol", true)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer store.Close()
//
//	ways, err := store.Ways().Query(`[highway=primary]`)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	err = ways.Within(bbox).Each(func(f *gol.Feature) bool {
//	    fmt.Println(f.Tags["name"])
//	    return true
//	})
package gol
