// Package stores provides the persistence layer for mossy.
//
// SQLiteStore keeps two kinds of data in one SQLite database. The concept
// tables (owl_objects, hierarchy, information_content) hold an ontology in
// the shape the similarity measures query: the hierarchy table is the
// reflexive-transitive closure of the subclass relation with the distance
// of every pair, and information_content holds one value per concept and
// measure. The run tables (runs, results) record comparison runs when the
// runner is asked to keep them.
//
// The schema is created by embedded golang-migrate migrations:
//
//	store, err := stores.NewSQLiteStore(stores.Config{Path: "mossy.db"})
//	if err != nil {
//	    return err
//	}
//	if err := store.Init(ctx); err != nil {
//	    return err
//	}
//	if err := store.Migrate(ctx); err != nil {
//	    return err
//	}
//
// Concept ids are cached for the lifetime of the store. An IRI that the
// database does not contain is given a fresh id beyond the largest stored
// one, so measures treat it as a concept with no ancestors and no
// information content.
package stores
