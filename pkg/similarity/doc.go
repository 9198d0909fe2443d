// Package similarity provides the reference comparers of mossy and the
// glue that lets configuration values act as comparers.
//
// Register adds these safe functions to a config.Registry:
//
//	resnik(ic)                       shared information content
//	lin(ic)                          2 * shared / (ic(a) + ic(b))
//	jiang(ic)                        (ic(a) + ic(b) - 2 * shared) / 2, a distance
//	simple_list_comparer(inner, aggr)
//	list_min(), list_max(), list_avg()
//	list_bma(best_match="max")
//	list_hna(n=10, mode="highest")
//	concepts(*iris)                  a frozen set of IRIs
//
// The ic argument names the information content values to read from the
// concept store, for example "seco" for the values computed by the
// ontology importer.
//
// Any configuration value can be a comparer: FromValue accepts the Go
// values returned by these functions and any Starlark value with a
// callable compare attribute, such as a struct built by a plugin script.
package similarity
