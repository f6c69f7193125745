// Package catalog defines the package record shown to curators and the
// fetch path that produces it.
//
// # Records
//
// A [Record] is a flat, display-ready view of one npm package at one
// concrete version. Optional fields the registry omits are filled with
// placeholders ([NotAvailable], [UnknownAuthor], [NoDescription]) so every
// column always has a value. New records start as [StatusPending]; accepted
// and rejected are terminal.
//
// # Fetching
//
// [Fetcher] is the single-package lookup. [RegistryFetcher] implements it on
// top of the npm client and reports every failure as FETCH_FAILED.
// [FetchAll] fans a batch of lookups out concurrently, drops the failures
// and keeps the successes in request order:
//
//	reqs := []catalog.Request{{Name: "react"}, {Name: "lodash", Version: "4.17.21"}}
//	records := catalog.FetchAll(ctx, fetcher, reqs, 8, logger)
package catalog
