// Package search turns keystrokes into registry searches.
//
// A [Debouncer] waits until the user stops typing and commits the final text.
// An [Orchestrator] runs committed queries: one registry search for up to ten
// candidate names, then one metadata fetch per candidate, concurrently.
// Results are published as immutable [Session] values; a search overtaken by
// a newer commit is dropped when it completes, so the displayed session
// always belongs to the latest query.
//
//	o := search.NewOrchestrator(registry, search.Options{Logger: logger})
//	d := search.NewDebouncer(search.DefaultDebounce, func(q string) { o.Commit(ctx, q) })
//	o.OnUpdate(func(s search.Session) { repaint(s) })
//	d.Input("lod")
package search
