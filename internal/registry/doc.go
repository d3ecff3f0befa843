// Package registry discovers analysis modules on disk and keeps the set of
// modules eligible for execution.
//
// A Registry is rebuilt wholesale by every Discover pass: each immediate
// subdirectory of the root becomes a candidate, candidates missing any of
// the three unit files are skipped with a warning, and the rest are
// registered in directory listing order. Descriptions are read from the
// configuration unit on a best-effort basis and never cause a module to be
// rejected.
//
// The registry is not safe for concurrent Discover and read access; it is
// populated once and then read while modules run.
package registry
