// Package merge decides if a dependency-update pull request can be merged
// and merges it.
//
// A pull request is evaluated by running it through an ordered sequence of
// gates (Pipeline.Evaluate). The first gate that does not pass stops the
// evaluation, the pull request is then not merged. Only when all gates
// pass, the merge is issued. The merge is always pinned to the evaluated
// head commit, a push that happens during the evaluation causes GitHub to
// reject the merge.
//
// Nothing is cached between evaluations, every evaluation reads the current
// state from GitHub.
package merge
