// Package dispatch wraps the external job dispatcher that executes toolkit
// scripts, possibly fanning each submission out across many parallel
// sub-jobs. The contract is submit-and-block: a submission returns only when
// every sub-job has reported, and any sub-job failure fails the whole
// submission. Retry policy belongs to the dispatcher, not this layer.
package dispatch
