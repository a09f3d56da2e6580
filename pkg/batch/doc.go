// Package batch runs a full reconciliation sweep over every member of the
// target community.
//
// A sweep reads every source community once up front, reconciles each
// subject against that prefetched view and writes the audit trail in
// transactional batches instead of one transaction per subject. Failures are
// counted per subject and never abort the sweep.
package batch
