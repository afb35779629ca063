// Package report turns scheduler results into the end-of-run summary and the
// process exit status.
package report
