// Package apperr defines the error kinds shared by the fetch, validate and
// pipeline commands.
//
// Configuration, network and authentication errors abort the current command.
// Mismatch and not-found errors are reported per dataset and folded into the
// final pass/fail status.
package apperr
