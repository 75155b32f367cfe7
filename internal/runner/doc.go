// Package runner drives the ordered test catalog against one engine session
// and aggregates pass/fail counts into the run's final result.
package runner
