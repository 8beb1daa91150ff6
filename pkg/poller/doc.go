// Package poller refreshes node execution status from an external source.
//
// A Poller runs as its own cancellable task. Each cycle asks a Source for
// the latest updates and writes status and parsed results into a Sink,
// normally the session's nodedata.Store. Results that are not valid JSON
// are logged and dropped; the status is still written.
package poller
