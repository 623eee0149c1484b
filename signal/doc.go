// Package signal implements event-based signalling interface between the
// dApp connector and the host application embedding it (navigation to
// approval screens, messages for embedded web content).
// Signals are delivered synchronously to a single registered handler as JSON.
package signal
