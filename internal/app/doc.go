// Package app wires the stores, transport, worker pool, and logger the
// darkspeak command-line front end shares across its subcommands, and
// tracks the peer.Session values it starts so a listener and several
// outbound dials can run in one process.
//
// Follows the familiar Config-plus-thin-App-struct shape, built by a New
// constructor taking its collaborators, generalized from a single
// relay-client handle into a local store/dialer/pool bundle since
// darkspeak has no central relay to depend on.
package app
