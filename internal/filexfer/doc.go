// Package filexfer implements the per-file sender and receiver halves
// of the resumable file-transfer sub-protocol. A Sender
// streams a local file on a freshly allocated mux channel, marking its
// last chunk final; a Receiver writes inbound chunks into a destination
// path at the negotiated offset and verifies the full-content hash once
// the final chunk arrives.
//
// Only the hash taken before a file is offered (peer.Session.OfferFile
// calling HashFile) runs on internal/workerpool. Sender.Run reads the
// file on a goroutine of its own, not on the pool, and the Receiver
// hashes the completed file synchronously inside Deliver, on the
// multiplexer's read goroutine, so inbound frames wait while a large
// file is hashed. Progress and completion
// surface as internal/events values rather than callbacks, grounded on
// the same channel-over-callback shift used for session events elsewhere.
// Destination writes use positioned writes (io.WriterAt) rather than the
// store package's temp-file-then-rename pattern: a resumed transfer must
// reopen and extend the same path at bytesTransferred, which a
// write-then-rename can't express.
package filexfer
