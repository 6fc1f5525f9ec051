// Package events carries typed state notifications out of a peer
// session without the session calling back into application code.
package events
