// Package ipc defines the abstract transport contract between the
// daemon's service surface and the provider's proxy, and one concrete
// realization of it over HTTP + WebSocket.
package ipc

import "bytes"

// EventNameWidth is the fixed width, in bytes, of the
// LastUpdatedParameterSet event payload. The width itself is not
// explained anywhere in the source material; both sides simply have to
// agree on it, so it is mirrored here unchanged.
const EventNameWidth = 41

// EncodeEventName zero-fills a 41-byte buffer and copies name into it,
// truncating at EventNameWidth bytes if name is longer.
func EncodeEventName(name string) [EventNameWidth]byte {
	var buf [EventNameWidth]byte
	n := copy(buf[:], name)
	_ = n // copy already stops at len(buf); nothing left to zero, buf starts zeroed
	return buf
}

// DecodeEventName interprets buf as bytes up to the first zero byte.
func DecodeEventName(buf [EventNameWidth]byte) string {
	if idx := bytes.IndexByte(buf[:], 0); idx >= 0 {
		return string(buf[:idx])
	}
	return string(buf[:])
}
