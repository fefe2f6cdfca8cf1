package transport

import "github.com/blang/semver"

// protocolVersion is exchanged as three big-endian int32 fields (major,
// minor, patch) in a length-prefixed frame that follows the handshake's
// address frame, ahead of any breaking change to
// the wire grammar this module might someday need (see SPEC_FULL.md §4.5).
// It is backed by blang/semver so comparisons use real semver ordering
// rules rather than a hand-rolled tuple compare.
type protocolVersion semver.Version

// currentProtocolVersion is what this build of the module advertises and
// accepts from compatible peers.
var currentProtocolVersion = protocolVersion{Major: 1, Minor: 0, Patch: 0}

func (v protocolVersion) encode() []byte {
	return []byte{
		byte(v.Major >> 24), byte(v.Major >> 16), byte(v.Major >> 8), byte(v.Major),
		byte(v.Minor >> 24), byte(v.Minor >> 16), byte(v.Minor >> 8), byte(v.Minor),
		byte(v.Patch >> 24), byte(v.Patch >> 16), byte(v.Patch >> 8), byte(v.Patch),
	}
}

func decodeProtocolVersion(buf []byte) protocolVersion {
	u32 := func(b []byte) uint64 {
		return uint64(b[0])<<24 | uint64(b[1])<<16 | uint64(b[2])<<8 | uint64(b[3])
	}
	return protocolVersion{
		Major: u32(buf[0:4]),
		Minor: u32(buf[4:8]),
		Patch: u32(buf[8:12]),
	}
}

// compatible reports whether a peer advertising other can be allowed to
// complete the handshake with us: only a Major mismatch is rejected (see
// SPEC_FULL.md §4.5 — this frozen-grammar module advertises 1.0.0, so in
// practice every build accepts every other build).
func (v protocolVersion) compatible(other protocolVersion) bool {
	return semver.Version(v).Major == semver.Version(other).Major
}
