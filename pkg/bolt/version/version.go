// Package version implements Bolt handshake version negotiation.
//
// After the magic preamble, the client offers four 4-byte proposals, each
// laid out as [0, range, minor, major]. A proposal covers versions
// major.minor down to major.(minor-range), saturating at minor 0. The
// server answers with [0, 0, minor, major] for the chosen version, or four
// zero bytes to reject the connection.
package version

import "fmt"

// Magic is the 4-byte preamble every Bolt connection starts with.
var Magic = [4]byte{0x60, 0x60, 0xB0, 0x17}

// Version identifies a Bolt protocol version.
type Version struct {
	Major uint8
	Minor uint8
}

// NoVersion is the zero version, used to signal rejection.
var NoVersion = Version{}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

// Supported lists the versions this implementation speaks, newest first.
// Negotiation picks the first entry any proposal covers.
var Supported = []Version{
	{Major: 5, Minor: 4},
	{Major: 5, Minor: 3},
	{Major: 5, Minor: 2},
	{Major: 5, Minor: 1},
}

// Proposal is one client handshake offer.
type Proposal struct {
	Major uint8
	Minor uint8
	Range uint8
}

// Covers reports whether the proposal includes v. The range counts
// downward from Minor and saturates at zero.
func (p Proposal) Covers(v Version) bool {
	if p.Major != v.Major {
		return false
	}
	low := uint8(0)
	if p.Range < p.Minor {
		low = p.Minor - p.Range
	}
	return v.Minor >= low && v.Minor <= p.Minor
}

// ParseProposals decodes the 16 bytes following the magic preamble into
// four proposals. The leading byte of each slot is reserved and ignored.
func ParseProposals(raw [16]byte) [4]Proposal {
	var out [4]Proposal
	for i := 0; i < 4; i++ {
		out[i] = Proposal{
			Range: raw[i*4+1],
			Minor: raw[i*4+2],
			Major: raw[i*4+3],
		}
	}
	return out
}

// Negotiate walks the proposals in client order, skipping all-zero
// placeholder slots, and for each proposal picks the newest supported
// version it covers. Returns NoVersion and false when nothing matches.
func Negotiate(proposals [4]Proposal) (Version, bool) {
	for _, p := range proposals {
		if p == (Proposal{}) {
			continue
		}
		for _, v := range Supported {
			if p.Covers(v) {
				return v, true
			}
		}
	}
	return NoVersion, false
}

// Encode renders the version as the server's 4-byte handshake answer.
// NoVersion encodes as four zero bytes, the rejection response.
func (v Version) Encode() [4]byte {
	return [4]byte{0, 0, v.Minor, v.Major}
}

// DefaultProposals is the client-side offer: one slot proposing 5.4 with a
// range of 3 (covering 5.4 down to 5.1), remaining slots zero.
func DefaultProposals() [16]byte {
	return [16]byte{0x00, 0x03, 0x04, 0x05}
}
