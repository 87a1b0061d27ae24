package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNegotiateRangeProposal(t *testing.T) {
	// Single proposal [0, 3, 4, 5]: 5.4 with range 3.
	var raw [16]byte
	copy(raw[:], []byte{0x00, 0x03, 0x04, 0x05})

	v, ok := Negotiate(ParseProposals(raw))
	require.True(t, ok)
	assert.Equal(t, Version{Major: 5, Minor: 4}, v)
	assert.Equal(t, [4]byte{0x00, 0x00, 0x04, 0x05}, v.Encode())
}

func TestNegotiateFirstProposalWins(t *testing.T) {
	// Proposals are walked in client order: a slot offering exactly 5.2
	// beats a later slot offering 5.3.
	var raw [16]byte
	copy(raw[0:], []byte{0x00, 0x00, 0x02, 0x05})
	copy(raw[4:], []byte{0x00, 0x00, 0x03, 0x05})

	v, ok := Negotiate(ParseProposals(raw))
	require.True(t, ok)
	assert.Equal(t, Version{Major: 5, Minor: 2}, v)
}

func TestNegotiateSkipsPlaceholderSlots(t *testing.T) {
	// First three slots zero, last slot offers 5.1.
	var raw [16]byte
	copy(raw[12:], []byte{0x00, 0x00, 0x01, 0x05})

	v, ok := Negotiate(ParseProposals(raw))
	require.True(t, ok)
	assert.Equal(t, Version{Major: 5, Minor: 1}, v)
}

func TestNegotiateNoMatch(t *testing.T) {
	cases := map[string][16]byte{
		"all zero":          {},
		"wrong major":       {0x00, 0x00, 0x00, 0x04},
		"too new, no range": {0x00, 0x00, 0x09, 0x05},
		"5.0 only":          {0x00, 0x00, 0x00, 0x05},
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			v, ok := Negotiate(ParseProposals(raw))
			assert.False(t, ok)
			assert.Equal(t, NoVersion, v)
			assert.Equal(t, [4]byte{}, v.Encode())
		})
	}
}

func TestNegotiateRangeReachesDown(t *testing.T) {
	// 5.9 with range 8 covers 5.1.
	var raw [16]byte
	copy(raw[:], []byte{0x00, 0x08, 0x09, 0x05})

	v, ok := Negotiate(ParseProposals(raw))
	require.True(t, ok)
	assert.Equal(t, Version{Major: 5, Minor: 4}, v)
}

func TestProposalRangeSaturates(t *testing.T) {
	// Range larger than minor must not wrap below zero.
	p := Proposal{Major: 5, Minor: 2, Range: 200}
	assert.True(t, p.Covers(Version{Major: 5, Minor: 0}))
	assert.True(t, p.Covers(Version{Major: 5, Minor: 2}))
	assert.False(t, p.Covers(Version{Major: 5, Minor: 3}))
}

func TestDefaultProposals(t *testing.T) {
	raw := DefaultProposals()
	assert.Equal(t, []byte{0x00, 0x03, 0x04, 0x05}, raw[:4])
	assert.Equal(t, make([]byte, 12), raw[4:])

	v, ok := Negotiate(ParseProposals(raw))
	require.True(t, ok)
	assert.Equal(t, Version{Major: 5, Minor: 4}, v)
}

func TestVersionString(t *testing.T) {
	assert.Equal(t, "5.4", Version{Major: 5, Minor: 4}.String())
}
