// SPDX-License-Identifier: MIT
//
// Copyright © 2018 Kent Gibson <warthog618@gmail.com>.

package version_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/simplerobot/rlm3wifi/version"
)

func TestString(t *testing.T) {
	assert.Equal(t, "255.254.253.252", version.String(0xFFFEFDFC))
	assert.Equal(t, "251.250.249.248", version.String(0xFBFAF9F8))
	assert.Equal(t, "0.0.0.0", version.String(0))
}

func TestComponents(t *testing.T) {
	assert.Equal(t, [4]uint8{255, 254, 253, 252}, version.Components(0xFFFEFDFC))
}

func TestPack(t *testing.T) {
	assert.Equal(t, uint32(0xFFFEFDFC), version.Pack(255, 254, 253, 252))
	// fewer than four components pads the missing ones with zero.
	assert.Equal(t, uint32(0x01020000), version.Pack(1, 2))
}
