// Package version formats the packed 32-bit version numbers the AT
// protocol engine decodes from "AT version:" and "SDK version:" responses.
//
// Each dotted component of the firmware's version string is scanned as a
// decimal digit run and packed into one byte of a uint32, most significant
// component first. This package is the inverse: given the packed value,
// recover the dotted, human-readable form.
package version

import "fmt"

// Components unpacks a packed version word into its four 8-bit components,
// most significant first, in the order they were scanned.
func Components(packed uint32) [4]uint8 {
	return [4]uint8{
		uint8(packed >> 24),
		uint8(packed >> 16),
		uint8(packed >> 8),
		uint8(packed),
	}
}

// String renders a packed version word in dotted form, e.g. 0xFFFEFDFC
// becomes "255.254.253.252".
func String(packed uint32) string {
	c := Components(packed)
	return fmt.Sprintf("%d.%d.%d.%d", c[0], c[1], c[2], c[3])
}

// Pack builds a packed version word from up to four dotted components,
// most significant first. Extra components beyond four are ignored, and
// missing trailing components are treated as zero. This differs from the
// receive state machine's accumulator for lines without exactly four
// components: it shifts each component in from the right, so a shorter
// version lands in the low bytes and a longer one keeps its last four.
func Pack(components ...uint8) uint32 {
	var v uint32
	for i := 0; i < 4; i++ {
		var c uint8
		if i < len(components) {
			c = components[i]
		}
		v = (v << 8) | uint32(c)
	}
	return v
}
