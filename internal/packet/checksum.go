package packet

// Checksum calculates the Internet Checksum (RFC 1071) over data.
// This is used for the IPv4 header and ICMP message checksums.
//
// Words are summed in network byte order, the same order in which the
// encoder writes header fields, so the value can be stored with
// binary.BigEndian.PutUint16 and matches what real stacks compute.
func Checksum(data []byte) uint16 {
	return ^fold(sum(data))
}

// Verify reports whether data, which already carries its checksum,
// sums to all ones.
func Verify(data []byte) bool {
	return Checksum(data) == 0
}

// sum adds all 16-bit words of data without folding.
func sum(data []byte) uint64 {
	var s uint64

	n := len(data) &^ 1
	for i := 0; i < n; i += 2 {
		s += uint64(data[i])<<8 | uint64(data[i+1])
	}

	// Left-over byte is padded with zero
	if len(data)%2 == 1 {
		s += uint64(data[len(data)-1]) << 8
	}
	return s
}

// fold collapses carries into the low 16 bits until none remain.
func fold(s uint64) uint16 {
	for s > 0xffff {
		s = (s >> 16) + (s & 0xffff)
	}
	return uint16(s)
}
