package packet

import (
	"encoding/binary"
	"math/rand"
	"testing"
)

func TestChecksum(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		expected uint16
	}{
		{
			name: "ICMP Echo Request example",
			// Type=8, Code=0, Checksum=0, ID=1, Seq=1
			data:     []byte{0x08, 0x00, 0x00, 0x00, 0x00, 0x01, 0x00, 0x01},
			expected: 0xf7fd,
		},
		{
			name:     "RFC 1071 example",
			data:     []byte{0x00, 0x01, 0xf2, 0x03, 0xf4, 0xf5, 0xf6, 0xf7},
			expected: 0x220d,
		},
		{
			name: "IPv4 header",
			data: []byte{
				0x45, 0x00, 0x00, 0x73, 0x00, 0x00, 0x40, 0x00, 0x40, 0x11,
				0x00, 0x00, 0xc0, 0xa8, 0x00, 0x01, 0xc0, 0xa8, 0x00, 0xc7,
			},
			expected: 0xb861,
		},
		{
			name:     "Simple even length",
			data:     []byte{0x00, 0x01, 0x00, 0x02},
			expected: 0xfffc,
		},
		{
			name:     "Odd length data",
			data:     []byte{0x00, 0x01, 0xf2},
			expected: 0x0dfe,
		},
		{
			name:     "All zeros",
			data:     []byte{0x00, 0x00, 0x00, 0x00},
			expected: 0xffff,
		},
		{
			name:     "All ones",
			data:     []byte{0xff, 0xff, 0xff, 0xff},
			expected: 0x0000,
		},
		{
			name:     "Empty data",
			data:     []byte{},
			expected: 0xffff,
		},
		{
			name:     "Nil data",
			data:     nil,
			expected: 0xffff,
		},
		{
			name:     "Single byte",
			data:     []byte{0x45},
			expected: 0xbaff,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Checksum(tt.data)
			if result != tt.expected {
				t.Errorf("Checksum(%v) = 0x%04x, want 0x%04x", tt.data, result, tt.expected)
			}
		})
	}
}

func TestChecksum_ZeroBuffers(t *testing.T) {
	for n := 0; n <= 64; n += 2 {
		if got := Checksum(make([]byte, n)); got != 0xffff {
			t.Errorf("Checksum(zero[%d]) = 0x%04x, want 0xffff", n, got)
		}
	}
}

func TestChecksum_OddPadding(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 200; i++ {
		data := make([]byte, 2*rng.Intn(64)+1)
		rng.Read(data)

		padded := append(append([]byte(nil), data...), 0)
		if got, want := Checksum(data), Checksum(padded); got != want {
			t.Fatalf("Checksum(%x) = 0x%04x, padded = 0x%04x", data, got, want)
		}
	}
}

func TestChecksum_SelfVerify(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	for i := 0; i < 200; i++ {
		// Checksum field lives at bytes 2-3, as in ICMP
		data := make([]byte, 4+2*rng.Intn(40))
		rng.Read(data)
		data[2], data[3] = 0, 0

		binary.BigEndian.PutUint16(data[2:4], Checksum(data))
		if got := Checksum(data); got != 0 {
			t.Fatalf("Checksum(%x) after insertion = 0x%04x, want 0", data, got)
		}
		if !Verify(data) {
			t.Fatalf("Verify(%x) = false, want true", data)
		}
	}
}

func TestChecksum_LargeInputFolds(t *testing.T) {
	// 200000 bytes of 0xff carries far past 32 bits before folding
	data := make([]byte, 200000)
	for i := range data {
		data[i] = 0xff
	}
	if got := Checksum(data); got != 0 {
		t.Errorf("Checksum(0xff*200000) = 0x%04x, want 0x0000", got)
	}
}

func TestVerify(t *testing.T) {
	tests := []struct {
		name  string
		data  []byte
		valid bool
	}{
		{
			name: "Valid ICMP packet with correct checksum",
			// Type=8, Code=0, Checksum=0xf7fd, ID=1, Seq=1
			data:  []byte{0x08, 0x00, 0xf7, 0xfd, 0x00, 0x01, 0x00, 0x01},
			valid: true,
		},
		{
			name: "Invalid checksum",
			// Type=8, Code=0, Checksum=0x0000, ID=1, Seq=1
			data:  []byte{0x08, 0x00, 0x00, 0x00, 0x00, 0x01, 0x00, 0x01},
			valid: false,
		},
		{
			name:  "All zeros is valid",
			data:  []byte{0x00, 0x00, 0xff, 0xff},
			valid: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Verify(tt.data)
			if result != tt.valid {
				t.Errorf("Verify(%v) = %v, want %v", tt.data, result, tt.valid)
			}
		})
	}
}

func BenchmarkChecksum(b *testing.B) {
	// IPv4 header plus timestamp message
	data := make([]byte, IPv4HeaderLen+ICMPTimestampLen)
	data[0] = 0x45

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Checksum(data)
	}
}
