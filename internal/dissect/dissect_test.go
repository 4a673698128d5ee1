package dissect

import (
	"encoding/binary"
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KilimcininKorOglu/rawhdr/internal/packet"
)

var (
	testSrcMAC = []byte{0x02, 0x00, 0x00, 0x00, 0x00, 0x01}
	testDstMAC = []byte{0x02, 0x00, 0x00, 0x00, 0x00, 0x02}
)

// ethernet prefixes payload with an Ethernet II header.
func ethernet(etherType uint16, payload []byte) []byte {
	b := make([]byte, 0, 14+len(payload))
	b = append(b, testDstMAC...)
	b = append(b, testSrcMAC...)
	b = binary.BigEndian.AppendUint16(b, etherType)
	return append(b, payload...)
}

// ipv4Header returns a 20-byte IPv4 header without a checksum.
func ipv4Header(proto uint8, total uint16) []byte {
	h := make([]byte, 20)
	h[0] = 0x45
	binary.BigEndian.PutUint16(h[2:], total)
	h[8] = 64
	h[9] = proto
	copy(h[12:], []byte{10, 0, 0, 1})
	copy(h[16:], []byte{10, 0, 0, 2})
	return h
}

// echoScenario is IPv4{ICMP} carrying Echo Request id 0x1234 seq 1.
func echoScenario() []byte {
	ip := ipv4Header(packet.ProtocolICMP, 28)
	icmp := []byte{8, 0, 0, 0, 0x12, 0x34, 0x00, 0x01}
	return append(ip, icmp...)
}

func encodeEcho(t *testing.T, id, seq uint16) []byte {
	t.Helper()
	enc := &packet.Encoder{Identifier: 1}
	pkt, err := enc.EncodeIPICMP(packet.IPv4Header{
		ID:  0x0102,
		Src: netip.MustParseAddr("192.0.2.1"),
		Dst: netip.MustParseAddr("192.0.2.2"),
	}, packet.NewEchoRequest(id, seq))
	require.NoError(t, err)
	return pkt.Bytes
}

func kinds(ch *Chain) []Kind {
	out := make([]Kind, len(ch.Layers))
	for i, l := range ch.Layers {
		out[i] = l.Kind
	}
	return out
}

func TestDissect_EchoRequestScenario(t *testing.T) {
	ch, err := Dissect(NewFrame(ethernet(EtherTypeIPv4, echoScenario()), 0, 0), Options{})
	require.NoError(t, err)

	assert.Equal(t, []Kind{KindEthernet, KindIPv4, KindICMP, KindEchoRequest}, kinds(ch))
	require.NotNil(t, ch.IP)
	assert.Equal(t, uint8(packet.ProtocolICMP), ch.IP.Protocol)
	assert.Equal(t, uint16(28), ch.IP.TotalLength)

	require.NotNil(t, ch.ICMP)
	assert.Equal(t, uint16(0x1234), ch.ICMP.ID)
	assert.Equal(t, uint16(1), ch.ICMP.Seq)
	assert.Equal(t, 8, ch.ICMP.Length)

	msg, ok := ch.ICMP.Message.(*packet.EchoRequest)
	require.True(t, ok, "Message = %T", ch.ICMP.Message)
	assert.Equal(t, packet.EchoRequest{ID: 0x1234, Seq: 1}, *msg)
	assert.Equal(t, "Ethernet → IPv4 → ICMP → Echo Request", ch.Path())
}

func TestDissect_TCPNotInterpreted(t *testing.T) {
	data := echoScenario()
	data[9] = packet.ProtocolTCP

	ch, err := Dissect(NewFrame(ethernet(EtherTypeIPv4, data), 0, 0), Options{})
	require.NoError(t, err)
	assert.Equal(t, []Kind{KindEthernet, KindIPv4, KindTCP}, kinds(ch))
	assert.Nil(t, ch.ICMP)

	// Only the IP header is needed; no bytes beyond it are read
	ch, err = Dissect(NewFrame(ethernet(EtherTypeIPv4, data[:20]), 0, 0), Options{})
	require.NoError(t, err)
	assert.Equal(t, KindTCP, ch.Final().Kind)
}

func TestDissect_ProtocolDispatch(t *testing.T) {
	tests := []struct {
		name  string
		proto uint8
		want  Layer
	}{
		{"tcp", packet.ProtocolTCP, Layer{Kind: KindTCP}},
		{"udp", packet.ProtocolUDP, Layer{Kind: KindUDP}},
		{"igmp", 2, Layer{Kind: KindOtherIP, Value: 2}},
		{"gre", 47, Layer{Kind: KindOtherIP, Value: 47}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ch, err := Dissect(NewFrame(ethernet(EtherTypeIPv4, ipv4Header(tt.proto, 20)), 0, 0), Options{})
			require.NoError(t, err)
			assert.Equal(t, tt.want, ch.Final())
		})
	}
}

func TestDissect_ICMPTypes(t *testing.T) {
	tests := []struct {
		typ  uint8
		want Layer
	}{
		{8, Layer{Kind: KindEchoRequest}},
		{0, Layer{Kind: KindEchoReply}},
		{13, Layer{Kind: KindTimestampRequest}},
		{14, Layer{Kind: KindOtherICMP, Value: 14}},
		{3, Layer{Kind: KindOtherICMP, Value: 3}},
		{11, Layer{Kind: KindOtherICMP, Value: 11}},
	}

	for _, tt := range tests {
		t.Run(tt.want.String(), func(t *testing.T) {
			icmp := []byte{tt.typ, 0, 0, 0, 0, 7, 0, 9}
			data := append(ipv4Header(packet.ProtocolICMP, 28), icmp...)

			ch, err := Dissect(NewFrame(ethernet(EtherTypeIPv4, data), 0, 0), Options{})
			require.NoError(t, err)
			assert.Equal(t, tt.want, ch.Final())
			require.NotNil(t, ch.ICMP)
			assert.Equal(t, tt.typ, ch.ICMP.Type)
		})
	}
}

func TestDissect_EncodeRoundTrip(t *testing.T) {
	ids := []struct{ id, seq uint16 }{
		{0x1234, 1},
		{0xffff, 0xffff},
		{1, 0},
		{0xbeef, 512},
	}

	for _, tt := range ids {
		frame := NewFrame(ethernet(EtherTypeIPv4, encodeEcho(t, tt.id, tt.seq)), 1, 0)
		ch, err := Dissect(frame, Options{VerifyChecksums: true})
		require.NoError(t, err)

		assert.Equal(t, KindEchoRequest, ch.Final().Kind)
		assert.Equal(t, tt.id, ch.ICMP.ID)
		assert.Equal(t, tt.seq, ch.ICMP.Seq)
		assert.Empty(t, ch.Problems)
		assert.Equal(t, netip.MustParseAddr("192.0.2.1"), ch.IP.Src)
	}
}

func TestDissect_TimestampFields(t *testing.T) {
	enc := &packet.Encoder{Identifier: 0x4242}
	msg := &packet.Timestamp{Seq: 3, Originate: 3723456}
	pkt, err := enc.EncodeIPICMP(packet.IPv4Header{Dst: netip.MustParseAddr("192.0.2.9")}, msg)
	require.NoError(t, err)

	ch, err := Dissect(NewFrame(ethernet(EtherTypeIPv4, pkt.Bytes), 0, 0), Options{VerifyChecksums: true})
	require.NoError(t, err)
	assert.Equal(t, KindTimestampRequest, ch.Final().Kind)
	assert.Equal(t, uint16(0x4242), ch.ICMP.ID)

	ts, ok := ch.ICMP.Message.(*packet.Timestamp)
	require.True(t, ok)
	assert.Equal(t, uint32(3723456), ts.Originate)

	// A capture cut to the echo-sized header keeps id and seq only
	short := pkt.Bytes[:20+8]
	ch, err = Dissect(NewFrame(ethernet(EtherTypeIPv4, short), 0, 0), Options{})
	require.NoError(t, err)
	assert.Equal(t, KindTimestampRequest, ch.Final().Kind)
	assert.Equal(t, uint16(3), ch.ICMP.Seq)
	assert.Nil(t, ch.ICMP.Message)
}

func TestDissect_ShortEthernet(t *testing.T) {
	full := ethernet(EtherTypeIPv4, echoScenario())
	for n := 0; n < 14; n++ {
		ch, err := Dissect(NewFrame(full[:n], 0, 0), Options{})
		require.Error(t, err, "length %d", n)
		require.NotNil(t, ch)
		assert.True(t, IsTruncated(err), "length %d: %v", n, err)

		layer, ok := TruncatedLayer(err)
		assert.True(t, ok)
		assert.Equal(t, KindEthernet, layer)
	}
}

func TestDissect_IHLBeyondBuffer(t *testing.T) {
	data := echoScenario()
	data[0] = 0x4f // 60-byte header, only 28 bytes present

	_, err := Dissect(NewFrame(ethernet(EtherTypeIPv4, data), 0, 0), Options{})
	require.Error(t, err)

	var te *TruncatedError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, KindIPv4, te.Layer)
	assert.Equal(t, 60, te.Need)
	assert.Equal(t, 28, te.Have)
	assert.ErrorIs(t, err, ErrTruncated)
	assert.ErrorIs(t, err, packet.ErrTruncated)
}

func TestDissect_IPv4Truncation(t *testing.T) {
	lowIHL := echoScenario()
	lowIHL[0] = 0x43

	tests := []struct {
		name    string
		payload []byte
		layer   Kind
	}{
		{"no ip header", nil, KindIPv4},
		{"19 byte ip header", echoScenario()[:19], KindIPv4},
		{"ihl below minimum", lowIHL, KindIPv4},
		{"short icmp", echoScenario()[:27], KindICMP},
		{"no icmp", echoScenario()[:20], KindICMP},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ch, err := Dissect(NewFrame(ethernet(EtherTypeIPv4, tt.payload), 0, 0), Options{})
			layer, ok := TruncatedLayer(err)
			require.True(t, ok, "err = %v", err)
			assert.Equal(t, tt.layer, layer)
			assert.Equal(t, tt.layer, ch.Final().Kind)
		})
	}
}

func TestDissect_Options(t *testing.T) {
	data := make([]byte, 24)
	copy(data, ipv4Header(packet.ProtocolUDP, 24))
	data[0] = 0x46

	ch, err := Dissect(NewFrame(ethernet(EtherTypeIPv4, data), 0, 0), Options{})
	require.NoError(t, err)
	assert.Equal(t, 24, ch.IP.HeaderLen())
	assert.Equal(t, KindUDP, ch.Final().Kind)
}

func TestDissect_ICMPAfterOptions(t *testing.T) {
	ip := ipv4Header(packet.ProtocolICMP, 32)
	ip[0] = 0x46
	data := append(ip, 0, 0, 0, 0) // 4 option bytes
	data = append(data, 0, 0, 0, 0, 0xab, 0xcd, 0, 5)

	ch, err := Dissect(NewFrame(ethernet(EtherTypeIPv4, data), 0, 0), Options{})
	require.NoError(t, err)
	assert.Equal(t, KindEchoReply, ch.Final().Kind)
	assert.Equal(t, uint16(0xabcd), ch.ICMP.ID)
	assert.Equal(t, uint16(5), ch.ICMP.Seq)
}

func TestDissect_L2Classification(t *testing.T) {
	tests := []struct {
		name      string
		etherType uint16
		want      Layer
	}{
		{"arp", EtherTypeARP, Layer{Kind: KindARP}},
		{"ipv6", EtherTypeIPv6, Layer{Kind: KindUnknown, Value: EtherTypeIPv6}},
		{"lldp", 0x88cc, Layer{Kind: KindUnknown, Value: 0x88cc}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ch, err := Dissect(NewFrame(ethernet(tt.etherType, make([]byte, 28)), 0, 0), Options{})
			require.NoError(t, err)
			assert.Equal(t, []Layer{{Kind: KindEthernet}, tt.want}, ch.Layers)
			assert.Equal(t, tt.etherType, ch.EtherType)
			assert.Nil(t, ch.IP)
		})
	}
}

func TestDissect_VLAN(t *testing.T) {
	inner := make([]byte, 0, 4+len(echoScenario()))
	inner = binary.BigEndian.AppendUint16(inner, 0x0064) // VLAN 100
	inner = binary.BigEndian.AppendUint16(inner, EtherTypeIPv4)
	inner = append(inner, echoScenario()...)

	ch, err := Dissect(NewFrame(ethernet(EtherTypeVLAN, inner), 0, 0), Options{})
	require.NoError(t, err)
	assert.Equal(t, []uint16{100}, ch.VLANs)
	assert.Equal(t, KindEchoRequest, ch.Final().Kind)

	outer := make([]byte, 0, 4+len(inner))
	outer = binary.BigEndian.AppendUint16(outer, 0x2007) // PCP 1, VLAN 7
	outer = binary.BigEndian.AppendUint16(outer, EtherTypeVLAN)
	outer = append(outer, inner...)

	ch, err = Dissect(NewFrame(ethernet(EtherTypeQinQ, outer), 0, 0), Options{})
	require.NoError(t, err)
	assert.Equal(t, []uint16{7, 100}, ch.VLANs)
	assert.Equal(t, uint16(EtherTypeIPv4), ch.EtherType)

	// Tag cut short
	_, err = Dissect(NewFrame(ethernet(EtherTypeVLAN, inner[:3]), 0, 0), Options{})
	var te *TruncatedError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, TruncatedError{Layer: KindVLAN, Need: 4, Have: 3}, *te)
	assert.EqualError(t, err, "truncated VLAN header: need 4 bytes, have 3")

	// Inner tag of a QinQ pair cut short
	_, err = Dissect(NewFrame(ethernet(EtherTypeQinQ, outer[:6]), 0, 0), Options{})
	require.ErrorAs(t, err, &te)
	assert.Equal(t, TruncatedError{Layer: KindVLAN, Need: 4, Have: 2}, *te)
}

func TestDissect_ZeroLinkTypeIsEthernet(t *testing.T) {
	f := Frame{Data: ethernet(EtherTypeIPv4, echoScenario()), Timestamp: time.Unix(10, 0)}

	ch, err := Dissect(f, Options{})
	require.NoError(t, err)
	assert.Equal(t, "Ethernet → IPv4 → ICMP → Echo Request", ch.Path())
	assert.Equal(t, uint16(0x1234), ch.ICMP.ID)

	// Short frames still report the Ethernet layer
	_, err = Dissect(Frame{Data: make([]byte, 5)}, Options{})
	layer, ok := TruncatedLayer(err)
	require.True(t, ok)
	assert.Equal(t, KindEthernet, layer)
}

func TestDissect_LinuxSLL(t *testing.T) {
	hdr := make([]byte, 16)
	binary.BigEndian.PutUint16(hdr[14:], EtherTypeIPv4)
	data := append(hdr, echoScenario()...)

	ch, err := Dissect(Frame{Data: data, LinkType: LinkTypeLinuxSLL}, Options{})
	require.NoError(t, err)
	assert.Equal(t, []Kind{KindLinuxSLL, KindIPv4, KindICMP, KindEchoRequest}, kinds(ch))

	_, err = Dissect(Frame{Data: data[:15], LinkType: LinkTypeLinuxSLL}, Options{})
	layer, ok := TruncatedLayer(err)
	require.True(t, ok)
	assert.Equal(t, KindLinuxSLL, layer)
}

func TestDissect_RawIP(t *testing.T) {
	for _, lt := range []LinkType{LinkTypeRaw, LinkTypeIPv4} {
		t.Run(lt.String(), func(t *testing.T) {
			ch, err := Dissect(Frame{Data: echoScenario(), LinkType: lt}, Options{})
			require.NoError(t, err)
			assert.Equal(t, []Kind{KindRawIP, KindIPv4, KindICMP, KindEchoRequest}, kinds(ch))
		})
	}

	v6 := make([]byte, 40)
	v6[0] = 0x60
	ch, err := Dissect(Frame{Data: v6, LinkType: LinkTypeRaw}, Options{})
	require.NoError(t, err)
	assert.Equal(t, Layer{Kind: KindUnknown, Value: EtherTypeIPv6}, ch.Final())

	_, err = Dissect(Frame{LinkType: LinkTypeRaw}, Options{})
	assert.True(t, IsTruncated(err))
}

func TestDissect_UnsupportedLinkType(t *testing.T) {
	ch, err := Dissect(Frame{Data: echoScenario(), LinkType: 147}, Options{})
	require.Error(t, err)
	assert.True(t, IsUnsupportedLinkType(err))
	assert.False(t, IsTruncated(err))
	assert.Equal(t, []Layer{{Kind: KindUnsupportedLink, Value: 147}}, ch.Layers)
	assert.Equal(t, "Link type 147", ch.Path())
}

func TestDissect_VerifyChecksums(t *testing.T) {
	good := encodeEcho(t, 0x1234, 1)

	badIP := append([]byte(nil), good...)
	badIP[10] ^= 0xff

	badICMP := append([]byte(nil), good...)
	badICMP[22] ^= 0x01

	tests := []struct {
		name     string
		data     []byte
		problems int
	}{
		{"valid", good, 0},
		{"bad ip checksum", badIP, 1},
		{"bad icmp checksum", badICMP, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ch, err := Dissect(NewFrame(ethernet(EtherTypeIPv4, tt.data), 0, 0), Options{VerifyChecksums: true})
			require.NoError(t, err)
			assert.Len(t, ch.Problems, tt.problems)
			assert.Equal(t, KindEchoRequest, ch.Final().Kind)
		})
	}

	// Not verified unless asked
	ch, err := Dissect(NewFrame(ethernet(EtherTypeIPv4, badIP), 0, 0), Options{})
	require.NoError(t, err)
	assert.Empty(t, ch.Problems)
}

func TestDissect_EthernetPadding(t *testing.T) {
	// Ethernet pads to 60 bytes; the ICMP checksum covers only TotalLength
	data := append(encodeEcho(t, 9, 9), make([]byte, 18)...)

	ch, err := Dissect(NewFrame(ethernet(EtherTypeIPv4, data), 0, 0), Options{VerifyChecksums: true})
	require.NoError(t, err)
	assert.Equal(t, 8, ch.ICMP.Length)
	assert.Empty(t, ch.Problems)
	assert.Equal(t, 60, ch.Length)
}

func TestDissect_VersionProblem(t *testing.T) {
	data := echoScenario()
	data[0] = 0x65

	ch, err := Dissect(NewFrame(ethernet(EtherTypeIPv4, data), 0, 0), Options{})
	require.NoError(t, err)
	require.Len(t, ch.Problems, 1)
	assert.Contains(t, ch.Problems[0], "version 6")
}

func TestDissect_NeverPanics(t *testing.T) {
	frames := [][]byte{
		ethernet(EtherTypeIPv4, echoScenario()),
		ethernet(EtherTypeVLAN, []byte{0, 1, 0x08, 0x00, 0x45}),
		ethernet(EtherTypeIPv4, encodeEcho(t, 1, 2)),
	}

	for _, full := range frames {
		for n := 0; n <= len(full); n++ {
			for _, lt := range []LinkType{LinkTypeEthernet, LinkTypeLinuxSLL, LinkTypeRaw, LinkTypeIPv4} {
				assert.NotPanics(t, func() {
					ch, _ := Dissect(Frame{Data: full[:n], LinkType: lt}, Options{VerifyChecksums: true})
					assert.NotNil(t, ch)
				})
			}
		}
	}
}

func TestDissect_DoesNotModifyFrame(t *testing.T) {
	data := ethernet(EtherTypeIPv4, encodeEcho(t, 5, 6))
	data[14+10] ^= 0xff // force checksum recomputation
	orig := append([]byte(nil), data...)

	_, err := Dissect(NewFrame(data, 0, 0), Options{VerifyChecksums: true})
	require.NoError(t, err)
	assert.Equal(t, orig, data)
}

func TestNewFrame(t *testing.T) {
	f := NewFrame([]byte{1}, 1700000000, 250000)
	assert.Equal(t, LinkTypeEthernet, f.LinkType)
	assert.Equal(t, time.Unix(1700000000, 250*int64(time.Millisecond)), f.Timestamp)
}

func TestLayer_String(t *testing.T) {
	tests := []struct {
		layer Layer
		want  string
	}{
		{Layer{Kind: KindEthernet}, "Ethernet"},
		{Layer{Kind: KindUnknown, Value: 0x86dd}, "Unknown L2 (0x86dd)"},
		{Layer{Kind: KindOtherIP, Value: 47}, "IP Protocol 47"},
		{Layer{Kind: KindOtherICMP, Value: 11}, "ICMP Type 11"},
		{Layer{Kind: KindTimestampRequest}, "Timestamp Request"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.layer.String())
	}
}

func BenchmarkDissect(b *testing.B) {
	data := ethernet(EtherTypeIPv4, echoScenario())
	f := NewFrame(data, 0, 0)
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_, _ = Dissect(f, Options{VerifyChecksums: true})
	}
}
