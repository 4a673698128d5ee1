package packet

import (
	"errors"
	"testing"

	"golang.org/x/net/ipv4"
)

func TestMessage_Types(t *testing.T) {
	tests := []struct {
		msg  Message
		typ  ipv4.ICMPType
		size int
	}{
		{&EchoRequest{}, ipv4.ICMPTypeEcho, ICMPEchoLen},
		{&EchoReply{}, ipv4.ICMPTypeEchoReply, ICMPEchoLen},
		{&Timestamp{}, ipv4.ICMPTypeTimestamp, ICMPTimestampLen},
		{&TimestampReply{}, ipv4.ICMPTypeTimestampReply, ICMPTimestampLen},
	}

	for _, tt := range tests {
		t.Run(tt.typ.String(), func(t *testing.T) {
			if tt.msg.Type() != tt.typ {
				t.Errorf("Type() = %v, want %v", tt.msg.Type(), tt.typ)
			}
			if tt.msg.Len() != tt.size {
				t.Errorf("Len() = %d, want %d", tt.msg.Len(), tt.size)
			}
		})
	}
}

func TestParseMessage_RoundTrip(t *testing.T) {
	msgs := []Message{
		&EchoRequest{ID: 0x1234, Seq: 1},
		&EchoReply{ID: 0xffff, Seq: 0xfffe},
		&Timestamp{ID: 7, Seq: 8, Originate: 1, Receive: 2, Transmit: 3},
		&TimestampReply{ID: 7, Seq: 8, Originate: 86399999, Receive: 5, Transmit: 6},
	}

	enc := &Encoder{Identifier: 1}
	for _, msg := range msgs {
		t.Run(msg.Type().String(), func(t *testing.T) {
			pkt, err := enc.EncodeICMP(msg)
			if err != nil {
				t.Fatalf("EncodeICMP() error = %v", err)
			}
			parsed, err := ParseMessage(pkt.Bytes)
			if err != nil {
				t.Fatalf("ParseMessage() error = %v", err)
			}
			if parsed.Type() != msg.Type() {
				t.Errorf("Type() = %v, want %v", parsed.Type(), msg.Type())
			}

			id, seq := parsed.Identifier()
			wantID, wantSeq := msg.Identifier()
			if id != wantID || seq != wantSeq {
				t.Errorf("Identifier() = %d/%d, want %d/%d", id, seq, wantID, wantSeq)
			}

			switch m := msg.(type) {
			case *Timestamp:
				p := parsed.(*Timestamp)
				if *p != *m {
					t.Errorf("parsed = %+v, want %+v", p, m)
				}
			case *TimestampReply:
				p := parsed.(*TimestampReply)
				if *p != *m {
					t.Errorf("parsed = %+v, want %+v", p, m)
				}
			}
		})
	}
}

func TestParseMessage_Errors(t *testing.T) {
	tests := []struct {
		name    string
		data    []byte
		wantErr error
	}{
		{"empty", nil, ErrTruncated},
		{"short header", []byte{8, 0, 0, 0, 0, 1, 0}, ErrTruncated},
		{"short timestamp", []byte{13, 0, 0, 0, 0, 1, 0, 1, 0, 0, 0, 1}, ErrTruncated},
		{"time exceeded", []byte{11, 0, 0, 0, 0, 0, 0, 0}, ErrUnsupportedMessage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseMessage(tt.data)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ParseMessage() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
