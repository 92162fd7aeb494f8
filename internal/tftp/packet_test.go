package tftp

import "testing"

func TestParsePacketRead(t *testing.T) {
	raw := []byte("\x00\x01hello.txt\x00octet\x00")
	p := ParsePacket(raw)
	if p.Kind != KindRead {
		t.Fatalf("Kind = %v, want KindRead", p.Kind)
	}
	if p.Filename != "hello.txt" {
		t.Errorf("Filename = %q, want %q", p.Filename, "hello.txt")
	}
	if p.ModeText != "octet" {
		t.Errorf("ModeText = %q, want %q", p.ModeText, "octet")
	}
}

func TestParsePacketAck(t *testing.T) {
	raw := []byte{0x00, 0x04, 0x00, 0x01}
	p := ParsePacket(raw)
	if p.Kind != KindAck {
		t.Fatalf("Kind = %v, want KindAck", p.Kind)
	}
	if p.Block != 1 {
		t.Errorf("Block = %d, want 1", p.Block)
	}
}

func TestParsePacketError(t *testing.T) {
	raw := []byte{0x00, 0x05, 0x00, 0x01, 'x', 0}
	if p := ParsePacket(raw); p.Kind != KindError {
		t.Fatalf("Kind = %v, want KindError", p.Kind)
	}
}

func TestParsePacketUnknown(t *testing.T) {
	cases := [][]byte{
		{0x00, 0x02, 'a', 0, 'o', 'c', 't', 'e', 't', 0}, // WRQ
		{0x00, 0x03, 0x00, 0x01, 'd'},                    // DATA
		{0x00, 0x06},                                     // OACK, unsupported here
		{0x01, 0x01},                                     // high byte non-zero
		{0xff, 0xff},                                     // high byte non-zero
		{0x00},                                            // runt
		{},
	}
	for i, raw := range cases {
		if p := ParsePacket(raw); p.Kind != KindUnknown {
			t.Errorf("case %d: Kind = %v, want KindUnknown", i, p.Kind)
		}
	}
}

func TestParsePacketReadMissingMode(t *testing.T) {
	raw := []byte("\x00\x01hello.txt\x00")
	if p := ParsePacket(raw); p.Kind != KindUnknown {
		t.Fatalf("Kind = %v, want KindUnknown", p.Kind)
	}
}

func TestEncodeData(t *testing.T) {
	payload := EncodeData(1, []byte("Hello\n"))
	want := []byte{0x00, 0x03, 0x00, 0x01, 'H', 'e', 'l', 'l', 'o', '\n'}
	if string(payload) != string(want) {
		t.Errorf("EncodeData = %q, want %q", payload, want)
	}
}

func TestEncodeDataEmpty(t *testing.T) {
	payload := EncodeData(3, nil)
	if len(payload) != 4 {
		t.Fatalf("len(payload) = %d, want 4", len(payload))
	}
}

func TestEncodeError(t *testing.T) {
	cases := []struct {
		code ErrorCode
		msg  string
	}{
		{ErrUndefined, "Undefined"},
		{ErrFileNotFound, "No such file"},
		{ErrAccessViolation, "Access violation"},
		{ErrDiskFull, "Disk full"},
		{ErrIllegalOperation, "Illegal TFTP operation"},
		{ErrUnknownTID, "Unknown transfer id"},
		{ErrFileAlreadyExist, "File already exists"},
		{ErrNoSuchUser, "No such user"},
	}
	for _, c := range cases {
		out := EncodeError(c.code)
		if out[0] != 0 || out[1] != 5 {
			t.Errorf("code %d: opcode bytes = %v, want {0,5}", c.code, out[:2])
		}
		if out[len(out)-1] != 0 {
			t.Errorf("code %d: message not NUL-terminated", c.code)
		}
		if string(out[4:len(out)-1]) != c.msg {
			t.Errorf("code %d: message = %q, want %q", c.code, out[4:len(out)-1], c.msg)
		}
	}
}
