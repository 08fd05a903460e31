package ws

import (
	"bytes"
	"testing"
)

type recordingObserver struct {
	events  []string
	opcodes []byte
	payload []byte
	errCode int
}

func (r *recordingObserver) MessageStart(opcode byte) {
	r.opcodes = append(r.opcodes, opcode)
	r.events = append(r.events, "messageStart")
}

func (r *recordingObserver) FrameData(p []byte) {
	r.payload = append(r.payload, p...)
	r.events = append(r.events, "frameData")
}

func (r *recordingObserver) MessageEnd() { r.events = append(r.events, "messageEnd") }

func (r *recordingObserver) Error(code int) {
	r.errCode = code
	r.events = append(r.events, "error")
}

func feedWS(r *Receiver, data []byte) {
	pos := 0
	for pos < len(data) {
		n := r.Feed(data[pos:])
		if n == 0 {
			return
		}
		pos += n
	}
}

// TestSingleFrameText is §8 scenario 6: 81 85 01 02 03 04 69 67 6f 68 6e
// unmasks to "hello".
func TestSingleFrameText(t *testing.T) {
	obs := &recordingObserver{}
	r := NewReceiver(obs)
	frame := []byte{0x81, 0x85, 0x01, 0x02, 0x03, 0x04, 0x69, 0x67, 0x6f, 0x68, 0x6e}
	feedWS(r, frame)

	if len(obs.opcodes) != 1 || obs.opcodes[0] != OpText {
		t.Fatalf("expected one text messageStart, got %v", obs.opcodes)
	}
	if string(obs.payload) != "hello" {
		t.Fatalf("expected payload %q, got %q", "hello", obs.payload)
	}
	if obs.events[len(obs.events)-1] != "messageEnd" {
		t.Fatalf("expected messageEnd as last event, got %v", obs.events)
	}
}

func TestSingleFrameTextByteAtATime(t *testing.T) {
	obs := &recordingObserver{}
	r := NewReceiver(obs)
	frame := []byte{0x81, 0x85, 0x01, 0x02, 0x03, 0x04, 0x69, 0x67, 0x6f, 0x68, 0x6e}
	for _, b := range frame {
		feedWS(r, []byte{b})
	}
	if string(obs.payload) != "hello" {
		t.Fatalf("expected payload %q, got %q", "hello", obs.payload)
	}
}

func maskedFrame(opcode byte, fin bool, payload []byte, key [4]byte) []byte {
	var first byte = opcode
	if fin {
		first |= 0x80
	}
	out := []byte{first, 0x80 | byte(len(payload))}
	out = append(out, key[:]...)
	masked := make([]byte, len(payload))
	for i, b := range payload {
		masked[i] = b ^ key[i%4]
	}
	return append(out, masked...)
}

// TestFragmentedMessage is §8 scenario 7: "he" then continuation "llo".
func TestFragmentedMessage(t *testing.T) {
	obs := &recordingObserver{}
	r := NewReceiver(obs)

	key := [4]byte{0x11, 0x22, 0x33, 0x44}
	first := maskedFrame(OpText, false, []byte("he"), key)
	second := maskedFrame(OpContinuation, true, []byte("llo"), key)

	feedWS(r, first)
	feedWS(r, second)

	if string(obs.payload) != "hello" {
		t.Fatalf("expected reassembled payload %q, got %q", "hello", obs.payload)
	}
	if len(obs.opcodes) != 1 {
		t.Fatalf("expected exactly one messageStart across the fragmented message, got %d", len(obs.opcodes))
	}
}

// TestProtocolErrorDuringContinuation is §8 scenario 8.
func TestProtocolErrorDuringContinuation(t *testing.T) {
	obs := &recordingObserver{}
	r := NewReceiver(obs)

	key := [4]byte{0, 0, 0, 0}
	first := maskedFrame(OpText, false, []byte("he"), key)
	bad := maskedFrame(OpBinary, true, []byte("llo"), key) // non-zero opcode while in continuation

	feedWS(r, first)
	feedWS(r, bad)

	if obs.errCode != CloseProtocolError {
		t.Fatalf("expected close code %d, got %d", CloseProtocolError, obs.errCode)
	}
}

// TestReservedLengthBitIsProtocolError is invariant 6.
func TestReservedLengthBitIsProtocolError(t *testing.T) {
	obs := &recordingObserver{}
	r := NewReceiver(obs)

	frame := []byte{0x81, 127, 0x80, 0, 0, 0, 0, 0, 0, 0} // top bit of 64-bit length set
	feedWS(r, frame)

	if obs.errCode != CloseLengthReserved {
		t.Fatalf("expected close code %d, got %d", CloseLengthReserved, obs.errCode)
	}
}

// TestMaskIsolation is §8's mask-isolation property: the decoded payload
// is identical regardless of the masking key used.
func TestMaskIsolation(t *testing.T) {
	payload := []byte("the quick brown fox jumps over the lazy dog")
	keys := [][4]byte{{0, 0, 0, 0}, {1, 2, 3, 4}, {0xff, 0xee, 0xdd, 0xcc}, {0x7a, 0x00, 0xb3, 0x01}}

	var results [][]byte
	for _, key := range keys {
		obs := &recordingObserver{}
		r := NewReceiver(obs)
		feedWS(r, maskedFrame(OpBinary, true, payload, key))
		results = append(results, obs.payload)
	}

	for i, got := range results {
		if !bytes.Equal(got, payload) {
			t.Fatalf("key index %d: expected %q, got %q", i, payload, got)
		}
	}
}

func TestMaskIsolationAcrossFragmentedFeeds(t *testing.T) {
	payload := []byte("0123456789abcdef0123456789")
	key := [4]byte{9, 8, 7, 6}
	frame := maskedFrame(OpBinary, true, payload, key)

	for chunkSize := 1; chunkSize <= len(frame); chunkSize++ {
		obs := &recordingObserver{}
		r := NewReceiver(obs)
		// The receiver unmasks in place, so each run feeds a fresh copy.
		buf := append([]byte(nil), frame...)
		for i := 0; i < len(buf); i += chunkSize {
			end := i + chunkSize
			if end > len(buf) {
				end = len(buf)
			}
			feedWS(r, buf[i:end])
		}
		if !bytes.Equal(obs.payload, payload) {
			t.Fatalf("chunkSize=%d: expected %q, got %q", chunkSize, payload, obs.payload)
		}
	}
}

func TestUnmaskedFrame(t *testing.T) {
	obs := &recordingObserver{}
	r := NewReceiver(obs)
	payload := []byte("unmasked")
	frame := []byte{0x82, byte(len(payload))}
	frame = append(frame, payload...)
	feedWS(r, frame)

	if string(obs.payload) != "unmasked" {
		t.Fatalf("expected %q, got %q", "unmasked", obs.payload)
	}
}

func TestZeroLengthFinFrame(t *testing.T) {
	obs := &recordingObserver{}
	r := NewReceiver(obs)
	feedWS(r, []byte{0x81, 0x00})

	if len(obs.events) == 0 || obs.events[len(obs.events)-1] != "messageEnd" {
		t.Fatalf("expected immediate messageEnd for a zero-length fin frame, got %v", obs.events)
	}
}
