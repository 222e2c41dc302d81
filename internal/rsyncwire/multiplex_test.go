package rsyncwire

import (
	"bytes"
	"io"
	"testing"
)

func TestMultiplexWriterReaderDataRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := &MultiplexWriter{Writer: &buf}

	want := []byte("hello, multiplexed world")
	if _, err := w.Write(want); err != nil {
		t.Fatal(err)
	}

	r := &MultiplexReader{Reader: &buf}
	got := make([]byte, len(want))
	if _, err := io.ReadFull(r, got); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, want) {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestMultiplexReaderDispatchesOOBBeforeData(t *testing.T) {
	var buf bytes.Buffer
	w := &MultiplexWriter{Writer: &buf}

	if err := w.WriteMsg(MsgInfo, []byte("building file list")); err != nil {
		t.Fatal(err)
	}
	if _, err := w.Write([]byte("payload")); err != nil {
		t.Fatal(err)
	}

	var gotTag Msg
	var gotPayload []byte
	r := &MultiplexReader{
		Reader: &buf,
		Handler: func(tag Msg, payload []byte) error {
			gotTag = tag
			gotPayload = append([]byte(nil), payload...)
			return nil
		},
	}

	got := make([]byte, len("payload"))
	if _, err := io.ReadFull(r, got); err != nil {
		t.Fatal(err)
	}
	if gotTag != MsgInfo {
		t.Errorf("handler tag = %v, want MsgInfo", gotTag)
	}
	if string(gotPayload) != "building file list" {
		t.Errorf("handler payload = %q", gotPayload)
	}
	if string(got) != "payload" {
		t.Errorf("data = %q, want %q", got, "payload")
	}
}

func TestMultiplexWriterChunksLargeFrames(t *testing.T) {
	var buf bytes.Buffer
	w := &MultiplexWriter{Writer: &buf}

	want := bytes.Repeat([]byte{'x'}, maxFrameLen+10)
	if _, err := w.Write(want); err != nil {
		t.Fatal(err)
	}

	r := &MultiplexReader{Reader: &buf}
	got := make([]byte, len(want))
	if _, err := io.ReadFull(r, got); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, want) {
		t.Error("chunked round-trip mismatch")
	}
}

func TestMsgString(t *testing.T) {
	if MsgData.String() != "DATA" {
		t.Errorf("MsgData.String() = %q", MsgData.String())
	}
	if Msg(99).String() == "" {
		t.Error("unknown Msg should still stringify")
	}
}
