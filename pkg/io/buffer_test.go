package io

import (
	"os"
	"path/filepath"
	"testing"
)

func openTestFile(t *testing.T, contents string) *OpenFile {
	t.Helper()
	path := filepath.Join(t.TempDir(), "frame.dat")
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	h := testHandler(t)
	var f OpenFile
	f.SetPath(path)
	f.Open(OpenStatusOld, &h)
	if h.InError() {
		t.Fatalf("Open: %s", h.GetIoMsg(80))
	}
	t.Cleanup(func() {
		h := testHandler(t)
		f.Close(CloseStatusKeep, &h)
	})
	return &f
}

func TestReadFrameCoversRequest(t *testing.T) {
	f := openTestFile(t, "hello, frame buffer")
	fr := NewFileFrame(f)
	h := testHandler(t)

	if got := fr.ReadFrame(7, 5, &h); got < 5 {
		t.Fatalf("ReadFrame(7,5) = %d, want at least 5", got)
	}
	if string(fr.At(7)[:5]) != "frame" {
		t.Fatalf("At(7) = %q, want frame", fr.At(7)[:5])
	}
}

func TestReadFrameShortAtEOF(t *testing.T) {
	f := openTestFile(t, "abc")
	fr := NewFileFrame(f)
	h := testHandler(t)

	if got := fr.ReadFrame(0, 100, &h); got != 3 {
		t.Fatalf("ReadFrame(0,100) on 3-byte file = %d, want 3", got)
	}
	if h.InError() {
		t.Fatalf("short read signaled an error: %s", h.GetIoMsg(80))
	}
	if got := fr.ReadFrame(3, 10, &h); got != 0 {
		t.Fatalf("ReadFrame past EOF = %d, want 0", got)
	}
}

func TestWriteFrameFlush(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.dat")
	h := testHandler(t)
	var f OpenFile
	f.SetPath(path)
	f.Open(OpenStatusReplace, &h)
	if h.InError() {
		t.Fatalf("Open: %s", h.GetIoMsg(80))
	}
	fr := NewFileFrame(&f)

	fr.WriteFrame(0, 5, &h)
	copy(fr.At(0), "abcde")
	fr.WriteFrame(5, 3, &h)
	copy(fr.At(5), "fgh")
	fr.FlushFrame(&h)
	f.Close(CloseStatusKeep, &h)
	if h.InError() {
		t.Fatalf("flush/close: %s", h.GetIoMsg(80))
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(raw) != "abcdefgh" {
		t.Fatalf("file = %q, want abcdefgh", raw)
	}
}

func TestFrameSlideRetainsOverlap(t *testing.T) {
	old := frameChunk
	SetFrameChunk(8)
	defer SetFrameChunk(old)

	f := openTestFile(t, "0123456789abcdefghij")
	fr := NewFileFrame(f)
	h := testHandler(t)

	fr.ReadFrame(0, 8, &h)
	// sliding forward must keep cached bytes that overlap the new window
	if got := fr.ReadFrame(6, 8, &h); got < 8 {
		t.Fatalf("ReadFrame(6,8) = %d, want 8", got)
	}
	if string(fr.At(6)[:8]) != "6789abcd" {
		t.Fatalf("At(6) = %q, want 6789abcd", fr.At(6)[:8])
	}
}
