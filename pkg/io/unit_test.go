package io

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
)

func testHandler(t *testing.T) IoErrorHandler {
	t.Helper()
	h := NewErrorHandler("unit_test", 1)
	h.HasIoStat()
	h.HasIoMsg()
	return h
}

func openUnitFor(t *testing.T, path string, status OpenStatus, unformatted bool) *ExternalFileUnit {
	t.Helper()
	h := testHandler(t)
	u := newExternalFileUnit(77)
	u.OpenUnit(status, PositionRewind, path, &h)
	if h.InError() {
		t.Fatalf("OpenUnit(%s) failed: %s", path, h.GetIoMsg(80))
	}
	u.Access = AccessSequential
	u.IsUnformatted = unformatted
	return u
}

func writeUnformattedRecords(t *testing.T, path string, records ...[]byte) {
	t.Helper()
	h := testHandler(t)
	u := openUnitFor(t, path, OpenStatusReplace, true)
	for _, rec := range records {
		if !u.Emit(rec, &h) {
			t.Fatalf("Emit failed: %s", h.GetIoMsg(80))
		}
		if !u.AdvanceRecord(&h) {
			t.Fatalf("AdvanceRecord failed: %s", h.GetIoMsg(80))
		}
	}
	u.CloseUnit(CloseStatusKeep, &h)
	if h.InError() {
		t.Fatalf("CloseUnit failed: %s", h.GetIoMsg(80))
	}
}

func TestUnformattedSequentialFraming(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seq.dat")
	writeUnformattedRecords(t, path, []byte("abcd"), []byte("0123456789"))

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if len(raw) != 4+4+4+4+10+4 {
		t.Fatalf("file size = %d, want 30", len(raw))
	}
	if got := binary.LittleEndian.Uint32(raw[0:]); got != 4 {
		t.Fatalf("record 1 header = %d, want 4", got)
	}
	if got := binary.LittleEndian.Uint32(raw[8:]); got != 4 {
		t.Fatalf("record 1 footer = %d, want 4", got)
	}
	if string(raw[4:8]) != "abcd" {
		t.Fatalf("record 1 payload = %q, want abcd", raw[4:8])
	}
	if got := binary.LittleEndian.Uint32(raw[12:]); got != 10 {
		t.Fatalf("record 2 header = %d, want 10", got)
	}
	if got := binary.LittleEndian.Uint32(raw[26:]); got != 10 {
		t.Fatalf("record 2 footer = %d, want 10", got)
	}
}

func TestUnformattedSequentialRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seq.dat")
	writeUnformattedRecords(t, path, []byte("abcd"), []byte("0123456789"))

	h := testHandler(t)
	u := openUnitFor(t, path, OpenStatusOld, true)
	u.isReading = true

	first := make([]byte, 4)
	if !u.Read(first, &h) {
		t.Fatalf("Read record 1: %s", h.GetIoMsg(80))
	}
	if string(first) != "abcd" {
		t.Fatalf("record 1 = %q, want abcd", first)
	}
	u.finishReadingRecord()

	second := make([]byte, 10)
	if !u.Read(second, &h) {
		t.Fatalf("Read record 2: %s", h.GetIoMsg(80))
	}
	if string(second) != "0123456789" {
		t.Fatalf("record 2 = %q, want 0123456789", second)
	}
	u.finishReadingRecord()

	if u.Read(first, &h); h.Iostat() != IostatEnd {
		t.Fatalf("Iostat after final record = %v, want IostatEnd", h.Iostat())
	}
	u.CloseUnit(CloseStatusKeep, &h)
}

func TestUnformattedReadOverrun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seq.dat")
	writeUnformattedRecords(t, path, []byte("abcd"))

	h := testHandler(t)
	u := openUnitFor(t, path, OpenStatusOld, true)
	u.isReading = true

	tooBig := make([]byte, 5)
	if u.Read(tooBig, &h) {
		t.Fatal("Read of 5 bytes from a 4-byte record succeeded")
	}
	if h.Iostat() != IostatRecordReadOverrun {
		t.Fatalf("Iostat = %v, want IostatRecordReadOverrun", h.Iostat())
	}
	u.CloseUnit(CloseStatusKeep, &h)
}

func TestUnformattedCorruptFooter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.dat")
	raw := make([]byte, 0, 32)
	frame := func(payload string) {
		var length [4]byte
		binary.LittleEndian.PutUint32(length[:], uint32(len(payload)))
		raw = append(raw, length[:]...)
		raw = append(raw, payload...)
		raw = append(raw, length[:]...)
	}
	frame("abcd")
	frame("wxyz")
	raw[len(raw)-4] = 9 // footer of record 2 no longer matches its header
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	h := testHandler(t)
	u := openUnitFor(t, path, OpenStatusOld, true)
	u.isReading = true

	one := make([]byte, 4)
	if !u.Read(one, &h) {
		t.Fatalf("Read record 1: %s", h.GetIoMsg(80))
	}
	u.finishReadingRecord()
	if u.Read(one, &h) {
		t.Fatal("Read of record with mismatched footer succeeded")
	}
	if h.Iostat() != IostatBadUnformattedRecord {
		t.Fatalf("Iostat = %v, want IostatBadUnformattedRecord", h.Iostat())
	}
	msg := h.GetIoMsg(120)
	for _, want := range []string{"record #2", "file offset 12"} {
		if !contains(msg, want) {
			t.Fatalf("IOMSG %q does not mention %q", msg, want)
		}
	}
	u.CloseUnit(CloseStatusKeep, &h)
}

func TestUnformattedBackspace(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seq.dat")
	writeUnformattedRecords(t, path, []byte("one"), []byte("two"), []byte("three"))

	h := testHandler(t)
	u := openUnitFor(t, path, OpenStatusOld, true)
	u.isReading = true

	buf := make([]byte, 3)
	for _, want := range []string{"one", "two"} {
		if !u.Read(buf, &h) {
			t.Fatalf("Read: %s", h.GetIoMsg(80))
		}
		if string(buf) != want {
			t.Fatalf("record = %q, want %q", buf, want)
		}
		u.finishReadingRecord()
	}
	if !u.BackspaceRecord(&h) {
		t.Fatalf("BackspaceRecord: %s", h.GetIoMsg(80))
	}
	if !u.Read(buf, &h) {
		t.Fatalf("Read after backspace: %s", h.GetIoMsg(80))
	}
	if string(buf) != "two" {
		t.Fatalf("record after backspace = %q, want two", buf)
	}
	u.CloseUnit(CloseStatusKeep, &h)
}

func TestFormattedRecordDiscovery(t *testing.T) {
	path := filepath.Join(t.TempDir(), "text.dat")
	if err := os.WriteFile(path, []byte("alpha\r\nbeta\ngamma"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	h := testHandler(t)
	u := openUnitFor(t, path, OpenStatusOld, false)
	u.isReading = true

	readRecord := func() string {
		t.Helper()
		var out []byte
		for {
			ch, ok := u.NextChar(&h)
			if !ok {
				t.Fatalf("NextChar: %s", h.GetIoMsg(80))
			}
			out = append(out, ch)
			u.HandleRelativePosition(1, &h)
			if u.PositionInRecord >= u.RecordLength.Or(0) {
				return string(out)
			}
		}
	}

	for i, want := range []string{"alpha", "beta", "gamma"} {
		if got := readRecord(); got != want {
			t.Fatalf("record %d = %q, want %q", i+1, got, want)
		}
		u.finishReadingRecord()
	}
	if _, ok := u.NextChar(&h); ok || h.Iostat() != IostatEnd {
		t.Fatalf("after final record: ok=%v iostat=%v, want end of file", ok, h.Iostat())
	}
	u.CloseUnit(CloseStatusKeep, &h)
}

func TestFormattedBackspace(t *testing.T) {
	path := filepath.Join(t.TempDir(), "text.dat")
	if err := os.WriteFile(path, []byte("first\nsecond\nthird\n"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	h := testHandler(t)
	u := openUnitFor(t, path, OpenStatusOld, false)
	u.isReading = true

	for i := 0; i < 2; i++ {
		u.beginSequentialInputRecord(&h)
		if h.InError() {
			t.Fatalf("begin record %d: %s", i+1, h.GetIoMsg(80))
		}
		u.finishReadingRecord()
	}
	if !u.BackspaceRecord(&h) {
		t.Fatalf("BackspaceRecord: %s", h.GetIoMsg(80))
	}
	u.beginSequentialInputRecord(&h)
	if got := u.RecordLength.Or(-1); got != int64(len("second")) {
		t.Fatalf("record length after backspace = %d, want %d", got, len("second"))
	}
	if ch, ok := u.NextChar(&h); !ok || ch != 's' {
		t.Fatalf("NextChar after backspace = %q/%v, want 's'", ch, ok)
	}
	u.CloseUnit(CloseStatusKeep, &h)
}

func TestRewind(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seq.dat")
	writeUnformattedRecords(t, path, []byte("abcd"), []byte("efgh"))

	h := testHandler(t)
	u := openUnitFor(t, path, OpenStatusOld, true)
	u.isReading = true

	buf := make([]byte, 4)
	u.Read(buf, &h)
	u.finishReadingRecord()
	u.Read(buf, &h)
	u.finishReadingRecord()
	if !u.Rewind(&h) {
		t.Fatalf("Rewind: %s", h.GetIoMsg(80))
	}
	if u.CurrentRecordNumber != 1 || u.OffsetInFile != 0 {
		t.Fatalf("after rewind: record %d offset %d, want 1/0", u.CurrentRecordNumber, u.OffsetInFile)
	}
	if !u.Read(buf, &h) || string(buf) != "abcd" {
		t.Fatalf("first record after rewind = %q (%s)", buf, h.GetIoMsg(80))
	}
	u.CloseUnit(CloseStatusKeep, &h)
}

func TestEndfileTruncates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seq.dat")
	writeUnformattedRecords(t, path, []byte("abcd"), []byte("efgh"))

	h := testHandler(t)
	u := openUnitFor(t, path, OpenStatusOld, true)
	u.isReading = true

	buf := make([]byte, 4)
	u.Read(buf, &h)
	u.finishReadingRecord()
	u.isReading = false
	if !u.Endfile(&h) {
		t.Fatalf("Endfile: %s", h.GetIoMsg(80))
	}
	u.CloseUnit(CloseStatusKeep, &h)

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if len(raw) != 12 {
		t.Fatalf("file size after ENDFILE = %d, want 12", len(raw))
	}
}

func TestFixedRecordWriteOverrun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fixed.dat")
	h := testHandler(t)
	u := openUnitFor(t, path, OpenStatusReplace, false)
	u.Access = AccessDirect
	u.IsFixedRecordLength = true
	u.RecordLength = Some(4)

	if u.Emit([]byte("12345"), &h) {
		t.Fatal("Emit of 5 bytes into a RECL=4 record succeeded")
	}
	if h.Iostat() != IostatRecordWriteOverrun {
		t.Fatalf("Iostat = %v, want IostatRecordWriteOverrun", h.Iostat())
	}
	u.CloseUnit(CloseStatusKeep, &h)
}

func TestEmitBlankFillsPositionGap(t *testing.T) {
	path := filepath.Join(t.TempDir(), "text.dat")
	h := testHandler(t)
	u := openUnitFor(t, path, OpenStatusReplace, false)

	if !u.Emit([]byte("ab"), &h) {
		t.Fatalf("Emit: %s", h.GetIoMsg(80))
	}
	u.SetPositionInRecord(5, &h)
	if !u.Emit([]byte("cd"), &h) {
		t.Fatalf("Emit after tab: %s", h.GetIoMsg(80))
	}
	u.AdvanceRecord(&h)
	u.CloseUnit(CloseStatusKeep, &h)

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(raw) != "ab   cd\n" {
		t.Fatalf("file = %q, want %q", raw, "ab   cd\n")
	}
}

func openDirectUnitFor(t *testing.T, path string, status OpenStatus, recl int64, unformatted bool) *ExternalFileUnit {
	t.Helper()
	u := openUnitFor(t, path, status, unformatted)
	u.Access = AccessDirect
	u.RecordLength = Some(recl)
	u.IsFixedRecordLength = true
	return u
}

func TestDirectAccessOutOfOrderRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "direct.dat")
	h := testHandler(t)
	u := openDirectUnitFor(t, path, OpenStatusReplace, 8, false)

	if !u.SetDirectRecord(2, &h) {
		t.Fatalf("SetDirectRecord(2): %s", h.GetIoMsg(80))
	}
	if !u.Emit([]byte("BBBB"), &h) || !u.AdvanceRecord(&h) {
		t.Fatalf("record 2 write: %s", h.GetIoMsg(80))
	}
	if !u.SetDirectRecord(1, &h) {
		t.Fatalf("SetDirectRecord(1): %s", h.GetIoMsg(80))
	}
	if !u.Emit([]byte("AAAA"), &h) || !u.AdvanceRecord(&h) {
		t.Fatalf("record 1 write: %s", h.GetIoMsg(80))
	}
	u.CloseUnit(CloseStatusKeep, &h)
	if h.InError() {
		t.Fatalf("CloseUnit: %s", h.GetIoMsg(80))
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(raw) != "AAAA    BBBB    " {
		t.Fatalf("file = %q, want %q", raw, "AAAA    BBBB    ")
	}

	r := openDirectUnitFor(t, path, OpenStatusOld, 8, false)
	r.isReading = true
	if !r.SetDirectRecord(2, &h) {
		t.Fatalf("SetDirectRecord(2) for input: %s", h.GetIoMsg(80))
	}
	var out []byte
	for r.PositionInRecord < 8 {
		ch, ok := r.NextChar(&h)
		if !ok {
			t.Fatalf("NextChar: %s", h.GetIoMsg(80))
		}
		out = append(out, ch)
		r.HandleRelativePosition(1, &h)
	}
	if string(out) != "BBBB    " {
		t.Fatalf("record 2 = %q, want %q", out, "BBBB    ")
	}
	r.CloseUnit(CloseStatusKeep, &h)
}

func TestDirectAccessRejectsRecordZero(t *testing.T) {
	path := filepath.Join(t.TempDir(), "direct.dat")
	h := testHandler(t)
	u := openDirectUnitFor(t, path, OpenStatusReplace, 8, false)
	if u.SetDirectRecord(0, &h) {
		t.Fatal("SetDirectRecord(0) succeeded")
	}
	if h.Iostat() != IostatBadDirectAccessRecord {
		t.Fatalf("Iostat = %v, want IostatBadDirectAccessRecord", h.Iostat())
	}
	u.CloseUnit(CloseStatusKeep, &h)
}

func TestDirectAccessUnformattedZeroFill(t *testing.T) {
	path := filepath.Join(t.TempDir(), "direct.dat")
	h := testHandler(t)
	u := openDirectUnitFor(t, path, OpenStatusReplace, 8, true)
	if !u.Emit([]byte("wxyz"), &h) || !u.AdvanceRecord(&h) {
		t.Fatalf("write: %s", h.GetIoMsg(80))
	}
	u.CloseUnit(CloseStatusKeep, &h)

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(raw) != "wxyz\x00\x00\x00\x00" {
		t.Fatalf("file = %q, want wxyz then four zero bytes", raw)
	}
}

func contains(s, sub string) bool {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return true
		}
	}
	return false
}
