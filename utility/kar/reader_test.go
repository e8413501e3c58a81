// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package kar_test

import (
	"bytes"
	"io"
	"io/ioutil"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/devblok/orbiter/utility/kar"
	"golang.org/x/exp/mmap"
)

var (
	testString1 = "idunvovkjnreovmegihjbrqlkmfrjnb"
	testString2 = strings.Repeat("idunvovkjnreovmsdvwrvnervnreegihjbrqlkmfrjnb", 64)
)

func buildArchive(t *testing.T) []byte {
	builder, err := kar.NewBuilder(kar.Header{
		Author:      "devblok",
		DateCreated: time.Now().Unix(),
		Version:     1,
	})
	if err != nil {
		t.Fatal(err)
	}
	defer builder.Close()

	if err := builder.Add("test/test1.txt", strings.NewReader(testString1)); err != nil {
		t.Fatal(err)
	}
	if err := builder.Add("test/test2.txt", strings.NewReader(testString2)); err != nil {
		t.Fatal(err)
	}
	if err := builder.Add("test/test1.txt", strings.NewReader("again")); err != kar.ErrDuplicate {
		t.Fatalf("expected duplicate error, got %v", err)
	}
	if builder.Len() != 2 {
		t.Fatal("incorrect number of files present")
	}

	buf := bytes.NewBuffer([]byte{})
	written, err := builder.WriteTo(buf)
	if err != nil {
		t.Fatal(err)
	}
	if written != int64(buf.Len()) {
		t.Fatalf("reported %d bytes, wrote %d", written, buf.Len())
	}
	return buf.Bytes()
}

func readFileAndCompare(t *testing.T, ar *kar.Archive, name, expected string) {
	f, err := ar.Open(name)
	if err != nil {
		t.Fatal(err)
	}
	if f.Size() != int64(len(expected)) {
		t.Errorf("%s: size %d, expected %d", name, f.Size(), len(expected))
	}
	result, err := ioutil.ReadAll(f)
	if err != nil && err != io.EOF {
		t.Fatal(err)
	}
	if string(result) != expected {
		t.Errorf("%s: contents do not match up", name)
	}
}

func TestCreateAndRead(t *testing.T) {
	ar, err := kar.Open(bytes.NewReader(buildArchive(t)))
	if err != nil {
		t.Fatal(err)
	}

	readFileAndCompare(t, ar, "test/test1.txt", testString1)
	readFileAndCompare(t, ar, "test/test2.txt", testString2)

	if names := ar.Names(); len(names) != 2 || names[0] != "test/test1.txt" {
		t.Errorf("unexpected names %v", names)
	}
	if ar.Header().Author != "devblok" {
		t.Errorf("header not preserved: %+v", ar.Header())
	}
	if _, err := ar.Open("test/none.txt"); err != kar.ErrNotExist {
		t.Errorf("expected ErrNotExist, got %v", err)
	}
}

func TestOpenmmap(t *testing.T) {
	path := filepath.Join(t.TempDir(), "opentest.kar")
	if err := ioutil.WriteFile(path, buildArchive(t), 0o644); err != nil {
		t.Fatal(err)
	}

	r, err := mmap.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	ar, err := kar.Open(r)
	if err != nil {
		t.Fatal(err)
	}

	f, err := ar.ReadAll("test/test2.txt")
	if err != nil {
		t.Fatal(err)
	}
	if string(f) != testString2 {
		t.Error("result is not expected value")
	}
}

func TestOpenNotArchive(t *testing.T) {
	for _, data := range [][]byte{nil, []byte("KAR"), []byte("ZIP\x00aaaaaaaa"), []byte("KAR\x00\x10\x00\x00\x00\x00\x00\x00\x00short")} {
		if _, err := kar.Open(bytes.NewReader(data)); err != kar.ErrFileFormat {
			t.Errorf("%q: expected ErrFileFormat, got %v", data, err)
		}
	}
}
