package workload

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pierrec/lz4"
	"github.com/vmihailenco/msgpack"
)

// A bundle is a whole query set in one lz4-compressed msgpack file, so
// pregenerated test sets can be shipped between machines as a single
// artifact instead of a directory of thousands of .sql files.

const bundleMagic = "DIVB1"

// BundleExt marks bundle files; ReadSource dispatches on it.
const BundleExt = ".bundle"

func WriteBundle(w io.Writer, wl *Workload) error {
	if _, err := io.WriteString(w, bundleMagic); err != nil {
		return fmt.Errorf("writing magic: %w", err)
	}

	zw := lz4.NewWriter(w)
	if err := msgpack.NewEncoder(zw).Encode(wl); err != nil {
		return fmt.Errorf("msgpack encode failed: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("lz4 flush failed: %w", err)
	}
	return nil
}

func ReadBundle(r io.Reader) (*Workload, error) {
	magic := make([]byte, len(bundleMagic))
	if _, err := io.ReadFull(r, magic); err != nil {
		return nil, fmt.Errorf("reading magic: %w", err)
	}
	if string(magic) != bundleMagic {
		return nil, fmt.Errorf("not a workload bundle")
	}

	wl := &Workload{}
	if err := msgpack.NewDecoder(lz4.NewReader(r)).Decode(wl); err != nil {
		return nil, fmt.Errorf("msgpack decode failed: %w", err)
	}
	return wl, nil
}

// ReadSource loads a pregenerated query set from either a bundle file
// or a test-set directory.
func ReadSource(path string, templates int) (*Workload, error) {
	if strings.HasSuffix(path, BundleExt) {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()

		wl, err := ReadBundle(f)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		if wl.Templates != templates {
			return nil, fmt.Errorf("%s: bundle has %d templates, benchmark expects %d",
				path, wl.Templates, templates)
		}
		return wl, nil
	}

	return ReadTestSet(path, templates)
}
