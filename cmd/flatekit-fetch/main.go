// Command flatekit-fetch downloads a compressed object over HTTP and
// streams the decompressed result to stdout. It exists to give
// internal/ranger's HTTP-range transport a concrete caller: a real CLI
// gzip/gunzip replacement is explicitly out of scope, so this stays
// thin (one positional URL, one optional kind flag) rather than
// chasing flag parity with the real thing.
package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"

	"github.com/corenko/flatekit"
	"github.com/corenko/flatekit/internal/ranger"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		log.Fatal(err)
	}
}

func run(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: flatekit-fetch [-kind raw|gzip|zlib] <url>")
	}

	kind := flatekit.Gzip
	url := args[0]
	if len(args) >= 3 && args[0] == "-kind" {
		k, err := parseKind(args[1])
		if err != nil {
			return err
		}
		kind = k
		url = args[2]
	}

	r := ranger.NewReader(context.Background(), url, http.DefaultTransport)

	size, err := r.Size()
	if err != nil {
		return fmt.Errorf("flatekit-fetch: %w", err)
	}
	log.Printf("flatekit-fetch: fetching %d bytes from %s", size, url)

	return flatekit.Decompress(kind, os.Stdout, &sequentialReader{r: r, size: size})
}

func parseKind(s string) (flatekit.Kind, error) {
	switch s {
	case "raw":
		return flatekit.Raw, nil
	case "gzip":
		return flatekit.Gzip, nil
	case "zlib":
		return flatekit.Zlib, nil
	default:
		return 0, fmt.Errorf("flatekit-fetch: unknown kind %q", s)
	}
}

// sequentialReader adapts ranger.Reader's io.ReaderAt into a plain
// io.Reader: flatekit.Decompress only ever needs a forward-sequential
// stream, and ReadAt already chases redirects and range requests for
// us, so there is no reason to stage the whole object on disk first.
type sequentialReader struct {
	r    *ranger.Reader
	size int64
	off  int64
}

func (s *sequentialReader) Read(p []byte) (int, error) {
	if s.off >= s.size {
		return 0, io.EOF
	}
	remaining := s.size - s.off
	if int64(len(p)) > remaining {
		p = p[:remaining]
	}
	n, err := s.r.ReadAt(p, s.off)
	s.off += int64(n)
	return n, err
}
