package extractor

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/pgzip"
)

// node is the transient tree of one sample element. It is decoded per sample
// and dropped once the sample's records are emitted.
type node struct {
	XMLName  xml.Name
	Attrs    []xml.Attr `xml:",any,attr"`
	Text     string     `xml:",chardata"`
	Children []node     `xml:",any"`
}

func (n *node) attr(local string) (string, bool) {
	for _, a := range n.Attrs {
		if a.Name.Local == local {
			return a.Value, true
		}
	}
	return "", false
}

// attrsExcept returns the element's attributes minus the named one, or nil
// when nothing is left.
func (n *node) attrsExcept(local string) map[string]string {
	var out map[string]string
	for _, a := range n.Attrs {
		if a.Name.Local == local {
			continue
		}
		if out == nil {
			out = make(map[string]string, len(n.Attrs))
		}
		out[a.Name.Local] = a.Value
	}
	return out
}

// child returns the first direct child with the given name.
func (n *node) child(name xml.Name) *node {
	for i := range n.Children {
		if nameMatches(n.Children[i].XMLName, name) {
			return &n.Children[i]
		}
	}
	return nil
}

// walk visits every descendant of n with the given name in document order.
func (n *node) walk(name xml.Name, fn func(*node)) {
	for i := range n.Children {
		c := &n.Children[i]
		if nameMatches(c.XMLName, name) {
			fn(c)
		}
		c.walk(name, fn)
	}
}

// text returns the element's character data, or nil when it has none.
func (n *node) text() *string {
	if n == nil || n.Text == "" {
		return nil
	}
	s := n.Text
	return &s
}

func nameMatches(got, want xml.Name) bool {
	if got.Local != want.Local {
		return false
	}
	return want.Space == "" || got.Space == want.Space
}

// openGzip wraps r in a parallel gzip decompressor.
func openGzip(r io.Reader) (io.ReadCloser, error) {
	zr, err := pgzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("opening gzip stream: %w", err)
	}
	return zr, nil
}

// forEachSample scans the document in one forward pass and hands every
// element named sample to fn as a fully decoded subtree.
func forEachSample(ctx context.Context, r io.Reader, sample xml.Name, fn func(*node) error) error {
	dec := xml.NewDecoder(r)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading xml at offset %d: %w", dec.InputOffset(), err)
		}
		start, ok := tok.(xml.StartElement)
		if !ok || !nameMatches(start.Name, sample) {
			continue
		}
		var n node
		if err := dec.DecodeElement(&n, &start); err != nil {
			return fmt.Errorf("decoding %s element at offset %d: %w", sample.Local, dec.InputOffset(), err)
		}
		if err := fn(&n); err != nil {
			return err
		}
	}
}
