package keyrepo

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"

	"github.com/beevik/etree"

	"github.com/dmitrijs2005/keyrepo/internal/common"
)

// Document is one unit of key material: an XML tree with a single root
// element. The repository never looks inside it.
type Document struct {
	doc *etree.Document
}

// NewDocument wraps root in a document carrying an XML declaration. A nil
// root yields a document the repository refuses to store.
func NewDocument(root *etree.Element) *Document {
	d := etree.NewDocument()
	d.CreateProcInst("xml", `version="1.0" encoding="utf-8"`)
	if root != nil {
		d.SetRoot(root)
	}
	return &Document{doc: d}
}

// ParseDocument parses a well-formed XML payload. Errors wrap
// common.ErrorMalformedDocument.
func ParseDocument(data []byte) (*Document, error) {
	if err := checkWellFormed(data); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrorMalformedDocument, err)
	}

	d := etree.NewDocument()
	if err := d.ReadFromBytes(data); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrorMalformedDocument, err)
	}
	if d.Root() == nil {
		return nil, fmt.Errorf("%w: no root element", common.ErrorMalformedDocument)
	}
	return &Document{doc: d}, nil
}

// Root returns the root element, or nil for an empty document. Changes to it
// are visible to later Bytes calls.
func (d *Document) Root() *etree.Element {
	if d == nil || d.doc == nil {
		return nil
	}
	return d.doc.Root()
}

// IsEmpty reports whether the document has no root element.
func (d *Document) IsEmpty() bool {
	return d.Root() == nil
}

// ID returns the root's id attribute, or "" when it has none.
func (d *Document) ID() string {
	if r := d.Root(); r != nil {
		return r.SelectAttrValue("id", "")
	}
	return ""
}

// Bytes serialises the document. An empty document is an error.
func (d *Document) Bytes() ([]byte, error) {
	if d.IsEmpty() {
		return nil, common.ErrorNilDocument
	}
	return d.doc.WriteToBytes()
}

// checkWellFormed walks every token so mismatched or unclosed elements are
// reported before the tree is built.
func checkWellFormed(data []byte) error {
	dec := xml.NewDecoder(bytes.NewReader(data))
	for {
		_, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
	}
}
