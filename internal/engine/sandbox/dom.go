package sandbox

import (
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
)

// Document is the script-visible view of a rendered page.
type Document struct {
	doc *goquery.Document

	mu      sync.Mutex
	changes []DOMChange
}

func NewDocument(doc *goquery.Document) *Document {
	return &Document{doc: doc}
}

// ParseDocument builds a Document from markup.
func ParseDocument(html string) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}
	return NewDocument(doc), nil
}

// Query returns the elements matching a CSS selector. Invalid selectors match
// nothing.
func (d *Document) Query(selector string) (elems []*Element) {
	defer func() {
		if recover() != nil {
			elems = nil
		}
	}()
	d.doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		elems = append(elems, &Element{sel: s, doc: d, selector: selector})
	})
	return elems
}

func (d *Document) Title() string {
	return strings.TrimSpace(d.doc.Find("title").First().Text())
}

func (d *Document) SetTitle(title string) {
	t := d.doc.Find("title").First()
	if t.Length() == 0 {
		d.doc.Find("head").AppendHtml("<title></title>")
		t = d.doc.Find("title").First()
	}
	t.SetText(title)
	d.record(DOMChange{Type: "set_title", Selector: "title", Value: title})
}

func (d *Document) HTML() (string, error) {
	return d.doc.Html()
}

// Changes returns the mutations made so far.
func (d *Document) Changes() []DOMChange {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]DOMChange(nil), d.changes...)
}

func (d *Document) record(c DOMChange) {
	d.mu.Lock()
	d.changes = append(d.changes, c)
	d.mu.Unlock()
}

// Element is one matched node.
type Element struct {
	sel      *goquery.Selection
	doc      *Document
	selector string
}

func (e *Element) TagName() string {
	return strings.ToUpper(goquery.NodeName(e.sel))
}

func (e *Element) ID() string {
	return e.sel.AttrOr("id", "")
}

func (e *Element) ClassName() string {
	return e.sel.AttrOr("class", "")
}

func (e *Element) TextContent() string {
	return e.sel.Text()
}

func (e *Element) GetAttribute(name string) string {
	return e.sel.AttrOr(name, "")
}

func (e *Element) SetAttribute(name, value string) {
	e.sel.SetAttr(name, value)
	e.doc.record(DOMChange{Type: "set_attribute", Selector: e.selector, Property: name, Value: value})
}

func (e *Element) SetText(text string) {
	e.sel.SetText(text)
	e.doc.record(DOMChange{Type: "set_text", Selector: e.selector, Value: text})
}

func (e *Element) Remove() {
	e.sel.Remove()
	e.doc.record(DOMChange{Type: "remove", Selector: e.selector})
}
