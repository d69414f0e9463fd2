package paloalto

import (
	"encoding/xml"
	"strings"

	"fwlog/pkg/models"
)

// node is a generic XML element.
type node struct {
	XMLName  xml.Name
	Attrs    []xml.Attr `xml:",any,attr"`
	Text     string     `xml:",chardata"`
	Children []*node    `xml:",any"`
}

func parseXML(data []byte) (*node, error) {
	var root node
	if err := xml.Unmarshal(data, &root); err != nil {
		return nil, err
	}
	return &root, nil
}

func (n *node) attr(name string) string {
	for _, a := range n.Attrs {
		if a.Name.Local == name {
			return a.Value
		}
	}
	return ""
}

// findAll resolves a descendant path like "log/logs/entry": every element
// below n named after the first segment, then child steps for the rest.
func (n *node) findAll(path string) []*node {
	steps := strings.Split(path, "/")
	var current []*node
	n.walk(func(d *node) {
		if d.XMLName.Local == steps[0] {
			current = append(current, d)
		}
	})
	for _, step := range steps[1:] {
		var next []*node
		for _, c := range current {
			for _, child := range c.Children {
				if child.XMLName.Local == step {
					next = append(next, child)
				}
			}
		}
		current = next
	}
	return current
}

// walk visits descendants of n (not n itself) in document order.
func (n *node) walk(fn func(*node)) {
	for _, c := range n.Children {
		fn(c)
		c.walk(fn)
	}
}

// findText returns the trimmed text of the first element matching path.
func (n *node) findText(path string) string {
	if found := n.findAll(path); len(found) > 0 {
		return strings.TrimSpace(found[0].Text)
	}
	return ""
}

// record converts an entry element into an ordered record: leaf children
// become string values, nested children become nested records, and
// attributes are kept under "@name".
func (n *node) record() *models.Record {
	rec := models.NewRecord()
	for _, a := range n.Attrs {
		rec.Set("@"+a.Name.Local, a.Value)
	}
	for _, c := range n.Children {
		if len(c.Children) > 0 {
			rec.Set(c.XMLName.Local, c.record())
			continue
		}
		rec.Set(c.XMLName.Local, strings.TrimSpace(c.Text))
	}
	return rec
}
