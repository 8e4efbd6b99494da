package schema

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"aqwari.net/xml/xmltree"
	"golang.org/x/net/html"

	"github.com/darianmavgo/garsql/converters/common"
)

// xsdNS is the XML Schema namespace URI.
const xsdNS = "http://www.w3.org/2001/XMLSchema"

// ReadFile parses the XSD fragment at path.
func ReadFile(table, path string) (*TableSchema, error) {
	doc, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema file: %w", err)
	}
	s, err := Parse(table, doc)
	return s, withSource(err, path)
}

// ReadFS parses the XSD fragment stored at name inside fsys.
func ReadFS(fsys fs.FS, table, name string) (*TableSchema, error) {
	doc, err := fs.ReadFile(fsys, name)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema file: %w", err)
	}
	s, err := Parse(table, doc)
	return s, withSource(err, name)
}

// Read parses an XSD fragment from r.
func Read(table string, r io.Reader) (*TableSchema, error) {
	doc, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema: %w", err)
	}
	return Parse(table, doc)
}

// Parse builds a TableSchema from an XSD fragment. Schema fragments are small,
// so the whole document is held as a tree; data files never are.
func Parse(table string, doc []byte) (*TableSchema, error) {
	root, err := xmltree.Parse(doc)
	if err != nil {
		return nil, &common.SchemaError{Table: table, Msg: "unparsable fragment", Err: err}
	}

	fields, err := readFields(root)
	if err != nil {
		return nil, &common.SchemaError{Table: table, Msg: err.Error()}
	}
	if len(fields) == 0 {
		return nil, &common.SchemaError{Table: table, Msg: "no xs:attribute declarations"}
	}

	rowEl := repeatingElement(root)
	if rowEl == nil {
		return nil, &common.SchemaError{Table: table, Msg: "no repeating element in any xs:sequence"}
	}
	tag := rowEl.Attr("", "name")
	if tag == "" {
		tag = localName(rowEl.Attr("", "ref"))
	}

	return &TableSchema{
		Name:   table,
		Entity: collectionTag(root),
		Tag:    tag,
		Doc:    documentation(rowEl),
		Fields: fields,
	}, nil
}

func withSource(err error, source string) error {
	if se, ok := err.(*common.SchemaError); ok && se.Source == "" {
		se.Source = source
	}
	return err
}

func isXSD(el *xmltree.Element, local string) bool {
	return el.Name.Space == xsdNS && el.Name.Local == local
}

// readFields collects every xs:attribute in document order.
func readFields(root *xmltree.Element) ([]Field, error) {
	attrs := root.SearchFunc(func(el *xmltree.Element) bool { return isXSD(el, "attribute") })
	fields := make([]Field, 0, len(attrs))
	for _, a := range attrs {
		name := a.Attr("", "name")
		if name == "" {
			return nil, fmt.Errorf("xs:attribute without a name (ref=%q)", a.Attr("", "ref"))
		}
		f := Field{
			Name:     name,
			Type:     localName(a.Attr("", "type")),
			Required: a.Attr("", "use") == "required",
			Doc:      documentation(a),
		}
		readRestriction(a, &f)
		fields = append(fields, f)
	}
	return fields, nil
}

// readRestriction fills type facets from an inline simpleType.
func readRestriction(attr *xmltree.Element, f *Field) {
	for _, r := range attr.SearchFunc(func(el *xmltree.Element) bool { return isXSD(el, "restriction") }) {
		if f.Type == "" {
			f.Type = localName(r.Attr("", "base"))
		}
		for i := range r.Children {
			facet := &r.Children[i]
			if facet.Name.Space != xsdNS {
				continue
			}
			n, err := strconv.Atoi(facet.Attr("", "value"))
			if err != nil {
				continue
			}
			switch facet.Name.Local {
			case "maxLength", "length":
				f.MaxLength = n
			case "totalDigits":
				f.TotalDigits = n
			}
		}
		return
	}
}

// repeatingElement finds the sequence member naming the row element directly,
// falling back to one that references an external declaration.
func repeatingElement(root *xmltree.Element) *xmltree.Element {
	seqs := root.SearchFunc(func(el *xmltree.Element) bool { return isXSD(el, "sequence") })
	for _, byAttr := range []string{"name", "ref"} {
		for _, seq := range seqs {
			for i := range seq.Children {
				el := &seq.Children[i]
				if isXSD(el, "element") && el.Attr("", byAttr) != "" {
					return el
				}
			}
		}
	}
	return nil
}

// collectionTag returns the name of the top-level element declaration.
func collectionTag(root *xmltree.Element) string {
	if isXSD(root, "element") {
		return root.Attr("", "name")
	}
	for i := range root.Children {
		el := &root.Children[i]
		if isXSD(el, "element") && el.Attr("", "name") != "" {
			return el.Attr("", "name")
		}
	}
	return ""
}

// documentation returns the first xs:annotation/xs:documentation directly
// attached to el.
func documentation(el *xmltree.Element) string {
	for i := range el.Children {
		ann := &el.Children[i]
		if !isXSD(ann, "annotation") {
			continue
		}
		for j := range ann.Children {
			doc := &ann.Children[j]
			if isXSD(doc, "documentation") {
				return strings.Join(strings.Fields(html.UnescapeString(string(doc.Content))), " ")
			}
		}
	}
	return ""
}

func localName(qname string) string {
	if i := strings.LastIndexByte(qname, ':'); i >= 0 {
		return qname[i+1:]
	}
	return qname
}
