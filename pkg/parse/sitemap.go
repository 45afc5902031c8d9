package parse

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/Sriram-PR/site-indexer/pkg/utils"
)

// Sitemaps protocol namespaces
const (
	SitemapNamespace = "http://www.sitemaps.org/schemas/sitemap/0.9"
	XHTMLNamespace   = "http://www.w3.org/1999/xhtml"
)

// XMLLink is an <xhtml:link rel="alternate"> hreflang annotation. Matched by local name.
type XMLLink struct {
	Rel      string `xml:"rel,attr"`
	Hreflang string `xml:"hreflang,attr"`
	Href     string `xml:"href,attr"`
}

// XMLURL represents a <url> element in a sitemap
type XMLURL struct {
	Loc        string    `xml:"loc"`
	LastMod    string    `xml:"lastmod,omitempty"`
	ChangeFreq string    `xml:"changefreq,omitempty"`
	Priority   string    `xml:"priority,omitempty"`
	Links      []XMLLink `xml:"link"`
}

// PriorityValue parses the priority text. Missing priority is the protocol default 0.5.
func (u XMLURL) PriorityValue() (float64, error) {
	if u.Priority == "" {
		return 0.5, nil
	}
	return strconv.ParseFloat(u.Priority, 64)
}

// XMLURLSet represents a <urlset> element in a sitemap
type XMLURLSet struct {
	XMLName xml.Name `xml:"urlset"`
	URLs    []XMLURL `xml:"url"`
}

// XMLSitemap represents a <sitemap> element in a sitemap index file
type XMLSitemap struct {
	Loc     string `xml:"loc"`
	LastMod string `xml:"lastmod,omitempty"`
}

// XMLSitemapIndex represents a <sitemapindex> element
type XMLSitemapIndex struct {
	XMLName  xml.Name     `xml:"sitemapindex"`
	Sitemaps []XMLSitemap `xml:"sitemap"`
}

// Document is a parsed sitemap file of either kind
type Document struct {
	Root      string // "urlset" or "sitemapindex"
	Namespace string // Namespace of the root element
	URLSet    *XMLURLSet
	Index     *XMLSitemapIndex
}

// HasXMLDeclaration reports whether data opens with an <?xml ...?> declaration, ignoring a UTF-8 BOM
func HasXMLDeclaration(data []byte) bool {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	return bytes.HasPrefix(data, []byte("<?xml"))
}

// ParseDocument detects the root element and decodes the matching structure
func ParseDocument(data []byte) (*Document, error) {
	root, err := rootElement(data)
	if err != nil {
		return nil, err
	}
	doc := &Document{Root: root.Local, Namespace: root.Space}
	switch root.Local {
	case "urlset":
		doc.URLSet = &XMLURLSet{}
		err = xml.Unmarshal(data, doc.URLSet)
	case "sitemapindex":
		doc.Index = &XMLSitemapIndex{}
		err = xml.Unmarshal(data, doc.Index)
	default:
		return nil, fmt.Errorf("%w: unexpected root element <%s>", utils.ErrParsing, root.Local)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: decode <%s>: %w", utils.ErrParsing, root.Local, err)
	}
	return doc, nil
}

// ParseURLSet decodes a <urlset> document
func ParseURLSet(data []byte) (*XMLURLSet, error) {
	doc, err := ParseDocument(data)
	if err != nil {
		return nil, err
	}
	if doc.URLSet == nil {
		return nil, fmt.Errorf("%w: expected <urlset>, found <%s>", utils.ErrParsing, doc.Root)
	}
	return doc.URLSet, nil
}

// ParseSitemapIndex decodes a <sitemapindex> document
func ParseSitemapIndex(data []byte) (*XMLSitemapIndex, error) {
	doc, err := ParseDocument(data)
	if err != nil {
		return nil, err
	}
	if doc.Index == nil {
		return nil, fmt.Errorf("%w: expected <sitemapindex>, found <%s>", utils.ErrParsing, doc.Root)
	}
	return doc.Index, nil
}

func rootElement(data []byte) (xml.Name, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return xml.Name{}, fmt.Errorf("%w: document has no root element", utils.ErrParsing)
		}
		if err != nil {
			return xml.Name{}, fmt.Errorf("%w: %w", utils.ErrParsing, err)
		}
		if se, ok := tok.(xml.StartElement); ok {
			return se.Name, nil
		}
	}
}
