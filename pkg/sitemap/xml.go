package sitemap

import (
	"bytes"
	"encoding/xml"
	"fmt"

	"github.com/Sriram-PR/site-indexer/pkg/parse"
	"github.com/Sriram-PR/site-indexer/pkg/utils"
)

// Write-side structures. The read side lives in pkg/parse; encoding/xml cannot
// round-trip a prefixed element name, so the writer spells "xhtml:link" literally.

type xmlLink struct {
	Rel      string `xml:"rel,attr"`
	Hreflang string `xml:"hreflang,attr"`
	Href     string `xml:"href,attr"`
}

type xmlURL struct {
	Loc        string    `xml:"loc"`
	LastMod    string    `xml:"lastmod"`
	ChangeFreq string    `xml:"changefreq"`
	Priority   string    `xml:"priority"`
	Links      []xmlLink `xml:"xhtml:link"`
}

type xmlURLSet struct {
	XMLName xml.Name    `xml:"urlset"`
	XMLNS   string      `xml:"xmlns,attr"`
	XHTML   string      `xml:"xmlns:xhtml,attr"`
	Comment xml.Comment `xml:",comment"`
	URLs    []xmlURL    `xml:"url"`
}

type xmlSitemap struct {
	Loc     string `xml:"loc"`
	LastMod string `xml:"lastmod"`
}

type xmlSitemapIndex struct {
	XMLName  xml.Name     `xml:"sitemapindex"`
	XMLNS    string       `xml:"xmlns,attr"`
	Sitemaps []xmlSitemap `xml:"sitemap"`
}

func newURLSet(comment string, urls []xmlURL) *xmlURLSet {
	set := &xmlURLSet{
		XMLNS: parse.SitemapNamespace,
		XHTML: parse.XHTMLNamespace,
		URLs:  urls,
	}
	if comment != "" {
		set.Comment = xml.Comment(" " + comment + " ")
	}
	return set
}

// render serializes v with the XML declaration and a trailing newline
func render(v any) ([]byte, error) {
	body, err := xml.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("%w: marshal sitemap: %w", utils.ErrParsing, err)
	}
	var buf bytes.Buffer
	buf.Grow(len(xml.Header) + len(body) + 1)
	buf.WriteString(xml.Header)
	buf.Write(body)
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}
