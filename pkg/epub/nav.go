package epub

import (
	"encoding/xml"
	"io"

	"github.com/Spaceecs/book-reader-client-sub000/pkg/htmlutil"
	"github.com/pkg/errors"
)

// Chapter is one entry of the table of contents. Its title is what bookmarks
// record as their chapter label.
type Chapter struct {
	Title    string    `json:"title"`
	Href     *string   `json:"href,omitempty"`
	Children []Chapter `json:"children,omitempty"`
}

// EPUB 3 navigation document. Link text is kept as inner XML because readers
// commonly wrap it in spans.
type navDocument struct {
	XMLName xml.Name `xml:"html"`
	Navs    []struct {
		Type string   `xml:"type,attr"`
		List *navList `xml:"ol"`
	} `xml:"body>nav"`
}

type navList struct {
	Items []struct {
		Link *struct {
			Href  string `xml:"href,attr"`
			Inner string `xml:",innerxml"`
		} `xml:"a"`
		Heading *struct {
			Inner string `xml:",innerxml"`
		} `xml:"span"`
		Children *navList `xml:"ol"`
	} `xml:"li"`
}

// EPUB 2 NCX.
type ncxDocument struct {
	XMLName   xml.Name      `xml:"ncx"`
	NavPoints []ncxNavPoint `xml:"navMap>navPoint"`
}

type ncxNavPoint struct {
	Label   string `xml:"navLabel>text"`
	Content struct {
		Src string `xml:"src,attr"`
	} `xml:"content"`
	Children []ncxNavPoint `xml:"navPoint"`
}

func decodeXML(r io.Reader, v interface{}) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return errors.WithStack(err)
	}
	return errors.WithStack(xml.Unmarshal(data, v))
}

func parseNavDocument(r io.Reader) ([]Chapter, error) {
	var doc navDocument
	if err := decodeXML(r, &doc); err != nil {
		return nil, err
	}
	for _, n := range doc.Navs {
		if n.Type == "toc" && n.List != nil {
			return n.List.chapters(), nil
		}
	}
	return nil, nil
}

func (l *navList) chapters() []Chapter {
	if l == nil {
		return nil
	}

	chapters := make([]Chapter, 0, len(l.Items))
	for _, li := range l.Items {
		var ch Chapter
		switch {
		case li.Link != nil:
			ch.Title = htmlutil.Label(li.Link.Inner)
			ch.Href = optionalHref(li.Link.Href)
		case li.Heading != nil:
			ch.Title = htmlutil.Label(li.Heading.Inner)
		}
		if ch.Title == "" {
			continue
		}
		ch.Children = li.Children.chapters()
		chapters = append(chapters, ch)
	}
	return chapters
}

func parseNCX(r io.Reader) ([]Chapter, error) {
	var doc ncxDocument
	if err := decodeXML(r, &doc); err != nil {
		return nil, err
	}
	return ncxChapters(doc.NavPoints), nil
}

func ncxChapters(points []ncxNavPoint) []Chapter {
	chapters := make([]Chapter, 0, len(points))
	for _, np := range points {
		title := htmlutil.Label(np.Label)
		if title == "" {
			continue
		}
		chapters = append(chapters, Chapter{
			Title:    title,
			Href:     optionalHref(np.Content.Src),
			Children: ncxChapters(np.Children),
		})
	}
	return chapters
}

func optionalHref(href string) *string {
	if href == "" {
		return nil
	}
	return &href
}
