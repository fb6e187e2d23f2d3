package epub

import (
	"encoding/xml"
	"io"
	"path"
	"strings"

	"github.com/pkg/errors"
)

type OPF struct {
	Title    string
	Authors  []string
	Language string
	// Spine lists content documents in reading order, relative to the archive
	// root.
	Spine   []string
	NavHref string
	NCXHref string
}

type Package struct {
	XMLName  xml.Name `xml:"package"`
	Version  string   `xml:"version,attr"`
	Metadata struct {
		Title []struct {
			Text string `xml:",chardata"`
			ID   string `xml:"id,attr"`
		} `xml:"title"`
		Creator []struct {
			Text string `xml:",chardata"`
			ID   string `xml:"id,attr"`
			Role string `xml:"role,attr"`
		} `xml:"creator"`
		Language string `xml:"language"`
		Meta     []struct {
			Text     string `xml:",chardata"`
			Refines  string `xml:"refines,attr"`
			Property string `xml:"property,attr"`
		} `xml:"meta"`
	} `xml:"metadata"`
	Manifest struct {
		Item []struct {
			ID         string `xml:"id,attr"`
			Href       string `xml:"href,attr"`
			MediaType  string `xml:"media-type,attr"`
			Properties string `xml:"properties,attr"`
		} `xml:"item"`
	} `xml:"manifest"`
	Spine struct {
		Toc     string `xml:"toc,attr"`
		Itemref []struct {
			Idref string `xml:"idref,attr"`
		} `xml:"itemref"`
	} `xml:"spine"`
}

func ParseOPF(filename string, r io.Reader) (*OPF, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	pkg := &Package{}
	err = xml.Unmarshal(b, pkg)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	// Manifest hrefs are relative to the OPF file.
	basePath := path.Dir(filename)
	if basePath == "." {
		basePath = ""
	} else {
		basePath += "/"
	}

	// EPUB 3 attaches title-type and role through refining meta elements.
	metaProperties := map[string]map[string]string{}
	for _, m := range pkg.Metadata.Meta {
		if m.Refines == "" {
			continue
		}
		key := strings.TrimPrefix(m.Refines, "#")
		if _, ok := metaProperties[key]; !ok {
			metaProperties[key] = map[string]string{}
		}
		metaProperties[key][m.Property] = strings.TrimSpace(m.Text)
	}

	title := ""
	for _, t := range pkg.Metadata.Title {
		if t.ID != "" && metaProperties[t.ID]["title-type"] == "main" {
			title = t.Text
			break
		}
	}
	if title == "" && len(pkg.Metadata.Title) > 0 {
		title = pkg.Metadata.Title[0].Text
	}

	authors := []string{}
	for _, creator := range pkg.Metadata.Creator {
		role := creator.Role
		if role == "" && creator.ID != "" {
			role = metaProperties[creator.ID]["role"]
		}
		name := strings.TrimSpace(creator.Text)
		if name == "" {
			continue
		}
		if role == "aut" || role == "" || len(pkg.Metadata.Creator) == 1 {
			authors = append(authors, name)
		}
	}

	hrefs := map[string]string{}
	opf := &OPF{
		Title:    strings.TrimSpace(title),
		Authors:  authors,
		Language: strings.TrimSpace(pkg.Metadata.Language),
	}
	for _, item := range pkg.Manifest.Item {
		hrefs[item.ID] = basePath + item.Href
		if opf.NavHref == "" && hasProperty(item.Properties, "nav") {
			opf.NavHref = basePath + item.Href
		}
	}
	if pkg.Spine.Toc != "" {
		opf.NCXHref = hrefs[pkg.Spine.Toc]
	}
	for _, ref := range pkg.Spine.Itemref {
		if href, ok := hrefs[ref.Idref]; ok {
			opf.Spine = append(opf.Spine, href)
		}
	}

	return opf, nil
}

func hasProperty(properties, want string) bool {
	for _, p := range strings.Fields(properties) {
		if p == want {
			return true
		}
	}
	return false
}
