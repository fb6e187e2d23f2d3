package epub

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOPF_Basic(t *testing.T) {
	t.Parallel()
	opfXML := `<?xml version="1.0" encoding="UTF-8"?>
<package xmlns="http://www.idpf.org/2007/opf" version="2.0" unique-identifier="id">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/" xmlns:opf="http://www.idpf.org/2007/opf">
    <dc:title>The Left Hand of Darkness</dc:title>
    <dc:creator opf:role="aut">Ursula K. Le Guin</dc:creator>
    <dc:creator opf:role="ill">Someone Else</dc:creator>
    <dc:language>en</dc:language>
  </metadata>
  <manifest>
    <item id="ncx" href="toc.ncx" media-type="application/x-dtbncx+xml"/>
    <item id="c1" href="text/ch1.xhtml" media-type="application/xhtml+xml"/>
    <item id="c2" href="text/ch2.xhtml" media-type="application/xhtml+xml"/>
  </manifest>
  <spine toc="ncx">
    <itemref idref="c2"/>
    <itemref idref="c1"/>
    <itemref idref="missing"/>
  </spine>
</package>`

	opf, err := ParseOPF("OEBPS/content.opf", strings.NewReader(opfXML))
	require.NoError(t, err)

	assert.Equal(t, "The Left Hand of Darkness", opf.Title)
	assert.Equal(t, []string{"Ursula K. Le Guin"}, opf.Authors)
	assert.Equal(t, "en", opf.Language)
	assert.Equal(t, []string{"OEBPS/text/ch2.xhtml", "OEBPS/text/ch1.xhtml"}, opf.Spine)
	assert.Equal(t, "OEBPS/toc.ncx", opf.NCXHref)
	assert.Empty(t, opf.NavHref)
}

func TestParseOPF_MainTitleAndRefinedRoles(t *testing.T) {
	t.Parallel()
	opfXML := `<?xml version="1.0" encoding="UTF-8"?>
<package xmlns="http://www.idpf.org/2007/opf" version="3.0">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/">
    <dc:title id="title-sub">Book One of the Stormlight Archive</dc:title>
    <dc:title id="title-main">The Way of Kings</dc:title>
    <meta refines="#title-main" property="title-type">main</meta>
    <dc:creator id="c1">Brandon Sanderson</dc:creator>
    <meta refines="#c1" property="role">aut</meta>
    <dc:creator id="c2">Michael Kramer</dc:creator>
    <meta refines="#c2" property="role">nrt</meta>
  </metadata>
  <manifest>
    <item id="nav" href="nav.xhtml" media-type="application/xhtml+xml" properties="nav"/>
  </manifest>
</package>`

	opf, err := ParseOPF("content.opf", strings.NewReader(opfXML))
	require.NoError(t, err)

	assert.Equal(t, "The Way of Kings", opf.Title)
	assert.Equal(t, []string{"Brandon Sanderson"}, opf.Authors)
	assert.Equal(t, "nav.xhtml", opf.NavHref)
}

func TestParseOPF_Malformed(t *testing.T) {
	t.Parallel()
	_, err := ParseOPF("content.opf", strings.NewReader("<package><metadata>"))
	require.Error(t, err)
}
