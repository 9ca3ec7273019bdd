// Package epub assembles minimal EPUB 3 documents from story text.
package epub

import (
	"archive/zip"
	"bytes"
	"fmt"
	"html"
	"strings"
	"time"
)

// Book is the input for an EPUB build.
type Book struct {
	ID       string
	Title    string
	Author   string
	Language string
	Chapters []Chapter
}

// Chapter is one XHTML content document.
type Chapter struct {
	Title string
	Text  string
}

const containerXML = `<?xml version="1.0" encoding="UTF-8"?>
<container version="1.0" xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
  <rootfiles>
    <rootfile full-path="OEBPS/content.opf" media-type="application/oebps-package+xml"/>
  </rootfiles>
</container>
`

// Build produces the EPUB container bytes. The mimetype entry is written
// first and uncompressed, as the format requires.
func Build(book Book) ([]byte, error) {
	if strings.TrimSpace(book.Title) == "" {
		return nil, fmt.Errorf("epub: title is required")
	}
	if len(book.Chapters) == 0 {
		return nil, fmt.Errorf("epub: at least one chapter is required")
	}
	if book.Language == "" {
		book.Language = "fr"
	}
	if book.ID == "" {
		book.ID = fmt.Sprintf("urn:calmiverse:%d", time.Now().UnixNano())
	}

	buf := &bytes.Buffer{}
	zw := zip.NewWriter(buf)

	mime, err := zw.CreateHeader(&zip.FileHeader{Name: "mimetype", Method: zip.Store})
	if err != nil {
		return nil, fmt.Errorf("epub: create mimetype: %w", err)
	}
	if _, err := mime.Write([]byte("application/epub+zip")); err != nil {
		return nil, fmt.Errorf("epub: write mimetype: %w", err)
	}

	entries := []struct {
		name string
		data string
	}{
		{"META-INF/container.xml", containerXML},
		{"OEBPS/content.opf", packageDoc(book)},
		{"OEBPS/nav.xhtml", navDoc(book)},
	}
	for i, ch := range book.Chapters {
		entries = append(entries, struct {
			name string
			data string
		}{chapterPath(i), chapterDoc(book, ch)})
	}

	for _, entry := range entries {
		w, err := zw.Create(entry.name)
		if err != nil {
			return nil, fmt.Errorf("epub: create %s: %w", entry.name, err)
		}
		if _, err := w.Write([]byte(entry.data)); err != nil {
			return nil, fmt.Errorf("epub: write %s: %w", entry.name, err)
		}
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("epub: close archive: %w", err)
	}
	return buf.Bytes(), nil
}

func chapterPath(i int) string {
	return fmt.Sprintf("OEBPS/chapter-%02d.xhtml", i+1)
}

func packageDoc(book Book) string {
	var manifest, spine strings.Builder
	for i := range book.Chapters {
		id := fmt.Sprintf("chapter-%02d", i+1)
		fmt.Fprintf(&manifest, `    <item id=%q href="%s.xhtml" media-type="application/xhtml+xml"/>`+"\n", id, id)
		fmt.Fprintf(&spine, `    <itemref idref=%q/>`+"\n", id)
	}

	author := book.Author
	if author == "" {
		author = "Calmiverse"
	}

	return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<package xmlns="http://www.idpf.org/2007/opf" version="3.0" unique-identifier="pub-id">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/">
    <dc:identifier id="pub-id">%s</dc:identifier>
    <dc:title>%s</dc:title>
    <dc:creator>%s</dc:creator>
    <dc:language>%s</dc:language>
    <meta property="dcterms:modified">%s</meta>
  </metadata>
  <manifest>
    <item id="nav" href="nav.xhtml" media-type="application/xhtml+xml" properties="nav"/>
%s  </manifest>
  <spine>
%s  </spine>
</package>
`,
		html.EscapeString(book.ID),
		html.EscapeString(book.Title),
		html.EscapeString(author),
		html.EscapeString(book.Language),
		time.Now().UTC().Format("2006-01-02T15:04:05Z"),
		manifest.String(),
		spine.String(),
	)
}

func navDoc(book Book) string {
	var items strings.Builder
	for i, ch := range book.Chapters {
		title := ch.Title
		if title == "" {
			title = fmt.Sprintf("Chapitre %d", i+1)
		}
		fmt.Fprintf(&items, `      <li><a href="chapter-%02d.xhtml">%s</a></li>`+"\n", i+1, html.EscapeString(title))
	}

	return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<html xmlns="http://www.w3.org/1999/xhtml" xmlns:epub="http://www.idpf.org/2007/ops" lang=%q>
<head><title>%s</title></head>
<body>
  <nav epub:type="toc">
    <ol>
%s    </ol>
  </nav>
</body>
</html>
`, book.Language, html.EscapeString(book.Title), items.String())
}

func chapterDoc(book Book, ch Chapter) string {
	title := ch.Title
	if title == "" {
		title = book.Title
	}

	var body strings.Builder
	for _, para := range strings.Split(ch.Text, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		fmt.Fprintf(&body, "  <p>%s</p>\n", html.EscapeString(para))
	}

	return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<html xmlns="http://www.w3.org/1999/xhtml" lang=%q>
<head><title>%s</title></head>
<body>
  <h1>%s</h1>
%s</body>
</html>
`, book.Language, html.EscapeString(title), html.EscapeString(title), body.String())
}
