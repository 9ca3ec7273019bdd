package epub

import (
	"archive/zip"
	"bytes"
	"io"
	"strings"
	"testing"
)

func TestBuild(t *testing.T) {
	data, err := Build(Book{
		ID:       "urn:calmiverse:story-1",
		Title:    "Le Petit Renard",
		Language: "fr",
		Chapters: []Chapter{
			{Title: "Chapitre 1", Text: "Il était une fois.\n\nUn petit renard."},
		},
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("zip.NewReader: %v", err)
	}

	if len(zr.File) == 0 || zr.File[0].Name != "mimetype" {
		t.Fatal("mimetype must be the first archive entry")
	}
	if zr.File[0].Method != zip.Store {
		t.Fatal("mimetype must be stored uncompressed")
	}

	files := map[string]string{}
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("open %s: %v", f.Name, err)
		}
		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			t.Fatalf("read %s: %v", f.Name, err)
		}
		files[f.Name] = string(content)
	}

	if files["mimetype"] != "application/epub+zip" {
		t.Fatalf("mimetype content = %q", files["mimetype"])
	}
	if !strings.Contains(files["META-INF/container.xml"], "OEBPS/content.opf") {
		t.Fatal("container.xml must reference the package document")
	}
	opf := files["OEBPS/content.opf"]
	if !strings.Contains(opf, "<dc:title>Le Petit Renard</dc:title>") {
		t.Fatalf("missing title in opf: %s", opf)
	}
	if !strings.Contains(opf, `<dc:language>fr</dc:language>`) {
		t.Fatal("missing language in opf")
	}
	chapter := files["OEBPS/chapter-01.xhtml"]
	if !strings.Contains(chapter, "<p>Il était une fois.</p>") || !strings.Contains(chapter, "<p>Un petit renard.</p>") {
		t.Fatalf("chapter paragraphs not rendered: %s", chapter)
	}
}

func TestBuildEscapesMarkup(t *testing.T) {
	data, err := Build(Book{
		Title:    "L'ami <imaginaire>",
		Chapters: []Chapter{{Text: "Un conte & une chanson."}},
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("zip.NewReader: %v", err)
	}
	for _, f := range zr.File {
		if f.Name != "OEBPS/chapter-01.xhtml" {
			continue
		}
		rc, _ := f.Open()
		content, _ := io.ReadAll(rc)
		rc.Close()
		if strings.Contains(string(content), "<imaginaire>") {
			t.Fatal("markup must be escaped in chapter body")
		}
		if !strings.Contains(string(content), "&amp;") {
			t.Fatal("ampersand must be escaped")
		}
	}
}

func TestBuildValidation(t *testing.T) {
	if _, err := Build(Book{Title: " ", Chapters: []Chapter{{Text: "x"}}}); err == nil {
		t.Fatal("expected error for empty title")
	}
	if _, err := Build(Book{Title: "T"}); err == nil {
		t.Fatal("expected error for missing chapters")
	}
}
