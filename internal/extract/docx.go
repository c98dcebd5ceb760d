package extract

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"regexp"
	"strings"
)

const (
	docxDefaultDocumentPath = "word/document.xml"
	contentTypesPath        = "[Content_Types].xml"
	docxMainContentType     = "application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"
)

var (
	// docxParagraph matches one <w:p ...>...</w:p> element.
	docxParagraph = regexp.MustCompile(`(?s)<w:p[ >].*?</w:p>`)
	// docxText matches the inner text of a <w:t> run, with or without attributes.
	docxText = regexp.MustCompile(`<w:t[^>]*>([^<]*)</w:t>`)
	// docxOverride matches the Override element declaring the main document part.
	docxOverride = regexp.MustCompile(`<Override[^>]*ContentType="` + regexp.QuoteMeta(docxMainContentType) + `"[^>]*>`)
	partName     = regexp.MustCompile(`PartName="/?([^"]+)"`)
)

// extractDOCX returns one line per non-empty paragraph. Runs inside a paragraph are joined
// without separators since Word splits words across runs freely.
func extractDOCX(content []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("extract DOCX: not a zip: %w", err)
	}

	docPath := docxDefaultDocumentPath
	if types, err := readZipEntry(zr, contentTypesPath); err == nil {
		if p := mainDocumentPath(types); p != "" {
			docPath = p
		}
	}
	docXML, err := readZipEntry(zr, docPath)
	if err != nil {
		return "", fmt.Errorf("extract DOCX: %w", err)
	}

	var lines []string
	for _, para := range docxParagraph.FindAllString(string(docXML), -1) {
		var line strings.Builder
		for _, m := range docxText.FindAllStringSubmatch(para, -1) {
			line.WriteString(m[1])
		}
		if s := strings.TrimSpace(unescapeXML(line.String())); s != "" {
			lines = append(lines, s)
		}
	}
	return strings.Join(lines, "\n"), nil
}

// mainDocumentPath finds the main document part in [Content_Types].xml, whatever the
// attribute order. Returns "" when it is not declared.
func mainDocumentPath(types []byte) string {
	override := docxOverride.Find(types)
	if override == nil {
		return ""
	}
	if m := partName.FindSubmatch(override); m != nil {
		return string(m[1])
	}
	return ""
}

func readZipEntry(zr *zip.Reader, name string) ([]byte, error) {
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", name, err)
		}
		defer rc.Close()
		data, err := io.ReadAll(rc)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		return data, nil
	}
	return nil, fmt.Errorf("%s not found", name)
}

var xmlEntities = strings.NewReplacer("&lt;", "<", "&gt;", ">", "&quot;", `"`, "&apos;", "'", "&amp;", "&")

func unescapeXML(s string) string {
	return xmlEntities.Replace(s)
}
