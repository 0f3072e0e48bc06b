package extract

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"regexp"
	"strings"
)

const docxDocumentPath = "word/document.xml"

// textRun matches <w:t>...</w:t> nodes, including ones with attributes such as
// xml:space="preserve". Scanning text runs directly keeps content readable
// regardless of paragraph and run attributes.
var textRun = regexp.MustCompile(`<w:t[^>]*>([^<]*)</w:t>`)

func extractDOCX(content []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("extract DOCX: not a zip: %w", err)
	}

	var docXML []byte
	for _, f := range zr.File {
		if f.Name != docxDocumentPath {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", fmt.Errorf("extract DOCX: open %s: %w", f.Name, err)
		}
		docXML, err = io.ReadAll(rc)
		_ = rc.Close()
		if err != nil {
			return "", fmt.Errorf("extract DOCX: read %s: %w", f.Name, err)
		}
		break
	}
	if docXML == nil {
		return "", fmt.Errorf("extract DOCX: %s not found", docxDocumentPath)
	}

	runs := textRun.FindAllSubmatch(docXML, -1)
	var b strings.Builder
	for i, run := range runs {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.Write(bytes.TrimSpace(run[1]))
	}
	return strings.TrimSpace(b.String()), nil
}
