package parser

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/target/scriptcheck/internal/errors"
)

// buildPDF writes a minimal uncompressed PDF with one Helvetica text page
// per entry; lines within an entry are separated by T*.
func buildPDF(pages ...string) []byte {
	objs := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"",
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>",
	}
	kids := make([]string, 0, len(pages))
	for _, text := range pages {
		pageObj := len(objs) + 1
		kids = append(kids, fmt.Sprintf("%d 0 R", pageObj))

		var content strings.Builder
		content.WriteString("BT /F1 12 Tf 72 720 Td 14 TL ")
		if text != "" {
			for j, line := range strings.Split(text, "\n") {
				if j > 0 {
					content.WriteString("T* ")
				}
				line = strings.NewReplacer(`\`, `\\`, "(", `\(`, ")", `\)`).Replace(line)
				fmt.Fprintf(&content, "(%s) Tj ", line)
			}
		}
		content.WriteString("ET")
		stream := content.String()

		objs = append(objs,
			fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] "+
				"/Resources << /Font << /F1 3 0 R >> >> /Contents %d 0 R >>", pageObj+1),
			fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(stream), stream),
		)
	}
	objs[1] = fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(pages))

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objs))
	for i, o := range objs {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, o)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(objs)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objs)+1, xref)
	return buf.Bytes()
}

func TestExtractPDFText(t *testing.T) {
	doc := buildPDF(
		"INT. OFFICE - DAY\nJohn types at his desk.",
		"",
		"EXT. ROOF - NIGHT\nMaya runs to the edge.",
	)
	out, err := ExtractPDFText(context.Background(), doc)
	require.NoError(t, err)

	assert.Equal(t, 3, out.Pages)
	assert.Equal(t, []int{2}, out.OCRPages)
	assert.Contains(t, out.Text, "INT. OFFICE - DAY")
	assert.Contains(t, out.Text, "Maya runs to the edge.")

	blocks := SplitScenes(out.Text)
	scenes, _ := CountBlocks(blocks)
	assert.Equal(t, 2, scenes)
}

func TestExtractPDFText_Rejects(t *testing.T) {
	_, err := ExtractPDFText(context.Background(), []byte("this is not a pdf at all, just some text"))
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))

	big := append([]byte("%PDF-1.4\n"), bytes.Repeat([]byte{' '}, MaxInputBytes)...)
	_, err = ExtractPDFText(context.Background(), big)
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
	assert.Contains(t, err.Error(), "size limit")
}

func TestOCRWarning(t *testing.T) {
	assert.Empty(t, OCRWarning(nil))
	assert.Equal(t, "Pages [2 5] appear to be scanned/image-only. OCR not yet implemented.", OCRWarning([]int{2, 5}))
}
