package report

import (
	"bytes"
	"time"

	"github.com/klauspost/compress/zip"
)

// Archive packs the bundle attachments into a single deflated ZIP.
func Archive(b *Bundle, modified time.Time) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, a := range b.Attachments {
		w, err := zw.CreateHeader(&zip.FileHeader{
			Name:     a.Filename,
			Method:   zip.Deflate,
			Modified: modified,
		})
		if err != nil {
			return nil, err
		}
		if _, err := w.Write(a.Data); err != nil {
			return nil, err
		}
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
