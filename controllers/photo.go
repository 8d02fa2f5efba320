package controllers

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"community-help/services"

	"github.com/gin-gonic/gin"
)

// MaxUploadBytes caps a multipart request carrying a photo.
const MaxUploadBytes = 10 << 20

// parseMultipart reads the form under the upload cap.
func parseMultipart(c *gin.Context) bool {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxUploadBytes)
	if err := c.Request.ParseMultipartForm(MaxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "Upload must be at most 10 MiB"})
			return false
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid multipart form"})
		return false
	}
	return true
}

// formPhoto opens the file in field. A missing file yields a nil photo so the
// service reports which field is required.
func formPhoto(c *gin.Context, field string) (*services.Photo, func(), error) {
	fh, err := c.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, func() {}, nil
	}
	if err != nil {
		return nil, func() {}, err
	}
	f, err := fh.Open()
	if err != nil {
		return nil, func() {}, err
	}
	contentType, err := photoContentType(fh, f)
	if err != nil {
		f.Close()
		return nil, func() {}, err
	}
	return &services.Photo{Reader: f, ContentType: contentType}, func() { f.Close() }, nil
}

// photoContentType trusts the part header unless it is missing or generic,
// in which case the first bytes are sniffed.
func photoContentType(fh *multipart.FileHeader, f multipart.File) (string, error) {
	ct := strings.TrimSpace(fh.Header.Get("Content-Type"))
	if ct != "" && ct != "application/octet-stream" {
		return ct, nil
	}
	head := make([]byte, 512)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return "", err
	}
	return http.DetectContentType(head[:n]), nil
}
