package handler

import (
	"errors"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/linkmarket/internal/apperror"
	"github.com/iliyamo/linkmarket/internal/storage"
)

// FileOpener reads stored uploads.
type FileOpener interface {
	Open(rel string) (*os.File, int64, error)
}

type FileHandler struct {
	files FileOpener
}

func NewFileHandler(files FileOpener) *FileHandler { return &FileHandler{files: files} }

// Serve streams /files/<path> with a content type picked from the
// extension. Paths escaping the upload root are rejected.
func (h *FileHandler) Serve(c echo.Context) error {
	rel, err := url.PathUnescape(c.Param("*"))
	if err != nil {
		return apperror.BadRequest("invalid file path")
	}
	f, size, err := h.files.Open(rel)
	switch {
	case errors.Is(err, storage.ErrInvalidPath):
		return apperror.BadRequest("invalid file path")
	case errors.Is(err, storage.ErrFileNotFound):
		return apperror.NotFound("file")
	case err != nil:
		return apperror.Internal("open file", err)
	}
	defer f.Close()

	res := c.Response()
	res.Header().Set(echo.HeaderContentType, storage.ContentType(rel))
	res.Header().Set(echo.HeaderContentLength, strconv.FormatInt(size, 10))
	res.Header().Set(echo.HeaderContentDisposition, `inline; filename="`+path.Base(rel)+`"`)
	res.Header().Set("X-Content-Type-Options", "nosniff")
	res.WriteHeader(http.StatusOK)
	_, err = io.Copy(res, f)
	return err
}
