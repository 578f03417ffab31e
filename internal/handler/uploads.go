package handler

import (
	"errors"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/linkmarket/internal/apperror"
	"github.com/iliyamo/linkmarket/internal/storage"
)

// FileSaver stores multipart uploads.
type FileSaver interface {
	Save(dir string, fh *multipart.FileHeader) (storage.StoredFile, error)
}

func isMultipart(c echo.Context) bool {
	return strings.HasPrefix(c.Request().Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm)
}

// formFile saves the named part when present. A missing part is not
// an error.
func formFile(c echo.Context, files FileSaver, field, dir string) (*storage.StoredFile, error) {
	if !isMultipart(c) {
		return nil, nil
	}
	fh, err := c.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, nil
		}
		return nil, apperror.BadRequest("invalid multipart upload")
	}
	saved, err := files.Save(dir, fh)
	if err != nil {
		if errors.Is(err, storage.ErrTooLarge) {
			return nil, &apperror.AppError{Code: apperror.CodeBadRequest, Message: "file too large", Status: http.StatusRequestEntityTooLarge}
		}
		return nil, apperror.Internal("store upload", err)
	}
	return &saved, nil
}
