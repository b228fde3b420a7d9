package api

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/yakoovad/ctf-platform/internal/files"
	"github.com/yakoovad/ctf-platform/internal/service"
	"github.com/yakoovad/ctf-platform/pkg/logger"
	"go.uber.org/zap"
)

// DownloadFile streams a challenge attachment from the file origin.
// Anchor tags cannot send headers, so the token may also come as a query parameter.
func (h *Handler) DownloadFile(e echo.Context) error {
	l := logger.FromContext(e.Request().Context())

	ref := e.QueryParam("file")
	token := sessionToken(e, h.cookie.Name)
	if token == "" {
		token = e.QueryParam("token")
	}
	if ref == "" || token == "" {
		return transportError(e, service.NewError(service.ErrorCodeValidation, "Missing token or file reference"))
	}

	if _, ok := IdentityFromContext(e); !ok {
		if _, ok := h.sessions.Resolve(e.Request().Context(), token); !ok {
			return transportError(e, service.NewError(service.ErrorCodeUnauthorized, "Invalid or expired session"))
		}
	}

	path, err := files.ValidateRef(ref)
	if err != nil {
		return transportError(e, service.NewError(service.ErrorCodeValidation, "Invalid file reference"))
	}

	obj, err := h.files.Fetch(e.Request().Context(), path)
	if err != nil {
		l.Error("failed to fetch file from origin", zap.String("file", path), zap.Error(err))
		return transportError(e, service.NewError(service.ErrorCodeInternal, "Failed to download file"))
	}
	defer obj.Body.Close()

	header := e.Response().Header()
	header.Set(echo.HeaderContentDisposition, obj.ContentDisposition)
	if obj.ContentLength > 0 {
		header.Set(echo.HeaderContentLength, strconv.FormatInt(obj.ContentLength, 10))
	}

	return e.Stream(http.StatusOK, obj.ContentType, obj.Body)
}
