package handlers

import (
  "errors"
  "net/http"
  "github.com/gin-gonic/gin"
  apperrors "github.com/avelir/psalter-backend/internal/pkg/errors"
)

type APIError struct {
  Message string `json:"message"`
  Code    string `json:"code,omitempty"`
}

type ErrorEnvelope struct {
  Error APIError `json:"error"`
}

func RespondError(c *gin.Context, status int, code string, err error) {
  msg := "unknown error"
  if err != nil {
    msg = err.Error()
  }
  c.JSON(status, ErrorEnvelope{
    Error: APIError{
      Message: msg,
      Code:    code,
    },
  })
}

func RespondOK(c *gin.Context, payload any) {
  c.JSON(http.StatusOK, payload)
}

// RespondDomainError maps the service sentinels onto the HTTP surface.
// ErrNoChapterAvailable is a 409 with its own code: the client treats it
// as "cycle fully in progress", not a failure.
func RespondDomainError(c *gin.Context, err error) {
  switch {
  case errors.Is(err, apperrors.ErrNotFound):
    RespondError(c, http.StatusNotFound, "not_found", err)
  case errors.Is(err, apperrors.ErrNoChapterAvailable):
    RespondError(c, http.StatusConflict, "no_chapter_available", err)
  case errors.Is(err, apperrors.ErrInvalidArgument):
    RespondError(c, http.StatusBadRequest, "invalid_argument", err)
  default:
    RespondError(c, http.StatusInternalServerError, "internal", err)
  }
}
