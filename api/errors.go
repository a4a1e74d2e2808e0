package api

import (
	"errors"
	"net/http"

	"aethersecure/auth"
	"aethersecure/crypto"
	"aethersecure/stego"
	"aethersecure/storage"
	"aethersecure/vault"

	"github.com/sirupsen/logrus"
)

// DetailDecryptionFailed is the only thing a client learns about a failed decryption.
const DetailDecryptionFailed = "wrong key or corrupted data"

// requestError is a client mistake with a message safe to echo back.
type requestError struct {
	status int
	detail string
}

func (e *requestError) Error() string { return e.detail }

func badRequest(detail string) error {
	return &requestError{status: http.StatusBadRequest, detail: detail}
}

type errorMapping struct {
	target error
	status int
	detail string
}

// errorMappings is checked in order with errors.Is.
var errorMappings = []errorMapping{
	{crypto.ErrDecryptionFailed, http.StatusBadRequest, DetailDecryptionFailed},
	{crypto.ErrMalformedBlob, http.StatusBadRequest, "malformed encrypted file"},
	{crypto.ErrInvalidShift, http.StatusBadRequest, "caesar shift must be between 1 and 25"},
	{crypto.ErrEmptyKey, http.StatusBadRequest, "xor key is required"},
	{crypto.ErrInvalidKey, http.StatusBadRequest, "invalid key"},
	{stego.ErrPayloadTooLarge, http.StatusBadRequest, "message is too long for this image"},
	{stego.ErrNoPayloadFound, http.StatusBadRequest, "no hidden message found in image"},
	{stego.ErrUnsupportedText, http.StatusBadRequest, "message contains unsupported characters"},
	{stego.ErrUnsupportedImage, http.StatusUnsupportedMediaType, "image must be a lossless PNG, BMP or TIFF"},
	{storage.ErrMessageUnavailable, http.StatusNotFound, "message not found or unauthorized"},
	{storage.ErrAccountExists, http.StatusConflict, "username already exists"},
	{storage.ErrIdempotencyConflict, http.StatusConflict, "idempotency key already used for a different message"},
	{storage.ErrNotFound, http.StatusNotFound, "not found"},
	{storage.ErrUnavailable, http.StatusServiceUnavailable, "storage unavailable"},
	{vault.ErrUnknownRecipient, http.StatusNotFound, "recipient not found"},
	{auth.ErrInvalidCredentials, http.StatusUnauthorized, "incorrect username or password"},
	{auth.ErrInvalidToken, http.StatusUnauthorized, "could not validate credentials"},
	{auth.ErrInvalidUsername, http.StatusBadRequest, "invalid username"},
	{auth.ErrPasswordRequired, http.StatusBadRequest, "password is required"},
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, detail := http.StatusInternalServerError, "internal server error"

	var reqErr *requestError
	var maxBytesErr *http.MaxBytesError
	switch {
	case errors.As(err, &reqErr):
		status, detail = reqErr.status, reqErr.detail
	case errors.As(err, &maxBytesErr):
		status, detail = http.StatusRequestEntityTooLarge, "request body too large"
	default:
		for _, m := range errorMappings {
			if errors.Is(err, m.target) {
				status, detail = m.status, m.detail
				break
			}
		}
	}

	entry := s.requestLog(r).WithField("status", status)
	if status >= http.StatusInternalServerError {
		entry.WithError(err).Error("request failed")
	} else {
		entry.WithField("detail", detail).Debug("request rejected")
	}

	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", "Bearer")
	}
	writeJSON(w, status, errorResponse{Detail: detail})
}

func (s *Server) requestLog(r *http.Request) *logrus.Entry {
	return s.log.WithFields(logrus.Fields{
		"request_id": requestIDFrom(r.Context()),
		"method":     r.Method,
		"path":       r.URL.Path,
	})
}
