package api

import (
	"errors"
	"mime"
	"net/http"

	"aethersecure/face"
)

type registerRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	// FaceEncodingJSON is the client-computed face embedding as a JSON array.
	FaceEncodingJSON string `json:"face_encoding_json,omitempty"`
}

type deleteAccountRequest struct {
	Password string `json:"password"`
}

var errFaceProviderMissing = &requestError{
	status: http.StatusNotImplemented,
	detail: "server-side face verification is not configured",
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	var embedding face.Embedding
	if req.FaceEncodingJSON != "" {
		parsed, err := face.ParseEmbedding(req.FaceEncodingJSON)
		if err != nil {
			s.writeError(w, r, badRequest("invalid face_encoding_json"))
			return
		}
		embedding = parsed
	}

	account, err := s.accounts.Register(req.Username, req.Password, embedding)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.requestLog(r).WithField("username", account.Username).Info("account registered")
	writeJSON(w, http.StatusCreated, account)
}

// handleToken accepts an OAuth2-style password form (or multipart). A face probe may be
// sent as face_encoding_json, or as a face_image file when a provider is configured.
func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	if mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type")); mediaType == "multipart/form-data" {
		if err := s.parseMultipart(r); err != nil {
			s.writeError(w, r, err)
			return
		}
	} else if err := r.ParseForm(); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			s.writeError(w, r, err)
			return
		}
		s.writeError(w, r, badRequest("invalid form body"))
		return
	}

	probe, err := s.faceProbe(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	account, err := s.accounts.Login(r.PostFormValue("username"), r.PostFormValue("password"), probe)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	token, err := s.tokens.Issue(account.Username, account.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, token)
}

func (s *Server) faceProbe(r *http.Request) (face.Embedding, error) {
	if raw := r.PostFormValue("face_encoding_json"); raw != "" {
		embedding, err := face.ParseEmbedding(raw)
		if err != nil {
			return nil, badRequest("invalid face_encoding_json")
		}
		return embedding, nil
	}

	if r.MultipartForm == nil || len(r.MultipartForm.File["face_image"]) == 0 {
		return nil, nil
	}
	if s.faces == nil {
		return nil, errFaceProviderMissing
	}
	image, _, err := requiredFile(r, "face_image")
	if err != nil {
		return nil, err
	}
	embedding, err := s.faces.Embed(r.Context(), image)
	if err != nil {
		return nil, badRequest("no face could be extracted from face_image")
	}
	return embedding, nil
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	account, err := s.accounts.Account(usernameFrom(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, account)
}

func (s *Server) handleDeleteMe(w http.ResponseWriter, r *http.Request) {
	var req deleteAccountRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	username := usernameFrom(r.Context())
	if err := s.accounts.Delete(username, req.Password); err != nil {
		s.writeError(w, r, err)
		return
	}

	s.requestLog(r).WithField("username", username).Info("account deleted")
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	usernames, err := s.users.ListUsernames(usernameFrom(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, usernames)
}
