package api

import (
	"net/http"

	"aethersecure/crypto"
	"aethersecure/stego"
	"aethersecure/vault"
)

type textEncryptRequest struct {
	Plaintext   string `json:"plaintext"`
	CaesarShift int    `json:"caesar_shift"`
	XORKey      string `json:"xor_key"`
}

type textDecryptRequest struct {
	Base64Ciphertext string `json:"base64_ciphertext"`
	CaesarShift      int    `json:"caesar_shift"`
	XORKey           string `json:"xor_key"`
}

func (s *Server) handleTextEncrypt(w http.ResponseWriter, r *http.Request) {
	var req textEncryptRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	ciphertext, err := crypto.SuperEncryptText(req.Plaintext, req.CaesarShift, req.XORKey)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"ciphertext": ciphertext})
}

func (s *Server) handleTextDecrypt(w http.ResponseWriter, r *http.Request) {
	var req textDecryptRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	plaintext, err := crypto.SuperDecryptText(req.Base64Ciphertext, req.CaesarShift, req.XORKey)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"plaintext": plaintext})
}

func (s *Server) handleImageHide(w http.ResponseWriter, r *http.Request) {
	if err := s.parseMultipart(r); err != nil {
		s.writeError(w, r, err)
		return
	}
	message, err := requiredField(r, "message")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	cover, coverName, err := requiredFile(r, "image")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	stegoImage, err := stego.Hide(cover, message)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeAttachment(w, "image/png", vault.StegoDisplayName(coverName), stegoImage)
}

func (s *Server) handleImageExtract(w http.ResponseWriter, r *http.Request) {
	if err := s.parseMultipart(r); err != nil {
		s.writeError(w, r, err)
		return
	}
	image, _, err := requiredFile(r, "image")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	message, err := stego.Extract(image)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": message})
}

func (s *Server) handleImageCapacity(w http.ResponseWriter, r *http.Request) {
	if err := s.parseMultipart(r); err != nil {
		s.writeError(w, r, err)
		return
	}
	image, _, err := requiredFile(r, "image")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	capacity, err := stego.Capacity(image)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"capacity": capacity})
}

func (s *Server) handleFileEncrypt(w http.ResponseWriter, r *http.Request) {
	if err := s.parseMultipart(r); err != nil {
		s.writeError(w, r, err)
		return
	}
	password, err := requiredPassword(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	data, fileName, err := requiredFile(r, "file")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	blob, err := crypto.EncryptFile(data, password)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeAttachment(w, "application/octet-stream", vault.EncryptedDisplayName(fileName), blob)
}

func (s *Server) handleFileDecrypt(w http.ResponseWriter, r *http.Request) {
	if err := s.parseMultipart(r); err != nil {
		s.writeError(w, r, err)
		return
	}
	password, err := requiredPassword(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	blob, fileName, err := requiredFile(r, "file")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	plaintext, err := crypto.DecryptFile(blob, password)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeAttachment(w, "application/octet-stream", vault.DecryptedFileName(fileName), plaintext)
}

func requiredPassword(r *http.Request) (string, error) {
	password, err := requiredField(r, "password")
	if err != nil {
		return "", err
	}
	if password == "" {
		return "", badRequest("password is required")
	}
	return password, nil
}
