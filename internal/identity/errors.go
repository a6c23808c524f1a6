package identity

import (
	"encoding/json"
	"errors"
	"strings"
)

// Error is a failure reported by the provider, identified by its code
// (e.g. INVALID_PASSWORD).
type Error struct {
	Status int
	Code   string
}

func (e *Error) Error() string { return "identity: " + e.Code }

// parseError reads {"error": {"message": "CODE : detail"}} bodies; the
// token endpoint sometimes sends {"error": "code"} instead.
func parseError(status int, body []byte) *Error {
	var envelope struct {
		Error json.RawMessage `json:"error"`
	}
	code := ""
	if json.Unmarshal(body, &envelope) == nil && len(envelope.Error) > 0 {
		var detailed struct {
			Message string `json:"message"`
		}
		var plain string
		switch {
		case json.Unmarshal(envelope.Error, &detailed) == nil && detailed.Message != "":
			code = detailed.Message
		case json.Unmarshal(envelope.Error, &plain) == nil:
			code = plain
		}
	}
	code, _, _ = strings.Cut(code, " ")
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		code = "UNKNOWN"
	}
	return &Error{Status: status, Code: code}
}

var messages = map[string]string{
	"EMAIL_NOT_FOUND":             "No hi ha cap compte amb aquest correu.",
	"INVALID_PASSWORD":            "La contrasenya no és correcta.",
	"INVALID_LOGIN_CREDENTIALS":   "El correu o la contrasenya no són correctes.",
	"USER_DISABLED":               "Aquest compte està desactivat.",
	"TOO_MANY_ATTEMPTS_TRY_LATER": "Massa intents. Torna-ho a provar més tard.",
	"INVALID_EMAIL":               "L'adreça de correu no és vàlida.",
	"MISSING_PASSWORD":            "Cal introduir la contrasenya.",
}

const genericMessage = "No s'ha pogut completar l'operació. Torna-ho a provar."

// UserMessage maps err to the message shown on the login screens.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		if m, ok := messages[e.Code]; ok {
			return m
		}
	}
	return genericMessage
}

// IsCredentialError reports whether err means the caller got something
// wrong, as opposed to the provider failing.
func IsCredentialError(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Status >= 400 && e.Status < 500
}
