// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package i18n

import "golang.org/x/text/language"

// Key identifies a user facing message.
type Key string

const (
	Title            Key = "title"
	Loading          Key = "loading"
	Running          Key = "running"
	RunningDetail    Key = "running_detail"
	NeedsCode        Key = "needs_code"
	CodePrompt       Key = "code_prompt"
	CodePlaceholder  Key = "code_placeholder"
	Submit           Key = "submit"
	Submitting       Key = "submitting"
	InvalidFormat    Key = "invalid_format"
	CodeAccepted     Key = "code_accepted"
	CodeRejected     Key = "code_rejected"
	NetworkError     Key = "network_error"
	ServerError      Key = "server_error"
	LastErrorCaption Key = "last_error"
)

// Catalog maps keys to the message text in one language. ServerError takes
// the HTTP status code as its only argument.
type Catalog map[Key]string

var english = Catalog{
	Title:            "iCloud Backup",
	Loading:          "Connecting to the backup service...",
	Running:          "Backup service is running",
	RunningDetail:    "Backups are uploaded automatically. No action is needed.",
	NeedsCode:        "Verification required",
	CodePrompt:       "Enter the 6-digit code sent to your trusted device.",
	CodePlaceholder:  "123456",
	Submit:           "Verify",
	Submitting:       "Verifying...",
	InvalidFormat:    "Please enter exactly 6 digits.",
	CodeAccepted:     "Code accepted. Finishing sign-in...",
	CodeRejected:     "The code was rejected. Please try again.",
	NetworkError:     "Could not reach the backup service. Please try again.",
	ServerError:      "Server error (HTTP %d). Please try again.",
	LastErrorCaption: "Last error",
}

var german = Catalog{
	Title:            "iCloud-Sicherung",
	Loading:          "Verbindung zum Sicherungsdienst wird hergestellt...",
	Running:          "Sicherungsdienst läuft",
	RunningDetail:    "Sicherungen werden automatisch hochgeladen. Es ist nichts zu tun.",
	NeedsCode:        "Bestätigung erforderlich",
	CodePrompt:       "Gib den 6-stelligen Code ein, der an dein vertrauenswürdiges Gerät gesendet wurde.",
	Submit:           "Bestätigen",
	Submitting:       "Wird geprüft...",
	InvalidFormat:    "Bitte genau 6 Ziffern eingeben.",
	CodeAccepted:     "Code akzeptiert. Anmeldung wird abgeschlossen...",
	CodeRejected:     "Der Code wurde abgelehnt. Bitte erneut versuchen.",
	NetworkError:     "Der Sicherungsdienst ist nicht erreichbar. Bitte erneut versuchen.",
	ServerError:      "Serverfehler (HTTP %d). Bitte erneut versuchen.",
	LastErrorCaption: "Letzter Fehler",
}

// Default returns the bundle shipped with the add-on: English, which is
// also the fallback, and German.
func Default() *Bundle {
	return NewBundle(language.English, map[language.Tag]Catalog{
		language.English: english,
		language.German:  german,
	})
}
