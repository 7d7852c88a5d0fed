package common

const (
	// AuthorizationHeader carries the bearer token on outbound requests.
	AuthorizationHeader = "Authorization"
	BearerPrefix        = "Bearer "

	// DefaultCategory always exists and is never renamed or deleted.
	DefaultCategory = "General"

	// DefaultDocumentName is the name of a fresh untitled document.
	DefaultDocumentName = "Untitled Document"

	// LocalIDPrefix marks ids that were never persisted remotely.
	LocalIDPrefix = "doc_"
)
