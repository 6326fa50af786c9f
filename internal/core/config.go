package core

// PromptFiles locates the runtime files the system prompt is assembled from,
// in the order they are concatenated.
type PromptFiles interface {
	GetSystemPath() string
	GetIdentityPath() string
	GetUserProfilePath() string
}
