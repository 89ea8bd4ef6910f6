package domain

import "time"

// Languages a room can be created with, mapped to the interpreter version the
// execution backend expects. Languages without a version cannot be executed.
var LanguageVersions = map[string]string{
	"javascript": "18.15.0",
	"typescript": "5.0.3",
	"python":     "3.10.0",
	"java":       "15.0.2",
	"cpp":        "10.2.0",
	"html":       "",
	"css":        "",
}

func ExecutableVersion(language string) (string, error) {
	version, ok := LanguageVersions[language]
	if !ok || version == "" {
		return "", ErrExecutionUnsupported
	}
	return version, nil
}

// ExecutionResult records one run of a room's code.
type ExecutionResult struct {
	ID         string    `json:"-"`
	RoomID     string    `json:"room_id"`
	Output     string    `json:"output"`
	ExecutedBy string    `json:"executed_by"`
	Timestamp  time.Time `json:"timestamp"`
}
