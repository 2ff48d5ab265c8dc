package version

import "time"

// ChangeType is a closed variant; every consumer handles all three cases.
type ChangeType string

const (
	ChangeCreate ChangeType = "Create"
	ChangeUpdate ChangeType = "Update"
	ChangeDelete ChangeType = "Delete"
)

// Change is one resource mutation inside a Commit.
type Change struct {
	Kind             ChangeType `json:"kind"`
	ResourceKey      string     `json:"resourceKey"`
	Content          []byte     `json:"content,omitempty"`
	PreviousContent  []byte     `json:"previousContent,omitempty"`
}

// Commit is an immutable node in the content-addressed DAG.
type Commit struct {
	ID        string    `json:"id"`
	Parents   []string  `json:"parents"`
	Changes   []Change  `json:"changes"`
	Message   string    `json:"message"`
	Author    string    `json:"author"`
	Timestamp time.Time `json:"timestamp"`
}

// Conflict describes two commits touching the same resource key with
// differing content.
type Conflict struct {
	ResourceKey string
	CommitA     string
	CommitB     string
}
