package pinning

import (
	"strings"

	"github.com/cockroachdb/errors"
)

type AssetKind int

const (
	AssetImage AssetKind = iota + 1
	AssetAudio
	AssetManifest
)

func (k AssetKind) String() string {
	switch k {
	case AssetImage:
		return "image"
	case AssetAudio:
		return "audio"
	case AssetManifest:
		return "manifest"
	default:
		return "unknown"
	}
}

func (k AssetKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func ParseAssetKind(s string) (AssetKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "image":
		return AssetImage, nil
	case "audio":
		return AssetAudio, nil
	default:
		return 0, errors.Newf("unknown asset kind %q", s)
	}
}

type Asset struct {
	Kind     AssetKind
	FileName string
	Bytes    []byte
}

// Content is what a mint pins: binary assets in upload order plus manifest fields.
type Content struct {
	Name        string
	Description string
	Assets      []Asset
}

// Manifest is the token metadata document. Its URL becomes the token URI.
type Manifest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	ImageURL    string `json:"imageURL"`
	AudioURL    string `json:"audioURL"`
}

type TaskState string

const (
	TaskPending   TaskState = "pending"
	TaskUploading TaskState = "uploading"
	TaskDone      TaskState = "done"
	TaskFailed    TaskState = "failed"
)

// UploadTask tracks one asset within a single pipeline run.
type UploadTask struct {
	Kind      AssetKind `json:"kind"`
	FileName  string    `json:"fileName"`
	Size      int64     `json:"size"`
	Sent      int64     `json:"sent"`
	Progress  float64   `json:"progress"`
	State     TaskState `json:"state"`
	ContentID string    `json:"contentId,omitempty"`
	URL       string    `json:"url,omitempty"`
}

type Result struct {
	ContentIDs map[AssetKind]string
	URLs       map[AssetKind]string
	TokenURI   string
	Tasks      []UploadTask
}
