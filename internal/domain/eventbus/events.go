package eventbus

import "time"

// 事件类型定义
const (
	EventArtifactGenerated = "image:artifact_generated"
	EventGenerationFailed  = "image:generation_failed"
	EventArtifactSwept     = "image:artifact_swept"
)

// ArtifactEventData describes one variant file written to disk.
type ArtifactEventData struct {
	Source   string    `json:"source"`
	Variant  string    `json:"variant"`
	Format   string    `json:"format"`
	Path     string    `json:"path"`
	URL      string    `json:"url"`
	Size     int64     `json:"size"`
	OnDemand bool      `json:"on_demand"`
	At       time.Time `json:"at"`
}

// GenerationFailedEventData describes one (variant, format) pair that failed.
type GenerationFailedEventData struct {
	Source  string    `json:"source"`
	Variant string    `json:"variant"`
	Format  string    `json:"format"`
	Error   string    `json:"error"`
	At      time.Time `json:"at"`
}

// ArtifactSweptEventData describes one variant file removed by retention.
type ArtifactSweptEventData struct {
	Path string        `json:"path"`
	Age  time.Duration `json:"age"`
	At   time.Time     `json:"at"`
}
