package domain

// ArtifactKind names one downloadable output of a completed job.
type ArtifactKind string

const (
	ArtifactVideo    ArtifactKind = "video"
	ArtifactAudio    ArtifactKind = "audio"
	ArtifactSubtitle ArtifactKind = "subtitle"
)

// ArtifactKinds returns the fixed artifact kinds, primary media first.
func ArtifactKinds() []ArtifactKind {
	return []ArtifactKind{ArtifactVideo, ArtifactAudio, ArtifactSubtitle}
}

// ParseArtifactKind validates a kind received from a caller.
func ParseArtifactKind(raw string) (ArtifactKind, bool) {
	switch ArtifactKind(raw) {
	case ArtifactVideo, ArtifactAudio, ArtifactSubtitle:
		return ArtifactKind(raw), true
	default:
		return "", false
	}
}

// Format returns the expected container extension for the kind.
func (k ArtifactKind) Format() string {
	switch k {
	case ArtifactVideo:
		return "mp4"
	case ArtifactAudio:
		return "mp3"
	case ArtifactSubtitle:
		return "srt"
	default:
		return "bin"
	}
}

// Availability is the advisory result of the latest probe.
type Availability string

const (
	AvailabilityUnknown     Availability = "unknown"
	AvailabilityProbing     Availability = "probing"
	AvailabilityAvailable   Availability = "available"
	AvailabilityUnavailable Availability = "unavailable"
)

// TransferState tracks the local download of one artifact.
type TransferState string

const (
	TransferIdle         TransferState = "idle"
	TransferTransferring TransferState = "transferring"
	TransferSucceeded    TransferState = "succeeded"
	TransferFailed       TransferState = "failed"
)

// ArtifactDescriptor describes one artifact and its transient retrieval state.
type ArtifactDescriptor struct {
	Kind         ArtifactKind    `json:"kind"`
	Format       string          `json:"format"`
	SizeHint     int64           `json:"sizeHint,omitempty"`
	URL          string          `json:"url"`
	Availability Availability    `json:"availability"`
	Transfer     TransferState   `json:"transfer"`
	LocalPath    string          `json:"localPath,omitempty"`
	Failure      FailureCategory `json:"failure,omitempty"`
	Message      string          `json:"message,omitempty"`
}

// Durable strips transient retrieval state for storage in history.
func (d ArtifactDescriptor) Durable() ArtifactDescriptor {
	return ArtifactDescriptor{
		Kind:         d.Kind,
		Format:       d.Format,
		SizeHint:     d.SizeHint,
		URL:          d.URL,
		Availability: AvailabilityUnknown,
		Transfer:     TransferIdle,
		LocalPath:    d.LocalPath,
	}
}
