// Package protocol implements the wire format shared by the updater link
// and the agent link: a closed set of i32 message identifiers, a small
// number of fixed-size binary payloads, and an opaque schema-tagged
// object envelope for the larger archived values (installation input,
// appcast item, installation info).
package protocol

// Identifier enumerates every message that can cross either peer link.
// The set is closed: decoding never invents a new value, and encoding
// only ever emits one of these.
type Identifier int32

const (
	// Daemon -> Updater
	ExtractionStarted Identifier = iota + 1
	ExtractedWithProgress
	ArchiveExtractionFailed
	ValidationStarted
	InstallationStartedStage1
	InstallationFinishedStage1
	InstallationFinishedStage2
	InstallationFinishedStage3
	UpdaterAlivePing

	// Updater -> Daemon
	InstallationInputMessage
	SentUpdateAppcastItemData
	ResumeToStage2
	UpdaterAlivePong
)

// String names an identifier for logging. Unknown values are rendered
// as "UNKNOWN" rather than panicking — logging must never be the thing
// that crashes a fatal-exit path.
func (id Identifier) String() string {
	switch id {
	case ExtractionStarted:
		return "EXTRACTION_STARTED"
	case ExtractedWithProgress:
		return "EXTRACTED_WITH_PROGRESS"
	case ArchiveExtractionFailed:
		return "ARCHIVE_EXTRACTION_FAILED"
	case ValidationStarted:
		return "VALIDATION_STARTED"
	case InstallationStartedStage1:
		return "INSTALLATION_STARTED_STAGE_1"
	case InstallationFinishedStage1:
		return "INSTALLATION_FINISHED_STAGE_1"
	case InstallationFinishedStage2:
		return "INSTALLATION_FINISHED_STAGE_2"
	case InstallationFinishedStage3:
		return "INSTALLATION_FINISHED_STAGE_3"
	case UpdaterAlivePing:
		return "UPDATER_ALIVE_PING"
	case InstallationInputMessage:
		return "INSTALLATION_INPUT"
	case SentUpdateAppcastItemData:
		return "SENT_UPDATE_APPCAST_ITEM_DATA"
	case ResumeToStage2:
		return "RESUME_TO_STAGE_2"
	case UpdaterAlivePong:
		return "UPDATER_ALIVE_PONG"
	default:
		return "UNKNOWN"
	}
}

// Known reports whether id is a member of the closed identifier set.
func (id Identifier) Known() bool {
	return id >= ExtractionStarted && id <= UpdaterAlivePong
}
