package domain

import "fmt"

// MessageKey identifies one localized user-facing message.
type MessageKey string

const (
	MsgWaitingForJob     MessageKey = "waiting_for_job"
	MsgJobNeverAppeared  MessageKey = "job_never_appeared"
	MsgJobFailed         MessageKey = "job_failed"
	MsgJobCancelled      MessageKey = "job_cancelled"
	MsgJobCompleted      MessageKey = "job_completed"
	MsgConnectivity      MessageKey = "connectivity"
	MsgServerFault       MessageKey = "server_fault"
	MsgArtifactNotReady  MessageKey = "artifact_not_ready"
	MsgAccessDenied      MessageKey = "access_denied"
	MsgLocalStorage      MessageKey = "local_storage"
	MsgArtifactSaved     MessageKey = "artifact_saved"
	MsgArtifactAvailable MessageKey = "artifact_available"
	MsgArtifactMissing   MessageKey = "artifact_missing"
	MsgArtifactSmallFile MessageKey = "artifact_small_file"
	MsgUnknownFailure    MessageKey = "unknown_failure"

	MsgStatusAccessDenied MessageKey = "status_access_denied"
	MsgUploadProgress     MessageKey = "upload_progress"
)

const (
	LocaleEnglish = "en"
	LocaleThai    = "th"
)

var catalogs = map[string]map[MessageKey]string{
	LocaleEnglish: {
		MsgWaitingForJob:     "Waiting for the job to start (attempt %d of %d)",
		MsgJobNeverAppeared:  "The service never registered this job. Please submit it again.",
		MsgJobFailed:         "Processing failed: %s",
		MsgJobCancelled:      "The job was cancelled",
		MsgJobCompleted:      "Translation finished",
		MsgConnectivity:      "Cannot reach the translation service. Check your connection.",
		MsgServerFault:       "The translation service reported an error. Try again later.",
		MsgArtifactNotReady:  "The %s file is not ready yet. The job may still be finishing.",
		MsgAccessDenied:      "Access to the %s file was denied.",
		MsgLocalStorage:      "Could not save the %s file to the download folder.",
		MsgArtifactSaved:     "Saved %s to %s",
		MsgArtifactAvailable: "The %s file is available",
		MsgArtifactMissing:   "The %s file is not available",
		MsgArtifactSmallFile: "The %s file is unusually small and may be a placeholder",
		MsgUnknownFailure:    "Something went wrong",

		MsgStatusAccessDenied: "The service refused the status request. Still retrying.",
		MsgUploadProgress:     "Uploading %s (%d%%)",
	},
	LocaleThai: {
		MsgWaitingForJob:     "กำลังรอให้งานเริ่ม (ครั้งที่ %d จาก %d)",
		MsgJobNeverAppeared:  "ระบบไม่พบงานนี้ กรุณาส่งงานใหม่อีกครั้ง",
		MsgJobFailed:         "การประมวลผลล้มเหลว: %s",
		MsgJobCancelled:      "ยกเลิกงานแล้ว",
		MsgJobCompleted:      "แปลเสร็จเรียบร้อยแล้ว",
		MsgConnectivity:      "ไม่สามารถเชื่อมต่อบริการแปลได้ กรุณาตรวจสอบการเชื่อมต่อ",
		MsgServerFault:       "บริการแปลเกิดข้อผิดพลาด กรุณาลองใหม่ภายหลัง",
		MsgArtifactNotReady:  "ไฟล์ %s ยังไม่พร้อม (งานอาจยังไม่เสร็จสิ้น)",
		MsgAccessDenied:      "ไม่มีสิทธิ์เข้าถึงไฟล์ %s",
		MsgLocalStorage:      "ไม่สามารถบันทึกไฟล์ %s ลงโฟลเดอร์ดาวน์โหลดได้",
		MsgArtifactSaved:     "บันทึก %s ที่ %s แล้ว",
		MsgArtifactAvailable: "ไฟล์ %s พร้อมดาวน์โหลด",
		MsgArtifactMissing:   "ไฟล์ %s ไม่พร้อมใช้งาน",
		MsgArtifactSmallFile: "ไฟล์ %s มีขนาดเล็กผิดปกติ อาจเป็นไฟล์ตัวอย่าง",
		MsgUnknownFailure:    "เกิดข้อผิดพลาด",

		MsgStatusAccessDenied: "บริการปฏิเสธการขอสถานะ กำลังลองใหม่",
		MsgUploadProgress:     "กำลังอัปโหลด %s (%d%%)",
	},
}

// Message renders key in locale, falling back to English.
func Message(locale string, key MessageKey, args ...any) string {
	catalog, ok := catalogs[NormalizeLanguage(locale)]
	if !ok {
		catalog = catalogs[LocaleEnglish]
	}
	format, ok := catalog[key]
	if !ok {
		format, ok = catalogs[LocaleEnglish][key]
		if !ok {
			return string(key)
		}
	}
	if len(args) == 0 {
		return format
	}
	return fmt.Sprintf(format, args...)
}

// FailureMessageKey maps a failure category to its message.
func FailureMessageKey(category FailureCategory) MessageKey {
	switch category {
	case FailureJobNeverMaterialized:
		return MsgJobNeverAppeared
	case FailureJobFailed:
		return MsgJobFailed
	case FailureArtifactNotReady:
		return MsgArtifactNotReady
	case FailureAccessDenied:
		return MsgAccessDenied
	case FailureServerFault:
		return MsgServerFault
	case FailureConnectivity:
		return MsgConnectivity
	case FailureLocalStorage:
		return MsgLocalStorage
	default:
		return MsgUnknownFailure
	}
}
