package ports

// TaskKind names a background task type registered with the runner.
type TaskKind string

const (
	TaskFaceEnrollment TaskKind = "face_enrollment"
	TaskNotification   TaskKind = "otp_notification"
)

// FaceEnrollmentPayload is the payload of a TaskFaceEnrollment task.
type FaceEnrollmentPayload struct {
	IdentityID string
	FullName   string
	Email      string
	Document   Document
}

// NotificationPayload is the payload of a TaskNotification task.
type NotificationPayload struct {
	IdentityID string
	Email      string
	Code       string
}

// TaskRunner executes named tasks asynchronously with bounded retries and
// exponential backoff. Enqueue returns immediately; the registered handler
// runs on a worker decoupled from the request lifetime.
type TaskRunner interface {
	Enqueue(kind TaskKind, payload any)
}
