package workers

import (
	"fmt"
	"runtime"

	"github.com/go-toast/toast"
)

// ToastNotifier delivers Windows desktop toast notifications when an
// overdue ack is escalated to a file reservation. Adapted from the
// teacher's internal/notifications ToastNotifier (that package has since
// been replaced by this one for the bus domain) — same go-toast/toast
// dependency, same Windows-only guard, new message shape (ack escalation
// instead of supervisor-needs-input).
type ToastNotifier struct {
	appID string
}

// NewToastNotifier builds a notifier under appID, defaulting to the bus's
// own app identity.
func NewToastNotifier(appID string) *ToastNotifier {
	if appID == "" {
		appID = "agentmail-bus"
	}
	return &ToastNotifier{appID: appID}
}

// NotifyAckEscalation raises a toast naming the holder agent and the
// path pattern reserved on its behalf. Implements the Notifier interface
// consumed by RunAckTTLScan.
func (t *ToastNotifier) NotifyAckEscalation(agentName, pattern string) {
	if runtime.GOOS != "windows" {
		return
	}
	notification := toast.Notification{
		AppID:   t.appID,
		Title:   "Ack overdue: file reservation created",
		Message: fmt.Sprintf("%s now holds %s", agentName, pattern),
		Audio:   toast.Default,
	}
	_ = notification.Push()
}

// IsSupported reports whether toast notifications can be shown on this
// platform.
func (t *ToastNotifier) IsSupported() bool {
	return runtime.GOOS == "windows"
}
