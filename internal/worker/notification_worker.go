package worker

import (
	"github.com/issuedesk/issue-service/internal/service"
)

// StartNotificationWorker registers notification handlers on the dispatcher so issue
// events are logged, fanned out and drop stale report summaries.
func StartNotificationWorker(notificationService *service.NotificationService) {
	if notificationService == nil {
		return
	}
	notificationService.RegisterHandlers()
}
