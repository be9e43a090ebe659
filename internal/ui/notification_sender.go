package ui

import (
	"fyne.io/fyne/v2"

	"github.com/skobkin/wedgego/internal/notifications"
)

// newNotificationSender posts notifications through the fyne app on the UI goroutine.
func newNotificationSender(app fyne.App, hooks UIHooks) notifications.Sender {
	return notifications.Filtered(notifications.SenderFunc(func(p notifications.Payload) {
		if app == nil {
			return
		}
		hooks.runOnUI(func() {
			app.SendNotification(fyne.NewNotification(p.Title, p.Content))
		})
	}))
}
