package notifications

import "errors"

// ErrNotificationNotFound is returned by queue operations that target
// an id with no matching row.
var ErrNotificationNotFound = errors.New("notification not found")
