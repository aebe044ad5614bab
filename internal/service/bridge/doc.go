// Package bridge implements the two request/response channels the UI uses.
//
// load-previous-data returns the last saved Record. save-data-and-run-server
// persists a Record, spawns the backend and acknowledges immediately; the
// outcome of the readiness wait is published separately as a Notification.
package bridge
