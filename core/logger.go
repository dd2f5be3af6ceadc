package core

// Logger logs messages and reports them to an error tracker.
// args may carry errors, extra data (map[string]interface{}) and at most one Person.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}

// Person identifies the signed-in user attached to a log entry.
type Person interface {
	PersonID() string
	PersonUsername() string
	PersonEmail() string
}
