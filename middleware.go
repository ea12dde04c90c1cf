package restive

import (
	"net/http"
	"time"

	"github.com/mongodb/grip"
	"github.com/mongodb/grip/logging"
	"github.com/mongodb/grip/message"
	"github.com/urfave/negroni"
)

type appLogging struct {
	grip.Journaler
}

// NewAppLogger returns a negroni middleware that logs the outcome of
// every request through grip, using the default global sender.
func NewAppLogger() negroni.Handler {
	return &appLogging{logging.MakeGrip(grip.GetSender())}
}

func (l *appLogging) ServeHTTP(rw http.ResponseWriter, r *http.Request, next http.HandlerFunc) {
	start := time.Now()
	next(rw, r)

	fields := message.Fields{
		"method":      r.Method,
		"path":        r.URL.Path,
		"remote":      r.RemoteAddr,
		"duration_ms": int64(time.Since(start) / time.Millisecond),
	}
	if res, ok := rw.(negroni.ResponseWriter); ok {
		fields["status"] = res.Status()
	}

	l.Info(fields)
}
