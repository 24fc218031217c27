package oauth

import (
	"context"
	"fmt"
	"html"
	"net"
	"net/http"
	"sync"
	"time"
)

// Local ports tried for the callback redirect. The backend whitelists
// this range for the CLI client.
const (
	portRangeStart = 8910
	portRangeEnd   = 8930
)

// Listener receives the authorization-code redirect on localhost.
type Listener struct {
	state  string
	server *http.Server
	port   int

	once sync.Once
	code string
	err  error
	done chan struct{}
}

// Listen binds a localhost port from the callback range and starts
// serving the redirect endpoint.
func Listen(state string) (*Listener, error) {
	l := &Listener{
		state: state,
		done:  make(chan struct{}),
	}

	var ln net.Listener
	var err error
	for port := portRangeStart; port <= portRangeEnd; port++ {
		ln, err = net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
		if err == nil {
			l.port = port
			break
		}
	}
	if ln == nil {
		return nil, fmt.Errorf("no free callback port in %d-%d: %w", portRangeStart, portRangeEnd, err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/callback", l.handle)
	l.server = &http.Server{
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	go func() { _ = l.server.Serve(ln) }()

	return l, nil
}

// RedirectURI returns the URI registered with the authorize request.
func (l *Listener) RedirectURI() string {
	return fmt.Sprintf("http://localhost:%d/callback", l.port)
}

// AwaitCode blocks until the browser redirect delivers a code, the
// provider reports an error, or ctx expires.
func (l *Listener) AwaitCode(ctx context.Context) (string, error) {
	select {
	case <-l.done:
		return l.code, l.err
	case <-ctx.Done():
		return "", fmt.Errorf("waiting for sign-in callback: %w", ctx.Err())
	}
}

// Close shuts the listener down.
func (l *Listener) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return l.server.Shutdown(ctx)
}

func (l *Listener) handle(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	finish := func(code string, err error) {
		l.once.Do(func() {
			l.code = code
			l.err = err
			close(l.done)
		})
	}

	if errParam := q.Get("error"); errParam != "" {
		desc := q.Get("error_description")
		finish("", fmt.Errorf("sign-in refused: %s (%s)", errParam, desc))
		writePage(w, "Sign-in failed", html.EscapeString(desc))
		return
	}
	if q.Get("state") != l.state {
		finish("", fmt.Errorf("state mismatch in callback"))
		writePage(w, "Sign-in failed", "The callback did not match this sign-in attempt.")
		return
	}
	code := q.Get("code")
	if code == "" {
		finish("", fmt.Errorf("callback carried no authorization code"))
		writePage(w, "Sign-in failed", "No authorization code was received.")
		return
	}

	finish(code, nil)
	writePage(w, "Signed in", "You can close this tab and return to the terminal.")
}

func writePage(w http.ResponseWriter, title, message string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintf(w, `<!DOCTYPE html>
<html>
<head><title>TabletNotes</title>
<style>
  body { font-family: -apple-system, 'Segoe UI', sans-serif; background: #14161A; color: #E6E8EB;
         display: flex; align-items: center; justify-content: center; height: 100vh; margin: 0; }
  .card { text-align: center; background: #1A1D22; border: 1px solid #3A3F47;
          border-radius: 12px; padding: 40px 56px; }
  h1 { font-size: 22px; margin: 0 0 8px; color: #4A90D9; }
  p { margin: 0; color: #7B8088; }
</style>
</head>
<body><div class="card"><h1>%s</h1><p>%s</p></div></body>
</html>`, title, message)
}
