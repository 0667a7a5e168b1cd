package httpapi

import "context"

// serverBaseCtx is canceled on shutdown so queued inference work is released
// instead of waiting out its batch window. Background until main installs the
// real one.
var serverBaseCtx = context.Background()

// SetBaseContext installs the process-level context handlers derive from.
func SetBaseContext(ctx context.Context) {
	if ctx == nil {
		serverBaseCtx = context.Background()
		return
	}
	serverBaseCtx = ctx
}

// joinContexts derives a context from base that is additionally canceled when
// req ends, so a queued request is dropped on server shutdown or client
// disconnect, whichever comes first. The returned cancel must always be called.
func joinContexts(base, req context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(base)
	stop := context.AfterFunc(req, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}
