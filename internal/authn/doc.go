// Package authn is a small, pluggable request-authentication framework.
//
// Strategies are registered by name in a Strategies set. A Manager middleware
// attaches a per-request Proxy to the context; handlers call
// Proxy.Authenticate to run strategies for a scope, read the stored user with
// Proxy.User, and hand control back to the manager with Proxy.Abort (render
// the failure app, or follow the winning strategy's redirect) or Proxy.Raise
// (render an error). Users are stored in the session under a per-scope key.
//
//	strategies := authn.NewStrategies()
//	strategies.Add("password", myStrategy)
//	m := authn.NewManager(authn.Config{
//		Strategies:        strategies,
//		DefaultStrategies: []string{"password"},
//		FailureApp:        failureHandler,
//	})
//	handler := sessions.Middleware(m.Middleware(app))
package authn
