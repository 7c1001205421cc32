// Package bridge connects the delegated provider framework to the authn
// strategy framework.
//
// Every provider id registered in a Registry becomes an authn strategy named
// "omni_<id>". The strategy succeeds with Transform(result, id) when the
// delegated framework has put a result on the request context, and otherwise
// asks for a redirect to the provider's request path.
//
// Router intercepts {prefix}/{id}/callback and {prefix}/failure:
//
//	unknown id               -> 401 "Unknown Handler"
//	oversized session scope  -> 400 "Bad Session"
//	strategy succeeded       -> 302 RedirectPolicy(r)
//	strategy did not succeed -> 302 request path without "/callback"
//	failure report           -> authn failure app
//
// Everything else passes through untouched.
package bridge
