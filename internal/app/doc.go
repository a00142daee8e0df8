// Package app is the composition root of the storefront client.
//
// It builds the environment config, the device storage, the API client and
// its interceptors, the domain facades, the auth session, the loading
// manager, the error handler and the stores, and connects them:
//
//	config ──► httputil.Client ──► api facades ──► auth.Service
//	                 │                   │              │
//	                 ▼                   ▼              ▼
//	         loading.Manager ◄──── store.{Product,User,Cart,Content,UI}
//	                                     │
//	                                     ▼
//	                              apperr.Handler ──► UIStore (toasts, pages)
//
// Nothing here holds business rules; cmd/storefront drives an Application
// from the command line and tests drive it directly.
package app
