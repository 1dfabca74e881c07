package handlers

import (
	"net/http"

	"github.com/vedran77/reviewhub/internal/transport/http/middleware"
)

// Routes bundles the handlers mounted by NewRouter.
type Routes struct {
	Auth     *AuthHandler
	Users    *UserHandler
	Messages *MessageHandler
	Products *ProductHandler
	Uploads  *UploadHandler

	// WS serves the websocket upgrade; optional.
	WS http.Handler
	// UploadDir is served at /uploads/ when set.
	UploadDir string

	JWTSecret   string
	Origins     []string
	SendLimiter *middleware.UserRateLimiter
}

func NewRouter(rt Routes) http.Handler {
	auth := middleware.Auth(rt.JWTSecret)
	protected := func(h http.HandlerFunc) http.Handler {
		return auth(h)
	}
	limited := func(h http.HandlerFunc) http.Handler {
		if rt.SendLimiter == nil {
			return auth(h)
		}
		return auth(middleware.RateLimit(rt.SendLimiter)(h))
	}

	mux := http.NewServeMux()

	// Public
	mux.HandleFunc("GET /health", Health)
	mux.HandleFunc("POST /api/v1/auth/register", rt.Auth.Register)
	mux.HandleFunc("POST /api/v1/auth/login", rt.Auth.Login)

	// Protected - Auth & Users
	mux.Handle("GET /api/v1/auth/me", protected(rt.Auth.Me))
	mux.Handle("GET /api/v1/users", protected(rt.Users.List))
	mux.Handle("PATCH /api/v1/users/me", protected(rt.Users.UpdateMe))
	mux.Handle("GET /api/v1/users/{id}", protected(rt.Users.Get))

	// Protected - Messaging
	mux.Handle("GET /api/v1/conversations", protected(rt.Messages.Conversations))
	mux.Handle("GET /api/v1/messages/unread", protected(rt.Messages.Unread))
	mux.Handle("GET /api/v1/messages/{partnerId}", protected(rt.Messages.History))
	mux.Handle("POST /api/v1/messages/{partnerId}", limited(rt.Messages.Send))
	mux.Handle("POST /api/v1/messages/{partnerId}/read", protected(rt.Messages.MarkRead))
	mux.Handle("PUT /api/v1/typing/{partnerId}", protected(rt.Messages.SetTyping))

	// Products & Reviews
	mux.HandleFunc("GET /api/products", rt.Products.List)
	mux.HandleFunc("POST /api/products", rt.Products.Create)
	mux.HandleFunc("GET /api/products/{id}", rt.Products.Get)
	mux.HandleFunc("POST /api/products/{id}/reviews", rt.Products.AddReview)
	mux.Handle("DELETE /api/products/{id}", protected(rt.Products.Delete))

	// Uploads
	mux.HandleFunc("POST /api/uploads", rt.Uploads.Upload)
	if rt.UploadDir != "" {
		mux.Handle("GET /uploads/", http.StripPrefix("/uploads/", http.FileServer(http.Dir(rt.UploadDir))))
	}

	if rt.WS != nil {
		mux.Handle("GET /ws", rt.WS)
	}

	return middleware.Chain(mux,
		middleware.Logging,
		middleware.SecurityHeaders,
		middleware.CORS(rt.Origins),
	)
}
