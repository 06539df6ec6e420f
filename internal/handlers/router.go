package handlers

import (
	"net/http"
	"taskManager/internal/middleware"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

type RouterConfig struct {
	CORSOrigins  []string
	RateLimitRPM int
}

// NewRouter собирает маршруты API. Пути принимаются как с завершающим '/', так и без него.
func NewRouter(tasks *TaskHandler, users *UserHandler, authn middleware.Authenticator, cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logging)
	r.Use(middleware.RateLimit(cfg.RateLimitRPM))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID", "X-RateLimit-Remaining"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(chimw.StripSlashes)
	r.Use(middleware.Authenticate(authn))

	r.Get("/health", tasks.HealthCheck) // GET /health

	r.Post("/auth/login", users.Login) // POST /auth/login/
	r.Post("/users", users.Register)   // POST /users/

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireActor)

		r.Get("/auth/me", users.Me) // GET /auth/me/

		r.Route("/tasks", func(r chi.Router) {
			r.Get("/", tasks.ListTasks)   // GET /tasks/
			r.Post("/", tasks.CreateTask) // POST /tasks/

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", tasks.GetTask)       // GET /tasks/{id}/
				r.Put("/", tasks.ReplaceTask)   // PUT /tasks/{id}/
				r.Patch("/", tasks.PatchTask)   // PATCH /tasks/{id}/
				r.Delete("/", tasks.DeleteTask) // DELETE /tasks/{id}/

				r.Post("/mark_complete", tasks.MarkComplete)     // POST /tasks/{id}/mark_complete/
				r.Post("/mark_incomplete", tasks.MarkIncomplete) // POST /tasks/{id}/mark_incomplete/
			})
		})

		r.Get("/users", users.ListUsers) // GET /users/
		r.Route("/users/{id}", func(r chi.Router) {
			r.Get("/", users.GetUser)       // GET /users/{id}/
			r.Put("/", users.ReplaceUser)   // PUT /users/{id}/
			r.Patch("/", users.PatchUser)   // PATCH /users/{id}/
			r.Delete("/", users.DeleteUser) // DELETE /users/{id}/
		})
	})

	return r
}
