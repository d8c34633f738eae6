package routers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"coderoom/internal/api"
)

func New(h *api.Handlers) http.Handler {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
	}))

	r.Get("/api/v1/healthz", h.Health)

	r.Post("/api/v1/rooms", h.CreateRoom)
	r.Post("/api/v1/rooms/join", h.JoinRoom)
	r.Get("/api/v1/rooms", h.ListRooms)
	r.Get("/api/v1/rooms/{roomID}", h.GetRoom)

	r.Post("/api/v1/generate", h.GenerateCode)

	r.Get("/ws/rooms/{roomID}", h.RoomWS)

	return r
}
