package http

import (
	"net/http"

	_ "github.com/DRSN-tech/clip-backend/docs" // Импорт сгенерированных файлов
	"github.com/DRSN-tech/clip-backend/internal/usecase"
	"github.com/DRSN-tech/clip-backend/pkg/logger"
	"github.com/go-chi/chi/v5"
	httpSwagger "github.com/swaggo/http-swagger/v2"
)

type Router struct {
	router *chi.Mux
	logger logger.Logger
}

func NewRouter(router *chi.Mux, logger logger.Logger) *Router {
	return &Router{router: router, logger: logger}
}

func (r *Router) Init(clipUC usecase.ClipUC, indexUC usecase.IndexUC) {
	r.router.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"), // ссылка на JSON
	))

	r.router.Get("/healthz", healthz)

	r.router.Route("/api/v1", func(v1 chi.Router) {
		registerClipRoutes(v1, NewClipHandler(clipUC, r.logger))
		registerIndexRoutes(v1, NewIndexHandler(indexUC, r.logger))
	})
}

func registerClipRoutes(router chi.Router, h *ClipHandler) {
	router.Get("/model", h.modelInfo)
	router.Post("/embeddings/text", h.encodeText)
	router.Post("/embeddings/images", h.encodeImages)
	router.Post("/similarity", h.similarity)
	router.Post("/compare", h.compare)
	router.Post("/classify", h.classify)
}

func registerIndexRoutes(router chi.Router, h *IndexHandler) {
	router.Post("/images", h.indexImages)
	router.Get("/search", h.searchByText)
	router.Post("/search/image", h.searchByImage)
}

// healthz
//
//	@Summary	Проверка живости
//	@Tags		health
//	@Success	200	{object}	map[string]string
//	@Router		/healthz [get]
func healthz(w http.ResponseWriter, _ *http.Request) {
	WriteSuccess(w, http.StatusOK, map[string]string{"status": "ok"})
}

// logFailure пишет 4xx как предупреждение, остальное как ошибку.
func logFailure(log logger.Logger, r *http.Request, err error) {
	code, _ := ToHTTPResponse(err)
	if code < http.StatusInternalServerError {
		log.Warnf("%d %s %s: %s", code, r.Method, r.URL.Path, err.Error())
		return
	}
	log.Errorf(err, "%d %s %s", code, r.Method, r.URL.Path)
}
