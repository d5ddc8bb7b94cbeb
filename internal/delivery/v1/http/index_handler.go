package http

import (
	"net/http"

	"github.com/DRSN-tech/clip-backend/internal/usecase"
	"github.com/DRSN-tech/clip-backend/pkg/logger"
)

type IndexHandler struct {
	indexUsecase usecase.IndexUC
	logger       logger.Logger
}

func NewIndexHandler(indexUsecase usecase.IndexUC, logger logger.Logger) *IndexHandler {
	return &IndexHandler{indexUsecase: indexUsecase, logger: logger}
}

// indexImages
//
//	@Summary		Индексация изображений
//	@Description	Сохраняет изображения в MinIO, метаданные в PostgreSQL и эмбеддинги в Qdrant
//	@Tags			images
//	@Accept			multipart/form-data
//	@Produce		json
//	@Param			images	formData	file	true	"Изображения"
//	@Success		201		{object}	IndexImagesResponse
//	@Failure		400		{object}	ErrorResponse	"Ошибка валидации"
//	@Failure		415		{object}	ErrorResponse	"Неподдерживаемый формат"
//	@Router			/images [post]
func (h *IndexHandler) indexImages(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxImageCount*maxFileSize)

	if err := ensureMultipartForm(r); err != nil {
		logFailure(h.logger, r, err)
		WriteError(w, err)
		return
	}

	images, err := parseImages(r.MultipartForm.File["images"])
	if err != nil {
		logFailure(h.logger, r, err)
		WriteError(w, err)
		return
	}

	res, err := h.indexUsecase.IndexImages(r.Context(), usecase.NewIndexImagesReq(images))
	if err != nil {
		logFailure(h.logger, r, err)
		WriteError(w, err)
		return
	}

	h.logger.Infof("indexed %d images", len(res.Images))
	WriteSuccess(w, http.StatusCreated, IndexImagesResponse{Images: toArrImageResponse(res.Images)})
}

// searchByText
//
//	@Summary		Поиск изображений по тексту
//	@Tags			images
//	@Produce		json
//	@Param			q			query		string	true	"Запрос"
//	@Param			limit		query		int		false	"Количество результатов (5, максимум 100)"
//	@Param			min_score	query		number	false	"Минимальное сходство в [-1, 1]"
//	@Success		200			{object}	SearchResponse
//	@Failure		400			{object}	ErrorResponse	"Ошибка валидации"
//	@Router			/search [get]
func (h *IndexHandler) searchByText(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	limit, err := parseLimit(q.Get("limit"))
	if err != nil {
		logFailure(h.logger, r, err)
		WriteError(w, err)
		return
	}

	minScore, err := parseMinScore(q.Get("min_score"))
	if err != nil {
		logFailure(h.logger, r, err)
		WriteError(w, err)
		return
	}

	hits, err := h.indexUsecase.SearchByText(r.Context(), usecase.NewSearchByTextReq(q.Get("q"), limit, minScore))
	if err != nil {
		logFailure(h.logger, r, err)
		WriteError(w, err)
		return
	}

	WriteSuccess(w, http.StatusOK, SearchResponse{Hits: toArrSearchHitResponse(hits)})
}

// searchByImage
//
//	@Summary		Поиск похожих изображений
//	@Tags			images
//	@Accept			multipart/form-data
//	@Produce		json
//	@Param			image		formData	file	true	"Изображение-запрос"
//	@Param			limit		formData	int		false	"Количество результатов (5, максимум 100)"
//	@Param			min_score	formData	number	false	"Минимальное сходство в [-1, 1]"
//	@Success		200			{object}	SearchResponse
//	@Failure		400			{object}	ErrorResponse	"Ошибка валидации"
//	@Router			/search/image [post]
func (h *IndexHandler) searchByImage(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 2*maxFileSize)

	if err := ensureMultipartForm(r); err != nil {
		logFailure(h.logger, r, err)
		WriteError(w, err)
		return
	}

	image, err := parseImage(r, "image")
	if err != nil {
		logFailure(h.logger, r, err)
		WriteError(w, err)
		return
	}

	limit, err := parseLimit(r.FormValue("limit"))
	if err != nil {
		logFailure(h.logger, r, err)
		WriteError(w, err)
		return
	}

	minScore, err := parseMinScore(r.FormValue("min_score"))
	if err != nil {
		logFailure(h.logger, r, err)
		WriteError(w, err)
		return
	}

	hits, err := h.indexUsecase.SearchByImage(r.Context(), usecase.NewSearchByImageReq(*image, limit, minScore))
	if err != nil {
		logFailure(h.logger, r, err)
		WriteError(w, err)
		return
	}

	WriteSuccess(w, http.StatusOK, SearchResponse{Hits: toArrSearchHitResponse(hits)})
}
