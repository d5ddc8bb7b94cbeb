package http

import (
	"net/http"
	"strconv"

	"github.com/DRSN-tech/clip-backend/internal/usecase"
	"github.com/DRSN-tech/clip-backend/pkg/e"
	"github.com/DRSN-tech/clip-backend/pkg/logger"
)

type ClipHandler struct {
	clipUsecase usecase.ClipUC
	logger      logger.Logger
}

func NewClipHandler(clipUsecase usecase.ClipUC, logger logger.Logger) *ClipHandler {
	return &ClipHandler{clipUsecase: clipUsecase, logger: logger}
}

// fail логирует ошибку запроса и пишет ответ.
func (h *ClipHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	logFailure(h.logger, r, err)
	WriteError(w, err)
}

// modelInfo
//
//	@Summary		Информация о модели
//	@Description	Путь к модели и гиперпараметры энкодеров
//	@Tags			clip
//	@Produce		json
//	@Success		200	{object}	ModelInfoResponse
//	@Failure		503	{object}	ErrorResponse	"Модель не загружена"
//	@Router			/model [get]
func (h *ClipHandler) modelInfo(w http.ResponseWriter, r *http.Request) {
	info, err := h.clipUsecase.ModelInfo(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}

	WriteSuccess(w, http.StatusOK, toModelInfoResponse(info))
}

// encodeText
//
//	@Summary		Эмбеддинг текста
//	@Description	Кодирует текст; по умолчанию вектор нормализуется
//	@Tags			embeddings
//	@Accept			json
//	@Produce		json
//	@Param			request	body		EncodeTextRequest	true	"Текст"
//	@Success		200		{object}	EmbeddingResponse
//	@Failure		400		{object}	ErrorResponse	"Ошибка валидации"
//	@Router			/embeddings/text [post]
func (h *ClipHandler) encodeText(w http.ResponseWriter, r *http.Request) {
	var req EncodeTextRequest
	if err := decodeJSON(r, w, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	normalize := req.Normalize == nil || *req.Normalize
	emb, err := h.clipUsecase.EncodeText(r.Context(), usecase.NewEncodeTextReq(req.Text, normalize))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	WriteSuccess(w, http.StatusOK, toEmbeddingResponse(emb))
}

// encodeImages
//
//	@Summary		Эмбеддинги изображений
//	@Description	Кодирует пачку изображений, порядок ответа совпадает с порядком файлов
//	@Tags			embeddings
//	@Accept			multipart/form-data
//	@Produce		json
//	@Param			images		formData	file	true	"Изображения"
//	@Param			normalize	formData	bool	false	"Нормализовать векторы (true)"
//	@Success		200			{object}	EmbeddingsResponse
//	@Failure		400			{object}	ErrorResponse	"Ошибка валидации"
//	@Failure		415			{object}	ErrorResponse	"Неподдерживаемый формат"
//	@Router			/embeddings/images [post]
func (h *ClipHandler) encodeImages(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxImageCount*maxFileSize)

	if err := ensureMultipartForm(r); err != nil {
		h.fail(w, r, err)
		return
	}

	images, err := parseImages(r.MultipartForm.File["images"])
	if err != nil {
		h.fail(w, r, err)
		return
	}

	normalize := true
	if v := r.FormValue("normalize"); v != "" {
		if normalize, err = strconv.ParseBool(v); err != nil {
			h.fail(w, r, e.Wrap("normalize", e.ErrStatusBadRequest))
			return
		}
	}

	embs, err := h.clipUsecase.EncodeImages(r.Context(), usecase.NewEncodeImagesReq(images, normalize))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	WriteSuccess(w, http.StatusOK, EmbeddingsResponse{Embeddings: toArrEmbeddingResponse(embs)})
}

// similarity
//
//	@Summary		Сходство векторов
//	@Description	Косинусное сходство и скалярное произведение двух векторов одной размерности
//	@Tags			clip
//	@Accept			json
//	@Produce		json
//	@Param			request	body		SimilarityRequest	true	"Векторы"
//	@Success		200		{object}	SimilarityResponse
//	@Failure		400		{object}	ErrorResponse	"Ошибка валидации"
//	@Router			/similarity [post]
func (h *ClipHandler) similarity(w http.ResponseWriter, r *http.Request) {
	var req SimilarityRequest
	if err := decodeJSON(r, w, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	res, err := h.clipUsecase.Similarity(r.Context(), req.A, req.B)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	WriteSuccess(w, http.StatusOK, SimilarityResponse{Cosine: res.Cosine, Dot: res.Dot})
}

// compare
//
//	@Summary		Сравнение текста и изображения
//	@Description	Косинусное сходство нормализованных эмбеддингов текста и изображения
//	@Tags			clip
//	@Accept			multipart/form-data
//	@Produce		json
//	@Param			image	formData	file	true	"Изображение"
//	@Param			text	formData	string	true	"Текст"
//	@Success		200		{object}	CompareResponse
//	@Failure		400		{object}	ErrorResponse	"Ошибка валидации"
//	@Router			/compare [post]
func (h *ClipHandler) compare(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 2*maxFileSize)

	if err := ensureMultipartForm(r); err != nil {
		h.fail(w, r, err)
		return
	}

	image, err := parseImage(r, "image")
	if err != nil {
		h.fail(w, r, err)
		return
	}

	res, err := h.clipUsecase.CompareTextImage(r.Context(), usecase.NewCompareReq(r.FormValue("text"), *image))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	WriteSuccess(w, http.StatusOK, CompareResponse{Score: res.Score})
}

// classify
//
//	@Summary		Zero-shot классификация
//	@Description	Вероятности меток для изображения, по убыванию
//	@Tags			clip
//	@Accept			multipart/form-data
//	@Produce		json
//	@Param			image	formData	file	true	"Изображение"
//	@Param			labels	formData	[]string	true	"Метки (повтор поля или через запятую)"
//	@Param			top_k	formData	int		false	"Сколько меток вернуть"
//	@Success		200		{object}	ClassifyResponse
//	@Failure		400		{object}	ErrorResponse	"Ошибка валидации"
//	@Router			/classify [post]
func (h *ClipHandler) classify(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 2*maxFileSize)

	if err := ensureMultipartForm(r); err != nil {
		h.fail(w, r, err)
		return
	}

	image, err := parseImage(r, "image")
	if err != nil {
		h.fail(w, r, err)
		return
	}

	topK, err := parseLimit(r.FormValue("top_k"))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	labels, err := h.clipUsecase.ZeroShotClassify(r.Context(), usecase.NewClassifyReq(*image, formValues(r, "labels"), topK))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	WriteSuccess(w, http.StatusOK, ClassifyResponse{Labels: toArrLabelResponse(labels)})
}
