package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/DRSN-tech/clip-backend/internal/domain"
	"github.com/DRSN-tech/clip-backend/internal/usecase"
	"github.com/DRSN-tech/clip-backend/pkg/e"
	"github.com/DRSN-tech/clip-backend/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClipUC struct {
	err        error
	lastText   *usecase.EncodeTextReq
	lastImages *usecase.EncodeImagesReq
	lastLabels *usecase.ClassifyReq
}

func (f *fakeClipUC) ModelInfo(context.Context) (*domain.ModelInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	return domain.NewModelInfo("models/clip.gguf", domain.DefaultVisionHyperParams, domain.DefaultTextHyperParams), nil
}

func (f *fakeClipUC) EncodeText(_ context.Context, req *usecase.EncodeTextReq) (*domain.Embedding, error) {
	f.lastText = req
	if f.err != nil {
		return nil, f.err
	}
	return domain.NewEmbedding(domain.ModalityText, []float32{0.6, 0.8}, req.Normalize), nil
}

func (f *fakeClipUC) EncodeImages(_ context.Context, req *usecase.EncodeImagesReq) ([]domain.Embedding, error) {
	f.lastImages = req
	if f.err != nil {
		return nil, f.err
	}
	out := make([]domain.Embedding, len(req.Images))
	for i := range req.Images {
		out[i] = *domain.NewEmbedding(domain.ModalityImage, []float32{float32(i), 1}, req.Normalize)
	}
	return out, nil
}

func (f *fakeClipUC) EncodePixels(context.Context, *usecase.EncodePixelsReq) (*domain.Embedding, error) {
	return nil, f.err
}

func (f *fakeClipUC) EncodePixelsBatch(context.Context, *usecase.EncodePixelsBatchReq) ([]domain.Embedding, error) {
	return nil, f.err
}

func (f *fakeClipUC) Similarity(_ context.Context, a, b []float32) (*usecase.SimilarityRes, error) {
	if len(a) == 0 || len(a) != len(b) {
		return nil, e.Wrap("similarity", e.ErrInvalidArgument)
	}
	return &usecase.SimilarityRes{Cosine: 1, Dot: 2}, nil
}

func (f *fakeClipUC) CompareTextImage(_ context.Context, req *usecase.CompareReq) (*usecase.CompareRes, error) {
	if req.Text == "" {
		return nil, e.ErrEmptyText
	}
	return &usecase.CompareRes{Score: 0.31}, nil
}

func (f *fakeClipUC) ZeroShotClassify(_ context.Context, req *usecase.ClassifyReq) ([]domain.Label, error) {
	f.lastLabels = req
	if len(req.Labels) < 2 {
		return nil, e.ErrNotEnoughLabels
	}
	return []domain.Label{{Index: 1, Text: req.Labels[1], Score: 0.9}, {Index: 0, Text: req.Labels[0], Score: 0.1}}, nil
}

type fakeIndexUC struct {
	err        error
	lastSearch *usecase.SearchByTextReq
}

func (f *fakeIndexUC) IndexImages(_ context.Context, req *usecase.IndexImagesReq) (*usecase.IndexImagesRes, error) {
	if f.err != nil {
		return nil, f.err
	}
	res := &usecase.IndexImagesRes{}
	for i, img := range req.Images {
		res.Images = append(res.Images, domain.IndexedImage{ID: fmt.Sprintf("id-%d", i), Name: img.Name, MimeType: img.MimeType, Width: 2, Height: 2})
	}
	return res, nil
}

func (f *fakeIndexUC) SearchByText(_ context.Context, req *usecase.SearchByTextReq) ([]domain.SearchHit, error) {
	f.lastSearch = req
	if f.err != nil {
		return nil, f.err
	}
	return []domain.SearchHit{{Image: domain.IndexedImage{ID: "id-1", Name: "cat.png"}, Score: 0.42}}, nil
}

func (f *fakeIndexUC) SearchByImage(context.Context, *usecase.SearchByImageReq) ([]domain.SearchHit, error) {
	return nil, f.err
}

func newTestRouter(clipUC usecase.ClipUC, indexUC usecase.IndexUC) http.Handler {
	r := chi.NewRouter()
	NewRouter(r, logger.Nop()).Init(clipUC, indexUC)
	return r
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

type formFile struct {
	field, name string
	data        []byte
}

func multipartRequest(t *testing.T, path string, files []formFile, values map[string][]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for _, f := range files {
		fw, err := mw.CreateFormFile(f.field, f.name)
		require.NoError(t, err)
		_, err = fw.Write(f.data)
		require.NoError(t, err)
	}
	for k, vs := range values {
		for _, v := range vs {
			require.NoError(t, mw.WriteField(k, v))
		}
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func jsonRequest(path, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRouter_Healthz(t *testing.T) {
	rec := serve(newTestRouter(&fakeClipUC{}, &fakeIndexUC{}), httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestClipHandler_ModelInfo(t *testing.T) {
	tests := map[string]struct {
		err  error
		code int
	}{
		"loaded":     {code: http.StatusOK},
		"not loaded": {err: e.Wrap("Engine.Info", e.ErrModelNotLoaded), code: http.StatusServiceUnavailable},
		"closed":     {err: e.ErrModelClosed, code: http.StatusServiceUnavailable},
		"internal":   {err: fmt.Errorf("boom"), code: http.StatusInternalServerError},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			h := newTestRouter(&fakeClipUC{err: tt.err}, &fakeIndexUC{})

			rec := serve(h, httptest.NewRequest(http.MethodGet, "/api/v1/model", nil))

			assert.Equal(t, tt.code, rec.Code)
			if tt.code == http.StatusOK {
				var res ModelInfoResponse
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
				assert.Equal(t, 512, res.ProjectionDim)
				assert.Equal(t, "models/clip.gguf", res.ModelPath)
			}
		})
	}
}

func TestClipHandler_EncodeText(t *testing.T) {
	clipUC := &fakeClipUC{}
	h := newTestRouter(clipUC, &fakeIndexUC{})

	rec := serve(h, jsonRequest("/api/v1/embeddings/text", `{"text":"a photo of a cat"}`))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, clipUC.lastText.Normalize)
	assert.Equal(t, "a photo of a cat", clipUC.lastText.Text)

	var res EmbeddingResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, "text", res.Kind)
	assert.Equal(t, 2, res.Dim)

	rec = serve(h, jsonRequest("/api/v1/embeddings/text", `{"text":"x","normalize":false}`))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, clipUC.lastText.Normalize)
}

func TestClipHandler_EncodeTextBadRequests(t *testing.T) {
	tests := map[string]*http.Request{
		"not json":      httptest.NewRequest(http.MethodPost, "/api/v1/embeddings/text", strings.NewReader("text")),
		"broken json":   jsonRequest("/api/v1/embeddings/text", `{"text":`),
		"unknown field": jsonRequest("/api/v1/embeddings/text", `{"prompt":"cat"}`),
	}

	for name, req := range tests {
		t.Run(name, func(t *testing.T) {
			rec := serve(newTestRouter(&fakeClipUC{}, &fakeIndexUC{}), req)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestClipHandler_EncodeImages(t *testing.T) {
	clipUC := &fakeClipUC{}
	h := newTestRouter(clipUC, &fakeIndexUC{})
	data := pngBytes(t)

	req := multipartRequest(t, "/api/v1/embeddings/images", []formFile{
		{field: "images", name: "a.png", data: data},
		{field: "images", name: "b.png", data: data},
	}, nil)
	rec := serve(h, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, clipUC.lastImages.Images, 2)
	assert.Equal(t, "image/png", clipUC.lastImages.Images[0].MimeType)
	assert.Equal(t, "b.png", clipUC.lastImages.Images[1].Name)

	var res EmbeddingsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	require.Len(t, res.Embeddings, 2)
	assert.Equal(t, []float32{1, 1}, res.Embeddings[1].Vector)
}

func TestClipHandler_EncodeImagesErrors(t *testing.T) {
	tests := map[string]struct {
		files []formFile
		code  int
	}{
		"no images":   {files: nil, code: http.StatusBadRequest},
		"not image":   {files: []formFile{{field: "images", name: "a.txt", data: []byte("plain text, not an image")}}, code: http.StatusUnsupportedMediaType},
		"empty image": {files: []formFile{{field: "images", name: "a.png", data: nil}}, code: http.StatusBadRequest},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			rec := serve(newTestRouter(&fakeClipUC{}, &fakeIndexUC{}), multipartRequest(t, "/api/v1/embeddings/images", tt.files, map[string][]string{"x": {"y"}}))

			assert.Equal(t, tt.code, rec.Code)
		})
	}
}

func TestClipHandler_Similarity(t *testing.T) {
	h := newTestRouter(&fakeClipUC{}, &fakeIndexUC{})

	rec := serve(h, jsonRequest("/api/v1/similarity", `{"a":[1,0],"b":[1,0]}`))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"cosine":1,"dot":2}`, rec.Body.String())

	rec = serve(h, jsonRequest("/api/v1/similarity", `{"a":[1,0],"b":[1]}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestClipHandler_Compare(t *testing.T) {
	h := newTestRouter(&fakeClipUC{}, &fakeIndexUC{})
	img := []formFile{{field: "image", name: "a.png", data: pngBytes(t)}}

	rec := serve(h, multipartRequest(t, "/api/v1/compare", img, map[string][]string{"text": {"a cat"}}))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"score":0.31}`, rec.Body.String())

	rec = serve(h, multipartRequest(t, "/api/v1/compare", img, nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(h, multipartRequest(t, "/api/v1/compare", nil, map[string][]string{"text": {"a cat"}}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestClipHandler_Classify(t *testing.T) {
	clipUC := &fakeClipUC{}
	h := newTestRouter(clipUC, &fakeIndexUC{})
	img := []formFile{{field: "image", name: "a.png", data: pngBytes(t)}}

	rec := serve(h, multipartRequest(t, "/api/v1/classify", img, map[string][]string{
		"labels": {"a dog, a cat", " a bird "},
		"top_k":  {"2"},
	}))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"a dog", "a cat", "a bird"}, clipUC.lastLabels.Labels)
	assert.Equal(t, 2, clipUC.lastLabels.TopK)

	var res ClassifyResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	require.Len(t, res.Labels, 2)
	assert.Equal(t, "a cat", res.Labels[0].Label)

	rec = serve(h, multipartRequest(t, "/api/v1/classify", img, map[string][]string{"labels": {"only"}}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(h, multipartRequest(t, "/api/v1/classify", img, map[string][]string{"labels": {"a,b"}, "top_k": {"-1"}}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestIndexHandler_IndexImages(t *testing.T) {
	h := newTestRouter(&fakeClipUC{}, &fakeIndexUC{})

	rec := serve(h, multipartRequest(t, "/api/v1/images", []formFile{{field: "images", name: "cat.png", data: pngBytes(t)}}, nil))

	require.Equal(t, http.StatusCreated, rec.Code)
	var res IndexImagesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	require.Len(t, res.Images, 1)
	assert.Equal(t, "cat.png", res.Images[0].Name)

	h = newTestRouter(&fakeClipUC{}, &fakeIndexUC{err: e.ErrEngineUnavailable})
	rec = serve(h, multipartRequest(t, "/api/v1/images", []formFile{{field: "images", name: "cat.png", data: pngBytes(t)}}, nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestIndexHandler_SearchByText(t *testing.T) {
	tests := map[string]struct {
		query     url.Values
		code      int
		wantLimit int
		wantScore *float32
	}{
		"defaults": {
			query: url.Values{"q": {"cat"}},
			code:  http.StatusOK,
		},
		"limit and score": {
			query:     url.Values{"q": {"cat"}, "limit": {"10"}, "min_score": {"0.25"}},
			code:      http.StatusOK,
			wantLimit: 10,
			wantScore: ptr(float32(0.25)),
		},
		"score precision": {
			query: url.Values{"q": {"cat"}, "min_score": {"0.12345"}},
			code:  http.StatusBadRequest,
		},
		"score out of range": {
			query: url.Values{"q": {"cat"}, "min_score": {"1.5"}},
			code:  http.StatusBadRequest,
		},
		"bad limit": {
			query: url.Values{"q": {"cat"}, "limit": {"ten"}},
			code:  http.StatusBadRequest,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			indexUC := &fakeIndexUC{}
			h := newTestRouter(&fakeClipUC{}, indexUC)

			rec := serve(h, httptest.NewRequest(http.MethodGet, "/api/v1/search?"+tt.query.Encode(), nil))

			require.Equal(t, tt.code, rec.Code)
			if tt.code != http.StatusOK {
				assert.Nil(t, indexUC.lastSearch)
				return
			}
			assert.Equal(t, "cat", indexUC.lastSearch.Query)
			assert.Equal(t, tt.wantLimit, indexUC.lastSearch.Limit)
			assert.Equal(t, tt.wantScore, indexUC.lastSearch.MinScore)

			var res SearchResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
			require.Len(t, res.Hits, 1)
			assert.Equal(t, float32(0.42), res.Hits[0].Score)
		})
	}
}

func TestParseMinScore(t *testing.T) {
	tests := map[string]struct {
		in   string
		want *float32
		err  error
	}{
		"empty":       {in: "", want: nil},
		"negative":    {in: "-1", want: ptr(float32(-1))},
		"precise":     {in: "0.1250", want: ptr(float32(0.125))},
		"zeros":       {in: "0.25000", want: ptr(float32(0.25))},
		"too fine":    {in: "0.00001", err: e.ErrScorePrecision},
		"five digits": {in: "0.12345", err: e.ErrScorePrecision},
		"too large":   {in: "2", err: e.ErrInvalidScore},
		"garbage":     {in: "high", err: e.ErrInvalidScore},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			got, err := parseMinScore(tt.in)
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestToHTTPResponse(t *testing.T) {
	tests := map[string]struct {
		err  error
		code int
	}{
		"invalid argument": {err: e.Wrap("op", e.ErrInvalidArgument), code: http.StatusBadRequest},
		"encode":           {err: e.ErrEncode, code: http.StatusBadRequest},
		"unsupported":      {err: e.ErrUnsupportedMediaType, code: http.StatusUnsupportedMediaType},
		"not loaded":       {err: e.ErrModelNotLoaded, code: http.StatusServiceUnavailable},
		"unavailable":      {err: e.ErrEngineUnavailable, code: http.StatusServiceUnavailable},
		"duplicate":        {err: e.Wrap("op", e.ErrDuplicate), code: http.StatusConflict},
		"load":             {err: e.ErrLoad, code: http.StatusInternalServerError},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			code, _ := ToHTTPResponse(tt.err)
			assert.Equal(t, tt.code, code)
		})
	}
}

func ptr[T any](v T) *T {
	return &v
}
