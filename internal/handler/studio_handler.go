package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/genstudio/internal/middleware"
	"github.com/hitoshi/genstudio/internal/model"
	"github.com/hitoshi/genstudio/internal/security"
	"github.com/hitoshi/genstudio/internal/studio"
)

// WorkspaceProvider はセッションIDからWorkspaceを取得する。studio.Registryが実装する。
type WorkspaceProvider interface {
	Get(sessionID string) *studio.Workspace
}

// mediaFlow はImageFlowとVideoFlowに共通する操作。
type mediaFlow interface {
	SetPrompt(prompt string)
	UpdateOption(field, value string) error
	Submit(ctx context.Context) (model.Notice, error)
	Regenerate(ctx context.Context) (model.Notice, error)
	Results() []model.Result
	ResultAt(index int) (model.Result, bool)
	Download(ctx context.Context, rawURL string, index int) (*studio.Blob, model.Notice, error)
}

// StudioHandlerConfig は生成ハンドラーの設定。
type StudioHandlerConfig struct {
	// GenerationTimeout は1回の生成呼び出しの上限時間。0の場合はリクエストのコンテキストのみ。
	GenerationTimeout time.Duration
}

// StudioHandler は画像・動画生成フォームのHTTPハンドラー。
type StudioHandler struct {
	workspaces WorkspaceProvider
	sanitizer  security.PromptSanitizerService
	config     StudioHandlerConfig
	logger     *slog.Logger
}

// NewStudioHandler はStudioHandlerを生成する。
func NewStudioHandler(workspaces WorkspaceProvider, sanitizer security.PromptSanitizerService, config StudioHandlerConfig, logger *slog.Logger) *StudioHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &StudioHandler{
		workspaces: workspaces,
		sanitizer:  sanitizer,
		config:     config,
		logger:     logger,
	}
}

// updateFormRequest はフォーム変更リクエストのボディ。
// promptとfield/valueのどちらか、または両方を指定する。
type updateFormRequest struct {
	Prompt *string `json:"prompt"`
	Field  string  `json:"field"`
	Value  string  `json:"value"`
}

// generateRequest は生成リクエストのボディ。promptは省略可能。
type generateRequest struct {
	Prompt *string `json:"prompt"`
}

type noticeResponse struct {
	Notice  model.Notice   `json:"notice"`
	Results []model.Result `json:"results"`
	Count   int            `json:"count"`
}

type resultsResponse struct {
	Results    []model.Result `json:"results"`
	Count      int            `json:"count"`
	Generating bool           `json:"generating"`
	PlayingID  string         `json:"playing_id,omitempty"`
}

type imageFormResponse struct {
	Options model.ImageOptionCatalog `json:"options"`
	State   studio.ImageState        `json:"state"`
}

type videoFormResponse struct {
	Options model.VideoOptionCatalog `json:"options"`
	State   studio.VideoState        `json:"state"`
}

type toggleResponse struct {
	PlayingID string `json:"playing_id"`
}

// workspace はリクエストのセッションに紐づくWorkspaceを返す。
func (h *StudioHandler) workspace(w http.ResponseWriter, r *http.Request) (*studio.Workspace, bool) {
	sessionID, err := middleware.SessionIDFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return nil, false
	}
	return h.workspaces.Get(sessionID), true
}

// --- 画像 ---

// GetImageForm は画像フォームの選択肢と現在の状態を返す。
// GET /api/image/options
func (h *StudioHandler) GetImageForm(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}
	middleware.WriteJSON(w, http.StatusOK, imageFormResponse{
		Options: model.ImageOptions(),
		State:   ws.Image.State(),
	})
}

// UpdateImageForm は画像フォームのプロンプトまたはオプションを更新する。
// PUT /api/image/options
func (h *StudioHandler) UpdateImageForm(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}
	if !h.updateForm(w, r, ws.Image) {
		return
	}
	middleware.WriteJSON(w, http.StatusOK, ws.Image.State())
}

// GenerateImage は画像を生成する。
// POST /api/image/generate
func (h *StudioHandler) GenerateImage(w http.ResponseWriter, r *http.Request) {
	if ws, ok := h.workspace(w, r); ok {
		h.generate(w, r, model.MediaImage, ws.Image, false)
	}
}

// RegenerateImage は結果をクリアして同じ条件で画像を再生成する。
// POST /api/image/regenerate
func (h *StudioHandler) RegenerateImage(w http.ResponseWriter, r *http.Request) {
	if ws, ok := h.workspace(w, r); ok {
		h.generate(w, r, model.MediaImage, ws.Image, true)
	}
}

// ListImageResults は画像の生成結果を返す。
// GET /api/image/results
func (h *StudioHandler) ListImageResults(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}
	st := ws.Image.State()
	middleware.WriteJSON(w, http.StatusOK, resultsResponse{
		Results:    st.Results,
		Count:      len(st.Results),
		Generating: st.Generating,
	})
}

// DownloadImage は生成画像を添付ファイルとして返す。
// GET /api/image/results/{index}/download
func (h *StudioHandler) DownloadImage(w http.ResponseWriter, r *http.Request) {
	if ws, ok := h.workspace(w, r); ok {
		h.download(w, r, ws.Image)
	}
}

// --- 動画 ---

// GetVideoForm は動画フォームの選択肢と現在の状態を返す。
// GET /api/video/options
func (h *StudioHandler) GetVideoForm(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}
	middleware.WriteJSON(w, http.StatusOK, videoFormResponse{
		Options: model.VideoOptions(),
		State:   ws.Video.State(),
	})
}

// UpdateVideoForm は動画フォームのプロンプトまたはオプションを更新する。
// PUT /api/video/options
func (h *StudioHandler) UpdateVideoForm(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}
	if !h.updateForm(w, r, ws.Video) {
		return
	}
	middleware.WriteJSON(w, http.StatusOK, ws.Video.State())
}

// GenerateVideo は動画を生成する。
// POST /api/video/generate
func (h *StudioHandler) GenerateVideo(w http.ResponseWriter, r *http.Request) {
	if ws, ok := h.workspace(w, r); ok {
		h.generate(w, r, model.MediaVideo, ws.Video, false)
	}
}

// RegenerateVideo は結果をクリアして同じ条件で動画を再生成する。
// POST /api/video/regenerate
func (h *StudioHandler) RegenerateVideo(w http.ResponseWriter, r *http.Request) {
	if ws, ok := h.workspace(w, r); ok {
		h.generate(w, r, model.MediaVideo, ws.Video, true)
	}
}

// ListVideoResults は動画の生成結果と再生中の結果IDを返す。
// GET /api/video/results
func (h *StudioHandler) ListVideoResults(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}
	st := ws.Video.State()
	middleware.WriteJSON(w, http.StatusOK, resultsResponse{
		Results:    st.Results,
		Count:      len(st.Results),
		Generating: st.Generating,
		PlayingID:  st.PlayingID,
	})
}

// DownloadVideo は生成動画を添付ファイルとして返す。
// GET /api/video/results/{index}/download
func (h *StudioHandler) DownloadVideo(w http.ResponseWriter, r *http.Request) {
	if ws, ok := h.workspace(w, r); ok {
		h.download(w, r, ws.Video)
	}
}

// TogglePlayback は動画の再生・一時停止を切り替える。
// POST /api/video/results/{id}/toggle
func (h *StudioHandler) TogglePlayback(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}
	playing, err := ws.Video.TogglePlay(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, toggleResponse{PlayingID: playing})
}

// --- 共通処理 ---

// updateForm はリクエストボディをフォームに反映する。失敗時はレスポンスを書き込みfalseを返す。
func (h *StudioHandler) updateForm(w http.ResponseWriter, r *http.Request, f mediaFlow) bool {
	var req updateFormRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError())
		return false
	}
	if req.Prompt == nil && req.Field == "" {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError())
		return false
	}

	// オプションを先に検証し、不正な値の場合はプロンプトも変更しない
	if req.Field != "" {
		if err := f.UpdateOption(req.Field, req.Value); err != nil {
			h.writeError(w, err)
			return false
		}
	}
	if req.Prompt != nil {
		f.SetPrompt(h.sanitizer.Sanitize(*req.Prompt))
	}
	return true
}

func (h *StudioHandler) generate(w http.ResponseWriter, r *http.Request, kind model.MediaKind, f mediaFlow, regenerate bool) {
	if r.ContentLength != 0 {
		var req generateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError())
			return
		}
		if req.Prompt != nil {
			f.SetPrompt(h.sanitizer.Sanitize(*req.Prompt))
		}
	}

	ctx := r.Context()
	if h.config.GenerationTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.config.GenerationTimeout)
		defer cancel()
	}

	var (
		notice model.Notice
		err    error
	)
	if regenerate {
		notice, err = f.Regenerate(ctx)
	} else {
		notice, err = f.Submit(ctx)
	}
	if err != nil {
		h.writeError(w, err)
		return
	}

	results := f.Results()
	h.logger.Info("generation completed",
		slog.String("kind", string(kind)),
		slog.Int("count", len(results)),
		slog.Bool("regenerate", regenerate),
	)
	middleware.WriteJSON(w, http.StatusOK, noticeResponse{
		Notice:  notice,
		Results: results,
		Count:   len(results),
	})
}

func (h *StudioHandler) download(w http.ResponseWriter, r *http.Request, f mediaFlow) {
	rawIndex := chi.URLParam(r, "index")
	index, err := strconv.Atoi(rawIndex)
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusNotFound, model.NewResultNotFoundError(rawIndex))
		return
	}
	result, ok := f.ResultAt(index)
	if !ok {
		middleware.WriteErrorResponse(w, http.StatusNotFound, model.NewResultNotFoundError(rawIndex))
		return
	}

	blob, _, err := f.Download(r.Context(), result.URL, index)
	if err != nil {
		h.writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", blob.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", blob.Filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(blob.Data)))
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	w.Write(blob.Data)
}

// writeError はstudioのエラーをHTTPステータスと統一エラーボディに変換する。
func (h *StudioHandler) writeError(w http.ResponseWriter, err error) {
	status, apiErr := classifyError(err)
	if status >= http.StatusInternalServerError && status != http.StatusBadGateway {
		h.logger.Error("studio request failed", slog.String("error", err.Error()))
	}
	middleware.WriteErrorResponse(w, status, apiErr)
}

func classifyError(err error) (int, *model.APIError) {
	var apiErr *model.APIError
	hasAPIErr := errors.As(err, &apiErr)

	switch {
	case errors.Is(err, studio.ErrURLRejected), errors.Is(err, security.ErrBlockedURL):
		return http.StatusForbidden, model.NewSSRFBlockedError()
	case errors.Is(err, studio.ErrEmptyPrompt):
		return http.StatusBadRequest, apiErr
	case errors.Is(err, model.ErrInvalidOption), errors.Is(err, studio.ErrUnknownField):
		return http.StatusBadRequest, model.NewInvalidOptionError(strings.TrimPrefix(err.Error(), model.ErrInvalidOption.Error()+": "))
	case errors.Is(err, studio.ErrBusy):
		return http.StatusConflict, apiErr
	case errors.Is(err, studio.ErrGenerationFailed), errors.Is(err, studio.ErrDownloadFailed):
		return http.StatusBadGateway, apiErr
	case hasAPIErr && apiErr.Code == model.ErrCodeResultNotFound:
		return http.StatusNotFound, apiErr
	default:
		return http.StatusInternalServerError, model.NewInternalError()
	}
}
