// Package v1 exposes the REST API: auth, program selection, chat and the
// admin content/user surface.
package v1

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/acswi/programchat/internal/profile"
	"github.com/acswi/programchat/plugin/textextract"
	pipeerr "github.com/acswi/programchat/server/internal/errors"
	"github.com/acswi/programchat/server/middleware"
	"github.com/acswi/programchat/server/service/answer"
	"github.com/acswi/programchat/server/service/ingest"
	"github.com/acswi/programchat/store"
)

type APIV1Service struct {
	Secret  string
	Profile *profile.Profile
	Store   *store.Store

	AnswerService *answer.Service
	IngestService *ingest.Service
	Extractor     *textextract.Client // nil disables document uploads
}

func NewAPIV1Service(secret string, prof *profile.Profile, st *store.Store, answerService *answer.Service, ingestService *ingest.Service, extractor *textextract.Client) *APIV1Service {
	return &APIV1Service{
		Secret:        secret,
		Profile:       prof,
		Store:         st,
		AnswerService: answerService,
		IngestService: ingestService,
		Extractor:     extractor,
	}
}

// RegisterRoutes wires all API routes onto the echo instance.
func (s *APIV1Service) RegisterRoutes(e *echo.Echo, limiter *middleware.RateLimiter) {
	api := e.Group("/api/v1")
	if limiter != nil {
		api.Use(limiter.Middleware())
	}

	api.POST("/auth/register", s.Register)
	api.POST("/auth/login", s.Login)

	authed := api.Group("", s.AuthMiddleware)
	authed.GET("/programs", s.ListPrograms)
	authed.POST("/chat", s.Chat)
	authed.GET("/chat/history", s.ChatHistory)
	authed.POST("/clear_chat_history", s.ClearChatHistory)

	admin := authed.Group("/admin", s.AdminMiddleware)
	admin.POST("/upload", s.Upload)
	admin.POST("/update_chatbot_content", s.UpdateChatbotContent)
	admin.GET("/users/export", s.ExportUsers)
	admin.DELETE("/users/:id", s.DeleteUser)
}

type errorResponse struct {
	Error   string                 `json:"error"`
	Code    string                 `json:"code"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// sendError maps pipeline error codes onto HTTP statuses. Quota exhaustion
// never reaches here; it is a successful payload by design of the pipeline.
func sendError(c echo.Context, err error) error {
	var pErr *pipeerr.PipelineError
	if !errors.As(err, &pErr) {
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: "internal server error", Code: string(pipeerr.ErrCodePersistenceFailure)})
	}

	status := http.StatusInternalServerError
	switch pErr.Code {
	case pipeerr.ErrCodeNoProgramSelected, pipeerr.ErrCodeInvalidArgument,
		pipeerr.ErrCodeBudgetExceeded, pipeerr.ErrCodeSummarizationFailed:
		status = http.StatusBadRequest
	case pipeerr.ErrCodeUnauthorized:
		status = http.StatusUnauthorized
	case pipeerr.ErrCodeAccessDenied:
		status = http.StatusForbidden
	case pipeerr.ErrCodeProgramNotFound:
		status = http.StatusNotFound
	case pipeerr.ErrCodeLLMTimeout:
		status = http.StatusGatewayTimeout
	}

	return c.JSON(status, errorResponse{
		Error:   pErr.Message,
		Code:    string(pErr.Code),
		Details: pErr.Context,
	})
}
