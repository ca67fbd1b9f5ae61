package v1

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	pipeerr "github.com/acswi/programchat/server/internal/errors"
	"github.com/acswi/programchat/server/internal/observability"
	"github.com/acswi/programchat/store"
)

type chatRequest struct {
	Program string `json:"program"`
	Message string `json:"message"`
}

type programView struct {
	Code         string `json:"code"`
	Name         string `json:"name"`
	Description  string `json:"description"`
	Category     string `json:"category"`
	DailyQuota   int32  `json:"daily_quota"`
	IntroMessage string `json:"intro_message"`
}

type turnView struct {
	Question  string `json:"question"`
	Answer    string `json:"answer"`
	CreatedTs int64  `json:"created_ts"`
}

type historyResponse struct {
	Turns []turnView `json:"turns"`
	// RetentionWarning is set when any visible turn has been stamped for
	// upcoming deletion; the UI renders a banner.
	RetentionWarning bool `json:"retention_warning"`
}

// ListPrograms returns active programs the user can access.
func (s *APIV1Service) ListPrograms(c echo.Context) error {
	user := currentUser(c)
	active := true
	programs, err := s.Store.ListPrograms(c.Request().Context(), &store.FindProgram{Active: &active})
	if err != nil {
		return sendError(c, pipeerr.PersistenceFailure(err))
	}

	views := make([]programView, 0, len(programs))
	for _, program := range programs {
		if !userHasAccess(user, program) {
			continue
		}
		views = append(views, programView{
			Code:         program.Code,
			Name:         program.Name,
			Description:  program.Description,
			Category:     program.Category,
			DailyQuota:   program.DailyQuota,
			IntroMessage: renderIntroMessage(program),
		})
	}
	return c.JSON(http.StatusOK, map[string]any{"programs": views})
}

// renderIntroMessage substitutes the {program} and {quota} placeholders.
func renderIntroMessage(program *store.Program) string {
	intro := program.IntroMessage
	name := program.Name
	if name == "" {
		name = program.Code
	}
	intro = strings.ReplaceAll(intro, "{program}", name)
	quota := "unlimited"
	if program.DailyQuota > 0 {
		quota = strconv.Itoa(int(program.DailyQuota))
	}
	return strings.ReplaceAll(intro, "{quota}", quota)
}

func userHasAccess(user *store.User, program *store.Program) bool {
	if len(program.AccessTags) == 0 {
		return true
	}
	tags := make(map[string]bool, len(user.AccessTags))
	for _, tag := range user.AccessTags {
		tags[strings.ToLower(strings.TrimSpace(tag))] = true
	}
	for _, tag := range program.AccessTags {
		if tags[strings.ToLower(strings.TrimSpace(tag))] {
			return true
		}
	}
	return false
}

// Chat answers one question against a program.
func (s *APIV1Service) Chat(c echo.Context) error {
	var req chatRequest
	if err := c.Bind(&req); err != nil {
		return sendError(c, pipeerr.InvalidArgument("malformed request body"))
	}
	if strings.TrimSpace(req.Message) == "" {
		return sendError(c, pipeerr.InvalidArgument("message is required"))
	}

	user := currentUser(c)
	reqCtx := observability.NewRequestContext(slog.Default(), store.NormalizeProgramCode(req.Program), user.ID)
	ctx := observability.WithRequestContext(c.Request().Context(), reqCtx)

	result, err := s.AnswerService.Answer(ctx, user, req.Program, req.Message)
	if err != nil {
		reqCtx.Error("chat request failed", err,
			slog.String(observability.LogFieldErrorCode, string(pipeerr.GetCodeFromError(err, pipeerr.ErrCodePersistenceFailure))),
			slog.Int64(observability.LogFieldDuration, reqCtx.DurationMs()))
		return sendError(c, err)
	}
	reqCtx.Info("chat request served", slog.Int64(observability.LogFieldDuration, reqCtx.DurationMs()))
	return c.JSON(http.StatusOK, result)
}

// ChatHistory returns the user's visible turns for a program.
func (s *APIV1Service) ChatHistory(c echo.Context) error {
	programCode := strings.TrimSpace(c.QueryParam("program"))
	if programCode == "" {
		return sendError(c, pipeerr.NoProgramSelected())
	}

	user := currentUser(c)
	visible := true
	turns, err := s.Store.ListConversationTurns(c.Request().Context(), &store.FindConversationTurn{
		UserID:      &user.ID,
		ProgramCode: &programCode,
		Visible:     &visible,
	})
	if err != nil {
		return sendError(c, pipeerr.PersistenceFailure(err))
	}

	response := historyResponse{Turns: make([]turnView, 0, len(turns))}
	for _, turn := range turns {
		response.Turns = append(response.Turns, turnView{
			Question:  turn.Question,
			Answer:    turn.Answer,
			CreatedTs: turn.CreatedTs,
		})
		if turn.NotifiedTs != nil {
			response.RetentionWarning = true
		}
	}
	return c.JSON(http.StatusOK, response)
}

// ClearChatHistory hides the user's turns for a program. Turns stay in the
// database, so the daily quota is unaffected.
func (s *APIV1Service) ClearChatHistory(c echo.Context) error {
	var req struct {
		Program string `json:"program"`
	}
	if err := c.Bind(&req); err != nil {
		return sendError(c, pipeerr.InvalidArgument("malformed request body"))
	}
	if strings.TrimSpace(req.Program) == "" {
		return sendError(c, pipeerr.NoProgramSelected())
	}

	user := currentUser(c)
	if err := s.Store.HideConversationTurns(c.Request().Context(), &store.HideConversationTurns{
		UserID:      user.ID,
		ProgramCode: req.Program,
	}); err != nil {
		return sendError(c, pipeerr.PersistenceFailure(err))
	}
	return c.JSON(http.StatusOK, map[string]any{"cleared": true})
}
