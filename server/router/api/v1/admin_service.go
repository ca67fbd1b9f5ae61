package v1

import (
	"context"
	"encoding/csv"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	pipeerr "github.com/acswi/programchat/server/internal/errors"
	"github.com/acswi/programchat/server/service/ingest"
	"github.com/acswi/programchat/store"
)

// maxUploadBytes bounds a single uploaded file.
const maxUploadBytes = 20 << 20

type uploadResponse struct {
	Program       string          `json:"program"`
	ContentLength int             `json:"content_length"`
	CharBudget    int32           `json:"char_budget"`
	Summarized    bool            `json:"summarized"`
	Estimate      ingest.Estimate `json:"estimate"`
	PerFile       []string        `json:"per_file_preview,omitempty"`
}

// Upload ingests document files into a program's content. Multipart form:
// program code, optional append/auto_summarize flags, one or more files.
func (s *APIV1Service) Upload(c echo.Context) error {
	ctx := c.Request().Context()

	programCode := strings.TrimSpace(c.FormValue("program"))
	if programCode == "" {
		return sendError(c, pipeerr.NoProgramSelected())
	}
	program, err := s.Store.GetProgram(ctx, &store.FindProgram{Code: &programCode})
	if err != nil {
		return sendError(c, pipeerr.PersistenceFailure(err))
	}
	if program == nil {
		return sendError(c, pipeerr.ProgramNotFound(programCode))
	}

	appendContent := parseBool(c.FormValue("append"))
	autoSummarize := parseBool(c.FormValue("auto_summarize"))

	form, err := c.MultipartForm()
	if err != nil {
		return sendError(c, pipeerr.InvalidArgument("multipart form required"))
	}
	files := form.File["files"]
	if len(files) == 0 {
		return sendError(c, pipeerr.InvalidArgument("no files uploaded"))
	}

	texts := make([]string, 0, len(files))
	for _, header := range files {
		if header.Size > maxUploadBytes {
			return sendError(c, pipeerr.InvalidArgument("file too large: "+header.Filename))
		}
		file, err := header.Open()
		if err != nil {
			return sendError(c, pipeerr.InvalidArgument("unreadable file: "+header.Filename))
		}
		data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes))
		file.Close()
		if err != nil {
			return sendError(c, pipeerr.InvalidArgument("unreadable file: "+header.Filename))
		}

		contentType := header.Header.Get("Content-Type")
		text, err := s.extractText(ctx, data, contentType)
		if err != nil {
			return sendError(c, pipeerr.InvalidArgument("could not extract text from "+header.Filename+": "+err.Error()))
		}
		texts = append(texts, text)
	}

	existing := ""
	if appendContent {
		existing = program.Content
	}
	result, err := s.IngestService.Ingest(ctx, program, texts, existing, autoSummarize)
	if err != nil {
		return sendError(c, err)
	}
	if err := s.IngestService.Save(ctx, program, result.Content); err != nil {
		return sendError(c, pipeerr.PersistenceFailure(err))
	}

	return c.JSON(http.StatusOK, uploadResponse{
		Program:       program.Code,
		ContentLength: len(result.Content),
		CharBudget:    program.CharBudget,
		Summarized:    result.Summarized,
		Estimate:      ingest.EstimateContent(result.Content),
		PerFile:       result.PerFile,
	})
}

// extractText resolves a file to plaintext. Without an extractor only
// text uploads are accepted.
func (s *APIV1Service) extractText(ctx context.Context, data []byte, contentType string) (string, error) {
	if s.Extractor != nil {
		return s.Extractor.ExtractText(ctx, data, contentType)
	}
	if strings.HasPrefix(contentType, "text/") || contentType == "" {
		return string(data), nil
	}
	return "", errors.New("document extraction is not enabled; upload plain text")
}

type updateContentRequest struct {
	Code          string  `json:"code"`
	Content       *string `json:"content"`
	Name          *string `json:"name"`
	Description   *string `json:"description"`
	IntroMessage  *string `json:"intro_message"`
	DailyQuota    *int32  `json:"daily_quota"`
	RetentionDays *int32  `json:"retention_days"`
	CharBudget    *int32  `json:"char_budget"`
	Active        *bool   `json:"active"`
	AutoSummarize bool    `json:"auto_summarize"`
}

// UpdateChatbotContent edits program fields directly. Content goes through
// the same budget enforcement as uploads.
func (s *APIV1Service) UpdateChatbotContent(c echo.Context) error {
	var req updateContentRequest
	if err := c.Bind(&req); err != nil {
		return sendError(c, pipeerr.InvalidArgument("malformed request body"))
	}
	if strings.TrimSpace(req.Code) == "" {
		return sendError(c, pipeerr.NoProgramSelected())
	}

	ctx := c.Request().Context()
	program, err := s.Store.GetProgram(ctx, &store.FindProgram{Code: &req.Code})
	if err != nil {
		return sendError(c, pipeerr.PersistenceFailure(err))
	}
	if program == nil {
		return sendError(c, pipeerr.ProgramNotFound(req.Code))
	}

	now := time.Now().UTC().Unix()
	update := &store.UpdateProgram{
		ID:            program.ID,
		Name:          req.Name,
		Description:   req.Description,
		IntroMessage:  req.IntroMessage,
		DailyQuota:    req.DailyQuota,
		RetentionDays: req.RetentionDays,
		CharBudget:    req.CharBudget,
		Active:        req.Active,
		UpdatedTs:     &now,
	}

	if req.Content != nil {
		if req.CharBudget != nil {
			program.CharBudget = *req.CharBudget
		}
		result, err := s.IngestService.Ingest(ctx, program, []string{*req.Content}, "", req.AutoSummarize)
		if err != nil {
			return sendError(c, err)
		}
		update.Content = &result.Content
	}

	updated, err := s.Store.UpdateProgram(ctx, update)
	if err != nil {
		return sendError(c, pipeerr.PersistenceFailure(err))
	}
	return c.JSON(http.StatusOK, map[string]any{
		"code":           updated.Code,
		"content_length": len(updated.Content),
		"char_budget":    updated.CharBudget,
	})
}

// ExportUsers streams all users as CSV.
func (s *APIV1Service) ExportUsers(c echo.Context) error {
	users, err := s.Store.ListUsers(c.Request().Context(), &store.FindUser{})
	if err != nil {
		return sendError(c, pipeerr.PersistenceFailure(err))
	}

	c.Response().Header().Set(echo.HeaderContentType, "text/csv")
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="users.csv"`)
	c.Response().WriteHeader(http.StatusOK)

	writer := csv.NewWriter(c.Response())
	if err := writer.Write([]string{"id", "last_name", "email", "status", "created", "visit_count", "access_tags"}); err != nil {
		return err
	}
	for _, user := range users {
		record := []string{
			strconv.FormatInt(int64(user.ID), 10),
			user.LastName,
			user.Email,
			user.Status.String(),
			time.Unix(user.CreatedTs, 0).UTC().Format(time.RFC3339),
			strconv.FormatInt(int64(user.VisitCount), 10),
			strings.Join(user.AccessTags, ";"),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// DeleteUser removes a registration. Tags and conversation turns go
// with it.
func (s *APIV1Service) DeleteUser(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 32)
	if err != nil {
		return sendError(c, pipeerr.InvalidArgument("invalid user id"))
	}
	userID := int32(id)

	ctx := c.Request().Context()
	user, err := s.Store.GetUser(ctx, &store.FindUser{ID: &userID})
	if err != nil {
		return sendError(c, pipeerr.PersistenceFailure(err))
	}
	if user == nil {
		return c.JSON(http.StatusNotFound, map[string]any{"deleted": false})
	}
	if err := s.Store.DeleteUser(ctx, &store.DeleteUser{ID: userID}); err != nil {
		return sendError(c, pipeerr.PersistenceFailure(err))
	}
	return c.JSON(http.StatusOK, map[string]any{"deleted": true})
}

func parseBool(value string) bool {
	parsed, _ := strconv.ParseBool(strings.TrimSpace(value))
	return parsed
}
