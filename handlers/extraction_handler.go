package handlers

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"mime"
	"net/http"

	"go.uber.org/zap"

	"github.com/Mustafabeshara/Dashboard2-sub000/middleware"
	"github.com/Mustafabeshara/Dashboard2-sub000/services/extraction"
	"github.com/Mustafabeshara/Dashboard2-sub000/services/providers"
	"github.com/Mustafabeshara/Dashboard2-sub000/utils"
)

// TextExtractionRequest is the body of POST /api/v1/extractions/text
type TextExtractionRequest struct {
	Text string `json:"text" validate:"required"`
}

// DocumentExtractionRequest is the JSON body of POST /api/v1/extractions/document.
// Exactly one of URL and Data is set; Data is base64.
type DocumentExtractionRequest struct {
	URL      string `json:"url,omitempty" validate:"required_without=Data,excluded_with=Data,omitempty,http_url"`
	Data     string `json:"data,omitempty" validate:"required_without=URL,omitempty,base64"`
	MimeType string `json:"mime_type,omitempty"`
}

// TenderExtractor is the extraction pipeline
type TenderExtractor interface {
	ExtractTenderFromText(ctx context.Context, text string) *extraction.Result
	ExtractTenderFromDocument(ctx context.Context, fileURL, mimeType string) *extraction.Result
	ExtractTenderFromBytes(ctx context.Context, data []byte, mimeType string) *extraction.Result
}

// ExtractionHandler handles tender extraction requests
type ExtractionHandler struct {
	extractor TenderExtractor
	maxBody   int64
	logger    *zap.Logger
}

// NewExtractionHandler creates a new ExtractionHandler
func NewExtractionHandler(extractor TenderExtractor, maxBody int64, logger *zap.Logger) *ExtractionHandler {
	if maxBody <= 0 {
		maxBody = utils.DefaultMaxBodyBytes
	}
	return &ExtractionHandler{
		extractor: extractor,
		maxBody:   maxBody,
		logger:    logger,
	}
}

// HandleText handles POST /api/v1/extractions/text
func (h *ExtractionHandler) HandleText(w http.ResponseWriter, r *http.Request) {
	var body TextExtractionRequest
	if err := utils.DecodeJSON(r, &body, h.maxBody); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	h.writeResult(w, r, h.extractor.ExtractTenderFromText(callerContext(r), body.Text))
}

// HandleDocument handles POST /api/v1/extractions/document. It accepts a
// multipart upload in the "file" field or a JSON body with a URL or base64 data.
func (h *ExtractionHandler) HandleDocument(w http.ResponseWriter, r *http.Request) {
	ctx := callerContext(r)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		data, mimeType, err := h.readUpload(w, r)
		if err != nil {
			HandleValidationError(w, err, h.logger)
			return
		}
		h.writeResult(w, r, h.extractor.ExtractTenderFromBytes(ctx, data, mimeType))
		return
	}

	var body DocumentExtractionRequest
	if err := utils.DecodeJSON(r, &body, h.maxBody); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	if body.URL != "" {
		h.writeResult(w, r, h.extractor.ExtractTenderFromDocument(ctx, body.URL, body.MimeType))
		return
	}

	data, err := base64.StdEncoding.DecodeString(body.Data)
	if err != nil {
		_ = utils.WriteBadRequest(w, "data must be base64 encoded", nil)
		return
	}
	mimeType := body.MimeType
	if mimeType == "" {
		mimeType = http.DetectContentType(data)
	}
	h.writeResult(w, r, h.extractor.ExtractTenderFromBytes(ctx, data, mimeType))
}

// readUpload returns the uploaded file and its media type
func (h *ExtractionHandler) readUpload(w http.ResponseWriter, r *http.Request) ([]byte, string, error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)
	if err := r.ParseMultipartForm(h.maxBody); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, "", utils.ErrBodyTooLarge
		}
		return nil, "", err
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, "", err
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, "", err
	}

	mimeType := r.FormValue("mime_type")
	if mimeType == "" {
		mimeType = header.Header.Get("Content-Type")
	}
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = http.DetectContentType(data)
	}
	return data, mimeType, nil
}

// writeResult returns input errors as error responses. Every other result,
// including provider failures with a salvaged record, is a 200 whose body
// carries the error code and the review flag.
func (h *ExtractionHandler) writeResult(w http.ResponseWriter, r *http.Request, result *extraction.Result) {
	requestID := middleware.GetRequestIDFromContext(r.Context())

	switch result.ErrorCode {
	case extraction.CodeEmptyInput, extraction.CodeUnsupportedMediaType, extraction.CodeFetchFailed, extraction.CodeCancelled:
		h.logger.Warn("extraction rejected",
			zap.String("request_id", requestID),
			zap.String("extraction_id", result.ID),
			zap.String("error_code", result.ErrorCode))
		writeCodedFailure(w, result.ErrorCode, result.Error,
			map[string]interface{}{"extraction_id": result.ID}, h.logger)
		return
	}

	if err := utils.WriteOK(w, result); err != nil {
		h.logger.Error("failed to write response",
			zap.String("request_id", requestID),
			zap.Error(err))
	}
}

// callerContext carries the authenticated user into provider requests
func callerContext(r *http.Request) context.Context {
	ctx := r.Context()
	return providers.ContextWithUserID(ctx, middleware.GetUserIDFromContext(ctx))
}
