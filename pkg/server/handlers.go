package server

import (
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/matzehuels/ovalmerge/pkg/buildinfo"
	"github.com/matzehuels/ovalmerge/pkg/errors"
	"github.com/matzehuels/ovalmerge/pkg/merge"
	"github.com/matzehuels/ovalmerge/pkg/observability"
	"github.com/matzehuels/ovalmerge/pkg/pipeline"
)

// feedPart is the multipart form name carrying one document.
const feedPart = "feed"

// Response headers set on successful merges.
const (
	HeaderRunID    = "X-Ovalmerge-Run-Id"
	HeaderCache    = "X-Ovalmerge-Cache"
	HeaderPackages = "X-Ovalmerge-Packages"
)

type errorResponse struct {
	Code    errors.Code `json:"code"`
	Message string      `json:"message"`
}

type mergeResponse struct {
	Report *merge.Report `json:"report"`
	Output string        `json:"output"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, buildinfo.Get())
}

func (s *Server) handleMerge(w http.ResponseWriter, r *http.Request) {
	opts, err := s.mergeOptions(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	inputs, err := readFeeds(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	result, err := s.runner.Execute(r.Context(), inputs, opts)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	cacheState := "miss"
	if result.CacheHit {
		cacheState = "hit"
	}
	w.Header().Set(HeaderCache, cacheState)
	if result.Report != nil {
		w.Header().Set(HeaderRunID, result.Report.RunID)
		w.Header().Set(HeaderPackages, strconv.Itoa(result.Report.Packages))
	}

	if wantsJSON(r) {
		writeJSON(w, http.StatusOK, mergeResponse{Report: result.Report, Output: string(result.Output)})
		return
	}
	w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(result.Output)
}

// mergeOptions applies the indent and refresh query parameters to the
// server defaults.
func (s *Server) mergeOptions(r *http.Request) (pipeline.Options, error) {
	opts := s.cfg.Merge
	if opts.Logger == nil {
		opts.Logger = s.cfg.Logger
	}
	q := r.URL.Query()
	if v := q.Get("indent"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return opts, errors.New(errors.ErrCodeInvalidInput, "indent must be an integer, got %q", v)
		}
		opts.Indent = n
	}
	if v := q.Get("refresh"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return opts, errors.New(errors.ErrCodeInvalidInput, "refresh must be a boolean, got %q", v)
		}
		opts.Refresh = b
	}
	return opts, nil
}

// readFeeds reads every "feed" part in order. A part's file name names the
// feed; unnamed parts are called feed-N.xml.
func readFeeds(r *http.Request) ([]pipeline.Input, error) {
	mr, err := r.MultipartReader()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "expected multipart/form-data")
	}

	var inputs []pipeline.Input
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, readError(err)
		}
		if part.FormName() != feedPart {
			_ = part.Close()
			continue
		}

		name := part.FileName()
		if name == "" {
			name = fmt.Sprintf("feed-%d.xml", len(inputs)+1)
		}
		if err := errors.ValidateFeedName(name); err != nil {
			return nil, err
		}
		data, err := io.ReadAll(part)
		_ = part.Close()
		if err != nil {
			return nil, readError(err)
		}
		inputs = append(inputs, pipeline.Input{Name: name, Text: string(data)})
	}

	if len(inputs) == 0 {
		return nil, errors.New(errors.ErrCodeInvalidInput, "no %q parts in request", feedPart)
	}
	return inputs, nil
}

// errTooLarge marks uploads that exceed MaxUploadBytes.
const errTooLarge errors.Code = "PAYLOAD_TOO_LARGE"

func readError(err error) error {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return errors.New(errTooLarge, "upload exceeds %d bytes", maxErr.Limit)
	}
	return errors.Wrap(errors.ErrCodeInvalidInput, err, "read upload")
}

// statusFor maps an error code to an HTTP status.
func statusFor(code errors.Code) int {
	switch code {
	case errors.ErrCodeInvalidInput, errors.ErrCodeInvalidPath:
		return http.StatusBadRequest
	case errors.ErrCodeFileNotFound:
		return http.StatusNotFound
	case errTooLarge:
		return http.StatusRequestEntityTooLarge
	case errors.ErrCodeParse, errors.ErrCodeDanglingReference,
		errors.ErrCodeOutputDuplicateID, errors.ErrCodeStructural:
		return http.StatusUnprocessableEntity
	case errors.ErrCodeFetch:
		return http.StatusBadGateway
	case errors.ErrCodeUnsupported:
		return http.StatusNotImplemented
	}
	return http.StatusInternalServerError
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := errors.GetCode(err)
	if code == "" {
		code = errors.ErrCodeInternal
	}
	status := statusFor(code)
	if status >= http.StatusInternalServerError {
		s.cfg.Logger.Error("merge failed", "request_id", middleware.GetReqID(r.Context()), "err", err)
	} else {
		s.cfg.Logger.Debug("rejected request", "request_id", middleware.GetReqID(r.Context()), "code", code, "err", err)
	}
	writeJSON(w, status, errorResponse{Code: code, Message: errors.UserMessage(err)})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func wantsJSON(r *http.Request) bool {
	for _, v := range strings.Split(r.Header.Get("Accept"), ",") {
		if mt, _, err := mime.ParseMediaType(strings.TrimSpace(v)); err == nil && mt == "application/json" {
			return true
		}
	}
	return false
}

// logRequests logs each request and reports it to the HTTP hooks.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		hooks := observability.HTTP()
		hooks.OnRequest(r.Context(), r.Method, r.URL.Path)

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		duration := time.Since(start)
		hooks.OnResponse(r.Context(), r.Method, r.URL.Path, ww.Status(), duration)
		s.cfg.Logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", duration,
			"request_id", middleware.GetReqID(r.Context()))
	})
}
