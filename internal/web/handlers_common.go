// Package web provides HTTP handlers for the tender API.
// This file contains shared utilities and helper functions used across handlers.
package web

import (
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/JonMunkholm/tenderdesk/internal/core"
)

// multipartOverhead is allowed on top of the file size limit for form
// boundaries and headers.
const multipartOverhead = 64 << 10

// errNoFile is reported when a request carries neither a form file nor a body.
var errNoFile = errors.New("no file provided")

// parseIntParam parses an integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil || i < 1 {
		return defaultVal
	}
	return i
}

// parseTenderStatuses parses the comma-separated status query parameter.
func parseTenderStatuses(r *http.Request) ([]core.TenderStatus, error) {
	raw := r.URL.Query().Get("status")
	if raw == "" {
		return nil, nil
	}
	var out []core.TenderStatus
	for _, part := range strings.Split(raw, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		st, err := core.ParseTenderStatus(part)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, nil
}

// parseFormatParam reads the format query parameter; empty means CSV.
func parseFormatParam(r *http.Request) (core.Format, error) {
	return core.ParseFormat(r.URL.Query().Get("format"))
}

// parseBaselineParam reads the baseline query parameter; empty selects the
// service default.
func parseBaselineParam(r *http.Request) (core.BaselinePolicy, error) {
	return core.ParseBaselinePolicy(r.URL.Query().Get("baseline"))
}

// readImportSource extracts the uploaded file from a multipart form field
// named "file", or else takes the raw request body. The returned close
// function must be called once the source has been consumed.
func (s *Server) readImportSource(w http.ResponseWriter, r *http.Request) (core.ImportSource, func(), error) {
	maxSize := s.cfg.Import.MaxFileSize
	nop := func() {}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		r.Body = http.MaxBytesReader(w, r.Body, maxSize+multipartOverhead)
		if err := r.ParseMultipartForm(maxSize); err != nil {
			var maxBytes *http.MaxBytesError
			if errors.As(err, &maxBytes) {
				return core.ImportSource{}, nop, &core.FileTooLargeError{Limit: maxSize}
			}
			return core.ImportSource{}, nop, fmt.Errorf("invalid form: %w", err)
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			return core.ImportSource{}, nop, errNoFile
		}
		src := core.ImportSource{Name: header.Filename, Reader: file}
		if f := r.FormValue("format"); f != "" {
			if src.Format, err = core.ParseFormat(f); err != nil {
				file.Close()
				return core.ImportSource{}, nop, err
			}
		}
		return src, func() { file.Close() }, nil
	}

	if r.Body == nil || r.Body == http.NoBody || r.ContentLength == 0 {
		return core.ImportSource{}, nop, errNoFile
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxSize+1)
	src := core.ImportSource{Name: r.URL.Query().Get("filename"), Reader: r.Body}

	format := r.URL.Query().Get("format")
	if format == "" && src.Name == "" && mediaType == core.FormatXLSX.ContentType() {
		format = string(core.FormatXLSX)
	}
	if format != "" {
		f, err := core.ParseFormat(format)
		if err != nil {
			return core.ImportSource{}, nop, err
		}
		src.Format = f
	}
	return src, nop, nil
}

// badSource writes the response for a request whose file could not be
// extracted.
func badSource(w http.ResponseWriter, r *http.Request, err error) {
	var tooLarge *core.FileTooLargeError
	if errors.As(err, &tooLarge) {
		respondError(w, r, err)
		return
	}
	writeError(w, r, http.StatusBadRequest, err.Error())
}

// setDownloadHeaders marks the response as a file attachment.
func setDownloadHeaders(w http.ResponseWriter, name string, format core.Format) {
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s%s"`, name, format.Ext()))
}
