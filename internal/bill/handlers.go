package bill

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
)

// maxUploadSize bounds uploaded documents and email payloads
const maxUploadSize = int64(25 << 20)

// setCORSHeaders sets CORS headers on a response
func setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
	w.Header().Set("Access-Control-Max-Age", "3600")
}

// writeJSON writes v with the given status code
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// writeError writes a JSON error body with CORS headers set
func writeError(w http.ResponseWriter, message string, code int) {
	setCORSHeaders(w)
	writeJSON(w, code, map[string]string{"error": message})
}

// writeResult maps a processing result to a response; new bills get 201
func writeResult(w http.ResponseWriter, result *Result) {
	code := http.StatusOK
	if result.Status == StatusAdmitted {
		code = http.StatusCreated
	}
	writeJSON(w, code, result)
}

// pathID parses the {id} path parameter
func pathID(r *http.Request) (uint64, bool) {
	id, err := strconv.ParseUint(r.PathValue("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return id, true
}

// handleProcessText ingests a text blob
func (s *Server) handleProcessText(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Metadata
		Text string `json:"text"`
	}
	if err := json.NewDecoder(io.LimitReader(r.Body, maxUploadSize)).Decode(&req); err != nil {
		writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	result, err := s.service.ProcessText(req.Metadata, req.Text)
	if err != nil {
		slog.Error("Error processing text", "source", req.Source, "error", err)
		writeError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	writeResult(w, result)
}

// handleProcessPaymentLine ingests a payment line captured from a portal
func (s *Server) handleProcessPaymentLine(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Metadata
		PaymentLine string `json:"payment_line"`
	}
	if err := json.NewDecoder(io.LimitReader(r.Body, maxUploadSize)).Decode(&req); err != nil {
		writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.PaymentLine == "" {
		writeError(w, "payment_line is required", http.StatusBadRequest)
		return
	}

	result, err := s.service.ProcessPaymentLine(req.Metadata, req.PaymentLine)
	if err != nil {
		slog.Error("Error processing payment line", "source", req.Source, "error", err)
		writeError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	writeResult(w, result)
}

// handleProcessEmail ingests an email with its attachments
func (s *Server) handleProcessEmail(w http.ResponseWriter, r *http.Request) {
	var email Email
	if err := json.NewDecoder(io.LimitReader(r.Body, maxUploadSize)).Decode(&email); err != nil {
		writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	result, err := s.service.ProcessEmail(email)
	if err != nil {
		slog.Error("Error processing email", "folder", email.Folder, "subject", email.Subject, "error", err)
		writeError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	writeResult(w, result)
}

// handleProcessFile ingests an uploaded PDF or image
func (s *Server) handleProcessFile(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		slog.Error("Error parsing multipart form", "error", err)
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, "File is too large. Maximum size is 25MB.", http.StatusRequestEntityTooLarge)
			return
		}
		writeError(w, "Error parsing form", http.StatusBadRequest)
		return
	}

	f, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, "No file provided", http.StatusBadRequest)
		return
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		slog.Error("Error reading file data", "error", err, "filename", header.Filename)
		writeError(w, "Error reading file. Please try again.", http.StatusInternalServerError)
		return
	}

	meta := Metadata{
		Source:         r.FormValue("source"),
		Title:          r.FormValue("title"),
		ReferenceMonth: r.FormValue("reference_month"),
	}
	result, err := s.service.ProcessFile(meta, header.Filename, data, header.Header.Get("Content-Type"))
	if err != nil {
		slog.Error("Error processing file", "filename", header.Filename, "error", err)
		if errors.Is(err, ErrUnreadableDocument) {
			writeError(w, err.Error(), http.StatusUnprocessableEntity)
			return
		}
		writeError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	writeResult(w, result)
}

// handleListBills returns bills, optionally filtered by paid flag and month
func (s *Server) handleListBills(w http.ResponseWriter, r *http.Request) {
	var filter Filter
	if v := r.URL.Query().Get("paid"); v != "" {
		paid, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, "paid must be true or false", http.StatusBadRequest)
			return
		}
		filter.Paid = &paid
	}
	filter.ReferenceMonth = r.URL.Query().Get("month")

	bills, err := s.service.ListBills(filter)
	if err != nil {
		slog.Error("Error listing bills", "error", err)
		writeError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	// Ensure we always return an array, not nil
	if bills == nil {
		bills = []*Bill{}
	}
	writeJSON(w, http.StatusOK, bills)
}

// handleGetBill returns a single bill
func (s *Server) handleGetBill(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, "Invalid bill ID", http.StatusBadRequest)
		return
	}
	bill, err := s.service.GetBill(id)
	if err != nil {
		s.writeLookupError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bill)
}

// handleGetBillFile returns the archived document of a bill
func (s *Server) handleGetBillFile(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, "Invalid bill ID", http.StatusBadRequest)
		return
	}
	data, contentType, err := s.service.GetBillFile(id)
	if err != nil {
		writeError(w, "File not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Write(data)
}

// handleMarkPaid flags a bill as paid
func (s *Server) handleMarkPaid(w http.ResponseWriter, r *http.Request) {
	s.handleSetPaid(w, r, true)
}

// handleMarkUnpaid clears the paid flag
func (s *Server) handleMarkUnpaid(w http.ResponseWriter, r *http.Request) {
	s.handleSetPaid(w, r, false)
}

func (s *Server) handleSetPaid(w http.ResponseWriter, r *http.Request, paid bool) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, "Invalid bill ID", http.StatusBadRequest)
		return
	}

	var (
		bill *Bill
		err  error
	)
	if paid {
		bill, err = s.service.MarkPaid(id)
	} else {
		bill, err = s.service.MarkUnpaid(id)
	}
	if err != nil {
		s.writeLookupError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bill)
}

// handleResetBills removes every bill
func (s *Server) handleResetBills(w http.ResponseWriter, r *http.Request) {
	if err := s.service.Reset(); err != nil {
		slog.Error("Error resetting bills", "error", err)
		writeError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// writeLookupError distinguishes missing bills from store failures
func (s *Server) writeLookupError(w http.ResponseWriter, err error) {
	if errors.Is(err, ErrNotFound) {
		writeError(w, "Bill not found", http.StatusNotFound)
		return
	}
	slog.Error("Error loading bill", "error", err)
	writeError(w, "Internal server error", http.StatusInternalServerError)
}
