package httpapi

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"pkt.systems/hipposync/internal/logx"
	"pkt.systems/hipposync/schema"
)

// handleChat accepts the multipart relay form and answers with a
// deterministic echo in place of a model call.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxMultipartBody)
	if err := r.ParseMultipartForm(maxMultipartBody); err != nil {
		writeValidation(w, "Invalid multipart form")
		return
	}
	threadID, err := strconv.ParseInt(strings.TrimSpace(r.FormValue("thread_id")), 10, 64)
	if err != nil {
		writeValidation(w, "Field required: thread_id")
		return
	}
	model := schema.ModelID(strings.TrimSpace(r.FormValue("model")))
	if model == "" {
		model = schema.DefaultModel
	}
	temperature := schema.DefaultTemperature
	if raw := strings.TrimSpace(r.FormValue("temperature")); raw != "" {
		temperature, err = strconv.ParseFloat(raw, 64)
		if err != nil {
			writeValidation(w, "temperature must be a number")
			return
		}
	}
	turn := chatTurn{message: strings.TrimSpace(r.FormValue("message")), model: model}
	systemPrompt := strings.TrimSpace(r.FormValue("system_prompt"))

	var fileSize int64
	file, header, err := r.FormFile("file")
	switch {
	case err == nil:
		defer file.Close()
		fileSize, err = io.Copy(io.Discard, file)
		if err != nil {
			writeValidation(w, "Could not read uploaded file")
			return
		}
		turn.filename = header.Filename
	case !errors.Is(err, http.ErrMissingFile):
		writeValidation(w, "Invalid file upload")
		return
	}
	if turn.message == "" && turn.filename == "" {
		writeDetail(w, http.StatusBadRequest, "Message or file is required")
		return
	}

	account := mustAccount(r)
	var usedContext []string
	if turn.filename != "" {
		usedContext = append(usedContext, "document:"+turn.filename)
	}
	thread, reply, err := s.data.recordChat(account.ID, schema.ThreadID(threadID), turn, func(schema.Thread) string {
		return echoReply(turn, temperature, systemPrompt, fileSize)
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	logx.WithUserThread(r.Context(), schema.UserID(account.Email), thread.ID).Debug("chat relayed", "model", model, "file", turn.filename != "")
	writeJSON(w, http.StatusOK, schema.ChatReply{
		Reply:       reply,
		ThreadID:    thread.ID,
		ModelUsed:   model,
		UsedContext: usedContext,
	})
}

func echoReply(turn chatTurn, temperature float64, systemPrompt string, fileSize int64) string {
	var b strings.Builder
	if turn.filename != "" {
		fmt.Fprintf(&b, "Stored document **%s** (%d bytes).", turn.filename, fileSize)
		if turn.message == "" {
			b.WriteString(" Ask me anything about it.")
			return b.String()
		}
		b.WriteString("\n\n")
	}
	fmt.Fprintf(&b, "You said: %s", turn.message)
	if systemPrompt != "" {
		fmt.Fprintf(&b, "\n\n_system prompt active, temperature %s_", strconv.FormatFloat(temperature, 'f', -1, 64))
	}
	return b.String()
}
