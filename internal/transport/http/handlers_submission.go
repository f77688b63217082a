package httptransport

import (
	"net/http"

	"scholar/internal/submission"
	"scholar/pkg/platform/httputil"
	"scholar/pkg/platform/middleware/metadata"
	"scholar/pkg/requestcontext"
)

// HandleEvaluate accepts a submission and answers with its Scanning record.
// The outcome arrives on the event feed.
func (h *Handler) HandleEvaluate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[EvaluateRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	rec, err := h.submissions.Submit(ctx, submission.SubmitRequest{
		Locator:   req.CID,
		Title:     req.Title,
		Author:    req.Author,
		Wallet:    req.WalletAddress,
		Signature: req.Signature,
		Source:    metadata.ClientLabel(requestcontext.UserAgent(ctx)),
	})
	if err != nil {
		h.logger.WarnContext(ctx, "submission rejected",
			"request_id", requestID,
			"cid", req.CID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusAccepted, rec)
}

// HandleLogs lists every record, newest first.
func (h *Handler) HandleLogs(w http.ResponseWriter, r *http.Request) {
	records, err := h.submissions.Records(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to list records", "error", err)
		httputil.WriteError(w, err)
		return
	}
	if records == nil {
		records = []submission.Record{}
	}
	httputil.WriteJSON(w, http.StatusOK, records)
}

// HandleStats returns aggregate counts.
func (h *Handler) HandleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.submissions.Stats(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to compute stats", "error", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, stats)
}
