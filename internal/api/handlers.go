package api

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/verdikta/external-adapter/internal/arbitration"
	"github.com/verdikta/external-adapter/internal/faults"
)

// oracleRequest is the Chainlink job payload: a job run ID wrapping a data
// object.
type oracleRequest struct {
	ID   string     `json:"id"`
	Data oracleData `json:"data"`
}

type oracleData struct {
	CID        string `json:"cid"`
	Aggregator string `json:"aggregator,omitempty"`
	ClassID    int    `json:"classID,omitempty"`
	Mode       int    `json:"mode,omitempty"`
	RequestID  string `json:"requestID,omitempty"`
}

type oracleResponse struct {
	JobRunID   string       `json:"jobRunID"`
	StatusCode int          `json:"statusCode"`
	Data       responseData `json:"data"`
}

type responseData struct {
	Result           string `json:"result,omitempty"`
	JustificationCID string `json:"justificationCID,omitempty"`
	Error            string `json:"error,omitempty"`
}

// handleEvaluate is the dispatcher: parse the oracle payload, route by mode,
// and encode the pipeline outcome.
func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	var oreq oracleRequest
	if err := json.NewDecoder(r.Body).Decode(&oreq); err != nil {
		s.writeError(w, "", faults.New(faults.BadRequest, "malformed request body: %v", err), "")
		return
	}

	req, err := parseRequest(&oreq)
	if err != nil {
		s.writeError(w, oreq.ID, err, "")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.RequestDeadline())
	defer cancel()

	start := time.Now()
	out, err := s.pipeline.Execute(ctx, req)
	elapsed := time.Since(start)

	modeLabel := strconv.Itoa(req.Mode)
	if err != nil {
		kind := faults.KindOf(err)
		s.metrics.RecordRequest(modeLabel, string(kind), elapsed.Seconds())
		s.logger.Warn("request failed",
			zap.String("job_run_id", req.JobRunID),
			zap.Int("mode", req.Mode),
			zap.String("kind", string(kind)),
			zap.Duration("elapsed", elapsed),
			zap.Error(err))

		var failure *arbitration.Failure
		justCID := ""
		if errors.As(err, &failure) {
			justCID = failure.JustificationCID
		}
		s.writeError(w, req.JobRunID, err, justCID)
		return
	}

	s.metrics.RecordRequest(modeLabel, "ok", elapsed.Seconds())
	s.logger.Info("request complete",
		zap.String("job_run_id", req.JobRunID),
		zap.Int("mode", req.Mode),
		zap.String("justification_cid", out.JustificationCID),
		zap.Duration("elapsed", elapsed))

	s.writeJSON(w, http.StatusOK, oracleResponse{
		JobRunID:   req.JobRunID,
		StatusCode: http.StatusOK,
		Data: responseData{
			Result:           hex.EncodeToString(out.Result),
			JustificationCID: out.JustificationCID,
		},
	})
}

// parseRequest validates the oracle payload and splits the CID list.
func parseRequest(oreq *oracleRequest) (*arbitration.Request, error) {
	var cids []string
	for _, part := range strings.Split(oreq.Data.CID, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			cids = append(cids, trimmed)
		}
	}
	if len(cids) == 0 {
		return nil, faults.New(faults.BadRequest, "request is missing a cid")
	}

	mode := oreq.Data.Mode
	if mode < arbitration.ModeStandard || mode > arbitration.ModeReveal {
		return nil, faults.New(faults.BadRequest, "unknown mode %d", mode)
	}

	jobRunID := oreq.ID
	if jobRunID == "" {
		jobRunID = uuid.NewString()
	}

	return &arbitration.Request{
		JobRunID:   jobRunID,
		CIDs:       cids,
		Aggregator: oreq.Data.Aggregator,
		ClassID:    oreq.Data.ClassID,
		Mode:       mode,
		RequestID:  oreq.Data.RequestID,
	}, nil
}

func (s *Server) writeError(w http.ResponseWriter, jobRunID string, err error, justificationCID string) {
	kind := faults.KindOf(err)
	status := faults.HTTPStatus(kind)

	s.writeJSON(w, status, oracleResponse{
		JobRunID:   jobRunID,
		StatusCode: status,
		Data: responseData{
			Error:            err.Error(),
			JustificationCID: justificationCID,
		},
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Warn("response encoding failed", zap.Error(err))
	}
}
