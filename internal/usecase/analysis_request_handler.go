package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"RiskPulse/internal/domain/errs"
	"RiskPulse/internal/domain/models"
	domrepo "RiskPulse/internal/domain/repository"
	servicemetrics "RiskPulse/internal/service/metrics"
	pkgkafka "RiskPulse/pkg/kafka"
	applogger "RiskPulse/pkg/logger"
	"RiskPulse/pkg/queue"
)

// JobAnalyzeAsset is the queue message type for analysis requests.
const JobAnalyzeAsset = "analyze_asset"

// AnalysisRequestHandler consumes {asset, user_id} messages and runs the
// analysis. The report leaves through the configured publisher.
type AnalysisRequestHandler struct {
	topic   string
	entry   string
	uc      *AnalysisUseCase
	metrics domrepo.Metrics
	l       *applogger.Logger
}

func NewAnalysisRequestHandler(topic string, uc *AnalysisUseCase, metrics domrepo.Metrics, l *applogger.Logger) *AnalysisRequestHandler {
	if l == nil {
		l = applogger.Nop()
	}
	return &AnalysisRequestHandler{topic: topic, entry: servicemetrics.EntryKafka, uc: uc, metrics: metrics, l: l}
}

func (h *AnalysisRequestHandler) Topic() string { return h.topic }

// Handle returns nil for requests naming an invalid symbol, since redelivery
// cannot fix them.
func (h *AnalysisRequestHandler) Handle(ctx context.Context, b []byte) error {
	var req models.AnalyzeAssetRequest
	if err := json.Unmarshal(b, &req); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return err
	}

	start := time.Now()
	report, err := h.uc.AnalyzeAsset(ctx, req)
	servicemetrics.ObserveAnalysis(h.entry, start, err)
	var verr *errs.ValidationError
	switch {
	case errors.As(err, &verr):
		h.metrics.RecordError(string(errs.KindValidation))
		h.l.Warn("analysis request rejected", applogger.String("asset", req.Asset), applogger.String("reason", verr.Reason))
		return nil
	case err != nil:
		h.metrics.RecordError("consumer_analyze")
		return err
	}
	h.l.Info("analysis request served",
		applogger.String("asset", report.Asset),
		applogger.String("user_id", report.UserID),
		applogger.Duration("took", time.Since(start)),
	)
	return nil
}

// AnalysisJob serves the same requests from the Redis work queue.
type AnalysisJob struct {
	h *AnalysisRequestHandler
}

func NewAnalysisJob(uc *AnalysisUseCase, metrics domrepo.Metrics, l *applogger.Logger) *AnalysisJob {
	h := NewAnalysisRequestHandler("", uc, metrics, l)
	h.entry = servicemetrics.EntryQueue
	return &AnalysisJob{h: h}
}

func (j *AnalysisJob) Name() string { return "analysis_job" }

func (j *AnalysisJob) Type() string { return JobAnalyzeAsset }

func (j *AnalysisJob) Handle(ctx context.Context, payload []byte) error {
	return j.h.Handle(ctx, payload)
}

var (
	_ pkgkafka.MessageHandler = (*AnalysisRequestHandler)(nil)
	_ queue.Job               = (*AnalysisJob)(nil)
)
